package merge

// Resolver picks the value kept when a remote update meets a local copy.
type Resolver[T Entity] interface {
	Resolve(local, remote T) T
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc[T Entity] func(local, remote T) T

func (f ResolverFunc[T]) Resolve(local, remote T) T { return f(local, remote) }

// LastWriteWins always keeps the remote record.
type LastWriteWins[T Entity] struct{}

func (LastWriteWins[T]) Resolve(_, remote T) T { return remote }

// Versioned entities carry a monotonically increasing row version.
type Versioned interface {
	Entity
	Version() int64
}

// NewerVersionWins takes the remote copy only when it is strictly newer than the local one.
// A local copy at the same version may carry unconfirmed edits on top of it, so it is kept.
type NewerVersionWins[T Versioned] struct{}

func (NewerVersionWins[T]) Resolve(local, remote T) T {
	if local.Version() >= remote.Version() {
		return local
	}
	return remote
}
