package focus

import (
	"sync"

	"github.com/gofrs/uuid/v5"
)

// Registry tracks which focus widget currently owns the running work session.
// Only the owner may release itself; activating a widget notifies every other subscriber.
type Registry struct {
	mu    sync.Mutex
	owner uuid.UUID
	subs  map[uuid.UUID]func()
}

// NewRegistry returns an empty registry. Share one per client process.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[uuid.UUID]func())}
}

// Subscribe registers onPreempt for widget id and returns the unsubscribe func.
// onPreempt is called, outside the registry lock, whenever another widget becomes active.
func (r *Registry) Subscribe(id uuid.UUID, onPreempt func()) func() {
	r.mu.Lock()
	r.subs[id] = onPreempt
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			if r.owner == id {
				r.owner = uuid.Nil
			}
			r.mu.Unlock()
		})
	}
}

// Activate makes id the owner and preempts all other subscribers.
func (r *Registry) Activate(id uuid.UUID) {
	r.mu.Lock()
	r.owner = id
	others := make([]func(), 0, len(r.subs))
	for sid, fn := range r.subs {
		if sid != id && fn != nil {
			others = append(others, fn)
		}
	}
	r.mu.Unlock()

	for _, fn := range others {
		fn()
	}
}

// Release clears ownership when id is the current owner. It reports whether it did.
func (r *Registry) Release(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owner != id || id == uuid.Nil {
		return false
	}
	r.owner = uuid.Nil
	return true
}

// Owner returns the active widget id or uuid.Nil.
func (r *Registry) Owner() uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owner
}
