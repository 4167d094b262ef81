// Package limiter defines interfaces and implementations for attempt rate limiting.
package limiter

import (
	"context"
	"time"
)

// Scopes of guarded operations.
const (
	ScopeLogin  = "login"
	ScopeInvite = "invite"
)

// Key identifies a counter: an operation scope, the attacked subject and the caller.
type Key struct {
	Scope   string
	Subject string
	IPHash  []byte
}

// Limiter controls attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether an attempt is currently allowed and optional retry-after.
	Allow(ctx context.Context, k Key) (bool, time.Duration, error)
	// Success resets counters after a successful attempt.
	Success(ctx context.Context, k Key) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, k Key) (bool, time.Duration, error)
}
