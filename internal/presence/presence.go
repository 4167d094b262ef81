// Package presence tracks collaborators' cursors and throttles publishing of our own.
package presence

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/brainboard/internal/model"
	"github.com/and161185/brainboard/internal/viewport"
)

// Defaults for Tracker and Broadcaster.
const (
	DefaultTTL      = 10 * time.Second
	DefaultInterval = 50 * time.Millisecond
)

// Peer is a collaborator cursor mapped to screen space.
type Peer struct {
	UserID uuid.UUID
	Name   string
	Screen model.Point
}

// Tracker holds the latest cursor of each peer in logical coordinates.
type Tracker struct {
	self uuid.UUID
	ttl  time.Duration

	mu      sync.RWMutex
	cursors map[uuid.UUID]model.Cursor
}

// NewTracker ignores cursors of self. ttl <= 0 uses DefaultTTL.
func NewTracker(self uuid.UUID, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tracker{self: self, ttl: ttl, cursors: make(map[uuid.UUID]model.Cursor)}
}

// Apply stores a cursor unless it is our own or older than the one we have.
func (t *Tracker) Apply(c model.Cursor) {
	if c.UserID == t.self || c.UserID == uuid.Nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.cursors[c.UserID]; ok && c.At.Before(prev.At) {
		return
	}
	t.cursors[c.UserID] = c
}

// Remove forgets a peer, e.g. when it left the board.
func (t *Tracker) Remove(userID uuid.UUID) {
	t.mu.Lock()
	delete(t.cursors, userID)
	t.mu.Unlock()
}

// Expire drops cursors not refreshed within the TTL and returns how many were dropped.
func (t *Tracker) Expire(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for id, c := range t.cursors {
		if now.Sub(c.At) > t.ttl {
			delete(t.cursors, id)
			n++
		}
	}
	return n
}

// ScreenPositions maps peer cursors through vp, ordered by user id.
func (t *Tracker) ScreenPositions(vp viewport.Viewport) []Peer {
	t.mu.RLock()
	out := make([]Peer, 0, len(t.cursors))
	for _, c := range t.cursors {
		out = append(out, Peer{UserID: c.UserID, Name: c.Name, Screen: vp.ToScreen(model.Point{X: c.X, Y: c.Y})})
	}
	t.mu.RUnlock()
	slices.SortFunc(out, func(a, b Peer) int { return cmp.Compare(a.UserID.String(), b.UserID.String()) })
	return out
}

// Publisher sends our cursor to the board.
type Publisher interface {
	PublishCursor(ctx context.Context, c model.Cursor) error
}

// Broadcaster rate-limits cursor publishing. Positions reported inside an interval are
// coalesced and the latest one is sent when the interval ends.
type Broadcaster struct {
	pub      Publisher
	base     model.Cursor
	interval time.Duration
	log      *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	pending  *model.Point
	lastSent time.Time
	timer    *time.Timer
	closed   bool
}

// NewBroadcaster publishes cursors of base.UserID on base.BoardID.
func NewBroadcaster(pub Publisher, base model.Cursor, interval time.Duration, log *zap.Logger) *Broadcaster {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Broadcaster{pub: pub, base: base, interval: interval, log: log, now: time.Now}
}

// Move reports the pointer at a screen position.
func (b *Broadcaster) Move(screen model.Point, vp viewport.Viewport) {
	p := vp.ToLogical(screen)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.pending = &p
	if b.timer != nil {
		b.mu.Unlock()
		return
	}
	wait := b.interval - b.now().Sub(b.lastSent)
	if wait <= 0 {
		b.mu.Unlock()
		b.flush()
		return
	}
	b.timer = time.AfterFunc(wait, b.flush)
	b.mu.Unlock()
}

// Close stops pending sends.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.pending = nil
}

func (b *Broadcaster) flush() {
	b.mu.Lock()
	b.timer = nil
	p := b.pending
	b.pending = nil
	if p == nil || b.closed {
		b.mu.Unlock()
		return
	}
	now := b.now()
	b.lastSent = now
	c := b.base
	c.X, c.Y, c.At = p.X, p.Y, now
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), b.interval*10)
	defer cancel()
	if err := b.pub.PublishCursor(ctx, c); err != nil {
		b.log.Debug("presence: publish failed", zap.Error(err))
	}
}
