// Package realtime is the server-side change hub: per-board fan-out of row changes and
// cursor events to subscribed feeds.
package realtime

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/and161185/brainboard/internal/errs"
	"github.com/and161185/brainboard/internal/model"
)

var (
	// ErrSlowConsumer ends a subscription whose buffer overflowed.
	ErrSlowConsumer = errors.New("realtime: slow consumer")
	// ErrHubClosed ends every subscription when the hub shuts down.
	ErrHubClosed = errors.New("realtime: hub closed")
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 256

// Publisher is the write side used by services.
type Publisher interface {
	Publish(ch model.Change) model.Change
}

// Filter narrows a subscription. Empty Entities matches all kinds; a non-nil NodeID
// matches only rows scoped to that node.
type Filter struct {
	Entities []model.EntityKind
	NodeID   uuid.UUID
}

// Match reports whether ch passes the filter.
func (f Filter) Match(ch model.Change) bool {
	if len(f.Entities) > 0 && !slices.Contains(f.Entities, ch.Entity) {
		return false
	}
	if f.NodeID != uuid.Nil && ch.NodeID != f.NodeID {
		return false
	}
	return true
}

// ParseFilter builds a filter from entity kind names.
func ParseFilter(entities []string, nodeID uuid.UUID) (Filter, error) {
	f := Filter{NodeID: nodeID}
	for _, e := range entities {
		k := model.EntityKind(e)
		switch k {
		case model.EntityNode, model.EntityEdge, model.EntityDrawing, model.EntityChecklistItem, model.EntityCursor:
			f.Entities = append(f.Entities, k)
		default:
			return Filter{}, fmt.Errorf("%w: unknown entity %q", errs.ErrInvalidArgument, e)
		}
	}
	return f, nil
}

// Subscription receives changes on C until it is closed or dropped.
type Subscription struct {
	C <-chan model.Change

	ch      chan model.Change
	hub     *Hub
	boardID uuid.UUID
	id      uint64
	filter  Filter

	mu  sync.Mutex
	err error
}

// Err is nil after Close and the reason otherwise. Only meaningful once C is closed.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription) Close() { s.hub.drop(s, nil) }

// Options of NewHub.
type Options struct {
	Logger *zap.Logger
	Buffer int
	Now    func() time.Time
}

// Hub fans changes out to the subscribers of each board. Sends never block.
type Hub struct {
	log *zap.Logger
	buf int
	now func() time.Time

	mu     sync.RWMutex
	boards map[uuid.UUID]map[uint64]*Subscription
	nextID uint64
	closed bool

	idMu    sync.Mutex
	entropy io.Reader
}

func NewHub(opts Options) *Hub {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Hub{
		log:     opts.Logger,
		buf:     opts.Buffer,
		now:     opts.Now,
		boards:  make(map[uuid.UUID]map[uint64]*Subscription),
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Subscribe attaches a feed to a board. On a closed hub the subscription is returned
// already ended with ErrHubClosed.
func (h *Hub) Subscribe(boardID uuid.UUID, f Filter) *Subscription {
	ch := make(chan model.Change, h.buf)
	s := &Subscription{C: ch, ch: ch, hub: h, boardID: boardID, filter: f}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		s.err = ErrHubClosed
		close(ch)
		return s
	}
	h.nextID++
	s.id = h.nextID
	subs := h.boards[boardID]
	if subs == nil {
		subs = make(map[uint64]*Subscription)
		h.boards[boardID] = subs
	}
	subs[s.id] = s
	return s
}

// Publish stamps ch with an event id and time and delivers it to matching subscribers.
func (h *Hub) Publish(ch model.Change) model.Change {
	now := h.now().UTC()
	ch.At = now
	h.idMu.Lock()
	ch.ID = ulid.MustNew(ulid.Timestamp(now), h.entropy).String()
	h.idMu.Unlock()

	var slow []*Subscription
	h.mu.RLock()
	for _, s := range h.boards[ch.BoardID] {
		if !s.filter.Match(ch) {
			continue
		}
		select {
		case s.ch <- ch:
		default:
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range slow {
		h.log.Warn("realtime subscriber dropped",
			zap.Stringer("board", ch.BoardID),
			zap.Uint64("sub", s.id),
		)
		h.drop(s, ErrSlowConsumer)
	}
	return ch
}

// Subscribers returns the number of live feeds of a board.
func (h *Hub) Subscribers(boardID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.boards[boardID])
}

// Close ends every subscription with ErrHubClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for board, subs := range h.boards {
		for id, s := range subs {
			s.finish(ErrHubClosed)
			delete(subs, id)
		}
		delete(h.boards, board)
	}
}

func (h *Hub) drop(s *Subscription, reason error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.boards[s.boardID]
	if _, ok := subs[s.id]; !ok {
		return
	}
	delete(subs, s.id)
	if len(subs) == 0 {
		delete(h.boards, s.boardID)
	}
	s.finish(reason)
}

// finish must run under the hub write lock so no Publish is sending on s.ch.
func (s *Subscription) finish(reason error) {
	s.mu.Lock()
	s.err = reason
	s.mu.Unlock()
	close(s.ch)
}
