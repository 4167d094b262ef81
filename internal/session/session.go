// Package session binds the view-models of one open board to the backend: it loads the
// snapshot, owns the realtime subscription and routes incoming changes.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/brainboard/internal/canvas"
	"github.com/and161185/brainboard/internal/checklist"
	"github.com/and161185/brainboard/internal/errs"
	"github.com/and161185/brainboard/internal/focus"
	"github.com/and161185/brainboard/internal/merge"
	"github.com/and161185/brainboard/internal/model"
	"github.com/and161185/brainboard/internal/outbox"
	"github.com/and161185/brainboard/internal/presence"
)

// Stream yields changes of a subscription until it fails or its context ends.
type Stream interface {
	Recv() (model.Change, error)
}

// Backend is everything an open board needs from the server.
type Backend interface {
	canvas.Backend
	checklist.Backend
	presence.Publisher
	focus.Rewarder
	GetBoard(ctx context.Context, boardID uuid.UUID) (model.BoardSnapshot, error)
	ListItems(ctx context.Context, boardID, nodeID uuid.UUID) ([]model.ChecklistItem, error)
	Subscribe(ctx context.Context, boardID uuid.UUID) (Stream, error)
}

// Config of Open.
type Config struct {
	BoardID  uuid.UUID
	UserID   uuid.UUID
	UserName string
	Backend  Backend
	Queue    *outbox.Queue
	Logger   *zap.Logger
	// Registry is shared by all sessions of the process; a private one is used when nil.
	Registry *focus.Registry
	// OnReward receives reward notifications of focus widgets.
	OnReward func(model.Collectible)
}

// Session is an open board.
type Session struct {
	cfg      Config
	log      *zap.Logger
	snapshot model.BoardSnapshot

	canvas      *canvas.Controller
	peers       *presence.Tracker
	broadcaster *presence.Broadcaster
	status      merge.Status

	mu     sync.Mutex
	lists  map[uuid.UUID]*checklist.List
	timers map[uuid.UUID]*focus.Machine

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Open subscribes to the board feed, loads the snapshot and starts routing changes.
// The subscription is opened first so nothing between the load and the feed is missed.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.Backend == nil || cfg.Queue == nil {
		return nil, errors.New("session: backend and queue are required")
	}
	if cfg.BoardID == uuid.Nil || cfg.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty board/user id", errs.ErrInvalidArgument)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Registry == nil {
		cfg.Registry = focus.NewRegistry()
	}

	subCtx, cancel := context.WithCancel(context.Background())
	stream, err := cfg.Backend.Subscribe(subCtx, cfg.BoardID)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	snap, err := cfg.Backend.GetBoard(ctx, cfg.BoardID)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("load board: %w", err)
	}

	s := &Session{
		cfg:      cfg,
		log:      cfg.Logger.With(zap.Stringer("board", cfg.BoardID)),
		snapshot: snap,
		canvas: canvas.NewController(cfg.BoardID, cfg.UserID, cfg.Backend, cfg.Queue, canvas.Options{
			Logger:       cfg.Logger,
			NodeResolver: merge.NewerVersionWins[model.Node]{},
		}),
		peers: presence.NewTracker(cfg.UserID, 0),
		broadcaster: presence.NewBroadcaster(cfg.Backend,
			model.Cursor{BoardID: cfg.BoardID, UserID: cfg.UserID, Name: cfg.UserName}, 0, cfg.Logger),
		lists:  make(map[uuid.UUID]*checklist.List),
		timers: make(map[uuid.UUID]*focus.Machine),
		ctx:    subCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.canvas.Load(snap)

	go s.route(stream)
	return s, nil
}

// Board returns the board header and the caller's role at open time.
func (s *Session) Board() (model.Board, model.Role) { return s.snapshot.Board, s.snapshot.Role }

func (s *Session) Canvas() *canvas.Controller    { return s.canvas }
func (s *Session) Peers() *presence.Tracker      { return s.peers }
func (s *Session) Cursor() *presence.Broadcaster { return s.broadcaster }
func (s *Session) Queue() *outbox.Queue          { return s.cfg.Queue }
func (s *Session) Done() <-chan struct{}         { return s.done }

func (s *Session) lookupList(id uuid.UUID) *checklist.List {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lists[id]
}

// Err is the soft error flag of the subscription. It is never cleared automatically.
func (s *Session) Err() error { return s.status.Err() }

// Checklist returns the item list of a checklist node, loading it on first use.
func (s *Session) Checklist(ctx context.Context, nodeID uuid.UUID) (*checklist.List, error) {
	if l := s.lookupList(nodeID); l != nil {
		return l, nil
	}
	n, ok := s.canvas.Node(nodeID)
	if !ok {
		return nil, fmt.Errorf("node %s: %w", nodeID, errs.ErrNotFound)
	}
	if n.Kind != model.KindChecklist {
		return nil, fmt.Errorf("%w: node %s is %s", errs.ErrInvalidArgument, nodeID, n.Kind)
	}
	items, err := s.cfg.Backend.ListItems(ctx, s.cfg.BoardID, nodeID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.lists[nodeID]; ok {
		return l, nil
	}
	l := checklist.NewList(s.cfg.BoardID, nodeID, s.cfg.Backend, s.cfg.Queue, s.log, nil)
	l.Load(items)
	s.lists[nodeID] = l
	return l, nil
}

// Focus returns the state machine of a pomodoro node.
func (s *Session) Focus(nodeID uuid.UUID) (*focus.Machine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.timers[nodeID]; ok {
		return m, nil
	}
	n, ok := s.canvas.Node(nodeID)
	if !ok {
		return nil, fmt.Errorf("node %s: %w", nodeID, errs.ErrNotFound)
	}
	p, ok := n.Payload.(model.PomodoroPayload)
	if !ok {
		return nil, fmt.Errorf("%w: node %s is %s", errs.ErrInvalidArgument, nodeID, n.Kind)
	}
	m := focus.NewMachine(nodeID, p.State, focus.Options{
		Logger:   s.log,
		Registry: s.cfg.Registry,
		Rewarder: s.cfg.Backend,
		OnReward: s.cfg.OnReward,
		Persist: func(_ context.Context, st model.FocusState) error {
			_, err := s.canvas.SetFocusState(nodeID, st)
			return err
		},
	})
	s.timers[nodeID] = m
	return m, nil
}

// Close tears down the subscription and waits for the router to stop. Queued writes are
// left to the outbox owner.
func (s *Session) Close() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
		s.broadcaster.Close()
		s.mu.Lock()
		defer s.mu.Unlock()
		for id, m := range s.timers {
			m.Close()
			delete(s.timers, id)
		}
	})
}

func (s *Session) route(stream Stream) {
	defer close(s.done)
	for {
		ch, err := stream.Recv()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.status.Fail(err)
			s.log.Error("realtime subscription failed", zap.Error(err))
			return
		}
		if err := s.dispatch(ch); err != nil {
			s.log.Warn("realtime change dropped",
				zap.String("entity", string(ch.Entity)),
				zap.String("type", string(ch.Type)),
				zap.Error(err),
			)
		}
	}
}

func (s *Session) dispatch(ch model.Change) error {
	if ch.BoardID != uuid.Nil && ch.BoardID != s.cfg.BoardID {
		return nil
	}
	switch ch.Entity {
	case model.EntityNode, model.EntityEdge, model.EntityDrawing:
		out, err := s.canvas.ApplyChange(ch)
		if err != nil {
			return err
		}
		if ch.Entity == model.EntityNode && out != merge.Ignored {
			s.afterNodeChange(ch)
		}
		return nil
	case model.EntityChecklistItem:
		s.mu.Lock()
		lists := make([]*checklist.List, 0, len(s.lists))
		if l, ok := s.lists[ch.NodeID]; ok {
			lists = append(lists, l)
		} else if ch.NodeID == uuid.Nil {
			for _, l := range s.lists {
				lists = append(lists, l)
			}
		}
		s.mu.Unlock()
		for _, l := range lists {
			if _, err := l.ApplyChange(ch); err != nil {
				return err
			}
		}
		return nil
	case model.EntityCursor:
		if ch.Type == model.EventDelete {
			var ref model.Ref
			if err := json.Unmarshal(ch.Old, &ref); err != nil {
				return fmt.Errorf("decode cursor leave: %w", err)
			}
			s.peers.Remove(ref.ID)
			return nil
		}
		var c model.Cursor
		if err := json.Unmarshal(ch.New, &c); err != nil {
			return fmt.Errorf("decode cursor: %w", err)
		}
		s.peers.Apply(c)
		return nil
	}
	return fmt.Errorf("unknown entity %q", ch.Entity)
}

// afterNodeChange keeps node-scoped view-models in step with their node.
func (s *Session) afterNodeChange(ch model.Change) {
	ev, err := merge.Decode[model.Node](ch)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.Type == merge.Delete {
		delete(s.lists, ev.ID)
		if m, ok := s.timers[ev.ID]; ok {
			m.Close()
			delete(s.timers, ev.ID)
		}
		return
	}
	if m, ok := s.timers[ev.ID]; ok {
		if cur, ok := s.canvas.Node(ev.ID); ok {
			if p, ok := cur.Payload.(model.PomodoroPayload); ok {
				m.Apply(p.State)
			}
		}
	}
}
