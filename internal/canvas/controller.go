// Package canvas holds the client-side view-models of a board's graph: nodes, edges and
// drawings. Local edits apply immediately and are persisted through an outbox.
package canvas

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/brainboard/internal/errs"
	"github.com/and161185/brainboard/internal/merge"
	"github.com/and161185/brainboard/internal/model"
	"github.com/and161185/brainboard/internal/outbox"
)

// Backend persists canvas entities.
type Backend interface {
	UpsertNode(ctx context.Context, n model.Node, baseVer int64) (model.Node, error)
	DeleteNode(ctx context.Context, boardID, id uuid.UUID) error
	UpsertEdge(ctx context.Context, e model.Edge) (model.Edge, error)
	DeleteEdge(ctx context.Context, boardID, id uuid.UUID) error
	CreateDrawing(ctx context.Context, d model.Drawing) (model.Drawing, error)
	DeleteDrawing(ctx context.Context, boardID, id uuid.UUID) error
}

// Enqueuer accepts mutations for ordered delivery; *outbox.Queue implements it.
type Enqueuer interface {
	Enqueue(m outbox.Mutation) (uint64, error)
}

// Options for a Controller.
type Options struct {
	Logger *zap.Logger
	// NodeResolver overrides last-write-wins for remote node updates.
	NodeResolver merge.Resolver[model.Node]
	Now          func() time.Time
}

// Controller owns the node, edge and drawing collections of one board.
type Controller struct {
	boardID uuid.UUID
	userID  uuid.UUID
	backend Backend
	queue   Enqueuer
	log     *zap.Logger
	now     func() time.Time

	nodes    *merge.Collection[model.Node]
	edges    *merge.Collection[model.Edge]
	drawings *merge.Collection[model.Drawing]

	mu        sync.Mutex
	confirmed map[uuid.UUID]model.Node
	gestures  map[uuid.UUID]gesture
	stroke    *stroke
}

// NewController creates an empty controller for boardID acting as userID.
func NewController(boardID, userID uuid.UUID, backend Backend, queue Enqueuer, opts Options) *Controller {
	c := &Controller{
		boardID:   boardID,
		userID:    userID,
		backend:   backend,
		queue:     queue,
		log:       opts.Logger,
		now:       opts.Now,
		edges:     merge.New[model.Edge](),
		drawings:  merge.New[model.Drawing](),
		confirmed: make(map[uuid.UUID]model.Node),
		gestures:  make(map[uuid.UUID]gesture),
	}
	if opts.NodeResolver != nil {
		c.nodes = merge.New(merge.WithResolver(opts.NodeResolver))
	} else {
		c.nodes = merge.New[model.Node]()
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// BoardID returns the board this controller belongs to.
func (c *Controller) BoardID() uuid.UUID { return c.boardID }

// Load replaces all collections with a snapshot.
func (c *Controller) Load(s model.BoardSnapshot) {
	c.nodes.Load(s.Nodes)
	c.edges.Load(s.Edges)
	c.drawings.Load(s.Drawings)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirmed = make(map[uuid.UUID]model.Node, len(s.Nodes))
	for _, n := range s.Nodes {
		c.confirmed[n.ID] = n
	}
	c.gestures = make(map[uuid.UUID]gesture)
}

func (c *Controller) Nodes() []model.Node       { return c.nodes.Items() }
func (c *Controller) Edges() []model.Edge       { return c.edges.Items() }
func (c *Controller) Drawings() []model.Drawing { return c.drawings.Items() }

// Node returns the local copy of a node.
func (c *Controller) Node(id uuid.UUID) (model.Node, bool) { return c.nodes.Get(id) }

// CreateNode places a node at a logical position. Invalid payloads fail without a request.
func (c *Controller) CreateNode(p model.Payload, at model.Point) (model.Node, error) {
	n, err := model.NewNode(c.boardID, c.userID, p, at.X, at.Y)
	if err != nil {
		return model.Node{}, err
	}
	n.UpdatedAt = c.now()
	c.nodes.Put(n)
	c.persistNode(n.ID, "node.create")
	return n, nil
}

// UpdateNode applies fn to the local copy and persists the result.
func (c *Controller) UpdateNode(id uuid.UUID, label string, fn func(n *model.Node) error) (model.Node, error) {
	n, ok := c.nodes.Get(id)
	if !ok {
		return model.Node{}, fmt.Errorf("node %s: %w", id, errs.ErrNotFound)
	}
	if err := fn(&n); err != nil {
		return model.Node{}, err
	}
	if err := n.Validate(); err != nil {
		return model.Node{}, err
	}
	n.UpdatedAt = c.now()
	c.nodes.Put(n)
	c.persistNode(id, label)
	return n, nil
}

// DeleteNode removes a node and prunes every edge referencing it.
func (c *Controller) DeleteNode(id uuid.UUID) error {
	n, ok := c.nodes.Remove(id)
	if !ok {
		return fmt.Errorf("node %s: %w", id, errs.ErrNotFound)
	}
	pruned := c.edges.RemoveWhere(func(e model.Edge) bool { return e.Touches(id) })
	c.mu.Lock()
	delete(c.gestures, id)
	c.mu.Unlock()

	return c.enqueue(id, "node.delete", func(ctx context.Context) error {
		if err := ignoreGone(c.backend.DeleteNode(ctx, c.boardID, id)); err != nil {
			return err
		}
		c.mu.Lock()
		delete(c.confirmed, id)
		c.mu.Unlock()
		return nil
	}, func() {
		if _, exists := c.nodes.Get(id); !exists {
			c.nodes.Put(n)
		}
		for _, e := range pruned {
			c.edges.Put(e)
		}
	})
}

// Connect creates an edge between two existing nodes.
func (c *Controller) Connect(source uuid.UUID, sourceHandle string, target uuid.UUID, targetHandle string) (model.Edge, error) {
	if _, ok := c.nodes.Get(source); !ok {
		return model.Edge{}, fmt.Errorf("source %s: %w", source, errs.ErrDanglingEdge)
	}
	if _, ok := c.nodes.Get(target); !ok {
		return model.Edge{}, fmt.Errorf("target %s: %w", target, errs.ErrDanglingEdge)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.Edge{}, err
	}
	e := model.Edge{
		ID: id, BoardID: c.boardID,
		Source: source, SourceHandle: sourceHandle,
		Target: target, TargetHandle: targetHandle,
		UpdatedAt: c.now(),
	}
	if err := e.Validate(); err != nil {
		return model.Edge{}, err
	}
	c.edges.Put(e)
	return e, c.enqueue(id, "edge.create", func(ctx context.Context) error {
		saved, err := c.backend.UpsertEdge(ctx, e)
		if err != nil {
			return err
		}
		if _, ok := c.edges.Get(id); ok {
			c.edges.Put(saved)
		}
		return nil
	}, func() { c.edges.Remove(id) })
}

// RemoveEdge deletes an edge.
func (c *Controller) RemoveEdge(id uuid.UUID) error {
	e, ok := c.edges.Remove(id)
	if !ok {
		return fmt.Errorf("edge %s: %w", id, errs.ErrNotFound)
	}
	return c.enqueue(id, "edge.delete", func(ctx context.Context) error {
		return ignoreGone(c.backend.DeleteEdge(ctx, c.boardID, id))
	}, func() { c.edges.Put(e) })
}

// ApplyChange reconciles a realtime notification for nodes, edges or drawings.
func (c *Controller) ApplyChange(ch model.Change) (merge.Outcome, error) {
	switch ch.Entity {
	case model.EntityNode:
		ev, err := merge.Decode[model.Node](ch)
		if err != nil {
			return merge.Ignored, err
		}
		c.mu.Lock()
		if ev.Type == merge.Delete {
			delete(c.confirmed, ev.ID)
			delete(c.gestures, ev.ID)
		} else {
			// Echoes of writes already confirmed, ours included, must not move the base back.
			if known, ok := c.confirmed[ev.ID]; ok && ev.Record.Ver <= known.Ver {
				c.mu.Unlock()
				return merge.Ignored, nil
			}
			c.confirmed[ev.ID] = ev.Record
		}
		c.mu.Unlock()
		out := c.nodes.Apply(ev)
		if ev.Type == merge.Delete {
			c.edges.RemoveWhere(func(e model.Edge) bool { return e.Touches(ev.ID) })
		}
		return out, nil
	case model.EntityEdge:
		ev, err := merge.Decode[model.Edge](ch)
		if err != nil {
			return merge.Ignored, err
		}
		return c.edges.Apply(ev), nil
	case model.EntityDrawing:
		ev, err := merge.Decode[model.Drawing](ch)
		if err != nil {
			return merge.Ignored, err
		}
		return c.drawings.Apply(ev), nil
	}
	return merge.Ignored, fmt.Errorf("canvas: unexpected entity %q", ch.Entity)
}

// persistNode sends the local copy of id as it is when the mutation runs, based on the
// last confirmed version.
func (c *Controller) persistNode(id uuid.UUID, label string) {
	err := c.enqueue(id, label, func(ctx context.Context) error {
		n, ok := c.nodes.Get(id)
		if !ok {
			return nil
		}
		c.mu.Lock()
		base := c.confirmed[id].Ver
		c.mu.Unlock()

		saved, err := c.backend.UpsertNode(ctx, n, base)
		if err != nil {
			return err
		}
		c.mu.Lock()
		if saved.Ver > c.confirmed[id].Ver {
			c.confirmed[id] = saved
		}
		c.mu.Unlock()
		c.nodes.Replace(func(items []model.Node) []model.Node {
			for i := range items {
				if items[i].ID == id && items[i].Ver < saved.Ver {
					items[i].Ver = saved.Ver
				}
			}
			return items
		})
		return nil
	}, func() { c.revertNode(id) })
	if err != nil {
		c.log.Warn("canvas: persist not queued", zap.String("op", label), zap.Stringer("node", id), zap.Error(err))
	}
}

// revertNode restores the last confirmed value, or drops a node the server never accepted.
func (c *Controller) revertNode(id uuid.UUID) {
	c.mu.Lock()
	n, ok := c.confirmed[id]
	delete(c.gestures, id)
	c.mu.Unlock()
	if ok {
		c.nodes.Put(n)
		return
	}
	c.nodes.Remove(id)
	c.edges.RemoveWhere(func(e model.Edge) bool { return e.Touches(id) })
}

// ignoreGone treats a row someone else already deleted as a successful delete.
func ignoreGone(err error) error {
	if errors.Is(err, errs.ErrNotFound) {
		return nil
	}
	return err
}

func (c *Controller) enqueue(id uuid.UUID, label string, apply func(context.Context) error, revert func()) error {
	_, err := c.queue.Enqueue(outbox.Mutation{EntityID: id, Label: label, Apply: apply, Revert: revert})
	return err
}
