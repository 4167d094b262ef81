package canvas

import (
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/brainboard/internal/errs"
	"github.com/and161185/brainboard/internal/model"
	"github.com/and161185/brainboard/internal/viewport"
)

// MinNodeSize bounds resizing in logical units.
const MinNodeSize = 40

type gestureKind int

const (
	gestureMove gestureKind = iota + 1
	gestureResize
)

func (k gestureKind) label() string {
	if k == gestureResize {
		return "node.resize"
	}
	return "node.move"
}

// gesture remembers where a continuous drag started so End can skip no-op writes.
type gesture struct {
	kind   gestureKind
	origin model.Node
}

// BeginMove starts dragging a node. Updates until EndMove are visual only.
func (c *Controller) BeginMove(id uuid.UUID) error { return c.begin(id, gestureMove) }

// MoveTo sets the node position locally without persisting.
func (c *Controller) MoveTo(id uuid.UUID, at model.Point) error {
	return c.update(id, gestureMove, func(n *model.Node) {
		n.X, n.Y = at.X, at.Y
	})
}

// EndMove persists the final position when it changed.
func (c *Controller) EndMove(id uuid.UUID) error { return c.end(id, gestureMove) }

// BeginResize starts resizing a node.
func (c *Controller) BeginResize(id uuid.UUID) error { return c.begin(id, gestureResize) }

// ResizeTo sets the node size locally, clamped to MinNodeSize.
func (c *Controller) ResizeTo(id uuid.UUID, width, height float64) error {
	return c.update(id, gestureResize, func(n *model.Node) {
		n.Width, n.Height = max(width, MinNodeSize), max(height, MinNodeSize)
	})
}

// EndResize persists the final size when it changed.
func (c *Controller) EndResize(id uuid.UUID) error { return c.end(id, gestureResize) }

// DoubleClick creates an empty note under the pointer.
func (c *Controller) DoubleClick(screen model.Point, vp viewport.Viewport) (model.Node, error) {
	return c.CreateNode(model.NotePayload{}, vp.ToLogical(screen))
}

// CreateAt creates a node chosen from the radial menu at a screen position.
func (c *Controller) CreateAt(p model.Payload, screen model.Point, vp viewport.Viewport) (model.Node, error) {
	return c.CreateNode(p, vp.ToLogical(screen))
}

func (c *Controller) begin(id uuid.UUID, kind gestureKind) error {
	n, ok := c.nodes.Get(id)
	if !ok {
		return fmt.Errorf("node %s: %w", id, errs.ErrNotFound)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if g, busy := c.gestures[id]; busy && g.kind != kind {
		return fmt.Errorf("%w: node %s is in another gesture", errs.ErrInvalidArgument, id)
	}
	c.gestures[id] = gesture{kind: kind, origin: n}
	return nil
}

func (c *Controller) update(id uuid.UUID, kind gestureKind, fn func(n *model.Node)) error {
	c.mu.Lock()
	g, ok := c.gestures[id]
	c.mu.Unlock()
	if !ok || g.kind != kind {
		return fmt.Errorf("%w: no %s gesture on node %s", errs.ErrInvalidArgument, kind.label(), id)
	}
	n, ok := c.nodes.Get(id)
	if !ok {
		return fmt.Errorf("node %s: %w", id, errs.ErrNotFound)
	}
	fn(&n)
	c.nodes.Put(n)
	return nil
}

func (c *Controller) end(id uuid.UUID, kind gestureKind) error {
	c.mu.Lock()
	g, ok := c.gestures[id]
	if ok && g.kind == kind {
		delete(c.gestures, id)
	}
	c.mu.Unlock()
	if !ok || g.kind != kind {
		return fmt.Errorf("%w: no %s gesture on node %s", errs.ErrInvalidArgument, kind.label(), id)
	}
	n, ok := c.nodes.Get(id)
	if !ok {
		return fmt.Errorf("node %s: %w", id, errs.ErrNotFound)
	}
	if n.X == g.origin.X && n.Y == g.origin.Y && n.Width == g.origin.Width && n.Height == g.origin.Height {
		return nil
	}
	n.UpdatedAt = c.now()
	c.nodes.Put(n)
	c.persistNode(id, kind.label())
	return nil
}
