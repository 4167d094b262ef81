package canvas

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/brainboard/internal/errs"
	"github.com/and161185/brainboard/internal/model"
	"github.com/and161185/brainboard/internal/viewport"
)

// stroke is a drawing in progress, in logical coordinates.
type stroke struct {
	points []model.Point
	color  string
	width  float64
}

// BeginStroke starts a freehand stroke at a screen position.
func (c *Controller) BeginStroke(screen model.Point, vp viewport.Viewport, color string, width float64) error {
	if width <= 0 {
		return fmt.Errorf("%w: stroke width must be positive", errs.ErrInvalidArgument)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stroke = &stroke{points: []model.Point{vp.ToLogical(screen)}, color: color, width: width}
	return nil
}

// ExtendStroke appends a point while the button is held. Without an active stroke it is a no-op.
func (c *Controller) ExtendStroke(screen model.Point, vp viewport.Viewport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stroke == nil {
		return
	}
	p := vp.ToLogical(screen)
	if n := len(c.stroke.points); n > 0 && c.stroke.points[n-1] == p {
		return
	}
	c.stroke.points = append(c.stroke.points, p)
}

// CurrentStroke returns the in-progress points for rendering.
func (c *Controller) CurrentStroke() []model.Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stroke == nil {
		return nil
	}
	return append([]model.Point(nil), c.stroke.points...)
}

// EndStroke commits the stroke on release. It reports false when there was nothing to commit.
func (c *Controller) EndStroke() (model.Drawing, bool, error) {
	c.mu.Lock()
	s := c.stroke
	c.stroke = nil
	c.mu.Unlock()
	if s == nil || len(s.points) == 0 {
		return model.Drawing{}, false, nil
	}

	id, err := uuid.NewV4()
	if err != nil {
		return model.Drawing{}, false, err
	}
	d := model.Drawing{
		ID:        id,
		BoardID:   c.boardID,
		OwnerID:   c.userID,
		Points:    s.points,
		Color:     s.color,
		Width:     s.width,
		CreatedAt: c.now(),
	}
	if err := d.Validate(); err != nil {
		return model.Drawing{}, false, err
	}
	c.drawings.Put(d)
	err = c.enqueue(id, "drawing.create", func(ctx context.Context) error {
		_, err := c.backend.CreateDrawing(ctx, d)
		return err
	}, func() { c.drawings.Remove(id) })
	return d, true, err
}

// DeleteDrawing removes a selected drawing.
func (c *Controller) DeleteDrawing(id uuid.UUID) error {
	d, ok := c.drawings.Remove(id)
	if !ok {
		return fmt.Errorf("drawing %s: %w", id, errs.ErrNotFound)
	}
	return c.enqueue(id, "drawing.delete", func(ctx context.Context) error {
		return ignoreGone(c.backend.DeleteDrawing(ctx, c.boardID, id))
	}, func() { c.drawings.Put(d) })
}
