package model

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/brainboard/internal/errs"
)

// Point is a position in logical canvas coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Edge connects two nodes of the same board. Handles are optional anchor names.
type Edge struct {
	ID           uuid.UUID `json:"id"`
	BoardID      uuid.UUID `json:"board_id"`
	Source       uuid.UUID `json:"source"`
	SourceHandle string    `json:"source_handle,omitempty"`
	Target       uuid.UUID `json:"target"`
	TargetHandle string    `json:"target_handle,omitempty"`
	Ver          int64     `json:"ver"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (e Edge) Key() uuid.UUID { return e.ID }
func (e Edge) Version() int64 { return e.Ver }

// Touches reports whether the edge references node id at either end.
func (e Edge) Touches(id uuid.UUID) bool { return e.Source == id || e.Target == id }

// Validate checks identifiers only; endpoint existence is a board-level check.
func (e Edge) Validate() error {
	if e.ID == uuid.Nil || e.BoardID == uuid.Nil {
		return fmt.Errorf("%w: edge id/board id", errs.ErrInvalidArgument)
	}
	if e.Source == uuid.Nil || e.Target == uuid.Nil {
		return fmt.Errorf("%w: edge endpoints", errs.ErrInvalidArgument)
	}
	return nil
}

// Drawing is a committed freehand stroke.
type Drawing struct {
	ID        uuid.UUID `json:"id"`
	BoardID   uuid.UUID `json:"board_id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Points    []Point   `json:"points"`
	Color     string    `json:"color"`
	Width     float64   `json:"width"`
	CreatedAt time.Time `json:"created_at"`
}

func (d Drawing) Key() uuid.UUID { return d.ID }

// Validate requires at least one point and a positive stroke width.
func (d Drawing) Validate() error {
	if d.ID == uuid.Nil || d.BoardID == uuid.Nil {
		return fmt.Errorf("%w: drawing id/board id", errs.ErrInvalidArgument)
	}
	if len(d.Points) == 0 {
		return fmt.Errorf("%w: drawing has no points", errs.ErrInvalidArgument)
	}
	if d.Width <= 0 {
		return fmt.Errorf("%w: stroke width must be positive", errs.ErrInvalidArgument)
	}
	return nil
}

// Cursor is an ephemeral peer pointer position in logical coordinates.
type Cursor struct {
	BoardID uuid.UUID `json:"board_id"`
	UserID  uuid.UUID `json:"user_id"`
	Name    string    `json:"name,omitempty"`
	X       float64   `json:"x"`
	Y       float64   `json:"y"`
	At      time.Time `json:"at"`
}

func (c Cursor) Key() uuid.UUID { return c.UserID }
