package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/brainboard/internal/errs"
)

// Recurrence is the reset rule of a checklist item.
type Recurrence string

const (
	RecurNone    Recurrence = "none"
	RecurDaily   Recurrence = "daily"
	RecurWeekly  Recurrence = "weekly"
	RecurMonthly Recurrence = "monthly"
)

// ChecklistItem is a row of a checklist node. SortOrder is dense and zero-based within a node.
type ChecklistItem struct {
	ID            uuid.UUID      `json:"id"`
	NodeID        uuid.UUID      `json:"node_id"`
	Text          string         `json:"text"`
	Completed     bool           `json:"completed"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	SortOrder     int            `json:"sort_order"`
	Recurrence    Recurrence     `json:"recurrence"`
	ResetDays     []time.Weekday `json:"reset_days,omitempty"`
	CurrentStreak int            `json:"current_streak"`
	LongestStreak int            `json:"longest_streak"`
	LastResetAt   *time.Time     `json:"last_reset_at,omitempty"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (c ChecklistItem) Key() uuid.UUID { return c.ID }

// Validate enforces text, order and recurrence rules. An empty recurrence reads as none.
func (c ChecklistItem) Validate() error {
	if c.ID == uuid.Nil || c.NodeID == uuid.Nil {
		return fmt.Errorf("%w: item id/node id", errs.ErrInvalidArgument)
	}
	if strings.TrimSpace(c.Text) == "" {
		return fmt.Errorf("%w: item text is empty", errs.ErrInvalidArgument)
	}
	if c.SortOrder < 0 {
		return fmt.Errorf("%w: negative sort order", errs.ErrInvalidArgument)
	}
	switch c.Recurrence {
	case "", RecurNone, RecurDaily, RecurMonthly:
		if len(c.ResetDays) > 0 {
			return fmt.Errorf("%w: reset days require weekly recurrence", errs.ErrInvalidArgument)
		}
	case RecurWeekly:
		if len(c.ResetDays) == 0 {
			return fmt.Errorf("%w: weekly recurrence needs reset days", errs.ErrInvalidArgument)
		}
		for _, d := range c.ResetDays {
			if d < time.Sunday || d > time.Saturday {
				return fmt.Errorf("%w: bad weekday %d", errs.ErrInvalidArgument, d)
			}
		}
	default:
		return fmt.Errorf("%w: unknown recurrence %q", errs.ErrInvalidArgument, c.Recurrence)
	}
	return nil
}

// SetCompleted flips the completion flag and stamps or clears CompletedAt.
func (c *ChecklistItem) SetCompleted(done bool, now time.Time) {
	c.Completed = done
	if done {
		t := now
		c.CompletedAt = &t
		return
	}
	c.CompletedAt = nil
}
