package model

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/brainboard/internal/errs"
)

// FocusStatus is the state of a focus-timer widget.
type FocusStatus string

const (
	FocusIdle   FocusStatus = "idle"
	FocusWork   FocusStatus = "work"
	FocusBreak  FocusStatus = "break"
	FocusPaused FocusStatus = "paused"
)

// Default session lengths.
const (
	DefaultWorkDuration  = 25 * time.Minute
	DefaultBreakDuration = 5 * time.Minute
)

// Genome parametrizes the procedural rendering of a collectible plant.
type Genome struct {
	Color      string `json:"color"`
	PetalCount int    `json:"petal_count"`
	PetalShape string `json:"petal_shape"`
	StemHeight int    `json:"stem_height"`
	LeafType   string `json:"leaf_type"`
}

// IsZero reports whether no genome has been assigned.
func (g Genome) IsZero() bool { return g == Genome{} }

// FocusStats aggregates completed sessions. PendingGenome and PendingCollectibleID are
// staged for the next growth cycle.
type FocusStats struct {
	Completed            int        `json:"completed"`
	Streak               int        `json:"streak"`
	TotalMinutes         int        `json:"total_minutes"`
	PendingGenome        *Genome    `json:"pending_genome,omitempty"`
	PendingCollectibleID *uuid.UUID `json:"pending_collectible_id,omitempty"`
}

// FocusState is the persisted state of a focus-timer widget.
// Elapsed time is always derived from StartTime, never accumulated.
type FocusState struct {
	Status        FocusStatus   `json:"status"`
	StartTime     *time.Time    `json:"start_time,omitempty"`
	PausedTime    *time.Time    `json:"paused_time,omitempty"`
	PausedFrom    FocusStatus   `json:"paused_from,omitempty"`
	Duration      time.Duration `json:"duration"`
	Stats         FocusStats    `json:"stats"`
	Genome        Genome        `json:"genome"`
	CollectibleID *uuid.UUID    `json:"collectible_id,omitempty"`
}

// NewFocusState returns an idle widget with the default work duration.
func NewFocusState() FocusState {
	return FocusState{Status: FocusIdle, Duration: DefaultWorkDuration}
}

// Validate checks that timestamps required by the status are present.
func (s FocusState) Validate() error {
	if s.Duration <= 0 {
		return fmt.Errorf("%w: focus duration must be positive", errs.ErrInvalidArgument)
	}
	switch s.Status {
	case FocusIdle:
	case FocusWork, FocusBreak:
		if s.StartTime == nil {
			return fmt.Errorf("%w: %s without start time", errs.ErrInvalidArgument, s.Status)
		}
	case FocusPaused:
		if s.StartTime == nil || s.PausedTime == nil {
			return fmt.Errorf("%w: paused without timestamps", errs.ErrInvalidArgument)
		}
		if s.PausedFrom != FocusWork && s.PausedFrom != FocusBreak {
			return fmt.Errorf("%w: paused from %q", errs.ErrInvalidArgument, s.PausedFrom)
		}
	default:
		return fmt.Errorf("%w: unknown focus status %q", errs.ErrInvalidArgument, s.Status)
	}
	return nil
}

// Remaining is duration - (now - startTime) for a running session, the frozen remainder
// for a paused one and the full duration when idle.
func (s FocusState) Remaining(now time.Time) time.Duration {
	switch s.Status {
	case FocusWork, FocusBreak:
		if s.StartTime == nil {
			return s.Duration
		}
		return s.Duration - now.Sub(*s.StartTime)
	case FocusPaused:
		if s.StartTime == nil || s.PausedTime == nil {
			return s.Duration
		}
		return s.Duration - s.PausedTime.Sub(*s.StartTime)
	default:
		return s.Duration
	}
}

// Collectible is a catalog entry won by a reward roll.
type Collectible struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Rarity     string    `json:"rarity"`
	Weight     int       `json:"weight"`
	Genome     Genome    `json:"genome"`
	AcquiredAt time.Time `json:"acquired_at,omitempty"`
}
