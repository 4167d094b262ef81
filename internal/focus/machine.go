// Package focus implements the pomodoro widget state machine and the registry that keeps a
// single focus session active per client.
package focus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/brainboard/internal/model"
)

// ErrTransition is returned for an operation the current status does not allow.
var ErrTransition = errors.New("invalid focus transition")

// Rewarder performs the reward roll after a completed work session.
type Rewarder interface {
	RollReward(ctx context.Context) (model.Collectible, error)
}

// Options configure a Machine. Nil funcs and zero durations use defaults.
type Options struct {
	Now           func() time.Time
	Logger        *zap.Logger
	WorkDuration  time.Duration
	BreakDuration time.Duration
	Registry      *Registry
	Rewarder      Rewarder
	// Persist stores a state snapshot; failures are logged.
	Persist func(ctx context.Context, st model.FocusState) error
	// OnReward is the reward notification.
	OnReward func(model.Collectible)
}

// Machine is one focus widget. It is safe for concurrent use.
type Machine struct {
	id   uuid.UUID
	opts Options
	log  *zap.Logger

	mu         sync.Mutex
	st         model.FocusState
	completing bool

	unsubscribe func()
}

// NewMachine restores a widget from its persisted state. An empty status reads as idle.
func NewMachine(id uuid.UUID, st model.FocusState, opts Options) *Machine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.WorkDuration <= 0 {
		opts.WorkDuration = model.DefaultWorkDuration
	}
	if opts.BreakDuration <= 0 {
		opts.BreakDuration = model.DefaultBreakDuration
	}
	if st.Duration <= 0 {
		st.Duration = opts.WorkDuration
	}
	m := &Machine{id: id, opts: opts, st: st, log: opts.Logger}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	if err := st.Validate(); err != nil {
		if st.Status != "" {
			m.log.Warn("focus: resetting broken state", zap.Stringer("widget", id), zap.Error(err))
		}
		m.st = model.NewFocusState()
		m.st.Duration = opts.WorkDuration
		m.st.Stats, m.st.Genome, m.st.CollectibleID = st.Stats, st.Genome, st.CollectibleID
	}
	if opts.Registry != nil {
		m.unsubscribe = opts.Registry.Subscribe(id, m.preempt)
	}
	return m
}

// ID returns the widget id.
func (m *Machine) ID() uuid.UUID { return m.id }

// State returns a copy of the current state.
func (m *Machine) State() model.FocusState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st
}

// Remaining is the time left in the current session.
func (m *Machine) Remaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.Remaining(m.opts.Now())
}

// Start begins a work session from idle or resumes a paused one.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	now := m.opts.Now()
	switch m.st.Status {
	case model.FocusIdle:
		m.st.Status = model.FocusWork
		m.st.StartTime = &now
		m.st.PausedTime = nil
		m.st.Duration = m.opts.WorkDuration
	case model.FocusPaused:
		start := m.st.StartTime.Add(now.Sub(*m.st.PausedTime))
		m.st.Status = m.st.PausedFrom
		m.st.StartTime = &start
		m.st.PausedTime = nil
		m.st.PausedFrom = ""
	default:
		status := m.st.Status
		m.mu.Unlock()
		return fmt.Errorf("%w: start from %s", ErrTransition, status)
	}
	st := m.st
	m.mu.Unlock()

	if st.Status == model.FocusWork && m.opts.Registry != nil {
		m.opts.Registry.Activate(m.id)
	}
	m.persist(ctx, st)
	return nil
}

// Pause freezes a running session.
func (m *Machine) Pause(ctx context.Context) error {
	m.mu.Lock()
	if m.st.Status != model.FocusWork && m.st.Status != model.FocusBreak {
		status := m.st.Status
		m.mu.Unlock()
		return fmt.Errorf("%w: pause from %s", ErrTransition, status)
	}
	m.pauseLocked()
	st := m.st
	m.mu.Unlock()

	m.release()
	m.persist(ctx, st)
	return nil
}

// Stop returns to idle with the default duration and no timestamps. Stats and genome survive.
func (m *Machine) Stop(ctx context.Context) error {
	m.mu.Lock()
	if m.st.Status == model.FocusIdle {
		m.mu.Unlock()
		return fmt.Errorf("%w: stop from idle", ErrTransition)
	}
	m.st.Status = model.FocusIdle
	m.st.StartTime = nil
	m.st.PausedTime = nil
	m.st.PausedFrom = ""
	m.st.Duration = m.opts.WorkDuration
	st := m.st
	m.mu.Unlock()

	m.release()
	m.persist(ctx, st)
	return nil
}

// Tick checks the running session against the clock and performs the elapsed transition.
// Repeated calls for the same elapsed session complete it at most once.
func (m *Machine) Tick(ctx context.Context) {
	m.mu.Lock()
	if m.completing {
		m.mu.Unlock()
		return
	}
	now := m.opts.Now()
	if m.st.Status != model.FocusWork && m.st.Status != model.FocusBreak {
		m.mu.Unlock()
		return
	}
	if m.st.Remaining(now) > 0 {
		m.mu.Unlock()
		return
	}

	if m.st.Status == model.FocusBreak {
		m.beginCycleLocked(now)
		st := m.st
		m.mu.Unlock()
		if m.opts.Registry != nil {
			m.opts.Registry.Activate(m.id)
		}
		m.persist(ctx, st)
		return
	}

	m.completing = true
	worked := m.st.Duration
	m.st.Stats.Completed++
	m.st.Stats.Streak++
	m.st.Stats.TotalMinutes += int(worked / time.Minute)
	m.st.Status = model.FocusBreak
	m.st.StartTime = &now
	m.st.Duration = m.opts.BreakDuration
	m.mu.Unlock()

	m.reward(ctx)

	m.mu.Lock()
	m.completing = false
	st := m.st
	m.mu.Unlock()
	m.persist(ctx, st)
}

// Run ticks every interval until ctx is done.
func (m *Machine) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Tick(ctx)
		}
	}
}

// Apply adopts a state written by another session. It is ignored while a completion runs.
func (m *Machine) Apply(st model.FocusState) {
	if err := st.Validate(); err != nil {
		m.log.Warn("focus: ignoring remote state", zap.Stringer("widget", m.id), zap.Error(err))
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.completing {
		return
	}
	m.st = st
}

// Close unsubscribes from the registry and releases ownership.
func (m *Machine) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

func (m *Machine) pauseLocked() {
	now := m.opts.Now()
	m.st.PausedFrom = m.st.Status
	m.st.Status = model.FocusPaused
	m.st.PausedTime = &now
}

// beginCycleLocked promotes the staged genome and starts a new work session.
func (m *Machine) beginCycleLocked(now time.Time) {
	if g := m.st.Stats.PendingGenome; g != nil {
		m.st.Genome = *g
		m.st.Stats.PendingGenome = nil
	}
	if id := m.st.Stats.PendingCollectibleID; id != nil {
		m.st.CollectibleID = id
		m.st.Stats.PendingCollectibleID = nil
	}
	m.st.Status = model.FocusWork
	m.st.StartTime = &now
	m.st.Duration = m.opts.WorkDuration
}

func (m *Machine) reward(ctx context.Context) {
	if m.opts.Rewarder == nil {
		return
	}
	c, err := m.opts.Rewarder.RollReward(ctx)
	if err != nil {
		m.log.Warn("focus: reward roll failed", zap.Stringer("widget", m.id), zap.Error(err))
		return
	}
	m.mu.Lock()
	g, id := c.Genome, c.ID
	m.st.Stats.PendingGenome = &g
	m.st.Stats.PendingCollectibleID = &id
	m.mu.Unlock()

	if m.opts.OnReward != nil {
		m.opts.OnReward(c)
	}
}

// preempt pauses a work session when another widget became active.
func (m *Machine) preempt() {
	m.mu.Lock()
	if m.st.Status != model.FocusWork {
		m.mu.Unlock()
		return
	}
	m.pauseLocked()
	st := m.st
	m.mu.Unlock()
	m.persist(context.Background(), st)
}

func (m *Machine) release() {
	if m.opts.Registry != nil {
		m.opts.Registry.Release(m.id)
	}
}

func (m *Machine) persist(ctx context.Context, st model.FocusState) {
	if m.opts.Persist == nil {
		return
	}
	if err := m.opts.Persist(ctx, st); err != nil {
		m.log.Warn("focus: persist failed", zap.Stringer("widget", m.id), zap.String("status", string(st.Status)), zap.Error(err))
	}
}
