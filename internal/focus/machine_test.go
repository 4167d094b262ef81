package focus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/brainboard/internal/model"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeRewarder struct {
	calls atomic.Int32
	out   model.Collectible
	err   error
	// hold blocks RollReward until closed when set.
	hold chan struct{}
}

func (f *fakeRewarder) RollReward(context.Context) (model.Collectible, error) {
	f.calls.Add(1)
	if f.hold != nil {
		<-f.hold
	}
	return f.out, f.err
}

func newMachine(clk *fakeClock, opts Options) *Machine {
	opts.Now = clk.Now
	return NewMachine(uuid.Must(uuid.NewV4()), model.FocusState{}, opts)
}

func TestMachine_StartStopRestoresIdle(t *testing.T) {
	t.Parallel()
	clk := newClock()
	m := newMachine(clk, Options{WorkDuration: 50 * time.Minute})
	ctx := context.Background()

	require.NoError(t, m.Start(ctx))
	require.Equal(t, model.FocusWork, m.State().Status)
	clk.Advance(17*time.Minute + 3*time.Second)
	require.NoError(t, m.Stop(ctx))

	st := m.State()
	require.Equal(t, model.FocusIdle, st.Status)
	require.Equal(t, 50*time.Minute, st.Duration)
	require.Nil(t, st.StartTime)
	require.Nil(t, st.PausedTime)
}

func TestMachine_PauseResumePreservesRemaining(t *testing.T) {
	t.Parallel()
	clk := newClock()
	m := newMachine(clk, Options{})
	ctx := context.Background()

	require.NoError(t, m.Start(ctx))
	clk.Advance(7*time.Minute + 250*time.Millisecond)
	require.NoError(t, m.Pause(ctx))
	atPause := m.Remaining()
	require.Equal(t, model.DefaultWorkDuration-7*time.Minute-250*time.Millisecond, atPause)

	clk.Advance(3 * time.Hour)
	require.Equal(t, atPause, m.Remaining(), "paused time does not run")

	require.NoError(t, m.Start(ctx))
	require.Equal(t, model.FocusWork, m.State().Status)
	require.Equal(t, atPause, m.Remaining())
}

func TestMachine_PauseFromBreakResumesBreak(t *testing.T) {
	t.Parallel()
	clk := newClock()
	m := newMachine(clk, Options{})
	ctx := context.Background()

	require.NoError(t, m.Start(ctx))
	clk.Advance(model.DefaultWorkDuration)
	m.Tick(ctx)
	require.Equal(t, model.FocusBreak, m.State().Status)

	require.NoError(t, m.Pause(ctx))
	clk.Advance(time.Minute)
	require.NoError(t, m.Start(ctx))
	require.Equal(t, model.FocusBreak, m.State().Status)
	require.Equal(t, model.DefaultBreakDuration, m.Remaining())
}

func TestMachine_InvalidTransitions(t *testing.T) {
	t.Parallel()
	m := newMachine(newClock(), Options{})
	ctx := context.Background()

	require.ErrorIs(t, m.Pause(ctx), ErrTransition)
	require.ErrorIs(t, m.Stop(ctx), ErrTransition)
	require.NoError(t, m.Start(ctx))
	require.ErrorIs(t, m.Start(ctx), ErrTransition)
}

func TestMachine_CompletionRunsOnce(t *testing.T) {
	t.Parallel()
	clk := newClock()
	rw := &fakeRewarder{out: model.Collectible{ID: uuid.Must(uuid.NewV4()), Genome: model.Genome{Color: "#f0a", PetalCount: 7}}}
	var saves atomic.Int32
	var rewards atomic.Int32
	m := newMachine(clk, Options{
		Rewarder: rw,
		Persist:  func(context.Context, model.FocusState) error { saves.Add(1); return nil },
		OnReward: func(model.Collectible) { rewards.Add(1) },
	})
	ctx := context.Background()

	require.NoError(t, m.Start(ctx))
	saves.Store(0)
	clk.Advance(model.DefaultWorkDuration + 10*time.Millisecond)

	m.Tick(ctx)
	m.Tick(ctx)

	st := m.State()
	require.Equal(t, model.FocusBreak, st.Status)
	require.Equal(t, 1, st.Stats.Completed)
	require.Equal(t, 1, st.Stats.Streak)
	require.Equal(t, 25, st.Stats.TotalMinutes)
	require.Equal(t, int32(1), rw.calls.Load())
	require.Equal(t, int32(1), rewards.Load())
	require.Equal(t, int32(1), saves.Load())
	require.NotNil(t, st.Stats.PendingGenome)
	require.Equal(t, 7, st.Stats.PendingGenome.PetalCount)
	require.True(t, st.Genome.IsZero(), "genome changes only on the next cycle")
}

func TestMachine_ConcurrentTicksDuringRewardRoll(t *testing.T) {
	t.Parallel()
	clk := newClock()
	rw := &fakeRewarder{hold: make(chan struct{})}
	m := newMachine(clk, Options{Rewarder: rw})
	ctx := context.Background()

	require.NoError(t, m.Start(ctx))
	clk.Advance(model.DefaultWorkDuration)

	done := make(chan struct{})
	go func() {
		m.Tick(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return rw.calls.Load() == 1 }, time.Second, time.Millisecond)

	// Drift near the boundary: break has "elapsed" as well, but the completion is still running.
	clk.Advance(model.DefaultBreakDuration)
	m.Tick(ctx)
	m.Tick(ctx)
	close(rw.hold)
	<-done

	st := m.State()
	require.Equal(t, 1, st.Stats.Completed)
	require.Equal(t, int32(1), rw.calls.Load())
}

func TestMachine_BreakElapsedPromotesPendingGenome(t *testing.T) {
	t.Parallel()
	clk := newClock()
	cid := uuid.Must(uuid.NewV4())
	rw := &fakeRewarder{out: model.Collectible{ID: cid, Genome: model.Genome{Color: "#0af", PetalCount: 5, LeafType: "fern"}}}
	m := newMachine(clk, Options{Rewarder: rw})
	ctx := context.Background()

	require.NoError(t, m.Start(ctx))
	clk.Advance(model.DefaultWorkDuration)
	m.Tick(ctx)
	clk.Advance(model.DefaultBreakDuration)
	m.Tick(ctx)

	st := m.State()
	require.Equal(t, model.FocusWork, st.Status)
	require.Equal(t, "fern", st.Genome.LeafType)
	require.Nil(t, st.Stats.PendingGenome)
	require.NotNil(t, st.CollectibleID)
	require.Equal(t, cid, *st.CollectibleID)
	require.Equal(t, model.DefaultWorkDuration, m.Remaining())
}

func TestMachine_RewardFailureStillCompletes(t *testing.T) {
	t.Parallel()
	clk := newClock()
	m := newMachine(clk, Options{Rewarder: &fakeRewarder{err: errors.New("catalog empty")}})
	ctx := context.Background()

	require.NoError(t, m.Start(ctx))
	clk.Advance(model.DefaultWorkDuration)
	m.Tick(ctx)

	st := m.State()
	require.Equal(t, model.FocusBreak, st.Status)
	require.Equal(t, 1, st.Stats.Completed)
	require.Nil(t, st.Stats.PendingGenome)
}

func TestMachine_RestoresElapsedSessionAfterReload(t *testing.T) {
	t.Parallel()
	clk := newClock()
	start := clk.Now().Add(-time.Hour)
	saved := model.FocusState{Status: model.FocusWork, StartTime: &start, Duration: model.DefaultWorkDuration}

	m := NewMachine(uuid.Must(uuid.NewV4()), saved, Options{Now: clk.Now})
	require.LessOrEqual(t, m.Remaining(), time.Duration(0))
	m.Tick(context.Background())
	require.Equal(t, model.FocusBreak, m.State().Status)
}

func TestMachine_BrokenStateResetsToIdle(t *testing.T) {
	t.Parallel()
	m := NewMachine(uuid.Must(uuid.NewV4()), model.FocusState{Status: model.FocusPaused, Stats: model.FocusStats{Completed: 4}}, Options{})
	st := m.State()
	require.Equal(t, model.FocusIdle, st.Status)
	require.Equal(t, 4, st.Stats.Completed)
}

func TestMachine_StartPreemptsOtherWorkSession(t *testing.T) {
	t.Parallel()
	clk := newClock()
	reg := NewRegistry()
	a := newMachine(clk, Options{Registry: reg})
	b := newMachine(clk, Options{Registry: reg})
	idle := newMachine(clk, Options{Registry: reg})
	defer a.Close()
	defer b.Close()
	defer idle.Close()
	ctx := context.Background()

	require.NoError(t, a.Start(ctx))
	require.Equal(t, a.ID(), reg.Owner())
	clk.Advance(time.Minute)

	require.NoError(t, b.Start(ctx))
	require.Equal(t, model.FocusPaused, a.State().Status)
	require.Equal(t, model.FocusWork, a.State().PausedFrom)
	require.Equal(t, model.FocusWork, b.State().Status)
	require.Equal(t, model.FocusIdle, idle.State().Status)
	require.Equal(t, b.ID(), reg.Owner())
}

func TestMachine_ApplyRemoteState(t *testing.T) {
	t.Parallel()
	m := newMachine(newClock(), Options{})
	now := time.Now()

	m.Apply(model.FocusState{Status: model.FocusWork, Duration: time.Minute})
	require.Equal(t, model.FocusIdle, m.State().Status, "invalid remote state is ignored")

	m.Apply(model.FocusState{Status: model.FocusWork, StartTime: &now, Duration: time.Minute})
	require.Equal(t, model.FocusWork, m.State().Status)
}
