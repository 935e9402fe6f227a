package state

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaymepena/debatelords/go/internal/models"
	"github.com/jaymepena/debatelords/go/internal/overlay/events"
)

// tick advances the fake clock by one interval once a tick is armed and waits
// until the manager has broadcast the result.
func (f *fixture) tick(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.clock.BlockUntilContext(ctx, 1), "no tick armed")

	want := f.bcast.count() + 1
	f.clock.Advance(TickInterval)
	require.Eventually(t, func() bool { return f.bcast.count() >= want }, 2*time.Second, time.Millisecond)
}

func timerOf(t *testing.T, ev *events.Event) models.TimerState {
	t.Helper()
	require.Equal(t, events.TypeTimerUpdate, ev.Type)
	return decode[models.TimerState](t, ev)
}

func TestStartTimer_BroadcastsRunningState(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.manager.StartTimer(90))

	got := timerOf(t, f.bcast.last())
	assert.True(t, got.IsRunning)
	assert.Equal(t, 90.0, got.RemainingTime)
	assert.Equal(t, 90.0, got.LastSelectedTime)
	require.NotNil(t, got.StartTimestamp)
	assert.Equal(t, f.clock.Now().UnixMilli(), *got.StartTimestamp)

	saved := f.persisted.all()
	require.Len(t, saved, 1)
	require.NotNil(t, saved[0].Timer)
	assert.True(t, saved[0].Timer.IsRunning)
	assert.Nil(t, saved[0].Players)
	assert.Nil(t, saved[0].Scores)
}

func TestStartTimer_RejectsWhileRunning(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.manager.StartTimer(30))
	assert.ErrorIs(t, f.manager.StartTimer(10), ErrTimerRunning)

	assert.Equal(t, 1, f.bcast.count())
	assert.Equal(t, 30.0, f.manager.Timer().LastSelectedTime)
}

func TestStartTimer_RejectsInvalidDurations(t *testing.T) {
	f := newFixture(t)

	for _, d := range []float64{-1, math.NaN(), math.Inf(1)} {
		assert.ErrorIs(t, f.manager.StartTimer(d), ErrInvalidDuration)
	}
	assert.Zero(t, f.bcast.count())
	assert.Equal(t, models.NewTimerState(models.DefaultTimerDuration), f.manager.Timer())
}

func TestStartTimer_ZeroEndsImmediately(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.manager.StartTimer(0))

	got := timerOf(t, f.bcast.last())
	assert.False(t, got.IsRunning)
	assert.Zero(t, got.RemainingTime)
	assert.Zero(t, got.LastSelectedTime)
	assert.Nil(t, got.StartTimestamp)

	// Nothing is armed, so a new start is accepted straight away.
	require.NoError(t, f.manager.StartTimer(5))
}

func TestPauseTimer_ImmediatelyAfterStartKeepsDuration(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.manager.StartTimer(75))
	require.NoError(t, f.manager.PauseTimer())

	got := f.manager.Timer()
	assert.False(t, got.IsRunning)
	assert.Nil(t, got.StartTimestamp)
	assert.Equal(t, 75.0, got.RemainingTime)
	assert.Equal(t, 75.0, got.LastSelectedTime)
}

func TestPauseTimer_RealClockStaysWithinTolerance(t *testing.T) {
	m := NewManager(
		models.DefaultBlob(models.DefaultPanels(1), models.DefaultTimerDuration),
		&recordingBroadcaster{}, &recordingPersister{}, nil,
	)
	defer m.Shutdown()

	require.NoError(t, m.StartTimer(20))
	require.NoError(t, m.PauseTimer())
	assert.InDelta(t, 20.0, m.Timer().RemainingTime, 0.05)
}

func TestPauseTimer_CountsPartialSeconds(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.manager.StartTimer(10))
	f.clock.Advance(400 * time.Millisecond)
	require.NoError(t, f.manager.PauseTimer())

	assert.InDelta(t, 9.6, f.manager.Timer().RemainingTime, 1e-9)
}

func TestPauseTimer_RejectsWhenStopped(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.manager.PauseTimer(), ErrTimerNotRunning)
	assert.Zero(t, f.bcast.count())
}

func TestPauseThenStart_ResumesWithNewDuration(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.manager.StartTimer(30))
	f.tick(t)
	require.NoError(t, f.manager.PauseTimer())
	assert.Equal(t, 29.0, f.manager.Timer().RemainingTime)

	// The client resumes by starting again with whatever it wants to show.
	require.NoError(t, f.manager.StartTimer(29))
	got := f.manager.Timer()
	assert.True(t, got.IsRunning)
	assert.Equal(t, 29.0, got.LastSelectedTime)
}

func TestResetTimer_RestoresLastSelected(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.manager.StartTimer(90))
	f.tick(t)
	f.tick(t)
	f.tick(t)
	require.NoError(t, f.manager.PauseTimer())
	assert.Equal(t, 87.0, f.manager.Timer().RemainingTime)

	f.manager.ResetTimer()
	got := timerOf(t, f.bcast.last())
	assert.Equal(t, 90.0, got.RemainingTime)
	assert.Equal(t, 90.0, got.LastSelectedTime)
	assert.False(t, got.IsRunning)

	require.NoError(t, f.manager.StartTimer(30))
	require.NoError(t, f.manager.PauseTimer())
	f.manager.ResetTimer()
	assert.Equal(t, 30.0, f.manager.Timer().RemainingTime)
	assert.Equal(t, 30.0, f.manager.Timer().LastSelectedTime)
}

func TestResetTimer_StopsRunningCountdown(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.manager.StartTimer(15))
	f.tick(t)
	f.manager.ResetTimer()

	got := f.manager.Timer()
	assert.False(t, got.IsRunning)
	assert.Nil(t, got.StartTimestamp)
	assert.Equal(t, 15.0, got.RemainingTime)

	n := f.bcast.count()
	f.clock.Advance(5 * TickInterval)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, f.bcast.count(), "no ticks after reset")
}

func TestResetTimer_ValidWhenIdle(t *testing.T) {
	f := newFixture(t)

	f.manager.ResetTimer()
	f.manager.ResetTimer()

	assert.Equal(t, 2, f.bcast.count())
	assert.Equal(t, models.NewTimerState(models.DefaultTimerDuration), f.manager.Timer())
}

func TestOnTick_StaleGenerationIsIgnored(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.manager.StartTimer(20))

	f.manager.mu.Lock()
	staleGen := f.manager.tickGen
	f.manager.mu.Unlock()

	require.NoError(t, f.manager.PauseTimer())
	before := f.manager.Timer()
	n := f.bcast.count()

	// A callback that fired just before the pause but lost the race for the lock.
	f.manager.onTick(staleGen)

	assert.Equal(t, before, f.manager.Timer())
	assert.Equal(t, n, f.bcast.count())

	f.clock.Advance(3 * TickInterval)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before, f.manager.Timer())
	assert.Equal(t, n, f.bcast.count())
}

func TestOnTick_StaleGenerationIgnoredAfterRestart(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.manager.StartTimer(20))
	f.manager.mu.Lock()
	staleGen := f.manager.tickGen
	f.manager.mu.Unlock()

	require.NoError(t, f.manager.PauseTimer())
	require.NoError(t, f.manager.StartTimer(40))
	n := f.bcast.count()

	f.manager.onTick(staleGen)

	assert.Equal(t, 40.0, f.manager.Timer().RemainingTime)
	assert.Equal(t, n, f.bcast.count())
}

func TestCountdown_RunsToZeroAndStops(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.manager.StartTimer(60))

	for i := 1; i <= 60; i++ {
		f.tick(t)
		got := timerOf(t, f.bcast.last())
		assert.Equal(t, float64(60-i), got.RemainingTime, "tick %d", i)
		if i < 60 {
			assert.True(t, got.IsRunning, "tick %d", i)
		}
	}

	// 1 start + 60 ticks.
	require.Equal(t, 61, f.bcast.count())

	final := timerOf(t, f.bcast.last())
	assert.False(t, final.IsRunning)
	assert.Zero(t, final.RemainingTime)
	assert.Nil(t, final.StartTimestamp)
	assert.Equal(t, 60.0, final.LastSelectedTime)

	saved := f.persisted.all()
	require.Len(t, saved, 2, "persisted on start and on finish only")
	require.NotNil(t, saved[1].Timer)
	assert.False(t, saved[1].Timer.IsRunning)
	assert.Zero(t, saved[1].Timer.RemainingTime)

	f.clock.Advance(5 * TickInterval)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 61, f.bcast.count(), "no ticks after finishing")
}

func TestCountdown_FractionalDurationClampsAtZero(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.manager.StartTimer(1.5))
	f.tick(t)
	assert.Equal(t, 0.5, f.manager.Timer().RemainingTime)

	f.tick(t)
	got := f.manager.Timer()
	assert.False(t, got.IsRunning)
	assert.Zero(t, got.RemainingTime)
}

func TestShutdown_CancelsPendingTick(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.manager.StartTimer(10))
	f.manager.Shutdown()
	n := f.bcast.count()

	f.clock.Advance(3 * TickInterval)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, f.bcast.count())
}

func TestTimerState_StartTimestampOnlyWhileRunning(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.manager.StartTimer(3))
	f.tick(t)
	f.tick(t)
	require.NoError(t, f.manager.PauseTimer())
	f.manager.ResetTimer()
	require.NoError(t, f.manager.StartTimer(1))
	f.tick(t)

	for i, ev := range f.bcast.all() {
		got := timerOf(t, ev)
		if got.IsRunning {
			assert.NotNil(t, got.StartTimestamp, "event %d", i)
			assert.Greater(t, got.RemainingTime, 0.0, "event %d", i)
		} else {
			assert.Nil(t, got.StartTimestamp, "event %d", i)
		}
		assert.GreaterOrEqual(t, got.RemainingTime, 0.0, "event %d", i)
	}
}
