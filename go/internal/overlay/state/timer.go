package state

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jaymepena/debatelords/go/internal/models"
	"github.com/jaymepena/debatelords/go/internal/overlay/events"
)

var (
	// ErrInvalidDuration is returned for negative or non-finite durations.
	ErrInvalidDuration = errors.New("invalid timer duration")
	// ErrTimerRunning is returned when starting a timer that is already running.
	ErrTimerRunning = errors.New("timer already running")
	// ErrTimerNotRunning is returned when pausing a timer that is not running.
	ErrTimerNotRunning = errors.New("timer not running")
)

// StartTimer begins a fresh countdown of seconds. It is only valid while the
// timer is stopped. The duration becomes the value restored by ResetTimer. A
// zero duration ends immediately.
func (m *Manager) StartTimer(seconds float64) error {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		log.Warn().Float64("remaining_time", seconds).Msg("start timer with invalid duration dropped")
		return fmt.Errorf("%w: %v", ErrInvalidDuration, seconds)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.timer.IsRunning {
		log.Debug().Msg("start timer ignored, already running")
		return ErrTimerRunning
	}

	m.timer.RemainingTime = seconds
	m.timer.LastSelectedTime = seconds

	if seconds == 0 {
		m.stopLocked()
		m.broadcastTimerLocked()
		m.persistTimerLocked()
		return nil
	}

	now := m.clock.Now()
	m.startedAt = now
	m.timer.IsRunning = true
	m.timer.StartTimestamp = models.UnixMilli(now)

	log.Info().Float64("duration", seconds).Msg("timer started")

	m.broadcastTimerLocked()
	m.persistTimerLocked()
	m.scheduleTickLocked()
	return nil
}

// PauseTimer freezes a running countdown at its current remaining time.
func (m *Manager) PauseTimer() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.timer.IsRunning {
		log.Debug().Msg("pause timer ignored, not running")
		return ErrTimerNotRunning
	}

	m.elapseLocked(m.clock.Now())
	m.stopLocked()

	log.Info().Float64("remaining_time", m.timer.RemainingTime).Msg("timer paused")

	m.broadcastTimerLocked()
	m.persistTimerLocked()
	return nil
}

// ResetTimer stops the countdown and restores the last started duration. It
// is valid in any state.
func (m *Manager) ResetTimer() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()
	m.timer.RemainingTime = m.timer.LastSelectedTime

	log.Info().Float64("remaining_time", m.timer.RemainingTime).Msg("timer reset")

	m.broadcastTimerLocked()
	m.persistTimerLocked()
}

// Timer returns a copy of the current timer state.
func (m *Manager) Timer() models.TimerState {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.timer.Clone()
}

// onTick is the scheduled callback. gen identifies the schedule that armed
// it; any transition since then bumps tickGen and the tick becomes a no-op.
func (m *Manager) onTick(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.tickGen || !m.timer.IsRunning {
		log.Debug().Uint64("tick_gen", gen).Msg("stale timer tick ignored")
		return
	}
	m.tick = nil

	m.elapseLocked(m.clock.Now())

	if m.timer.RemainingTime > 0 {
		m.broadcastTimerLocked()
		m.scheduleTickLocked()
		return
	}

	m.stopLocked()
	log.Info().Msg("timer finished")

	m.broadcastTimerLocked()
	m.persistTimerLocked()
}

// elapseLocked subtracts the wall-clock time since the last reference point
// and moves the reference to now, so scheduling jitter never accumulates.
func (m *Manager) elapseLocked(now time.Time) {
	elapsed := now.Sub(m.startedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	m.timer.RemainingTime = math.Max(0, m.timer.RemainingTime-elapsed)
	m.startedAt = now
	m.timer.StartTimestamp = models.UnixMilli(now)
}

// stopLocked leaves the running state and cancels any pending tick.
func (m *Manager) stopLocked() {
	m.cancelTickLocked()
	m.timer.IsRunning = false
	m.timer.StartTimestamp = nil
	m.startedAt = time.Time{}
}

// scheduleTickLocked replaces any pending tick with a fresh one-shot.
func (m *Manager) scheduleTickLocked() {
	m.cancelTickLocked()

	gen := m.tickGen
	m.tick = m.clock.AfterFunc(m.tickInterval, func() {
		m.onTick(gen)
	})
}

// cancelTickLocked stops the pending tick and invalidates any callback that
// has already fired but not yet acquired the lock.
func (m *Manager) cancelTickLocked() {
	m.tickGen++
	if m.tick != nil {
		m.tick.Stop()
		m.tick = nil
	}
}

func (m *Manager) broadcastTimerLocked() {
	m.broadcastLocked(events.TypeTimerUpdate, m.timer.Clone())
}

func (m *Manager) persistTimerLocked() {
	timer := m.timer.Clone()
	m.persister.Save(models.PartialBlob{Timer: &timer})
}
