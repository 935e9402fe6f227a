package state

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/jaymepena/debatelords/go/internal/models"
	"github.com/jaymepena/debatelords/go/internal/overlay/events"
)

// ErrUnknownPlayer is returned when a mutation names a panel that does not exist.
var ErrUnknownPlayer = errors.New("unknown player")

// TickInterval is how often a running timer is re-evaluated and broadcast.
const TickInterval = time.Second

// Broadcaster fans an event out to every connected session. Implementations
// must not block.
type Broadcaster interface {
	Broadcast(event *events.Event)
}

// Persister accepts field-scoped updates for durable storage. Implementations
// must not block.
type Persister interface {
	Save(partial models.PartialBlob)
}

// Manager is the single owner of the shared overlay state. Every mutation
// runs under one lock and applies, broadcasts and persists in that order, so
// the sequence is atomic with respect to other inbound events and broadcasts
// leave in the order mutations were applied.
type Manager struct {
	mu sync.Mutex

	players models.Players
	scores  models.Scores
	timer   models.TimerState

	// startedAt is the wall-clock reference for the running countdown; the
	// persisted StartTimestamp is its millisecond rendering.
	startedAt time.Time
	tick      clockwork.Timer
	tickGen   uint64

	clock        clockwork.Clock
	tickInterval time.Duration
	broadcaster  Broadcaster
	persister    Persister
}

// NewManager takes ownership of blob. A timer persisted as running belonged
// to a previous process and is restored paused at its stored remaining time.
func NewManager(blob models.Blob, broadcaster Broadcaster, persister Persister, clock clockwork.Clock) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	blob = blob.Clone()
	if blob.Players == nil {
		blob.Players = make(models.Players)
	}
	if blob.Scores == nil {
		blob.Scores = make(models.Scores)
	}
	if blob.Timer.IsRunning {
		log.Warn().
			Float64("remaining_time", blob.Timer.RemainingTime).
			Msg("restoring timer that was running at shutdown as paused")
		blob.Timer.IsRunning = false
	}
	blob.Timer.StartTimestamp = nil

	return &Manager{
		players:      blob.Players,
		scores:       blob.Scores,
		timer:        blob.Timer,
		clock:        clock,
		tickInterval: TickInterval,
		broadcaster:  broadcaster,
		persister:    persister,
	}
}

// Snapshot returns a deep copy of the current state.
func (m *Manager) Snapshot() models.Blob {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() models.Blob {
	return models.Blob{
		Players: m.players.Clone(),
		Scores:  m.scores.Clone(),
		Timer:   m.timer.Clone(),
	}
}

// Join hands a newly connected session its initData snapshot. deliver runs
// under the state lock, so no mutation can be applied between taking the
// snapshot and queueing it.
func (m *Manager) Join(deliver func(*events.Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, err := events.New(events.TypeInitData, m.snapshotLocked())
	if err != nil {
		log.Error().Err(err).Msg("failed to build snapshot")
		return
	}
	deliver(ev)
}

// UpdateScore overwrites the score for panel, broadcasts updateScore and
// persists that one score.
func (m *Manager) UpdateScore(panel models.PlayerID, score int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.scores[panel]; !ok {
		log.Warn().Str("player_id", string(panel)).Msg("score update for unknown panel dropped")
		return ErrUnknownPlayer
	}

	m.scores[panel] = score

	m.broadcastLocked(events.TypeUpdateScore, events.ScorePayload{Panel: panel, Score: score})
	m.persister.Save(models.PartialBlob{Scores: models.Scores{panel: score}})
	return nil
}

// UpdateMute sets the muted flag for player, broadcasts updateMute and
// persists only that flag.
func (m *Manager) UpdateMute(player models.PlayerID, muted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.players[player]
	if !ok {
		log.Warn().Str("player_id", string(player)).Msg("mute update for unknown player dropped")
		return ErrUnknownPlayer
	}

	p.Muted = muted

	m.broadcastLocked(events.TypeUpdateMute, events.MutePayload{Player: player, Muted: muted})
	m.persister.Save(models.PartialBlob{
		Players: map[models.PlayerID]models.PlayerPatch{player: {Muted: &muted}},
	})
	return nil
}

// UpdateName renames player. Any string is accepted.
func (m *Manager) UpdateName(player models.PlayerID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.players[player]
	if !ok {
		log.Warn().Str("player_id", string(player)).Msg("name update for unknown player dropped")
		return ErrUnknownPlayer
	}

	p.Name = name

	m.broadcastLocked(events.TypeUpdateName, events.NamePayload{PlayerID: player, Name: name})
	m.persister.Save(models.PartialBlob{
		Players: map[models.PlayerID]models.PlayerPatch{player: {Name: &name}},
	})
	return nil
}

// Shutdown cancels any pending tick. State is left as it is.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelTickLocked()
}

func (m *Manager) broadcastLocked(t events.Type, payload any) {
	ev, err := events.New(t, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(t)).Msg("failed to build event")
		return
	}
	m.broadcaster.Broadcast(ev)
}
