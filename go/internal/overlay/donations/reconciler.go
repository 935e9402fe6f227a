// Package donations keeps the fundraising snapshot in sync with the donation
// platform and with hand edits of the donation file, and serves the
// campaign views the overlay renders.
package donations

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/jaymepena/debatelords/go/internal/models"
	"github.com/jaymepena/debatelords/go/internal/overlay/events"
	"github.com/jaymepena/debatelords/go/internal/overlay/store"
)

// DefaultPollInterval is how often the upstream total is fetched.
const DefaultPollInterval = 3 * time.Second

// Broadcaster fans an event out to every connected session without blocking.
type Broadcaster interface {
	Broadcast(event *events.Event)
}

// Source reports the current campaign total and goal.
type Source interface {
	Snapshot(ctx context.Context) (models.DonationSnapshot, error)
}

// Reconciler owns the in-memory donation snapshot. Changes from the upstream
// poll and from the donation file both go through it and are broadcast.
type Reconciler struct {
	mu       sync.Mutex
	snapshot models.DonationSnapshot

	file        *store.DonationFile
	source      Source
	broadcaster Broadcaster
	clock       clockwork.Clock
	interval    time.Duration
}

// NewReconciler loads the initial snapshot from file. source may be nil, in
// which case only file changes update the snapshot.
func NewReconciler(file *store.DonationFile, source Source, broadcaster Broadcaster, clock clockwork.Clock, interval time.Duration) *Reconciler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	snap, _, err := file.Load()
	if err != nil {
		log.Warn().Err(err).Str("path", file.Path()).Msg("no usable donation file, starting fresh")
	} else {
		log.Info().
			Float64("total", snap.Total).
			Float64("goal", snap.Goal).
			Msg("loaded donations")
	}

	return &Reconciler{
		snapshot:    snap,
		file:        file,
		source:      source,
		broadcaster: broadcaster,
		clock:       clock,
		interval:    interval,
	}
}

// Snapshot returns the current donation snapshot.
func (r *Reconciler) Snapshot() models.DonationSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot
}

// Poll fetches the upstream snapshot once. A changed total is persisted and
// broadcast as newDonation; a changed goal as goalUpdate. An unchanged
// snapshot broadcasts nothing. Upstream errors leave the snapshot as it is.
func (r *Reconciler) Poll(ctx context.Context) error {
	if r.source == nil {
		return nil
	}

	fetched, err := r.source.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("poll donation total: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.snapshot
	totalChanged := fetched.Total != next.Total
	// A campaign without a goal keeps the one we have.
	goalChanged := fetched.Goal > 0 && fetched.Goal != next.Goal
	if !totalChanged && !goalChanged {
		return nil
	}

	if totalChanged {
		next.Total = fetched.Total
	}
	if goalChanged {
		next.Goal = fetched.Goal
	}
	r.snapshot = next

	if err := r.file.Save(next); err != nil {
		log.Error().Err(err).Str("path", r.file.Path()).Msg("failed to save donations")
	}

	log.Info().
		Float64("total", next.Total).
		Float64("goal", next.Goal).
		Msg("donation snapshot updated")

	if goalChanged {
		r.broadcastLocked(events.TypeGoalUpdate, events.GoalUpdatePayload{NewGoal: next.Goal})
	}
	if totalChanged {
		r.broadcastLocked(events.TypeNewDonation, events.NewDonationPayload{Amount: next.Total})
	}
	return nil
}

// Run polls immediately and then every interval until ctx is done.
func (r *Reconciler) Run(ctx context.Context) error {
	if r.source == nil {
		log.Info().Msg("no donation source configured, polling disabled")
		return nil
	}

	log.Info().Dur("interval", r.interval).Msg("donation poller started")

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.pollAndLog(ctx)

		select {
		case <-ctx.Done():
			log.Info().Msg("donation poller stopped")
			return nil
		case <-ticker.Chan():
		}
	}
}

func (r *Reconciler) pollAndLog(ctx context.Context) {
	if err := r.Poll(ctx); err != nil && ctx.Err() == nil {
		log.Warn().Err(err).Msg("failed to fetch donation total")
	}
}

// Reload rereads the donation file and broadcasts goalUpdate then
// newDonation. Content this process wrote itself is ignored, as is a file that
// cannot be read or parsed (the previous snapshot is kept).
func (r *Reconciler) Reload() error {
	snap, raw, err := r.file.Load()
	if err != nil {
		return fmt.Errorf("reload donations: %w", err)
	}
	if r.file.WrittenByUs(raw) {
		log.Debug().Msg("donation file change was our own write")
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.snapshot = snap

	log.Info().
		Float64("total", snap.Total).
		Float64("goal", snap.Goal).
		Msg("donations reloaded from file")

	r.broadcastLocked(events.TypeGoalUpdate, events.GoalUpdatePayload{NewGoal: snap.Goal})
	r.broadcastLocked(events.TypeNewDonation, events.NewDonationPayload{Amount: snap.Total})
	return nil
}

func (r *Reconciler) broadcastLocked(t events.Type, payload any) {
	ev, err := events.New(t, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(t)).Msg("failed to build event")
		return
	}
	r.broadcaster.Broadcast(ev)
}
