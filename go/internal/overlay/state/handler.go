package state

import (
	"context"
	"fmt"

	"github.com/jaymepena/debatelords/go/internal/overlay/events"
)

// HandleEvent applies one inbound client event. Rejected events (unknown
// type, malformed payload, unknown player, invalid transition) return an
// error and change nothing; nothing is sent back to the client.
func (m *Manager) HandleEvent(ctx context.Context, event *events.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := events.ParsePayload(event)
	if err != nil {
		return err
	}

	switch event.Type {
	case events.TypeScoreUpdate:
		p := payload.(*events.ScorePayload)
		return m.UpdateScore(p.Panel, p.Score)

	case events.TypeMuteUpdate:
		p := payload.(*events.MutePayload)
		return m.UpdateMute(p.Player, p.Muted)

	case events.TypeNameUpdate:
		p := payload.(*events.NamePayload)
		return m.UpdateName(p.PlayerID, p.Name)

	case events.TypeStartTimer:
		p := payload.(*events.StartTimerPayload)
		return m.StartTimer(p.RemainingTime)

	case events.TypePauseTimer:
		return m.PauseTimer()

	case events.TypeResetTimer:
		m.ResetTimer()
		return nil

	default:
		return fmt.Errorf("%w: %q is not a client event", events.ErrUnknownEvent, event.Type)
	}
}
