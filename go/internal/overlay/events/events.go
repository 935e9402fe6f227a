package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownEvent is returned for an envelope whose type has no payload.
var ErrUnknownEvent = errors.New("unknown event type")

// Event is the envelope exchanged over the websocket in both directions:
//
//	{"type": "scoreUpdate", "data": {"panel": "1", "score": 5}}
type Event struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Type names an event.
type Type string

// Inbound (client to server).
const (
	TypeScoreUpdate Type = "scoreUpdate"
	TypeMuteUpdate  Type = "muteUpdate"
	TypeNameUpdate  Type = "nameUpdate"
	TypeStartTimer  Type = "startTimer"
	TypePauseTimer  Type = "pauseTimer"
	TypeResetTimer  Type = "resetTimer"
)

// Outbound (server to clients).
const (
	TypeInitData    Type = "initData"
	TypeUpdateScore Type = "updateScore"
	TypeUpdateMute  Type = "updateMute"
	TypeUpdateName  Type = "updateName"
	TypeTimerUpdate Type = "timerUpdate"
	TypeNewDonation Type = "newDonation"
	TypeGoalUpdate  Type = "goalUpdate"
)

// New builds an envelope around payload. A nil payload leaves Data empty.
func New(t Type, payload any) (*Event, error) {
	ev := &Event{Type: t}
	if payload == nil {
		return ev, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	ev.Data = data
	return ev, nil
}

// Decode parses a raw websocket frame into an envelope.
func Decode(frame []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(frame, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if ev.Type == "" {
		return nil, errors.New("decode event: missing type")
	}
	return &ev, nil
}

// ParsePayload parses event data into the payload struct for its type.
// Events that carry no data return a nil payload.
func ParsePayload(event *Event) (any, error) {
	var payload any

	switch event.Type {
	case TypeScoreUpdate, TypeUpdateScore:
		payload = &ScorePayload{}
	case TypeMuteUpdate, TypeUpdateMute:
		payload = &MutePayload{}
	case TypeNameUpdate, TypeUpdateName:
		payload = &NamePayload{}
	case TypeStartTimer:
		payload = &StartTimerPayload{}
	case TypeTimerUpdate:
		payload = &TimerPayload{}
	case TypeInitData:
		payload = &InitDataPayload{}
	case TypeNewDonation:
		payload = &NewDonationPayload{}
	case TypeGoalUpdate:
		payload = &GoalUpdatePayload{}
	case TypePauseTimer, TypeResetTimer:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, event.Type)
	}

	if len(event.Data) == 0 {
		return nil, fmt.Errorf("%s: missing data", event.Type)
	}
	if err := json.Unmarshal(event.Data, payload); err != nil {
		return nil, fmt.Errorf("%s: %w", event.Type, err)
	}
	return payload, nil
}
