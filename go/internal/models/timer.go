package models

import "time"

// DefaultTimerDuration is the countdown length used when nothing has been
// persisted yet.
const DefaultTimerDuration = 60 * time.Second

// TimerState is the server-authoritative countdown. RemainingTime and
// LastSelectedTime are seconds and may carry a fractional part; displays
// truncate to whole seconds. StartTimestamp is unix milliseconds and is set
// only while IsRunning is true.
type TimerState struct {
	RemainingTime    float64 `json:"remainingTime"`
	IsRunning        bool    `json:"isRunning"`
	StartTimestamp   *int64  `json:"startTimestamp"`
	LastSelectedTime float64 `json:"lastSelectedTime"`
}

// NewTimerState returns an idle timer set to d.
func NewTimerState(d time.Duration) TimerState {
	return TimerState{
		RemainingTime:    d.Seconds(),
		LastSelectedTime: d.Seconds(),
	}
}

// Clone returns a copy that does not share the timestamp pointer.
func (t TimerState) Clone() TimerState {
	if t.StartTimestamp != nil {
		ts := *t.StartTimestamp
		t.StartTimestamp = &ts
	}
	return t
}

// UnixMilli converts a wall-clock instant to the persisted timestamp form.
func UnixMilli(t time.Time) *int64 {
	ms := t.UnixMilli()
	return &ms
}
