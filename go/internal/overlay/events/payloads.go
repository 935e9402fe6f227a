package events

import "github.com/jaymepena/debatelords/go/internal/models"

// ScorePayload is carried by scoreUpdate and updateScore.
type ScorePayload struct {
	Panel models.PlayerID `json:"panel"`
	Score int             `json:"score"`
}

// MutePayload is carried by muteUpdate and updateMute.
type MutePayload struct {
	Player models.PlayerID `json:"player"`
	Muted  bool            `json:"muted"`
}

// NamePayload is carried by nameUpdate and updateName.
type NamePayload struct {
	PlayerID models.PlayerID `json:"playerId"`
	Name     string          `json:"name"`
}

// StartTimerPayload requests a fresh countdown of RemainingTime seconds.
type StartTimerPayload struct {
	RemainingTime float64 `json:"remainingTime"`
}

// TimerPayload is the full timer state sent with every timerUpdate.
type TimerPayload = models.TimerState

// InitDataPayload is the snapshot sent to a newly connected session.
type InitDataPayload = models.Blob

// NewDonationPayload carries the current campaign total.
type NewDonationPayload struct {
	Amount float64 `json:"amount"`
}

// GoalUpdatePayload carries the current campaign goal.
type GoalUpdatePayload struct {
	NewGoal float64 `json:"newGoal"`
}
