package models

import "time"

// DefaultDonationGoal is used when the donation file carries no goal.
const DefaultDonationGoal = 5000

// DonationSnapshot is the fundraising total shown by the progress bar.
type DonationSnapshot struct {
	Total float64 `json:"total"`
	Goal  float64 `json:"goal"`
}

// Milestone is a campaign amount threshold.
type Milestone struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// Donation is a single completed donation.
type Donation struct {
	DonorName    string    `json:"donor_name"`
	Amount       float64   `json:"amount"`
	DonorComment string    `json:"donor_comment,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	CompletedAt  time.Time `json:"completed_at"`
}

// CampaignSummary is the milestone progress view served to the overlay.
type CampaignSummary struct {
	CurrentAmount    float64    `json:"currentAmount"`
	CurrentMilestone *Milestone `json:"currentMilestone"`
	NextMilestone    *Milestone `json:"nextMilestone"`
	TopDonators      []Donation `json:"topDonators"`
}
