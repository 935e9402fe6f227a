package tiltify_client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/jaymepena/debatelords/go/internal/models"
)

// Money is a currency amount as the API sends it: the value is a decimal string.
type Money struct {
	Currency string `json:"currency"`
	Value    string `json:"value"`
}

// Float parses the value. An empty value is zero.
func (m *Money) Float() (float64, error) {
	if m == nil || m.Value == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(m.Value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid money value %q: %w", m.Value, err)
	}
	return v, nil
}

type Campaign struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	AmountRaised *Money `json:"amount_raised"`
	Goal         *Money `json:"goal"`
}

type Milestone struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Amount *Money `json:"amount"`
}

type Donation struct {
	ID           string    `json:"id"`
	DonorName    string    `json:"donor_name"`
	DonorComment string    `json:"donor_comment"`
	Amount       *Money    `json:"amount"`
	CreatedAt    time.Time `json:"created_at"`
	CompletedAt  time.Time `json:"completed_at"`
}

type campaignResponse struct {
	Data Campaign `json:"data"`
}

type milestonesResponse struct {
	Data []Milestone `json:"data"`
}

type donationsResponse struct {
	Data []Donation `json:"data"`
}

func (c *TiltifyClient) GetCampaign(ctx context.Context) (*Campaign, error) {
	body, err := c.Get(ctx, fmt.Sprintf(CampaignEndpoint, url.PathEscape(c.campaignID)))
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	var response campaignResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal campaign: %w", err)
	}
	return &response.Data, nil
}

func (c *TiltifyClient) GetMilestones(ctx context.Context) ([]Milestone, error) {
	body, err := c.Get(ctx, fmt.Sprintf(MilestonesEndpoint, url.PathEscape(c.campaignID)))
	if err != nil {
		return nil, fmt.Errorf("failed to get milestones: %w", err)
	}

	var response milestonesResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal milestones: %w", err)
	}
	return response.Data, nil
}

func (c *TiltifyClient) GetDonations(ctx context.Context) ([]Donation, error) {
	body, err := c.Get(ctx, fmt.Sprintf(DonationsEndpoint, url.PathEscape(c.campaignID)))
	if err != nil {
		return nil, fmt.Errorf("failed to get donations: %w", err)
	}

	var response donationsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal donations: %w", err)
	}
	return response.Data, nil
}

// Snapshot returns the campaign's raised total and goal.
func (c *TiltifyClient) Snapshot(ctx context.Context) (models.DonationSnapshot, error) {
	campaign, err := c.GetCampaign(ctx)
	if err != nil {
		return models.DonationSnapshot{}, err
	}

	total, err := campaign.AmountRaised.Float()
	if err != nil {
		return models.DonationSnapshot{}, fmt.Errorf("amount raised: %w", err)
	}
	goal, err := campaign.Goal.Float()
	if err != nil {
		return models.DonationSnapshot{}, fmt.Errorf("goal: %w", err)
	}

	return models.DonationSnapshot{Total: total, Goal: goal}, nil
}

// Milestones returns the campaign milestones with parsed amounts. Entries
// with an unparseable amount are skipped.
func (c *TiltifyClient) Milestones(ctx context.Context) ([]models.Milestone, error) {
	raw, err := c.GetMilestones(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.Milestone, 0, len(raw))
	for _, m := range raw {
		amount, err := m.Amount.Float()
		if err != nil {
			continue
		}
		out = append(out, models.Milestone{Name: m.Name, Amount: amount})
	}
	return out, nil
}

// Donations returns completed donations with parsed amounts. An unparseable
// amount counts as zero.
func (c *TiltifyClient) Donations(ctx context.Context) ([]models.Donation, error) {
	raw, err := c.GetDonations(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.Donation, 0, len(raw))
	for _, d := range raw {
		amount, _ := d.Amount.Float()
		out = append(out, models.Donation{
			DonorName:    d.DonorName,
			Amount:       amount,
			DonorComment: d.DonorComment,
			CreatedAt:    d.CreatedAt,
			CompletedAt:  d.CompletedAt,
		})
	}
	return out, nil
}
