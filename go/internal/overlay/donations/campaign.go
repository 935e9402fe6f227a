package donations

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jaymepena/debatelords/go/internal/models"
)

const (
	// TopDonorWindow limits the top donor list to recent donations.
	TopDonorWindow = time.Hour
	// TopDonorCount is how many donors the campaign view lists.
	TopDonorCount = 5
)

// CampaignSource is the read side of the donation platform.
type CampaignSource interface {
	Milestones(ctx context.Context) ([]models.Milestone, error)
	Donations(ctx context.Context) ([]models.Donation, error)
}

// Summarize builds the campaign view for total: the highest milestone
// reached, the lowest one not yet reached, and the largest donations made
// within TopDonorWindow of now.
func Summarize(total float64, milestones []models.Milestone, donations []models.Donation, now time.Time) models.CampaignSummary {
	summary := models.CampaignSummary{
		CurrentAmount: total,
		TopDonators:   []models.Donation{},
	}

	sorted := slices.Clone(milestones)
	slices.SortStableFunc(sorted, func(a, b models.Milestone) int {
		return cmp.Compare(a.Amount, b.Amount)
	})
	for i := range sorted {
		if sorted[i].Amount <= total {
			summary.CurrentMilestone = &sorted[i]
			continue
		}
		summary.NextMilestone = &sorted[i]
		break
	}

	cutoff := now.Add(-TopDonorWindow)
	for _, d := range donations {
		if d.CreatedAt.After(cutoff) {
			summary.TopDonators = append(summary.TopDonators, d)
		}
	}
	slices.SortStableFunc(summary.TopDonators, func(a, b models.Donation) int {
		return cmp.Compare(b.Amount, a.Amount)
	})
	if len(summary.TopDonators) > TopDonorCount {
		summary.TopDonators = summary.TopDonators[:TopDonorCount]
	}

	return summary
}

// Campaign assembles the summary from the platform. Either upstream call may
// fail; its part of the view is then left empty.
func (r *Reconciler) Campaign(ctx context.Context, source CampaignSource) models.CampaignSummary {
	var milestones []models.Milestone
	var donations []models.Donation

	if source != nil {
		var err error
		if milestones, err = source.Milestones(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to fetch milestones")
		}
		if donations, err = source.Donations(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to fetch donations")
		}
	}

	return Summarize(r.Snapshot().Total, milestones, donations, r.clock.Now())
}
