package tiltify_client

const (
	// Base URL
	BaseURL = "https://v5api.tiltify.com"

	// OAuth
	TokenEndpoint = "/oauth/token"

	// API Endpoints
	CampaignEndpoint   = "/api/public/campaigns/%s"
	MilestonesEndpoint = "/api/public/campaigns/%s/milestones"
	DonationsEndpoint  = "/api/public/campaigns/%s/donations"
)
