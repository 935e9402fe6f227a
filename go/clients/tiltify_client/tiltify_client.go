package tiltify_client

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/jaymepena/debatelords/go/clients"
)

// tokenExpiryDelta refreshes the access token a minute before it expires.
const tokenExpiryDelta = 60 * time.Second

type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	CampaignID   string
	Timeout      time.Duration
}

// Enabled reports whether every credential needed to reach the API is set.
func (c Config) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.CampaignID != ""
}

type TiltifyClient struct {
	*clients.BaseClient
	campaignID string
}

// NewTiltifyClient returns a client that authenticates with the OAuth client
// credentials grant. Tokens are fetched lazily and refreshed before expiry.
func NewTiltifyClient(ctx context.Context, cfg Config) (*TiltifyClient, error) {
	if !cfg.Enabled() {
		return nil, errors.New("tiltify client id, secret and campaign id are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = BaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	client := &TiltifyClient{
		BaseClient: clients.NewBaseClient(cfg.BaseURL),
		campaignID: cfg.CampaignID,
	}

	oauthCfg := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     client.BaseURL() + TokenEndpoint,
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	// Token requests use their own bounded client.
	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: cfg.Timeout})
	source := oauth2.ReuseTokenSourceWithExpiry(nil, oauthCfg.TokenSource(tokenCtx), tokenExpiryDelta)

	client.SetHTTPClient(oauth2.NewClient(tokenCtx, source))
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("Accept", "application/json")

	return client, nil
}

func (c *TiltifyClient) CampaignID() string {
	return c.campaignID
}
