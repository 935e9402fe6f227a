package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jaymepena/debatelords/go/clients/tiltify_client"
	"github.com/jaymepena/debatelords/go/internal/models"
	"github.com/jaymepena/debatelords/go/internal/overlay/donations"
	"github.com/jaymepena/debatelords/go/internal/overlay/gateway"
	"github.com/jaymepena/debatelords/go/internal/overlay/mirror"
)

type Config struct {
	Bind            string
	Port            int
	DataFile        string
	DonationFile    string
	PublicDir       string
	Players         int
	PanelsConfig    string
	DefaultDuration time.Duration
	PollInterval    time.Duration
	Debounce        time.Duration
	Tiltify         tiltify_client.Config
	NatsURL         string
	NatsSubject     string
	AllowedOrigins  []string
	MaxMessageSize  int64
	Verbose         bool

	panels []models.Panel
}

type panelsFile struct {
	Panels []models.Panel `yaml:"panels"`
}

func loadPanels(path string) ([]models.Panel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read panels config: %w", err)
	}

	var file panelsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse panels config: %w", err)
	}
	return file.Panels, nil
}

// applyLegacyEnv fills Tiltify credentials from the unprefixed variables
// older deployments put in .env.
func (c *Config) applyLegacyEnv() {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = os.Getenv(key)
		}
	}
	fill(&c.Tiltify.ClientID, "TILTIFY_CLIENT_ID")
	fill(&c.Tiltify.ClientSecret, "TILTIFY_CLIENT_SECRET")
	fill(&c.Tiltify.CampaignID, "TILTIFY_CAMPAIGN_ID")
}

// Validate checks the configuration and resolves the panel set.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.DataFile == "" || c.DonationFile == "" {
		return errors.New("--data-file and --donation-file must not be empty")
	}
	if c.DefaultDuration < 0 {
		return fmt.Errorf("invalid default duration: %s", c.DefaultDuration)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("invalid poll interval: %s", c.PollInterval)
	}
	if c.Debounce <= 0 {
		return fmt.Errorf("invalid debounce: %s", c.Debounce)
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("invalid max message size: %d", c.MaxMessageSize)
	}
	if c.PanelsConfig == "" && c.Players < 1 {
		return fmt.Errorf("invalid player count (must be at least 1): %d", c.Players)
	}

	t := c.Tiltify
	if (t.ClientID != "" || t.ClientSecret != "" || t.CampaignID != "") && !t.Enabled() {
		return errors.New("--tiltify-client-id, --tiltify-client-secret and --tiltify-campaign-id must be provided together")
	}

	panels := models.DefaultPanels(c.Players)
	if c.PanelsConfig != "" {
		var err error
		if panels, err = loadPanels(c.PanelsConfig); err != nil {
			return err
		}
	}
	if len(panels) == 0 {
		return errors.New("at least one panel is required")
	}

	seen := make(map[models.PlayerID]bool, len(panels))
	for i, p := range panels {
		if p.ID == "" {
			return fmt.Errorf("panel %d has no id", i+1)
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate panel id %q", p.ID)
		}
		seen[p.ID] = true
		if p.Name == "" {
			panels[i].Name = "Name " + string(p.ID)
		}
	}
	c.panels = panels

	return nil
}

// Panels returns the panel set resolved by Validate.
func (c *Config) Panels() []models.Panel {
	return c.panels
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("DEBATELORDS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "debatelords",
		Short:         "Live-stream overlay server for debate scores, timer and donation progress.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(cfg.Verbose)
			cfg.applyLegacyEnv()
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.Bind, "bind", "b", "localhost", "address to bind to (env: DEBATELORDS_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", 3000, "port to listen on (env: DEBATELORDS_PORT)")
	fs.StringVar(&cfg.DataFile, "data-file", "scores.json", "overlay state file (env: DEBATELORDS_DATA_FILE)")
	fs.StringVar(&cfg.DonationFile, "donation-file", "donations.json", "donation snapshot file (env: DEBATELORDS_DONATION_FILE)")
	fs.StringVar(&cfg.PublicDir, "public-dir", "public", "directory of overlay pages to serve (env: DEBATELORDS_PUBLIC_DIR)")
	fs.IntVar(&cfg.Players, "players", 5, "number of player panels (env: DEBATELORDS_PLAYERS)")
	fs.StringVar(&cfg.PanelsConfig, "panels-config", "", "YAML file listing panels, overrides --players (env: DEBATELORDS_PANELS_CONFIG)")
	fs.DurationVar(&cfg.DefaultDuration, "default-duration", models.DefaultTimerDuration, "timer duration when none is saved (env: DEBATELORDS_DEFAULT_DURATION)")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", donations.DefaultPollInterval, "donation total poll interval (env: DEBATELORDS_POLL_INTERVAL)")
	fs.DurationVar(&cfg.Debounce, "debounce", donations.DefaultDebounce, "settle time after a donation file edit (env: DEBATELORDS_DEBOUNCE)")
	fs.StringVar(&cfg.Tiltify.ClientID, "tiltify-client-id", "", "Tiltify OAuth client id (env: DEBATELORDS_TILTIFY_CLIENT_ID, TILTIFY_CLIENT_ID)")
	fs.StringVar(&cfg.Tiltify.ClientSecret, "tiltify-client-secret", "", "Tiltify OAuth client secret (env: DEBATELORDS_TILTIFY_CLIENT_SECRET, TILTIFY_CLIENT_SECRET)")
	fs.StringVar(&cfg.Tiltify.CampaignID, "tiltify-campaign-id", "", "Tiltify campaign id (env: DEBATELORDS_TILTIFY_CAMPAIGN_ID, TILTIFY_CAMPAIGN_ID)")
	fs.StringVar(&cfg.Tiltify.BaseURL, "tiltify-url", tiltify_client.BaseURL, "Tiltify API base URL (env: DEBATELORDS_TILTIFY_URL)")
	fs.StringVar(&cfg.NatsURL, "nats-url", "", "NATS server to mirror events to, empty to disable (env: DEBATELORDS_NATS_URL)")
	fs.StringVar(&cfg.NatsSubject, "nats-subject", mirror.DefaultSubjectPrefix, "subject prefix for mirrored events (env: DEBATELORDS_NATS_SUBJECT)")
	fs.StringSliceVar(&cfg.AllowedOrigins, "allowed-origins", []string{"*"}, "origins allowed for CORS and WebSocket (env: DEBATELORDS_ALLOWED_ORIGINS)")
	fs.Int64Var(&cfg.MaxMessageSize, "max-message-size", gateway.DefaultMaxMessageSize, "largest inbound WebSocket message in bytes (env: DEBATELORDS_MAX_MESSAGE_SIZE)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "display additional output (env: DEBATELORDS_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("debatelords v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
