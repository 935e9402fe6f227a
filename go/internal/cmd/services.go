package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/jaymepena/debatelords/go/clients/tiltify_client"
	"github.com/jaymepena/debatelords/go/internal/overlay/donations"
	"github.com/jaymepena/debatelords/go/internal/overlay/gateway"
	"github.com/jaymepena/debatelords/go/internal/overlay/mirror"
	"github.com/jaymepena/debatelords/go/internal/overlay/state"
	"github.com/jaymepena/debatelords/go/internal/overlay/store"
)

const shutdownTimeout = 5 * time.Second

type Services struct {
	Store      *store.FileStore
	Writer     *store.Writer
	Gateway    *gateway.Service
	State      *state.Manager
	Reconciler *donations.Reconciler
	Watcher    *donations.Watcher
	Donations  *donations.Handler
	Mirror     *mirror.Publisher
}

func setupServices(ctx context.Context, cfg *Config, clock clockwork.Clock) (*Services, error) {
	// Wire up dependency injection chain
	// Store → Writer → Gateway → State manager → Donations

	fileStore := store.NewFileStore(cfg.DataFile, cfg.Panels(), cfg.DefaultDuration)
	blob, err := fileStore.Load()
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.DataFile).Msg("using defaults for overlay state")
	}
	writer := store.NewWriter(fileStore)

	var (
		publisher *mirror.Publisher
		mirrorTo  gateway.Mirror
	)
	if cfg.NatsURL != "" {
		mirrorCfg := mirror.DefaultConfig()
		mirrorCfg.URL = cfg.NatsURL
		mirrorCfg.SubjectPrefix = cfg.NatsSubject

		publisher, err = mirror.NewPublisher(mirrorCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect event mirror: %w", err)
		}
		mirrorTo = publisher
	}

	gatewayCfg := gateway.DefaultConfig()
	gatewayCfg.ConnectionConfig.CheckOrigin = gateway.OriginChecker(cfg.AllowedOrigins)
	gatewayCfg.ConnectionConfig.MaxMessageSize = cfg.MaxMessageSize
	gw := gateway.NewService(gatewayCfg, mirrorTo)

	manager := state.NewManager(blob, gw, writer, clock)

	var (
		source   donations.Source
		campaign donations.CampaignSource
	)
	if cfg.Tiltify.Enabled() {
		client, err := tiltify_client.NewTiltifyClient(ctx, cfg.Tiltify)
		if err != nil {
			return nil, fmt.Errorf("failed to create tiltify client: %w", err)
		}
		source = client
		campaign = client
	} else {
		log.Info().Msg("tiltify credentials not set, donation polling disabled")
	}

	donationFile := store.NewDonationFile(cfg.DonationFile)
	reconciler := donations.NewReconciler(donationFile, source, gw, clock, cfg.PollInterval)
	watcher := donations.NewWatcher(cfg.DonationFile, reconciler, clock, cfg.Debounce)

	return &Services{
		Store:      fileStore,
		Writer:     writer,
		Gateway:    gw,
		State:      manager,
		Reconciler: reconciler,
		Watcher:    watcher,
		Donations:  donations.NewHandler(reconciler, campaign, cfg.Tiltify.CampaignID),
		Mirror:     publisher,
	}, nil
}

// Close stops the countdown, waits for pending writes and drops the mirror
// connection. It must run after every producer has stopped.
func (s *Services) Close(stopWriter context.CancelFunc) {
	s.State.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Writer.Flush(ctx); err != nil {
		log.Error().Err(err).Msg("failed to flush pending writes")
	}
	stopWriter()

	if s.Mirror != nil {
		if err := s.Mirror.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close event mirror")
		}
	}
}

func run(ctx context.Context, cfg *Config) error {
	log.Info().Str("version", releaseVersion).Msg("starting debatelords")

	services, err := setupServices(ctx, cfg, clockwork.NewRealClock())
	if err != nil {
		return err
	}
	server := setupServer(cfg, services)

	// The writer outlives the request path so shutdown can flush it.
	writerCtx, stopWriter := context.WithCancel(context.Background())
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		services.Writer.Run(writerCtx)
	}()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return services.Gateway.Start(gctx)
	})

	g.Go(func() error {
		return services.Reconciler.Run(gctx)
	})

	g.Go(func() error {
		if err := services.Watcher.Run(gctx); err != nil {
			log.Error().Err(err).Str("path", cfg.DonationFile).Msg("donation file watcher stopped")
		}
		return nil
	})

	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("overlay server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	services.Close(stopWriter)
	<-writerDone

	log.Info().Msg("debatelords stopped")
	return err
}
