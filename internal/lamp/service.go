package lamp

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/lampd/internal/api"
	"github.com/danmuck/lampd/internal/config"
	"github.com/danmuck/lampd/internal/feed"
	"github.com/danmuck/lampd/internal/observability"
	"github.com/danmuck/lampd/internal/store"
	"github.com/rs/zerolog"
)

// NoticeFeedDisconnected is surfaced when the broker connection drops;
// the drop is never swallowed silently.
const NoticeFeedDisconnected = "Device feed disconnected"

const heartbeatInterval = 30 * time.Second

// Service wires the daemon together: persistence gateway, reconciler,
// feed subscription, and the boundary API, with signal-driven shutdown
// and guaranteed feed teardown.
type Service struct {
	cfg        config.Config
	log        zerolog.Logger
	banner     *Banner
	history    *History
	reconciler *Reconciler
	feedClient *feed.Client
	api        *api.Server
}

func NewService(cfg config.Config, logger zerolog.Logger) (*Service, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	gateway, err := store.NewGateway(store.GatewayConfig{
		BaseURL:        cfg.StoreURL,
		RequestTimeout: cfg.RequestTimeout(),
	})
	if err != nil {
		return nil, err
	}

	banner := NewBanner()
	history := NewHistory()
	reconciler := NewReconciler(gateway, history, banner, logger)

	feedCfg := feed.DefaultClientConfig()
	feedCfg.BrokerURL = cfg.BrokerURL()
	feedCfg.Topic = cfg.Topic
	feedCfg.OnConnectionLost = func(err error) {
		observability.RecordFeedDisconnect()
		banner.Notify(NoticeFeedDisconnected)
	}
	feedClient, err := feed.NewClient(feedCfg, reconciler.Submit, logger)
	if err != nil {
		return nil, err
	}

	apiServer := api.New(api.Config{
		ListenAddr:  cfg.ListenAddr,
		CorsOrigins: cfg.CorsOrigins,
	}, reconciler, history, banner, logger)

	return &Service{
		cfg:        cfg,
		log:        logger,
		banner:     banner,
		history:    history,
		reconciler: reconciler,
		feedClient: feedClient,
		api:        apiServer,
	}, nil
}

// Run blocks until process signal shutdown.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.serve(ctx)
}

func (s *Service) serve(ctx context.Context) error {
	defer s.feedClient.Close()

	reconcilerErr := make(chan error, 1)
	go func() {
		reconcilerErr <- s.reconciler.Run(ctx)
	}()

	// A dead broker disables the feed, not the process: the boundary
	// API keeps serving the last authoritative state.
	if err := s.feedClient.Connect(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		observability.RecordFeedDisconnect()
		s.log.Error().Err(err).Str("broker", s.cfg.BrokerURL()).Msg("feed unreachable")
		s.banner.Notify(NoticeFeedDisconnected)
	} else {
		s.log.Info().
			Str("broker", s.cfg.BrokerURL()).
			Str("topic", s.cfg.Topic).
			Str("client_id", s.feedClient.ClientID()).
			Msg("feed connected")
	}

	apiErr := make(chan error, 1)
	go func() {
		apiErr <- s.api.Serve(ctx)
	}()
	s.log.Info().Str("addr", s.cfg.ListenAddr).Msg("boundary api listening")

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("shutdown")
			return nil
		case err := <-reconcilerErr:
			if err != nil {
				return err
			}
		case err := <-apiErr:
			if err != nil {
				return err
			}
		case <-ticker.C:
			s.log.Info().
				Bool("status", s.reconciler.Status()).
				Int("records", s.history.Len()).
				Bool("feed_connected", s.feedClient.Connected()).
				Msg("heartbeat")
		}
	}
}

// Reconciler exposes the core for the boundary and tests.
func (s *Service) Reconciler() *Reconciler {
	return s.reconciler
}

func (s *Service) History() *History {
	return s.history
}

func (s *Service) Banner() *Banner {
	return s.banner
}
