package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/vigil/internal/clients/marketdata"
	"github.com/aristath/vigil/internal/clients/notify"
	"github.com/aristath/vigil/internal/config"
	"github.com/aristath/vigil/internal/events"
	"github.com/aristath/vigil/internal/modules/alerting"
	"github.com/aristath/vigil/internal/modules/compliance"
	"github.com/aristath/vigil/internal/modules/history"
	"github.com/aristath/vigil/internal/modules/holdings"
	"github.com/aristath/vigil/internal/reliability"
)

// trendSeedLimit caps how many persisted trend rollups are loaded into the
// in-memory store at startup.
const trendSeedLimit = 500

// InitializeServices wires the event bus, the time-series store with its
// durable mirror, the compliance engine, alerting, the market data
// provider and the backup services.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	// Event bus
	container.EventBus = events.NewBus()
	container.EventManager = events.NewManager(container.EventBus, log)

	// Durable mirror worker feeding the history database
	container.MirrorWorker = history.NewMirrorWorker(container.MirrorRepo, cfg.MirrorQueueSize, log)

	// Bounded in-memory time-series store
	container.HistoryStore = history.NewStore(history.Limits{
		MaxSnapshots:    cfg.MaxSnapshots,
		MaxBreachEvents: cfg.MaxBreachEvents,
		MaxAuditEntries: cfg.MaxAuditEntries,
		MaxTrendPoints:  cfg.MaxTrendPoints,
	}, container.MirrorWorker, log)

	// Seed trend rollups from the mirror so dashboards keep continuity
	// across restarts.
	points, err := container.MirrorRepo.RecentTrendPoints(trendSeedLimit)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load persisted trend points, starting empty")
	} else if len(points) > 0 {
		container.HistoryStore.SeedTrendPoints(points)
		log.Info().Int("count", len(points)).Msg("Seeded trend points from mirror")
	}

	// Compliance engine
	container.Calculator = compliance.NewCalculator()

	// Holdings service
	container.HoldingsService = holdings.NewService(
		container.HoldingsRepo,
		container.Calculator,
		container.HistoryStore,
		container.EventManager,
		log,
	)
	if err := container.HoldingsService.Load(); err != nil {
		return fmt.Errorf("failed to load holdings: %w", err)
	}

	// Notification sender: webhook when configured, log-only otherwise
	if cfg.NotifyWebhookURL != "" {
		container.Sender = notify.NewWebhookSender(cfg.NotifyWebhookURL, log)
	} else {
		container.Sender = notify.NewLogSender(log)
	}

	// Alerting service, attached to the holdings recomputation loop
	alertingService, err := alerting.NewService(
		container.AlertingRepo,
		container.Sender,
		container.HistoryStore,
		container.EventManager,
		log,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize alerting service: %w", err)
	}
	container.AlertingService = alertingService
	container.HoldingsService.SetEvaluator(alertingService)

	// Market data provider
	switch cfg.FeedAdapter {
	case config.FeedAdapterFIXWebSocket:
		container.Provider = marketdata.NewFIXWebSocketProvider(
			cfg.FeedURL,
			container.HistoryStore,
			container.EventManager,
			log,
		)
	default:
		container.Provider = marketdata.NewMockProvider(log)
	}

	// Backup services; cloud replication only with credentials configured
	container.BackupService = reliability.NewBackupService(container.Databases(), log)
	if cfg.Backup != nil && cfg.Backup.Enabled {
		s3Client, err := reliability.NewS3Client(cfg.Backup, log)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize S3 client, cloud backup disabled")
		} else {
			container.CloudBackupService = reliability.NewCloudBackupService(
				s3Client,
				container.BackupService,
				cfg.DataDir,
				log,
			)
			log.Info().Msg("Cloud backup enabled")
		}
	}

	log.Info().
		Str("feed_adapter", cfg.FeedAdapter).
		Msg("Services initialized")

	return nil
}
