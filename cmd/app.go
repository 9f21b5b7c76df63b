package cmd

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"rental-scraper/config"
	"rental-scraper/metrics"
	"rental-scraper/notify"
	"rental-scraper/scraper"
	"rental-scraper/services"
	"rental-scraper/storage"
	"rental-scraper/utils"
)

// app holds the wired dependencies shared by the serve and scrape commands.
type app struct {
	cfg      *config.Config
	logger   *utils.Logger
	table    *config.AgencyTable
	registry *scraper.Registry
	metrics  *metrics.Metrics
	promReg  *prometheus.Registry
	cache    *services.ResultCache
	insights *services.InsightService
	writers  []storage.SnapshotWriter
}

// newApp loads configuration and wires the aggregation pipeline.
func newApp(ctx context.Context) (*app, error) {
	cfg := config.Load()
	if flagAgencies != "" {
		cfg.AgenciesFile = flagAgencies
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	logger := utils.NewLoggerWithLevel(cfg.LogLevel)

	table, err := config.LoadAgencies(cfg.AgenciesFile)
	if err != nil {
		return nil, fmt.Errorf("load agencies: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, table: table, insights: services.NewInsightService(logger)}

	a.promReg = prometheus.NewRegistry()
	a.promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.NewMetrics(a.promReg)

	a.registry, err = scraper.NewRegistry(cfg, table, logger)
	if err != nil {
		return nil, fmt.Errorf("build adapters: %w", err)
	}

	notifier, err := a.buildNotifier()
	if err != nil {
		a.close()
		return nil, err
	}

	sinks, err := a.buildSinks(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	agg := services.NewAggregator(a.registry.Adapters(), logger, a.metrics)
	detector := services.NewChangeDetector(notifier, logger, a.metrics)
	a.cache = services.NewResultCache(agg, detector, logger, a.metrics, sinks...)

	logger.Info("Config: %d agencies | max listings: %d | politeness: %v | price band: %d-%d",
		len(a.registry.Adapters()), cfg.MaxListings, cfg.PolitenessDelay, cfg.PriceMin, cfg.PriceMax)
	return a, nil
}

func (a *app) buildNotifier() (notify.Notifier, error) {
	notifiers := notify.Multi{notify.NewLogNotifier(a.logger)}
	if a.cfg.TelegramEnabled() {
		tg, err := notify.NewTelegramNotifier(a.cfg.TelegramToken, a.cfg.TelegramChatID, a.logger)
		if err != nil {
			return nil, fmt.Errorf("telegram notifier: %w", err)
		}
		notifiers = append(notifiers, tg)
		a.logger.Info("Telegram notifications enabled for chat %d", a.cfg.TelegramChatID)
	}
	return notifiers, nil
}

func (a *app) buildSinks(ctx context.Context) ([]services.Sink, error) {
	var sinks []services.Sink

	if a.cfg.CSVOutputPath != "" {
		csvWriter, err := storage.NewCSVWriter(a.cfg.CSVOutputPath)
		if err != nil {
			return nil, fmt.Errorf("csv export: %w", err)
		}
		a.writers = append(a.writers, csvWriter)
		sinks = append(sinks, csvWriter)
	}

	if a.cfg.ArchiveEnabled {
		pgWriter, err := storage.NewPostgresWriter(ctx, a.cfg.DSN())
		if err != nil {
			a.logger.Error("Failed to connect to PostgreSQL: %v", err)
			a.logger.Error("Check the POSTGRES_* settings or set ARCHIVE_POSTGRES=false")
			return nil, fmt.Errorf("postgres archive: %w", err)
		}
		a.writers = append(a.writers, pgWriter)
		sinks = append(sinks, pgWriter)
		a.logger.Info("Archiving snapshots to PostgreSQL (tables: listings, scrape_runs)")
	}

	return sinks, nil
}

func (a *app) close() {
	for _, w := range a.writers {
		if err := w.Close(); err != nil {
			a.logger.Warn("Closing writer: %v", err)
		}
	}
	if a.registry != nil {
		_ = a.registry.Close()
	}
	_ = a.logger.Sync()
}
