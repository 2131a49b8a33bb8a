package main

import (
	"fmt"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"lotradar/server/config"
	"lotradar/server/internal/api"
	"lotradar/server/internal/dedup"
	"lotradar/server/internal/export"
	"lotradar/server/internal/geocoding"
	"lotradar/server/internal/offers"
	"lotradar/server/internal/pipeline"
	"lotradar/server/internal/queue"
	"lotradar/server/internal/scheduler"
	"lotradar/server/internal/scraping"
	"lotradar/server/internal/telegram"
	"lotradar/server/internal/valuation"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment as is")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	thresholds, err := config.LoadThresholds(cfg.ThresholdsPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load valuation thresholds")
	}

	ledger, err := dedup.NewLedger(cfg.Storage.DedupPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open deduplication ledger")
	}
	defer ledger.Close()

	archive, err := offers.NewArchive(cfg.Storage.ArchivePath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open offer archive")
	}

	store := offers.NewStore(logger)
	engine := valuation.NewEngine(nil, thresholds, logger)

	valuationPipeline := pipeline.New(store, engine, ledger, logger)
	if !cfg.Run.DisableGeocoder {
		valuationPipeline.WithGeocoder(geocoding.NewGeocoder(logger, cfg.Storage.GeocodeCacheDir))
	}

	valuationPipeline.AddExportSink(export.NewCSVSink(cfg.Storage.ExportDir, logger))
	valuationPipeline.AddExportSink(export.NewArchiveSink(archive))

	if cfg.Telegram.Enabled {
		valuationPipeline.SetNotificationSink(telegram.NewService(telegram.Config{
			BotToken:  cfg.Telegram.BotToken,
			ChatID:    cfg.Telegram.ChatID,
			IsEnabled: true,
		}, logger))
	}

	offerQueue := queue.NewOfferQueue(cfg.Run.QueueSize, logger)
	offerQueue.Subscribe(valuationPipeline.HandleOfferBatch)
	offerQueue.Subscribe(archive.SaveOffers)
	offerQueue.Start()
	defer offerQueue.Close()

	collector := scraping.NewCollectorManager(offerQueue, logger)

	handler := api.NewHandler(archive, ledger, nil, logger)

	runValuation := func() error {
		store.Reset()

		lots, err := collector.RunFull(cfg.Run.Region, nil)
		if err != nil {
			return fmt.Errorf("collection failed: %w", err)
		}

		report, err := valuationPipeline.ProcessLots(lots)
		if report != nil {
			handler.SetLastReport(report)
		}
		return err
	}

	jobs := scheduler.New(runValuation, ledger, scheduler.Options{
		DailyRunTime:  cfg.Run.DailyRunTime,
		CleanupTime:   cfg.Run.CleanupTime,
		RetentionDays: cfg.Run.DedupRetentionDays,
		RunOnStart:    cfg.Run.RunOnStart,
	}, logger)
	if err := jobs.Start(); err != nil {
		logger.WithError(err).Fatal("Failed to start scheduler")
	}
	defer jobs.Stop()

	handler.SetRunner(jobs)

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type"},
	}))
	api.SetupRoutes(router, handler)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Infof("Starting server on %s", addr)
	if err := router.Run(addr); err != nil {
		logger.WithError(err).Fatal("Server failed to start")
	}
}
