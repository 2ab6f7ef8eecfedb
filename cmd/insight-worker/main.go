package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	adpulseconfig "adpulse/internal/config"
	"adpulse/internal/insights"
	"adpulse/internal/metrics"
	"adpulse/internal/store"
	"adpulse/pkg/config"
	"adpulse/pkg/database"
	"adpulse/pkg/llm"
	"adpulse/pkg/logging"
	"adpulse/pkg/redis"
)

func main() {
	once := flag.Bool("once", false, "run one insight batch and exit")
	flag.Parse()

	// Setup logger
	logger := logging.NewLoggerWithService("insight-worker")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting AdPulse insight worker")

	cfg := adpulseconfig.LoadConfig()

	// Connect to database
	dbConfig := database.DefaultConfig()
	dbConfig.URL = cfg.DatabaseURL
	db := database.MustConnect(dbConfig, logger)
	defer func() { _ = db.Close() }()

	st := store.New(db)

	// Redis backs the per-org run guard; without it every run proceeds.
	var redisClient goredis.UniversalClient
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		client, err := redis.NewClientFromURL(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, insight run guard disabled")
		} else {
			redisClient = client
			defer func() { _ = client.Close() }()
		}
	}

	// The generator needs the structured completion mode.
	llmCfg := llm.LoadConfig()
	provider, err := llm.NewProvider(llmCfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create LLM provider")
	}
	structured, ok := provider.(llm.StructuredProvider)
	if !ok {
		logger.WithField("provider", llmCfg.Provider).Fatal("Provider has no structured completion mode")
	}

	rules, err := metrics.LoadRules(cfg.AnomalyRulesPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load anomaly rules")
	}
	collector := insights.NewCollector(st, metrics.NewDetector(rules), logger, insights.CollectorConfig{
		WindowDays:   cfg.WeeklyWindowDays,
		TopCampaigns: cfg.TopCampaigns,
	})
	guard := insights.NewRunGuard(redisClient, cfg.InsightGuardTTL)
	generator := insights.NewGenerator(st, collector, structured, guard, logger, cfg.InsightOrgWorkers)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := generator.Run(ctx); err != nil {
		logger.WithError(err).Error("Insight batch failed")
	}
	if *once {
		logger.Info("Single run complete, exiting")
		return
	}

	ticker := time.NewTicker(cfg.InsightInterval)
	defer ticker.Stop()
	logger.WithField("interval", cfg.InsightInterval.String()).Info("Insight worker running")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down insight worker")
			return
		case <-ticker.C:
			if err := generator.Run(ctx); err != nil {
				logger.WithError(err).Error("Insight batch failed")
			}
		}
	}
}
