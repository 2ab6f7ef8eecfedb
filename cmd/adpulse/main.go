package main

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"adpulse/internal/chat"
	adpulseconfig "adpulse/internal/config"
	"adpulse/internal/connectors"
	"adpulse/internal/insights"
	"adpulse/internal/metrics"
	"adpulse/internal/store"
	"adpulse/pkg/config"
	"adpulse/pkg/database"
	"adpulse/pkg/llm"
	"adpulse/pkg/logging"
	"adpulse/pkg/middleware"
	"adpulse/pkg/monitoring"
	"adpulse/pkg/redis"
	"adpulse/pkg/server"
	"adpulse/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("adpulse")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting AdPulse (Advertising Analytics API)")

	cfg := adpulseconfig.LoadConfig()

	// Connect to database
	dbConfig := database.DefaultConfig()
	dbConfig.URL = cfg.DatabaseURL
	db := database.MustConnect(dbConfig, logger)
	defer func() { _ = db.Close() }()

	st := store.New(db)

	// Redis is optional; without it only the insight run guard degrades.
	var redisClient goredis.UniversalClient
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		client, err := redis.NewClientFromURL(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, continuing without it")
		} else {
			redisClient = client
			defer func() { _ = client.Close() }()
		}
	}

	// LLM provider
	llmCfg := llm.LoadConfig()
	provider, err := llm.NewProvider(llmCfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create LLM provider")
	}
	structured, hasStructured := provider.(llm.StructuredProvider)
	if !hasStructured {
		logger.WithField("provider", llmCfg.Provider).Warn("Provider has no structured mode, fallback answers and auto-titles disabled")
	}

	// Anomaly rules and snapshot collectors
	rules, err := metrics.LoadRules(cfg.AnomalyRulesPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load anomaly rules")
	}
	detector := metrics.NewDetector(rules)
	weekly := insights.NewCollector(st, detector, logger, insights.CollectorConfig{
		WindowDays:   cfg.WeeklyWindowDays,
		TopCampaigns: cfg.TopCampaigns,
	})
	monthly := insights.NewCollector(st, detector, logger, insights.CollectorConfig{
		WindowDays:   cfg.MonthlyWindowDays,
		TopCampaigns: cfg.TopCampaigns,
	})

	// Google Ads connector for structured queries
	var queries connectors.QueryRunner
	if cfg.GoogleAdsAccessToken != "" && cfg.GoogleAdsDeveloperToken != "" {
		queries = connectors.NewGoogleAds(connectors.GoogleAdsConfig{
			BaseURL:        cfg.GoogleAdsBaseURL,
			AccessToken:    cfg.GoogleAdsAccessToken,
			DeveloperToken: cfg.GoogleAdsDeveloperToken,
		}, logger)
	} else {
		logger.Warn("Google Ads credentials unset, structured query tool disabled")
	}

	// Chat pipeline
	dispatcher := chat.NewDispatcher(chat.DispatcherConfig{
		Store:   st,
		Weekly:  weekly,
		Monthly: monthly,
		Queries: queries,
		Logger:  logger,
	})
	var fallbacks *chat.FallbackChain
	var titler *chat.Titler
	if hasStructured {
		fallbacks = chat.NewFallbackChain(chat.FallbackConfig{
			Structured: structured,
			Queries:    queries,
			Accounts:   st,
			Collector:  weekly,
			Logger:     logger,
		})
		titler = chat.NewTitler(structured, st, logger)
	}
	orchestrator := chat.NewOrchestrator(chat.OrchestratorConfig{
		Provider:        provider,
		Dispatcher:      dispatcher,
		Threads:         st,
		Enricher:        chat.NewEnricher(st, logger),
		Fallbacks:       fallbacks,
		Titler:          titler,
		Logger:          logger,
		MaxRounds:       cfg.MaxToolRounds,
		ToolConcurrency: cfg.ToolConcurrency,
	})

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("adpulse", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("adpulse", version.Version, version.GitCommit)

	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	if redisClient != nil {
		healthChecker.AddCheck("redis", monitoring.RedisHealthCheck(redisClient))
	}
	healthChecker.AddCheck("llm", monitoring.LLMProviderHealthCheck(llmCfg.Provider, llm.Ping(llmCfg)))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL": cfg.DatabaseURL,
	}))

	// Router: chat API behind the identity middleware, health/metrics open
	router := server.SetupServiceRouter(logger, "adpulse", healthChecker, metricsCollector)
	api := router.Group("")
	api.Use(middleware.IdentityMiddleware())
	chat.RegisterRoutes(api, chat.NewHandler(orchestrator, st, logger))

	// Start HTTP server with graceful shutdown
	serverConfig := server.DefaultConfig("adpulse", cfg.Port)
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}
}
