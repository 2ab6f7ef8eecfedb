package config

import (
	"time"

	"adpulse/pkg/config"
)

// Config stores environment configuration shared by the AdPulse binaries.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	// Chat orchestration.
	MaxToolRounds   int
	ToolConcurrency int

	// Snapshot windows.
	WeeklyWindowDays  int
	MonthlyWindowDays int
	TopCampaigns      int
	AnomalyRulesPath  string

	// Insight worker.
	InsightInterval   time.Duration
	InsightGuardTTL   time.Duration
	InsightOrgWorkers int

	// Google Ads connector.
	GoogleAdsBaseURL        string
	GoogleAdsAccessToken    string
	GoogleAdsDeveloperToken string
}

// LoadConfig loads the AdPulse configuration from environment variables.
func LoadConfig() Config {
	return Config{
		Port:        config.GetEnv("PORT", "18020"),
		DatabaseURL: config.RequireEnv("DATABASE_URL"),
		RedisURL:    config.GetEnv("REDIS_URL", ""),

		MaxToolRounds:   config.GetEnvInt("CHAT_MAX_TOOL_ROUNDS", 0),
		ToolConcurrency: config.GetEnvInt("CHAT_TOOL_CONCURRENCY", 0),

		WeeklyWindowDays:  config.GetEnvInt("SNAPSHOT_WEEKLY_WINDOW_DAYS", 7),
		MonthlyWindowDays: config.GetEnvInt("SNAPSHOT_MONTHLY_WINDOW_DAYS", 30),
		TopCampaigns:      config.GetEnvInt("SNAPSHOT_TOP_CAMPAIGNS", 0),
		AnomalyRulesPath:  config.GetEnv("ANOMALY_RULES_PATH", ""),

		InsightInterval:   config.GetEnvMinutes("INSIGHT_INTERVAL_MINUTES", 360*time.Minute),
		InsightGuardTTL:   config.GetEnvMinutes("INSIGHT_GUARD_TTL_MINUTES", 0),
		InsightOrgWorkers: config.GetEnvInt("INSIGHT_ORG_WORKERS", 0),

		GoogleAdsBaseURL:        config.GetEnv("GOOGLE_ADS_API_URL", ""),
		GoogleAdsAccessToken:    config.GetEnv("GOOGLE_ADS_ACCESS_TOKEN", ""),
		GoogleAdsDeveloperToken: config.GetEnv("GOOGLE_ADS_DEVELOPER_TOKEN", ""),
	}
}
