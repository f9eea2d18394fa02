// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSOrigins() []string
}

// SchedulerConfig provides settings for the asynq scheduler and Redis.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetWeeklyInferenceCron() string
	GetNightlyScoringCron() string
	GetSchedulerTimezone() string
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	IsMinIOEnabled() bool
}

// ForecastConfig provides settings for the demand-surge pipeline.
type ForecastConfig interface {
	GetLookbackWeeks() int
	GetPercentileThreshold() float64
	GetMinTrainingSamples() int
	GetCVSplits() int
	GetFeatureLookbackDays() int
	GetModelSelection() string
	GetRegionConcurrency() int
	GetStoreTimeout() time.Duration
	GetBatchBudget() time.Duration
	GetRegionRate() float64
	GetModelBucket() string
	GetReportBucket() string
	GetForecastCacheTTL() time.Duration
}

// ScoringConfig provides settings for the lead scoring engine.
type ScoringConfig interface {
	GetFeedbackHalfLifeDays() float64
	GetCalibrationMinStateSamples() int
	GetCalibrationMinRegionSamples() int
	GetScoringBatchSize() int
}

// EmailConfig provides SMTP delivery settings for operator notifications.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromAddress() string
	GetEmailFromName() string
	GetOperatorEmails() []string
}

// CensusConfig provides settings for the census demographics client.
type CensusConfig interface {
	GetCensusAPIKey() string
	GetCensusACSYear() int
}

// RegionsConfig provides the location of the region registry file.
type RegionsConfig interface {
	GetRegionsFile() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                 string
	HTTPAddr            string
	CORSOrigins         []string
	DatabaseURL         string
	MigrationsDir       string
	RegionsFile         string
	RedisURL            string
	RedisTLSInsecure    bool
	AsynqQueue          string
	AsynqConcurrency    int
	WeeklyInferenceCron string
	NightlyScoringCron  string
	SchedulerTimezone   string

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOUseSSL    bool
	ModelBucket    string
	ReportBucket   string

	LookbackWeeks       int
	PercentileThreshold float64
	MinTrainingSamples  int
	CVSplits            int
	FeatureLookbackDays int
	ModelSelection      string
	RegionConcurrency   int
	StoreTimeout        time.Duration
	BatchBudget         time.Duration
	RegionRate          float64
	ForecastCacheTTL    time.Duration

	FeedbackHalfLifeDays        float64
	CalibrationMinStateSamples  int
	CalibrationMinRegionSamples int
	ScoringBatchSize            int

	EmailEnabled     bool
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	EmailFromAddress string
	EmailFromName    string
	OperatorEmails   []string

	CensusAPIKey  string
	CensusACSYear int
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string            { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool      { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string      { return c.AsynqQueue }
func (c *Config) GetAsynqConcurrency() int       { return c.AsynqConcurrency }
func (c *Config) GetWeeklyInferenceCron() string { return c.WeeklyInferenceCron }
func (c *Config) GetNightlyScoringCron() string  { return c.NightlyScoringCron }
func (c *Config) GetSchedulerTimezone() string   { return c.SchedulerTimezone }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string  { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool      { return c.MinIOUseSSL }
func (c *Config) IsMinIOEnabled() bool      { return c.MinIOEndpoint != "" }

// ForecastConfig implementation
func (c *Config) GetLookbackWeeks() int              { return c.LookbackWeeks }
func (c *Config) GetPercentileThreshold() float64    { return c.PercentileThreshold }
func (c *Config) GetMinTrainingSamples() int         { return c.MinTrainingSamples }
func (c *Config) GetCVSplits() int                   { return c.CVSplits }
func (c *Config) GetFeatureLookbackDays() int        { return c.FeatureLookbackDays }
func (c *Config) GetModelSelection() string          { return c.ModelSelection }
func (c *Config) GetRegionConcurrency() int          { return c.RegionConcurrency }
func (c *Config) GetStoreTimeout() time.Duration     { return c.StoreTimeout }
func (c *Config) GetBatchBudget() time.Duration      { return c.BatchBudget }
func (c *Config) GetRegionRate() float64             { return c.RegionRate }
func (c *Config) GetModelBucket() string             { return c.ModelBucket }
func (c *Config) GetReportBucket() string            { return c.ReportBucket }
func (c *Config) GetForecastCacheTTL() time.Duration { return c.ForecastCacheTTL }

// ScoringConfig implementation
func (c *Config) GetFeedbackHalfLifeDays() float64    { return c.FeedbackHalfLifeDays }
func (c *Config) GetCalibrationMinStateSamples() int  { return c.CalibrationMinStateSamples }
func (c *Config) GetCalibrationMinRegionSamples() int { return c.CalibrationMinRegionSamples }
func (c *Config) GetScoringBatchSize() int            { return c.ScoringBatchSize }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetOperatorEmails() []string { return c.OperatorEmails }

// CensusConfig implementation
func (c *Config) GetCensusAPIKey() string { return c.CensusAPIKey }
func (c *Config) GetCensusACSYear() int   { return c.CensusACSYear }

// RegionsConfig implementation
func (c *Config) GetRegionsFile() string { return c.RegionsFile }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:                 getEnv("APP_ENV", "development"),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		CORSOrigins:         splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200")),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		MigrationsDir:       getEnv("MIGRATIONS_DIR", "migrations"),
		RegionsFile:         getEnv("REGIONS_FILE", "regions.yaml"),
		RedisURL:            getEnv("REDIS_URL", ""),
		RedisTLSInsecure:    strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueue:          getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:    mustInt(getEnv("ASYNQ_CONCURRENCY", "4")),
		WeeklyInferenceCron: getEnv("WEEKLY_INFERENCE_CRON", "0 4 * * 1"),
		NightlyScoringCron:  getEnv("NIGHTLY_SCORING_CRON", "0 2 * * *"),
		SchedulerTimezone:   getEnv("SCHEDULER_TIMEZONE", "UTC"),

		MinIOEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:    strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		ModelBucket:    getEnv("SURGE_MODEL_BUCKET", "surge-models"),
		ReportBucket:   getEnv("SURGE_REPORT_BUCKET", "surge-reports"),

		LookbackWeeks:       mustInt(getEnv("SURGE_LOOKBACK_WEEKS", "156")),
		PercentileThreshold: mustFloat(getEnv("SURGE_PERCENTILE_THRESHOLD", "90")),
		MinTrainingSamples:  mustInt(getEnv("SURGE_MIN_TRAINING_SAMPLES", "50")),
		CVSplits:            mustInt(getEnv("SURGE_CV_SPLITS", "5")),
		FeatureLookbackDays: mustInt(getEnv("SURGE_FEATURE_LOOKBACK_DAYS", "30")),
		ModelSelection:      getEnv("SURGE_MODEL_SELECTION", "most_recent"),
		RegionConcurrency:   mustInt(getEnv("SURGE_REGION_CONCURRENCY", "1")),
		StoreTimeout:        mustDuration(getEnv("SURGE_STORE_TIMEOUT", "30s")),
		BatchBudget:         mustDuration(getEnv("SURGE_BATCH_BUDGET", "2h")),
		RegionRate:          mustFloat(getEnv("SURGE_REGION_RATE", "0")),
		ForecastCacheTTL:    mustDuration(getEnv("FORECAST_CACHE_TTL", "168h")),

		FeedbackHalfLifeDays:        mustFloat(getEnv("FEEDBACK_HALF_LIFE_DAYS", "90")),
		CalibrationMinStateSamples:  mustInt(getEnv("CALIBRATION_MIN_STATE_SAMPLES", "10")),
		CalibrationMinRegionSamples: mustInt(getEnv("CALIBRATION_MIN_REGION_SAMPLES", "20")),
		ScoringBatchSize:            mustInt(getEnv("SCORING_BATCH_SIZE", "500")),

		EmailEnabled:     strings.EqualFold(getEnv("EMAIL_ENABLED", "false"), "true"),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", "forecasts@localhost"),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Surge Forecasts"),
		OperatorEmails:   splitCSV(getEnv("OPERATOR_EMAILS", "")),

		CensusAPIKey:  getEnv("CENSUS_API_KEY", ""),
		CensusACSYear: mustInt(getEnv("CENSUS_ACS_YEAR", "2023")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.LookbackWeeks <= 0 {
		return nil, fmt.Errorf("SURGE_LOOKBACK_WEEKS must be positive")
	}
	if cfg.PercentileThreshold < 0 || cfg.PercentileThreshold > 100 {
		return nil, fmt.Errorf("SURGE_PERCENTILE_THRESHOLD must be within [0, 100]")
	}
	if cfg.CVSplits < 2 {
		return nil, fmt.Errorf("SURGE_CV_SPLITS must be at least 2")
	}
	if cfg.FeedbackHalfLifeDays <= 0 {
		return nil, fmt.Errorf("FEEDBACK_HALF_LIFE_DAYS must be positive")
	}
	if cfg.EmailEnabled && cfg.SMTPHost == "" {
		return nil, fmt.Errorf("SMTP_HOST is required when EMAIL_ENABLED is true")
	}
	switch cfg.ModelSelection {
	case "most_recent", "best_cv_auc":
	default:
		return nil, fmt.Errorf("SURGE_MODEL_SELECTION must be most_recent or best_cv_auc")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}
