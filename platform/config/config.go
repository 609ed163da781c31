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

// JWTConfig provides JWT validation settings for middleware.
// Tokens are issued by the external identity service; this engine only
// validates them.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetAppBaseURL() string
}

// EmailConfig provides settings for outbound email.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetAdminEmail() string
	GetTrackingBaseURL() string
}

// SchedulerConfig provides settings for the asynq-backed batch orchestrator.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetJobScheduleFile() string
}

// ClassifierConfig provides settings for the external AI classifier.
type ClassifierConfig interface {
	GetClassifierBaseURL() string
	GetClassifierAPIKey() string
	GetClassifierTimeout() time.Duration
	GetClassifierRateLimit() float64
	GetGeminiAPIKey() string
	GetGeminiModel() string
}

// EngineConfig provides the business-tunable scoring and workflow constants.
// These are calibration values, surfaced as named settings rather than
// hardcoded in the services that use them.
type EngineConfig interface {
	GetAssignmentThreshold() int
	GetAIScoreStaleAfter() time.Duration
	GetStaleLeadDays() int
	GetEngagementWindowDays() int
	GetFollowUpAutoScheduleDays() int
	GetAbandonedCartAfter() time.Duration
}

// =============================================================================
// Config implementation
// =============================================================================

// Config holds all application configuration loaded from the environment.
type Config struct {
	Env string

	DatabaseURL string

	HTTPAddr     string
	CORSAllowAll bool
	CORSOrigins  []string
	AppBaseURL   string

	JWTAccessSecret string

	EmailEnabled     bool
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	EmailFromName    string
	EmailFromAddress string
	AdminEmail       string
	TrackingBaseURL  string

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int
	JobScheduleFile  string

	ClassifierBaseURL   string
	ClassifierAPIKey    string
	ClassifierTimeout   time.Duration
	ClassifierRateLimit float64
	GeminiAPIKey        string
	GeminiModel         string

	AssignmentThreshold      int
	AIScoreStaleAfter        time.Duration
	StaleLeadDays            int
	EngagementWindowDays     int
	FollowUpAutoScheduleDays int
	AbandonedCartAfter       time.Duration
}

// Load reads configuration from the environment, loading .env first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env: getEnv("APP_ENV", "development"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		CORSAllowAll: getBoolEnv("CORS_ALLOW_ALL", false),
		CORSOrigins:  splitCSV(os.Getenv("CORS_ORIGINS")),
		AppBaseURL:   strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:8080"), "/"),

		JWTAccessSecret: os.Getenv("JWT_ACCESS_SECRET"),

		EmailEnabled:     getBoolEnv("EMAIL_ENABLED", true),
		SMTPHost:         os.Getenv("SMTP_HOST"),
		SMTPPort:         getIntEnv("SMTP_PORT", 587),
		SMTPUsername:     os.Getenv("SMTP_USERNAME"),
		SMTPPassword:     os.Getenv("SMTP_PASSWORD"),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "LeadFlow"),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", "no-reply@localhost"),
		AdminEmail:       os.Getenv("ADMIN_EMAIL"),
		TrackingBaseURL:  strings.TrimRight(getEnv("TRACKING_BASE_URL", getEnv("APP_BASE_URL", "http://localhost:8080")), "/"),

		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisTLSInsecure: getBoolEnv("REDIS_TLS_INSECURE", false),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency: getIntEnv("ASYNQ_CONCURRENCY", 10),
		JobScheduleFile:  os.Getenv("JOB_SCHEDULE_FILE"),

		ClassifierBaseURL:   os.Getenv("CLASSIFIER_BASE_URL"),
		ClassifierAPIKey:    os.Getenv("CLASSIFIER_API_KEY"),
		ClassifierTimeout:   getDurationEnv("CLASSIFIER_TIMEOUT", 30*time.Second),
		ClassifierRateLimit: getFloatEnv("CLASSIFIER_RATE_LIMIT", 2.0),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		AssignmentThreshold:      getIntEnv("ASSIGNMENT_THRESHOLD", 70),
		AIScoreStaleAfter:        getDurationEnv("AI_SCORE_STALE_AFTER", 72*time.Hour),
		StaleLeadDays:            getIntEnv("STALE_LEAD_DAYS", 14),
		EngagementWindowDays:     getIntEnv("ENGAGEMENT_WINDOW_DAYS", 30),
		FollowUpAutoScheduleDays: getIntEnv("FOLLOWUP_AUTO_SCHEDULE_DAYS", 7),
		AbandonedCartAfter:       getDurationEnv("ABANDONED_CART_AFTER", 72*time.Hour),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

// =============================================================================
// Interface implementations
// =============================================================================

func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetAppBaseURL() string    { return c.AppBaseURL }

func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) GetAdminEmail() string       { return c.AdminEmail }
func (c *Config) GetTrackingBaseURL() string  { return c.TrackingBaseURL }

func (c *Config) GetRedisURL() string        { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool  { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string  { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int   { return c.AsynqConcurrency }
func (c *Config) GetJobScheduleFile() string { return c.JobScheduleFile }

func (c *Config) GetClassifierBaseURL() string        { return c.ClassifierBaseURL }
func (c *Config) GetClassifierAPIKey() string         { return c.ClassifierAPIKey }
func (c *Config) GetClassifierTimeout() time.Duration { return c.ClassifierTimeout }
func (c *Config) GetClassifierRateLimit() float64     { return c.ClassifierRateLimit }
func (c *Config) GetGeminiAPIKey() string             { return c.GeminiAPIKey }
func (c *Config) GetGeminiModel() string              { return c.GeminiModel }

func (c *Config) GetAssignmentThreshold() int          { return c.AssignmentThreshold }
func (c *Config) GetAIScoreStaleAfter() time.Duration  { return c.AIScoreStaleAfter }
func (c *Config) GetStaleLeadDays() int                { return c.StaleLeadDays }
func (c *Config) GetEngagementWindowDays() int         { return c.EngagementWindowDays }
func (c *Config) GetFollowUpAutoScheduleDays() int     { return c.FollowUpAutoScheduleDays }
func (c *Config) GetAbandonedCartAfter() time.Duration { return c.AbandonedCartAfter }

// =============================================================================
// Env helpers
// =============================================================================

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getIntEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getFloatEnv(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
