package config

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	CORS       CORSConfig
	Log        LogConfig
	Progress   ProgressConfig
	Submission SubmissionConfig
	Onboarding OnboardingConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ProgressConfig governs caching for progress aggregation.
type ProgressConfig struct {
	CacheEnabled   bool
	CacheTTL       time.Duration
	RefreshWorkers int
}

// SubmissionConfig tunes the submission write path.
type SubmissionConfig struct {
	MaxRetries int
}

// OnboardingConfig describes the default schedule created for new patients.
type OnboardingConfig struct {
	DefaultScheduleWeeks     int
	DefaultSessionFrequency  int
	DefaultSessionUnit       string
	DefaultSurveyFrequency   int
	DefaultSurveyUnit        string
	DefaultActiveWeekdays    []int
	DefaultExpectedSessions  int
	AutoCreateScheduleOnJoin bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Progress = ProgressConfig{
		CacheEnabled:   v.GetBool("PROGRESS_CACHE_ENABLED"),
		CacheTTL:       parseDuration(v.GetString("PROGRESS_CACHE_TTL"), 10*time.Minute),
		RefreshWorkers: v.GetInt("PROGRESS_REFRESH_WORKERS"),
	}

	cfg.Submission = SubmissionConfig{
		MaxRetries: v.GetInt("SUBMISSION_MAX_RETRIES"),
	}

	cfg.Onboarding = OnboardingConfig{
		DefaultScheduleWeeks:     v.GetInt("ONBOARDING_SCHEDULE_WEEKS"),
		DefaultSessionFrequency:  v.GetInt("ONBOARDING_SESSION_FREQUENCY"),
		DefaultSessionUnit:       v.GetString("ONBOARDING_SESSION_UNIT"),
		DefaultSurveyFrequency:   v.GetInt("ONBOARDING_SURVEY_FREQUENCY"),
		DefaultSurveyUnit:        v.GetString("ONBOARDING_SURVEY_UNIT"),
		DefaultActiveWeekdays:    splitInts(v.GetString("ONBOARDING_ACTIVE_WEEKDAYS")),
		DefaultExpectedSessions:  v.GetInt("ONBOARDING_EXPECTED_SESSIONS"),
		AutoCreateScheduleOnJoin: v.GetBool("ONBOARDING_AUTO_SCHEDULE"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "melodia")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("PROGRESS_CACHE_ENABLED", false)
	v.SetDefault("PROGRESS_CACHE_TTL", "10m")
	v.SetDefault("PROGRESS_REFRESH_WORKERS", 1)

	v.SetDefault("SUBMISSION_MAX_RETRIES", 3)

	v.SetDefault("ONBOARDING_SCHEDULE_WEEKS", 8)
	v.SetDefault("ONBOARDING_SESSION_FREQUENCY", 1)
	v.SetDefault("ONBOARDING_SESSION_UNIT", "daily")
	v.SetDefault("ONBOARDING_SURVEY_FREQUENCY", 1)
	v.SetDefault("ONBOARDING_SURVEY_UNIT", "weekly")
	v.SetDefault("ONBOARDING_ACTIVE_WEEKDAYS", "1,2,3,4,5")
	v.SetDefault("ONBOARDING_EXPECTED_SESSIONS", 40)
	v.SetDefault("ONBOARDING_AUTO_SCHEDULE", true)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

func splitInts(raw string) []int {
	parts := splitAndTrim(raw)
	if len(parts) == 0 {
		return nil
	}
	result := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		result = append(result, n)
	}
	return result
}
