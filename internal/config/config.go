package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/censoc-variation-service/internal/domain"
	"github.com/couchcryptid/censoc-variation-service/internal/seasonal"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Variation report settings.
	ReportInterval   time.Duration
	Strata           domain.Strata
	LeapRule         string
	EstimatorWorkers int
	DeathYearMin     int
	DeathYearMax     int
	AgeGroupsFile    string
	AgeGroups        domain.AgeGroups

	// Optional stores. An empty address disables the store.
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	ClickHouseAddr     string
	ClickHouseUsername string
	ClickHousePassword string
	ClickHouseDatabase string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	reportInterval, err := parsePositiveDuration("REPORT_INTERVAL", "30s")
	if err != nil {
		return nil, err
	}

	strata, err := domain.ParseStrata(os.Getenv("STRATA"))
	if err != nil {
		return nil, fmt.Errorf("invalid STRATA: %w", err)
	}

	leapRule := sharedcfg.EnvOrDefault("LEAP_RULE", seasonal.RuleGregorian)
	if _, ok := seasonal.ParseLeapRule(leapRule); !ok {
		return nil, fmt.Errorf("invalid LEAP_RULE %q: must be %s or %s", leapRule, seasonal.RuleGregorian, seasonal.RuleLegacy)
	}

	workers, err := parsePositiveInt("ESTIMATOR_WORKERS", 4)
	if err != nil {
		return nil, err
	}
	minYear, err := parseNonNegativeInt("DEATH_YEAR_MIN", 1988)
	if err != nil {
		return nil, err
	}
	maxYear, err := parseNonNegativeInt("DEATH_YEAR_MAX", 2005)
	if err != nil {
		return nil, err
	}
	if minYear > 0 && maxYear > 0 && minYear > maxYear {
		return nil, fmt.Errorf("invalid death year window: DEATH_YEAR_MIN %d > DEATH_YEAR_MAX %d", minYear, maxYear)
	}

	redisDB, err := parseNonNegativeInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}

	ageGroupsFile := os.Getenv("AGE_GROUPS_FILE")
	groups := domain.DefaultAgeGroups()
	if ageGroupsFile != "" {
		groups, err = LoadAgeGroups(ageGroupsFile)
		if err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "censoc-death-records"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "censoc-period-variations"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "censoc-variation"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		ReportInterval:   reportInterval,
		Strata:           strata,
		LeapRule:         leapRule,
		EstimatorWorkers: workers,
		DeathYearMin:     minYear,
		DeathYearMax:     maxYear,
		AgeGroupsFile:    ageGroupsFile,
		AgeGroups:        groups,

		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            redisDB,
		ClickHouseAddr:     os.Getenv("CLICKHOUSE_ADDR"),
		ClickHouseUsername: sharedcfg.EnvOrDefault("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: os.Getenv("CLICKHOUSE_PASSWORD"),
		ClickHouseDatabase: sharedcfg.EnvOrDefault("CLICKHOUSE_DATABASE", "default"),
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}

	return cfg, nil
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	n, err := parseIntEnv(key, fallback)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parseNonNegativeInt(key string, fallback int) (int, error) {
	n, err := parseIntEnv(key, fallback)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: must be a non-negative integer", key)
	}
	return n, nil
}

func parseIntEnv(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	return strconv.Atoi(s)
}
