package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL  string
	RedisURL     string
	KafkaBrokers []string
	MaxDBConns   int32

	KafkaConsumerGroup    string
	KafkaTopicPaymentJobs string
	KafkaTopicDeadLetter  string

	OutboxPollInterval   time.Duration
	OutboxBatchSize      int
	OutboxClaimTTL       time.Duration
	OutboxMaxRetries     int
	ConsumerPollInterval time.Duration
	JobMaxAttempts       int

	WaitListPollInterval  time.Duration
	WaitListBatchSize     int
	WaitListRetryInterval time.Duration
	WaitListMaxAttempts   int

	Currency                   string
	WaitListThreshold          time.Duration
	ShortSlotWaitListThreshold time.Duration
	AuthorizationCutoff        time.Duration
	RateCacheTTL               time.Duration
	PricingCutover             time.Time
	LegacyGstCalculatedBefore  bool
	StandardHoursStart         int
	StandardHoursEnd           int
	Timezone                   string
	WeekendsAfterHours         bool

	GatewayBaseURL string
	GatewayAPIKey  string
	GatewayTimeout time.Duration

	AdminJWTSecret string
	AdminJWTIssuer string
}

type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL           string   `yaml:"postgres_url"`
		RedisURL              string   `yaml:"redis_url"`
		KafkaBrokers          []string `yaml:"kafka_brokers"`
		KafkaConsumerGroup    string   `yaml:"kafka_consumer_group"`
		KafkaTopicPaymentJobs string   `yaml:"kafka_topic_payment_jobs"`
		KafkaTopicDeadLetter  string   `yaml:"kafka_topic_dead_letter"`
		GatewayBaseURL        string   `yaml:"gateway_base_url"`
		GatewayTimeoutSeconds int      `yaml:"gateway_timeout_seconds"`
	} `yaml:"dependencies"`
	Payments struct {
		Currency                     string `yaml:"currency"`
		WaitListThresholdDays        int    `yaml:"wait_list_threshold_days"`
		ShortSlotReleaseDays         int    `yaml:"short_slot_release_days"`
		AuthorizationCutoffMinutes   int    `yaml:"authorization_cutoff_minutes"`
		RateCacheTTLHours            int    `yaml:"rate_cache_ttl_hours"`
		PricingCutover               string `yaml:"pricing_cutover"`
		LegacyGstCalculatedBefore    *bool  `yaml:"legacy_gst_calculated_before"`
		StandardHoursStart           int    `yaml:"standard_hours_start"`
		StandardHoursEnd             int    `yaml:"standard_hours_end"`
		Timezone                     string `yaml:"timezone"`
		WeekendsAfterHours           *bool  `yaml:"weekends_after_hours"`
		JobMaxAttempts               int    `yaml:"job_max_attempts"`
		WaitListPollSeconds          int    `yaml:"wait_list_poll_seconds"`
		WaitListRetryIntervalMinutes int    `yaml:"wait_list_retry_interval_minutes"`
		WaitListMaxAttempts          int    `yaml:"wait_list_max_attempts"`
	} `yaml:"payments"`
}

const dateLayout = "2006-01-02"

func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:                  "M15-Appointment-Payment-Service",
		HTTPPort:                   8080,
		GRPCPort:                   9090,
		MaxDBConns:                 20,
		KafkaConsumerGroup:         "m15-appointment-payment-service",
		KafkaTopicPaymentJobs:      "payment.jobs",
		KafkaTopicDeadLetter:       "payment.jobs.dlq",
		OutboxPollInterval:         2 * time.Second,
		OutboxBatchSize:            100,
		OutboxClaimTTL:             30 * time.Second,
		OutboxMaxRetries:           5,
		ConsumerPollInterval:       time.Second,
		JobMaxAttempts:             5,
		WaitListPollInterval:       time.Minute,
		WaitListBatchSize:          100,
		WaitListRetryInterval:      time.Hour,
		WaitListMaxAttempts:        10,
		Currency:                   "AUD",
		WaitListThreshold:          7 * 24 * time.Hour,
		ShortSlotWaitListThreshold: 2 * 24 * time.Hour,
		AuthorizationCutoff:        time.Hour,
		RateCacheTTL:               6 * time.Hour,
		PricingCutover:             time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC),
		LegacyGstCalculatedBefore:  true,
		StandardHoursStart:         9,
		StandardHoursEnd:           18,
		Timezone:                   "Australia/Sydney",
		WeekendsAfterHours:         true,
		GatewayTimeout:             15 * time.Second,
		AdminJWTIssuer:             "m15-appointment-payment-service",
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if err := applyFile(&cfg, f); err != nil {
			return Config{}, err
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaConsumerGroup = envOrDefault("KAFKA_CONSUMER_GROUP", cfg.KafkaConsumerGroup)
	cfg.KafkaTopicPaymentJobs = envOrDefault("KAFKA_TOPIC_PAYMENT_JOBS", cfg.KafkaTopicPaymentJobs)
	cfg.KafkaTopicDeadLetter = envOrDefault("KAFKA_TOPIC_DEAD_LETTER", cfg.KafkaTopicDeadLetter)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxClaimTTL = time.Duration(envInt("OUTBOX_CLAIM_TTL_SECONDS", int(cfg.OutboxClaimTTL.Seconds()))) * time.Second
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)
	cfg.ConsumerPollInterval = time.Duration(envInt("CONSUMER_POLL_SECONDS", int(cfg.ConsumerPollInterval.Seconds()))) * time.Second
	cfg.JobMaxAttempts = envInt("JOB_MAX_ATTEMPTS", cfg.JobMaxAttempts)
	cfg.WaitListPollInterval = time.Duration(envInt("WAIT_LIST_POLL_SECONDS", int(cfg.WaitListPollInterval.Seconds()))) * time.Second
	cfg.WaitListBatchSize = envInt("WAIT_LIST_BATCH_SIZE", cfg.WaitListBatchSize)
	cfg.WaitListRetryInterval = time.Duration(envInt("WAIT_LIST_RETRY_INTERVAL_MINUTES", int(cfg.WaitListRetryInterval.Minutes()))) * time.Minute
	cfg.WaitListMaxAttempts = envInt("WAIT_LIST_MAX_ATTEMPTS", cfg.WaitListMaxAttempts)
	cfg.Currency = envOrDefault("PAYMENT_CURRENCY", cfg.Currency)
	cfg.WaitListThreshold = time.Duration(envInt("WAIT_LIST_THRESHOLD_DAYS", int(cfg.WaitListThreshold.Hours()/24))) * 24 * time.Hour
	cfg.ShortSlotWaitListThreshold = time.Duration(envInt("SHORT_SLOT_RELEASE_DAYS", int(cfg.ShortSlotWaitListThreshold.Hours()/24))) * 24 * time.Hour
	cfg.AuthorizationCutoff = time.Duration(envInt("AUTHORIZATION_CUTOFF_MINUTES", int(cfg.AuthorizationCutoff.Minutes()))) * time.Minute
	cfg.RateCacheTTL = time.Duration(envInt("RATE_CACHE_TTL_HOURS", int(cfg.RateCacheTTL.Hours()))) * time.Hour
	if raw := os.Getenv("PRICING_CUTOVER"); raw != "" {
		cutover, err := time.Parse(dateLayout, raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse PRICING_CUTOVER: %w", err)
		}
		cfg.PricingCutover = cutover
	}
	cfg.LegacyGstCalculatedBefore = envBool("LEGACY_GST_CALCULATED_BEFORE", cfg.LegacyGstCalculatedBefore)
	cfg.StandardHoursStart = envInt("STANDARD_HOURS_START", cfg.StandardHoursStart)
	cfg.StandardHoursEnd = envInt("STANDARD_HOURS_END", cfg.StandardHoursEnd)
	cfg.Timezone = envOrDefault("BUSINESS_TIMEZONE", cfg.Timezone)
	cfg.WeekendsAfterHours = envBool("WEEKENDS_AFTER_HOURS", cfg.WeekendsAfterHours)
	cfg.GatewayBaseURL = envOrDefault("GATEWAY_BASE_URL", cfg.GatewayBaseURL)
	cfg.GatewayAPIKey = envOrDefault("GATEWAY_API_KEY", cfg.GatewayAPIKey)
	cfg.GatewayTimeout = time.Duration(envInt("GATEWAY_TIMEOUT_SECONDS", int(cfg.GatewayTimeout.Seconds()))) * time.Second
	cfg.AdminJWTSecret = envOrDefault("ADMIN_JWT_SECRET", cfg.AdminJWTSecret)
	cfg.AdminJWTIssuer = envOrDefault("ADMIN_JWT_ISSUER", cfg.AdminJWTIssuer)

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.StandardHoursStart < 0 || cfg.StandardHoursEnd > 24 || cfg.StandardHoursStart >= cfg.StandardHoursEnd {
		return Config{}, fmt.Errorf("invalid standard hours %d-%d", cfg.StandardHoursStart, cfg.StandardHoursEnd)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return Config{}, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	return cfg, nil
}

func applyFile(cfg *Config, f configFile) error {
	if f.Service.ID != "" {
		cfg.ServiceID = f.Service.ID
	}
	if f.Service.HTTPPort > 0 {
		cfg.HTTPPort = f.Service.HTTPPort
	}
	if f.Service.GRPCPort > 0 {
		cfg.GRPCPort = f.Service.GRPCPort
	}
	if f.Dependencies.PostgresURL != "" {
		cfg.DatabaseURL = f.Dependencies.PostgresURL
	}
	if f.Dependencies.RedisURL != "" {
		cfg.RedisURL = f.Dependencies.RedisURL
	}
	if len(f.Dependencies.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = trimNonEmpty(f.Dependencies.KafkaBrokers)
	}
	if f.Dependencies.KafkaConsumerGroup != "" {
		cfg.KafkaConsumerGroup = f.Dependencies.KafkaConsumerGroup
	}
	if f.Dependencies.KafkaTopicPaymentJobs != "" {
		cfg.KafkaTopicPaymentJobs = f.Dependencies.KafkaTopicPaymentJobs
	}
	if f.Dependencies.KafkaTopicDeadLetter != "" {
		cfg.KafkaTopicDeadLetter = f.Dependencies.KafkaTopicDeadLetter
	}
	if f.Dependencies.GatewayBaseURL != "" {
		cfg.GatewayBaseURL = f.Dependencies.GatewayBaseURL
	}
	if f.Dependencies.GatewayTimeoutSeconds > 0 {
		cfg.GatewayTimeout = time.Duration(f.Dependencies.GatewayTimeoutSeconds) * time.Second
	}

	p := f.Payments
	if p.Currency != "" {
		cfg.Currency = p.Currency
	}
	if p.WaitListThresholdDays > 0 {
		cfg.WaitListThreshold = time.Duration(p.WaitListThresholdDays) * 24 * time.Hour
	}
	if p.ShortSlotReleaseDays > 0 {
		cfg.ShortSlotWaitListThreshold = time.Duration(p.ShortSlotReleaseDays) * 24 * time.Hour
	}
	if p.AuthorizationCutoffMinutes > 0 {
		cfg.AuthorizationCutoff = time.Duration(p.AuthorizationCutoffMinutes) * time.Minute
	}
	if p.RateCacheTTLHours > 0 {
		cfg.RateCacheTTL = time.Duration(p.RateCacheTTLHours) * time.Hour
	}
	if p.PricingCutover != "" {
		cutover, err := time.Parse(dateLayout, p.PricingCutover)
		if err != nil {
			return fmt.Errorf("parse pricing_cutover: %w", err)
		}
		cfg.PricingCutover = cutover
	}
	if p.LegacyGstCalculatedBefore != nil {
		cfg.LegacyGstCalculatedBefore = *p.LegacyGstCalculatedBefore
	}
	if p.StandardHoursStart > 0 {
		cfg.StandardHoursStart = p.StandardHoursStart
	}
	if p.StandardHoursEnd > 0 {
		cfg.StandardHoursEnd = p.StandardHoursEnd
	}
	if p.Timezone != "" {
		cfg.Timezone = p.Timezone
	}
	if p.WeekendsAfterHours != nil {
		cfg.WeekendsAfterHours = *p.WeekendsAfterHours
	}
	if p.JobMaxAttempts > 0 {
		cfg.JobMaxAttempts = p.JobMaxAttempts
	}
	if p.WaitListPollSeconds > 0 {
		cfg.WaitListPollInterval = time.Duration(p.WaitListPollSeconds) * time.Second
	}
	if p.WaitListRetryIntervalMinutes > 0 {
		cfg.WaitListRetryInterval = time.Duration(p.WaitListRetryIntervalMinutes) * time.Minute
	}
	if p.WaitListMaxAttempts > 0 {
		cfg.WaitListMaxAttempts = p.WaitListMaxAttempts
	}
	return nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return fallback
	}
}

func envCSV(name string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	return trimNonEmpty(strings.Split(raw, ","))
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
