package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr                    string        `yaml:"addr"`
	DatabaseURL             string        `yaml:"database_url"`
	DBConnectTimeout        time.Duration `yaml:"db_connect_timeout"`
	JWTSecret               string        `yaml:"jwt_secret"`
	SessionTTL              time.Duration `yaml:"session_ttl"`
	DataEncryptionKey       string        `yaml:"data_encryption_key"`
	Environment             string        `yaml:"environment"`
	LogLevel                string        `yaml:"log_level"`
	SeedAdminEmail          string        `yaml:"seed_admin_email"`
	SeedAdminPassword       string        `yaml:"seed_admin_password"`
	SeedAdminName           string        `yaml:"seed_admin_name"`
	RunMigrations           bool          `yaml:"run_migrations"`
	RunSeed                 bool          `yaml:"run_seed"`
	MaxBodyBytes            int64         `yaml:"max_body_bytes"`
	RateLimitPerMinute      int           `yaml:"rate_limit_per_minute"`
	RedisAddr               string        `yaml:"redis_addr"`
	RedisPassword           string        `yaml:"redis_password"`
	RedisDB                 int           `yaml:"redis_db"`
	KafkaBrokers            []string      `yaml:"kafka_brokers"`
	RequestEventsTopic      string        `yaml:"request_events_topic"`
	FundServiceURL          string        `yaml:"fund_service_url"`
	FundAssertionSecret     string        `yaml:"fund_assertion_secret"`
	FundServiceTimeout      time.Duration `yaml:"fund_service_timeout"`
	EmailEnabled            bool          `yaml:"email_enabled"`
	EmailFrom               string        `yaml:"email_from"`
	SMTPHost                string        `yaml:"smtp_host"`
	SMTPPort                int           `yaml:"smtp_port"`
	SMTPUser                string        `yaml:"smtp_user"`
	SMTPPassword            string        `yaml:"smtp_password"`
	MetricsEnabled          bool          `yaml:"metrics_enabled"`
	MFAIssuer               string        `yaml:"mfa_issuer"`
	SlipOrganisationName    string        `yaml:"slip_organisation_name"`
	ShutdownGracePeriod     time.Duration `yaml:"shutdown_grace_period"`
	FundServiceMaxBodyBytes int64         `yaml:"fund_service_max_body_bytes"`
	IdempotencyRetention    time.Duration `yaml:"idempotency_retention"`
	MaintenanceInterval     time.Duration `yaml:"maintenance_interval"`
}

func Defaults() Config {
	return Config{
		Addr:                    ":8080",
		DBConnectTimeout:        30 * time.Second,
		SessionTTL:              8 * time.Hour,
		Environment:             "development",
		LogLevel:                "info",
		SeedAdminName:           "Administrator",
		RunMigrations:           true,
		RunSeed:                 true,
		MaxBodyBytes:            1048576,
		RateLimitPerMinute:      60,
		RequestEventsTopic:      "staffdesk.requests",
		FundServiceTimeout:      10 * time.Second,
		EmailFrom:               "no-reply@example.com",
		SMTPPort:                587,
		MetricsEnabled:          true,
		MFAIssuer:               "staffdesk",
		SlipOrganisationName:    "staffdesk",
		ShutdownGracePeriod:     15 * time.Second,
		FundServiceMaxBodyBytes: 1048576,
		IdempotencyRetention:    24 * time.Hour,
		MaintenanceInterval:     time.Hour,
	}
}

// Load reads defaults, then the optional YAML file named by CONFIG_FILE,
// then environment variables. Environment values win.
func Load() (Config, error) {
	cfg := Defaults()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Addr = getEnv("APP_ADDR", c.Addr)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.DBConnectTimeout = getEnvDuration("DB_CONNECT_TIMEOUT", c.DBConnectTimeout)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.SessionTTL = getEnvDuration("SESSION_TTL", c.SessionTTL)
	c.DataEncryptionKey = getEnv("DATA_ENCRYPTION_KEY", c.DataEncryptionKey)
	c.Environment = getEnv("APP_ENV", c.Environment)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.SeedAdminEmail = getEnv("SEED_ADMIN_EMAIL", c.SeedAdminEmail)
	c.SeedAdminPassword = getEnv("SEED_ADMIN_PASSWORD", c.SeedAdminPassword)
	c.SeedAdminName = getEnv("SEED_ADMIN_NAME", c.SeedAdminName)
	c.RunMigrations = getEnvBool("RUN_MIGRATIONS", c.RunMigrations)
	c.RunSeed = getEnvBool("RUN_SEED", c.RunSeed)
	c.MaxBodyBytes = int64(getEnvInt("MAX_BODY_BYTES", int(c.MaxBodyBytes)))
	c.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)
	c.KafkaBrokers = getEnvList("KAFKA_BROKERS", c.KafkaBrokers)
	c.RequestEventsTopic = getEnv("REQUEST_EVENTS_TOPIC", c.RequestEventsTopic)
	c.FundServiceURL = getEnv("FUND_SERVICE_URL", c.FundServiceURL)
	c.FundAssertionSecret = getEnv("FUND_ASSERTION_SECRET", c.FundAssertionSecret)
	c.FundServiceTimeout = getEnvDuration("FUND_SERVICE_TIMEOUT", c.FundServiceTimeout)
	c.EmailEnabled = getEnvBool("EMAIL_ENABLED", c.EmailEnabled)
	c.EmailFrom = getEnv("EMAIL_FROM", c.EmailFrom)
	c.SMTPHost = getEnv("SMTP_HOST", c.SMTPHost)
	c.SMTPPort = getEnvInt("SMTP_PORT", c.SMTPPort)
	c.SMTPUser = getEnv("SMTP_USER", c.SMTPUser)
	c.SMTPPassword = getEnv("SMTP_PASSWORD", c.SMTPPassword)
	c.MetricsEnabled = getEnvBool("METRICS_ENABLED", c.MetricsEnabled)
	c.MFAIssuer = getEnv("MFA_ISSUER", c.MFAIssuer)
	c.SlipOrganisationName = getEnv("SLIP_ORGANISATION_NAME", c.SlipOrganisationName)
	c.ShutdownGracePeriod = getEnvDuration("SHUTDOWN_GRACE_PERIOD", c.ShutdownGracePeriod)
	c.FundServiceMaxBodyBytes = int64(getEnvInt("FUND_SERVICE_MAX_BODY_BYTES", int(c.FundServiceMaxBodyBytes)))
	c.IdempotencyRetention = getEnvDuration("IDEMPOTENCY_RETENTION", c.IdempotencyRetention)
	c.MaintenanceInterval = getEnvDuration("MAINTENANCE_INTERVAL", c.MaintenanceInterval)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.IsProduction() {
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}
		if strings.TrimSpace(c.DataEncryptionKey) == "" {
			return fmt.Errorf("DATA_ENCRYPTION_KEY must be set in production for mfa secrets at rest")
		}
		if c.RunSeed && strings.TrimSpace(c.SeedAdminPassword) == "" {
			return fmt.Errorf("SEED_ADMIN_PASSWORD must be set or RUN_SEED disabled in production")
		}
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.FundServiceURL != "" && strings.TrimSpace(c.FundAssertionSecret) == "" {
		return fmt.Errorf("FUND_ASSERTION_SECRET must be set when FUND_SERVICE_URL is configured")
	}
	if c.FundAssertionSecret != "" && c.FundAssertionSecret == c.JWTSecret {
		return fmt.Errorf("FUND_ASSERTION_SECRET must differ from JWT_SECRET")
	}
	if c.MaintenanceInterval < 0 {
		return fmt.Errorf("MAINTENANCE_INTERVAL must not be negative")
	}
	if c.MaintenanceInterval > 0 && c.IdempotencyRetention <= 0 {
		return fmt.Errorf("IDEMPOTENCY_RETENTION must be positive when maintenance is enabled")
	}
	if c.EmailEnabled && c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST must be set when EMAIL_ENABLED is true")
	}
	return nil
}
