// Package config provides configuration management and environment variable handling for the application
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	WhatsApp   WhatsAppConfig   `json:"whatsapp"`
	Queue      QueueConfig      `json:"queue"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
	Webhook    WebhookConfig    `json:"webhook"`
	Poller     PollerConfig     `json:"poller"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Cache      CacheConfig      `json:"cache"`
	Deployment DeploymentConfig `json:"deployment"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryLog    bool          `json:"slow_query_log"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	BodyLimit       int           `json:"body_limit"`
	EnableMetrics   bool          `json:"enable_metrics"`
	TrustedProxies  []string      `json:"trusted_proxies"`
	ProxyHeader     string        `json:"proxy_header"`
}

// GatewayConfig points at one delivery backend gateway
type GatewayConfig struct {
	BaseURL     string        `json:"base_url"`
	APIKey      string        `json:"api_key"`
	SendTimeout time.Duration `json:"send_timeout"`
}

// WhatsAppConfig holds both delivery backends. Primary is tried first on
// every dispatch; Fallback takes over on failover-eligible errors.
type WhatsAppConfig struct {
	Primary          GatewayConfig `json:"primary"`
	Fallback         GatewayConfig `json:"fallback"`
	SessionKeepAlive time.Duration `json:"session_keep_alive"`
}

// QueueConfig tunes the delivery queue workers and retry policy
type QueueConfig struct {
	KeyPrefix       string        `json:"key_prefix"`
	MessageWorkers  int           `json:"message_workers"`
	CampaignWorkers int           `json:"campaign_workers"`
	PollInterval    time.Duration `json:"poll_interval"`
	RetryBaseDelay  time.Duration `json:"retry_base_delay"`
	StuckClaimAge   time.Duration `json:"stuck_claim_age"`
}

// SchedulerConfig tunes campaign scheduling and the maintenance sweeps
type SchedulerConfig struct {
	// StuckPendingSweep re-enqueues messages stranded in pending
	StuckPendingSweep string        `json:"stuck_pending_sweep"` // cron expression
	StuckPendingAge   time.Duration `json:"stuck_pending_age"`
	// FailedRetrySweep re-drives failed messages still inside their budget
	FailedRetrySweep  string `json:"failed_retry_sweep"` // cron expression
	FailedRetryBatch  int    `json:"failed_retry_batch"`
	DeadLetterRedrive int    `json:"dead_letter_redrive"`
}

// WebhookConfig secures inbound delivery-confirmation callbacks
type WebhookConfig struct {
	Secret string `json:"secret"`
}

// PollerConfig tunes the delivery confirmation poller
type PollerConfig struct {
	Enabled     bool          `json:"enabled"`
	Interval    time.Duration `json:"interval"`
	Window      time.Duration `json:"window"`
	GracePeriod time.Duration `json:"grace_period"`
	BatchSize   int           `json:"batch_size"`
}

type LoggingConfig struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Output     string `json:"output"` // stdout, file, both
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type CacheConfig struct {
	RedisURL      string `json:"redis_url"`
	RedisDB       int    `json:"redis_db"`
	RedisPassword string `json:"redis_password"`
}

type DeploymentConfig struct {
	Environment string `json:"environment"`
	Version     string `json:"version"`
	CommitHash  string `json:"commit_hash"`
	BuildTime   string `json:"build_time"`
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	// Load environment variables from .env file
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "postgres"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 100),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryLog:    getEnvBool("DB_SLOW_QUERY_LOG", true),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
		},
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:       getEnvInt("SERVER_BODY_LIMIT", 8*1024*1024), // 8MB, contact imports
			EnableMetrics:   getEnvBool("SERVER_ENABLE_METRICS", true),
			TrustedProxies:  getEnvStringSlice("SERVER_TRUSTED_PROXIES", []string{"127.0.0.1"}),
			ProxyHeader:     getEnvString("SERVER_PROXY_HEADER", "X-Real-IP"),
		},
		WhatsApp: WhatsAppConfig{
			Primary: GatewayConfig{
				BaseURL:     getEnvString("WHATSAPP_PRIMARY_URL", "http://localhost:3001"),
				APIKey:      getEnvString("WHATSAPP_PRIMARY_API_KEY", ""),
				SendTimeout: getEnvDuration("WHATSAPP_PRIMARY_SEND_TIMEOUT", 15*time.Second),
			},
			Fallback: GatewayConfig{
				BaseURL:     getEnvString("WHATSAPP_FALLBACK_URL", "http://localhost:3002"),
				APIKey:      getEnvString("WHATSAPP_FALLBACK_API_KEY", ""),
				SendTimeout: getEnvDuration("WHATSAPP_FALLBACK_SEND_TIMEOUT", 15*time.Second),
			},
			SessionKeepAlive: getEnvDuration("WHATSAPP_SESSION_KEEPALIVE", 5*time.Minute),
		},
		Queue: QueueConfig{
			KeyPrefix:       getEnvString("QUEUE_KEY_PREFIX", "susanoo"),
			MessageWorkers:  getEnvInt("QUEUE_MESSAGE_WORKERS", 10),
			CampaignWorkers: getEnvInt("QUEUE_CAMPAIGN_WORKERS", 2),
			PollInterval:    getEnvDuration("QUEUE_POLL_INTERVAL", 1*time.Second),
			RetryBaseDelay:  getEnvDuration("QUEUE_RETRY_BASE_DELAY", 2*time.Second),
			StuckClaimAge:   getEnvDuration("QUEUE_STUCK_CLAIM_AGE", 10*time.Minute),
		},
		Scheduler: SchedulerConfig{
			StuckPendingSweep: getEnvString("SCHEDULER_STUCK_PENDING_SWEEP", "*/5 * * * *"),
			StuckPendingAge:   getEnvDuration("SCHEDULER_STUCK_PENDING_AGE", 10*time.Minute),
			FailedRetrySweep:  getEnvString("SCHEDULER_FAILED_RETRY_SWEEP", "0 * * * *"),
			FailedRetryBatch:  getEnvInt("SCHEDULER_FAILED_RETRY_BATCH", 50),
			DeadLetterRedrive: getEnvInt("SCHEDULER_DEAD_LETTER_REDRIVE", 0),
		},
		Webhook: WebhookConfig{
			Secret: getEnvString("WEBHOOK_SECRET", ""),
		},
		Poller: PollerConfig{
			Enabled:     getEnvBool("POLLER_ENABLED", true),
			Interval:    getEnvDuration("POLLER_INTERVAL", 30*time.Second),
			Window:      getEnvDuration("POLLER_WINDOW", 24*time.Hour),
			GracePeriod: getEnvDuration("POLLER_GRACE_PERIOD", 1*time.Hour),
			BatchSize:   getEnvInt("POLLER_BATCH_SIZE", 200),
		},
		Logging: LoggingConfig{
			Level:      getEnvString("LOG_LEVEL", "info"),
			Output:     getEnvString("LOG_OUTPUT", "file"),
			FilePath:   getEnvString("LOG_FILE_PATH", "/var/log/susanoo/app.log"),
			MaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:     getEnvInt("LOG_MAX_AGE", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			RedisURL:      getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:       getEnvInt("CACHE_REDIS_DB", 0),
			RedisPassword: getEnvString("REDIS_PASSWORD", ""),
		},
		Deployment: DeploymentConfig{
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("VERSION", "1.0.0"),
			CommitHash:  getEnvString("COMMIT_HASH", "unknown"),
			BuildTime:   getEnvString("BUILD_TIME", "unknown"),
		},
	}

	// Validate the loaded configuration
	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads environment variables from .env file if it exists
func loadEnvFile() error {
	envFile := ".env"

	// Check if .env file exists
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		// .env file doesn't exist, continue with environment variables
		return nil
	}

	// Open .env file
	file, err := os.Open(envFile)
	if err != nil {
		return fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	// Read file line by line
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key=value pairs
		if strings.Contains(line, "=") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				key := strings.TrimSpace(parts[0])
				value := strings.TrimSpace(parts[1])

				// Remove quotes if present
				if (strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
					(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`)) {
					value = value[1 : len(value)-1]
				}

				// Set environment variable if not already set
				if os.Getenv(key) == "" {
					os.Setenv(key, value)
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading .env file: %w", err)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		// Use standard library strings.Split and strings.TrimSpace
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	// Validate database configuration
	if cfg.Database.Host == "" {
		errors = append(errors, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errors = append(errors, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errors = append(errors, "DB_USER is required")
	}
	if cfg.Database.Password == "" {
		errors = append(errors, "DB_PASSWORD is required")
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}
	if cfg.Server.IdleTimeout <= 0 {
		errors = append(errors, "SERVER_IDLE_TIMEOUT must be positive")
	}

	// Validate delivery backend configuration
	if cfg.WhatsApp.Primary.BaseURL == "" {
		errors = append(errors, "WHATSAPP_PRIMARY_URL is required")
	}
	if cfg.WhatsApp.Fallback.BaseURL == "" {
		errors = append(errors, "WHATSAPP_FALLBACK_URL is required")
	}
	if cfg.WhatsApp.Primary.SendTimeout <= 0 {
		errors = append(errors, "WHATSAPP_PRIMARY_SEND_TIMEOUT must be positive")
	}
	if cfg.WhatsApp.Fallback.SendTimeout <= 0 {
		errors = append(errors, "WHATSAPP_FALLBACK_SEND_TIMEOUT must be positive")
	}

	// Validate queue configuration
	if cfg.Queue.MessageWorkers <= 0 {
		errors = append(errors, "QUEUE_MESSAGE_WORKERS must be positive")
	}
	if cfg.Queue.CampaignWorkers <= 0 {
		errors = append(errors, "QUEUE_CAMPAIGN_WORKERS must be positive")
	}
	if cfg.Queue.RetryBaseDelay <= 0 {
		errors = append(errors, "QUEUE_RETRY_BASE_DELAY must be positive")
	}

	// Validate webhook configuration
	if cfg.Webhook.Secret == "" {
		errors = append(errors, "WEBHOOK_SECRET is required")
	}
	if len(cfg.Webhook.Secret) > 0 && len(cfg.Webhook.Secret) < 16 {
		errors = append(errors, "WEBHOOK_SECRET must be at least 16 characters long")
	}

	// Validate poller configuration
	if cfg.Poller.Enabled {
		if cfg.Poller.Interval <= 0 {
			errors = append(errors, "POLLER_INTERVAL must be positive")
		}
		if cfg.Poller.Window <= cfg.Poller.GracePeriod {
			errors = append(errors, "POLLER_WINDOW must be longer than POLLER_GRACE_PERIOD")
		}
	}

	// Validate cache configuration
	if cfg.Cache.RedisURL == "" {
		errors = append(errors, "CACHE_REDIS_URL is required")
	}

	// Validate logging configuration
	if cfg.Logging.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		valid := false
		for _, level := range validLevels {
			if cfg.Logging.Level == level {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
		}
	}

	// Return validation errors if any
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
