package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	// Deployment profile (TN-200)
	// Values: "lite" (embedded storage, single-node) or "standard" (Postgres+Redis, HA)
	Profile DeploymentProfile `mapstructure:"profile"`

	// Storage backend configuration (TN-201)
	Storage StorageConfig `mapstructure:"storage"`

	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Graph     GraphConfig     `mapstructure:"graph"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Log       LogConfig       `mapstructure:"log"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Lock      LockConfig      `mapstructure:"lock"`
	App       AppConfig       `mapstructure:"app"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
	Turn      TurnConfig      `mapstructure:"turn"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Composer  ComposerConfig  `mapstructure:"composer"`
}

// DeploymentProfile represents the deployment profile type
type DeploymentProfile string

const (
	// ProfileLite is single-node deployment with embedded storage (SQLite)
	// No external dependencies (no Postgres required)
	// Persistent storage via PVC (Kubernetes) or local filesystem
	// Use case: Development, testing, small-scale/edge deployments
	ProfileLite DeploymentProfile = "lite"

	// ProfileStandard is HA-ready deployment with external storage (Postgres+Redis)
	// Requires: PostgreSQL (required), Redis (hot session cache)
	// Supports: 2-10 replicas, horizontal scaling
	// Use case: Production environments, HA requirements
	ProfileStandard DeploymentProfile = "standard"
)

// StorageConfig holds archive backend configuration
type StorageConfig struct {
	// Backend determines the archive implementation
	// Values: "filesystem" (Lite), "postgres" (Standard)
	Backend StorageBackend `mapstructure:"backend"`

	// FilesystemPath is the path for embedded storage (Lite profile)
	// Default: /data/configurator.db (SQLite)
	FilesystemPath string `mapstructure:"filesystem_path"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port                    int           `mapstructure:"port"`
	Host                    string        `mapstructure:"host"`
	ReadTimeout             time.Duration `mapstructure:"read_timeout"`
	WriteTimeout            time.Duration `mapstructure:"write_timeout"`
	IdleTimeout             time.Duration `mapstructure:"idle_timeout"`
	GracefulShutdownTimeout time.Duration `mapstructure:"graceful_shutdown_timeout"`
}

// DatabaseConfig holds the session archive's PostgreSQL configuration
// (standard profile)
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
	URL             string        `mapstructure:"url"`

	// MetricsExportInterval is how often pool stats (connections,
	// query counts/durations, errors) are pushed to Prometheus.
	MetricsExportInterval time.Duration `mapstructure:"metrics_export_interval"`
}

// RedisConfig holds the session hot-cache's Redis configuration
type RedisConfig struct {
	Addr            string        `mapstructure:"addr"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db"`
	PoolSize        int           `mapstructure:"pool_size"`
	MinIdleConns    int           `mapstructure:"min_idle_conns"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	MinRetryBackoff time.Duration `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff time.Duration `mapstructure:"max_retry_backoff"`
}

// GraphConfig holds the product repository's (graph port) connection
// configuration. The reference implementation backs the graph with the
// same Postgres database as the session archive when UseArchiveDB is set;
// otherwise it dials a dedicated endpoint via URI/Credentials.
type GraphConfig struct {
	UseArchiveDB bool          `mapstructure:"use_archive_db"`
	URI          string        `mapstructure:"uri"`
	Credentials  string        `mapstructure:"credentials"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	CacheSize    int           `mapstructure:"cache_size"`
}

// LLMConfig holds the parameter extractor's LLM port configuration
type LLMConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Provider    string        `mapstructure:"provider"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`

	RetryDelay   time.Duration `mapstructure:"retry_delay"`
	RetryBackoff float64       `mapstructure:"retry_backoff"`

	// Circuit breaker guarding the LLM port from hammering a down provider
	CircuitBreakerEnabled          bool          `mapstructure:"circuit_breaker_enabled"`
	CircuitBreakerFailureThreshold int           `mapstructure:"circuit_breaker_failure_threshold"`
	CircuitBreakerResetTimeout     time.Duration `mapstructure:"circuit_breaker_reset_timeout"`
}

// LogConfig holds logging-related configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// CacheConfig holds session hot-cache configuration
type CacheConfig struct {
	DefaultTTL      time.Duration `mapstructure:"default_ttl"`
	MaxTTL          time.Duration `mapstructure:"max_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	MaxKeys         int64         `mapstructure:"max_keys"`
	EnableMetrics   bool          `mapstructure:"enable_metrics"`
}

// LockConfig holds distributed lock configuration (per-session mutation
// serialization, see spec §5)
type LockConfig struct {
	TTL            time.Duration `mapstructure:"ttl"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryInterval  time.Duration `mapstructure:"retry_interval"`
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout"`
	ReleaseTimeout time.Duration `mapstructure:"release_timeout"`
	ValuePrefix    string        `mapstructure:"value_prefix"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name          string        `mapstructure:"name"`
	Version       string        `mapstructure:"version"`
	Environment   string        `mapstructure:"environment"`
	Debug         bool          `mapstructure:"debug"`
	Timezone      string        `mapstructure:"timezone"`
	MaxWorkers    int           `mapstructure:"max_workers"`
	WorkerTimeout time.Duration `mapstructure:"worker_timeout"`

	// MinimumRealComponents is the S7 finalization threshold (spec §9 Open
	// Question 1): the minimum number of Selected cart entries required
	// before the session may transition to COMPLETED. PowerSource alone
	// satisfies the default of 1.
	MinimumRealComponents int `mapstructure:"minimum_real_components"`
}

// ExtractorConfig holds parameter extractor policy knobs (spec §9 Open
// Questions 2 and 3)
type ExtractorConfig struct {
	// AutoCommitConfidence: at or above this confidence, a single
	// unambiguous repository result is committed without an extra
	// confirmation turn.
	AutoCommitConfidence float64 `mapstructure:"auto_commit_confidence"`

	// ClarifyBelowConfidence: below this confidence for a mentioned
	// component kind, the orchestrator asks a clarification question
	// instead of searching the repository.
	ClarifyBelowConfidence float64 `mapstructure:"clarify_below_confidence"`

	// DirectMentionEnriches: when true, a direct product mention enriches
	// the existing parameter bag from the looked-up product's attributes
	// rather than replacing it.
	DirectMentionEnriches bool `mapstructure:"direct_mention_enriches"`

	// ConversationLogWindow bounds how many trailing conversation turns
	// are passed to the LLM alongside the master snapshot.
	ConversationLogWindow int `mapstructure:"conversation_log_window"`
}

// TurnConfig holds per-turn deadline and rate-limit configuration
type TurnConfig struct {
	DeadlineMS      int `mapstructure:"deadline_ms"`
	LLMDeadlineMS   int `mapstructure:"llm_deadline_ms"`
	GraphDeadlineMS int `mapstructure:"graph_deadline_ms"`

	RateLimitPerSessionPerMinute int `mapstructure:"rate_limit_per_session_per_minute"`
}

// ComposerConfig holds the Message Composer's localization settings
// (spec §4.7: "12 tags acceptable; English is the fallback").
type ComposerConfig struct {
	// LocalesDir holds one YAML bundle per language tag, named
	// <tag>.yaml (e.g. en.yaml, es.yaml).
	LocalesDir      string `mapstructure:"locales_dir"`
	DefaultLanguage string `mapstructure:"default_language"`
}

// MetricsConfig holds metrics-related configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port"`
}

// StorageBackend represents the archive implementation
type StorageBackend string

const (
	// StorageBackendFilesystem uses embedded storage (SQLite)
	// Used by Lite profile
	StorageBackendFilesystem StorageBackend = "filesystem"

	// StorageBackendPostgres uses PostgreSQL external storage
	// Used by Standard profile
	StorageBackendPostgres StorageBackend = "postgres"
)

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Set default values first
	setDefaults()

	// Enable automatic environment variable binding
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Try to read configuration file if it exists
	if configPath != "" {
		viper.SetConfigFile(configPath)
		viper.SetConfigType("yaml")

		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			// Config file not found, continue with defaults and env vars
		}
	}

	// Unmarshal configuration
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigFromEnv loads configuration from environment variables only
func LoadConfigFromEnv() (*Config, error) {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	setDefaults()

	// Unmarshal configuration
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Deployment profile defaults (TN-200)
	viper.SetDefault("profile", "standard")                              // Default to standard profile
	viper.SetDefault("storage.backend", "postgres")                      // Default to Postgres
	viper.SetDefault("storage.filesystem_path", "/data/configurator.db") // SQLite path for Lite

	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.graceful_shutdown_timeout", "30s")

	// Database (archive) defaults
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.database", "configurator")
	viper.SetDefault("database.username", "dev")
	viper.SetDefault("database.password", "dev")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_connections", 25)
	viper.SetDefault("database.min_connections", 5)
	viper.SetDefault("database.max_conn_lifetime", "1h")
	viper.SetDefault("database.max_conn_idle_time", "30m")
	viper.SetDefault("database.connect_timeout", "10s")
	viper.SetDefault("database.query_timeout", "30s")
	viper.SetDefault("database.metrics_export_interval", "10s")

	// Redis (hot cache) defaults
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.min_idle_conns", 5)
	viper.SetDefault("redis.dial_timeout", "5s")
	viper.SetDefault("redis.read_timeout", "3s")
	viper.SetDefault("redis.write_timeout", "3s")
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.min_retry_backoff", "100ms")
	viper.SetDefault("redis.max_retry_backoff", "500ms")

	// Graph (product repository) defaults
	viper.SetDefault("graph.use_archive_db", true)
	viper.SetDefault("graph.uri", "")
	viper.SetDefault("graph.credentials", "")
	viper.SetDefault("graph.query_timeout", "3s")
	viper.SetDefault("graph.cache_ttl", "1m")
	viper.SetDefault("graph.cache_size", 2048)

	// LLM defaults
	viper.SetDefault("llm.enabled", true)
	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.api_key", "")
	viper.SetDefault("llm.base_url", "https://api.openai.com/v1")
	viper.SetDefault("llm.model", "gpt-4o")
	viper.SetDefault("llm.max_tokens", 1000)
	viper.SetDefault("llm.temperature", 0.0)
	viper.SetDefault("llm.timeout", "10s")
	viper.SetDefault("llm.max_retries", 2)
	viper.SetDefault("llm.retry_delay", "250ms")
	viper.SetDefault("llm.retry_backoff", 2.0)
	viper.SetDefault("llm.circuit_breaker_enabled", true)
	viper.SetDefault("llm.circuit_breaker_failure_threshold", 5)
	viper.SetDefault("llm.circuit_breaker_reset_timeout", "30s")

	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.filename", "")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age", 28)
	viper.SetDefault("log.compress", true)

	// Cache defaults
	viper.SetDefault("cache.default_ttl", "1h")
	viper.SetDefault("cache.max_ttl", "24h")
	viper.SetDefault("cache.cleanup_interval", "10m")
	viper.SetDefault("cache.max_keys", 100000)
	viper.SetDefault("cache.enable_metrics", true)

	// Lock defaults
	viper.SetDefault("lock.ttl", "30s")
	viper.SetDefault("lock.max_retries", 3)
	viper.SetDefault("lock.retry_interval", "100ms")
	viper.SetDefault("lock.acquire_timeout", "5s")
	viper.SetDefault("lock.release_timeout", "2s")
	viper.SetDefault("lock.value_prefix", "session-lock")

	// App defaults
	viper.SetDefault("app.name", "welding-configurator")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.timezone", "UTC")
	viper.SetDefault("app.max_workers", 10)
	viper.SetDefault("app.worker_timeout", "5m")
	viper.SetDefault("app.minimum_real_components", 1)

	// Extractor defaults
	viper.SetDefault("extractor.auto_commit_confidence", 0.85)
	viper.SetDefault("extractor.clarify_below_confidence", 0.4)
	viper.SetDefault("extractor.direct_mention_enriches", true)
	viper.SetDefault("extractor.conversation_log_window", 6)

	// Turn defaults
	viper.SetDefault("turn.deadline_ms", 30000)
	viper.SetDefault("turn.llm_deadline_ms", 10000)
	viper.SetDefault("turn.graph_deadline_ms", 3000)
	viper.SetDefault("turn.rate_limit_per_session_per_minute", 60)

	// Composer defaults
	viper.SetDefault("composer.locales_dir", "locales")
	viper.SetDefault("composer.default_language", "en")

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("metrics.port", 8080)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate deployment profile (TN-200/TN-204)
	if err := c.validateProfile(); err != nil {
		return fmt.Errorf("profile validation failed: %w", err)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}

	// Skip database validation for Lite profile (TN-204)
	if c.Profile == ProfileStandard {
		if c.Database.Driver == "" {
			return fmt.Errorf("database driver cannot be empty (required for standard profile)")
		}

		if c.Database.Host == "" {
			return fmt.Errorf("database host cannot be empty (required for standard profile)")
		}

		if c.Database.Database == "" {
			return fmt.Errorf("database name cannot be empty (required for standard profile)")
		}
	}

	if c.Log.Level == "" {
		return fmt.Errorf("log level cannot be empty")
	}

	if c.App.Name == "" {
		return fmt.Errorf("app name cannot be empty")
	}

	if c.App.MinimumRealComponents < 1 {
		return fmt.Errorf("app.minimum_real_components must be >= 1 (PowerSource is always required)")
	}

	if c.Extractor.AutoCommitConfidence < c.Extractor.ClarifyBelowConfidence {
		return fmt.Errorf("extractor.auto_commit_confidence must be >= extractor.clarify_below_confidence")
	}

	if c.Turn.DeadlineMS <= 0 {
		return fmt.Errorf("turn.deadline_ms must be > 0")
	}

	return nil
}

// validateProfile validates deployment profile configuration (TN-200/TN-204)
func (c *Config) validateProfile() error {
	// Validate profile value
	if c.Profile != ProfileLite && c.Profile != ProfileStandard {
		return fmt.Errorf("invalid deployment profile: %s (must be 'lite' or 'standard')", c.Profile)
	}

	// Validate storage backend
	if c.Storage.Backend != StorageBackendFilesystem && c.Storage.Backend != StorageBackendPostgres {
		return fmt.Errorf("invalid storage backend: %s (must be 'filesystem' or 'postgres')", c.Storage.Backend)
	}

	// Profile-specific validation
	switch c.Profile {
	case ProfileLite:
		// Lite profile: require filesystem storage
		if c.Storage.Backend != StorageBackendFilesystem {
			return fmt.Errorf("lite profile requires storage.backend='filesystem' (got '%s')", c.Storage.Backend)
		}

		// Validate filesystem path
		if c.Storage.FilesystemPath == "" {
			return fmt.Errorf("lite profile requires storage.filesystem_path (e.g., /data/configurator.db)")
		}

	case ProfileStandard:
		// Standard profile: require postgres storage
		if c.Storage.Backend != StorageBackendPostgres {
			return fmt.Errorf("standard profile requires storage.backend='postgres' (got '%s')", c.Storage.Backend)
		}
		// Postgres configuration is required (validated in main Validate())
	}

	return nil
}

// GetDatabaseURL constructs the archive database URL from configuration
func (c *Config) GetDatabaseURL() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}

	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf("%s://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.Driver,
		c.Database.Username,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		sslMode,
	)
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDebug returns true if debug mode is enabled
func (c *Config) IsDebug() bool {
	return c.App.Debug || c.IsDevelopment()
}

// IsLiteProfile returns true if running in Lite deployment profile (TN-200)
func (c *Config) IsLiteProfile() bool {
	return c.Profile == ProfileLite
}

// IsStandardProfile returns true if running in Standard deployment profile (TN-200)
func (c *Config) IsStandardProfile() bool {
	return c.Profile == ProfileStandard
}

// RequiresPostgres returns true if Postgres is required for this profile (TN-201)
func (c *Config) RequiresPostgres() bool {
	return c.Profile == ProfileStandard
}

// UsesEmbeddedStorage returns true if using embedded storage (SQLite) (TN-201)
func (c *Config) UsesEmbeddedStorage() bool {
	return c.Storage.Backend == StorageBackendFilesystem
}

// UsesPostgresStorage returns true if using PostgreSQL storage (TN-201)
func (c *Config) UsesPostgresStorage() bool {
	return c.Storage.Backend == StorageBackendPostgres
}

// GetProfileName returns human-readable profile name (TN-200)
func (c *Config) GetProfileName() string {
	switch c.Profile {
	case ProfileLite:
		return "Lite (Embedded Storage)"
	case ProfileStandard:
		return "Standard (HA-Ready)"
	default:
		return string(c.Profile)
	}
}

// GetProfileDescription returns detailed profile description (TN-200)
func (c *Config) GetProfileDescription() string {
	switch c.Profile {
	case ProfileLite:
		return "Single-node deployment with embedded storage (SQLite). No external dependencies. Persistent via PVC."
	case ProfileStandard:
		return "HA-ready deployment with PostgreSQL and Redis. Supports 2-10 replicas and horizontal scaling."
	default:
		return "Unknown profile"
	}
}

// TurnDeadline returns the configured end-to-end turn deadline
func (c *Config) TurnDeadline() time.Duration {
	return time.Duration(c.Turn.DeadlineMS) * time.Millisecond
}

// LLMDeadline returns the configured LLM call sub-deadline
func (c *Config) LLMDeadline() time.Duration {
	return time.Duration(c.Turn.LLMDeadlineMS) * time.Millisecond
}

// GraphDeadline returns the configured graph query sub-deadline
func (c *Config) GraphDeadline() time.Duration {
	return time.Duration(c.Turn.GraphDeadlineMS) * time.Millisecond
}
