package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
	// MinSecretLength is the shortest HMAC secret or internal API key accepted
	MinSecretLength = 16
)

// Identity policies accepted for product resync dispatch
const (
	IdentityPerRequest = "per_request"
	IdentityPerTarget  = "per_target"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Queue    QueueConfig    `yaml:"queue"`
	Security SecurityConfig `yaml:"security"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Pricing  PricingConfig  `yaml:"pricing"`
	Logging  LoggingConfig  `yaml:"logging"`
	App      AppConfig      `yaml:"app"`
	Worker   WorkerConfig   `yaml:"worker"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	TrustedProxies  []string      `yaml:"trusted_proxies"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueOptions     `yaml:"queue"`
	Connection ConnectionConfig `yaml:"connection"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueOptions holds the declare options shared by every job queue
type QueueOptions struct {
	Durable    bool `yaml:"durable"`
	AutoDelete bool `yaml:"auto_delete"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int `yaml:"prefetch_count"`
}

// QueueConfig maps logical queue names to broker queues
type QueueConfig struct {
	Enabled bool                       `yaml:"enabled"`
	Queues  map[string]QueueDefinition `yaml:"queues"`
}

// QueueDefinition describes one logical queue
type QueueDefinition struct {
	Name           string `yaml:"name"`
	MaxRetries     int    `yaml:"max_retries"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// SecurityConfig holds the secrets shared with the storefront and operators.
// Values are normally supplied through HMAC_SECRET and INTERNAL_API_KEY.
type SecurityConfig struct {
	HMACSecret        string        `yaml:"hmac_secret"`
	InternalAPIKey    string        `yaml:"internal_api_key"`
	InternalKeyHeader string        `yaml:"internal_key_header"`
	SignatureMaxAge   time.Duration `yaml:"signature_max_age"`
}

// DispatchConfig holds job dispatch settings
type DispatchConfig struct {
	SubmitTimeout         time.Duration `yaml:"submit_timeout"`
	ProductResyncIdentity string        `yaml:"product_resync_identity"`
}

// PricingConfig holds the storefront price preview settings
type PricingConfig struct {
	Currency     string `yaml:"currency"`
	ExchangeRate string `yaml:"exchange_rate"`
	Scale        int32  `yaml:"scale"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	Concurrency       int           `yaml:"concurrency"`
	JobTimeout        time.Duration `yaml:"job_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// Load reads and parses the configuration file, then applies environment overrides
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	return &config, nil
}

// applyEnv overrides secrets and switches from the environment
func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	setString("HMAC_SECRET", &c.Security.HMACSecret)
	setString("INTERNAL_API_KEY", &c.Security.InternalAPIKey)
	setString("DATABASE_PASSWORD", &c.Database.Password)
	setString("RABBITMQ_PASSWORD", &c.RabbitMQ.Password)

	if v, ok := os.LookupEnv("QUEUE_ENABLED"); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid QUEUE_ENABLED value %q: %w", v, err)
		}
		c.Queue.Enabled = enabled
	}

	return nil
}

// ValidateAPIConfig checks the settings the API service depends on
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	if c.Queue.Enabled {
		if err := c.validateRabbitMQ(); err != nil {
			return err
		}
	}

	if err := c.validateQueues(); err != nil {
		return err
	}

	if len(c.Security.HMACSecret) < MinSecretLength {
		return fmt.Errorf("security hmac_secret must be at least %d characters", MinSecretLength)
	}

	if len(c.Security.InternalAPIKey) < MinSecretLength {
		return fmt.Errorf("security internal_api_key must be at least %d characters", MinSecretLength)
	}

	if c.Security.SignatureMaxAge < 0 {
		return fmt.Errorf("security signature_max_age must not be negative")
	}

	switch c.Dispatch.ProductResyncIdentity {
	case "", IdentityPerRequest, IdentityPerTarget:
	default:
		return fmt.Errorf("invalid dispatch product_resync_identity: %q (must be %s or %s)",
			c.Dispatch.ProductResyncIdentity, IdentityPerRequest, IdentityPerTarget)
	}

	if c.Pricing.ExchangeRate == "" {
		return fmt.Errorf("pricing exchange_rate is required")
	}

	return nil
}

// ValidateWorkerConfig checks the settings the worker service depends on
func (c *Config) ValidateWorkerConfig() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}

	if !c.Queue.Enabled {
		return fmt.Errorf("queue system must be enabled for the worker")
	}

	if err := c.validateRabbitMQ(); err != nil {
		return err
	}

	if err := c.validateQueues(); err != nil {
		return err
	}

	if len(c.Queue.Queues) == 0 {
		return fmt.Errorf("at least one queue must be configured")
	}

	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.JobTimeout <= 0 {
		return fmt.Errorf("worker job_timeout must be greater than 0")
	}

	if c.Worker.HeartbeatInterval <= 0 {
		return fmt.Errorf("worker heartbeat_interval must be greater than 0")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	return nil
}

func (c *Config) validateRabbitMQ() error {
	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	return nil
}

func (c *Config) validateQueues() error {
	for logical, def := range c.Queue.Queues {
		if def.Name == "" {
			return fmt.Errorf("queue %q: name is required", logical)
		}
		if def.MaxRetries < 0 {
			return fmt.Errorf("queue %q: max_retries must not be negative", logical)
		}
		if def.TimeoutSeconds < 0 {
			return fmt.Errorf("queue %q: timeout_seconds must not be negative", logical)
		}
	}
	return nil
}
