// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	GenAI         GenAIConfig             `mapstructure:"genai"`
	Assistant     AssistantConfig         `mapstructure:"assistant"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Metrics       MetricsConfig           `mapstructure:"metrics"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
	MigrationsDir  string `mapstructure:"migrations_dir"` // applied at startup when set
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses    []string `mapstructure:"addresses"`
	Username     string   `mapstructure:"username"`
	Password     string   `mapstructure:"password"`
	CatalogIndex string   `mapstructure:"catalog_index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// WorkerConfig holds the core settings applicable to every job worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// GenAIConfig describes the language-model gateway used by the router and the agents.
type GenAIConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	APIKey       string `mapstructure:"api_key"`
	FastModel    string `mapstructure:"fast_model"`
	CapableModel string `mapstructure:"capable_model"`
	Timeout      int    `mapstructure:"timeout"` // milliseconds
	MaxRetries   int    `mapstructure:"max_retries"`
	MaxTokens    int    `mapstructure:"max_tokens"`
}

// AssistantConfig holds the orchestration knobs.
type AssistantConfig struct {
	RoutingTimeout     int    `mapstructure:"routing_timeout"`      // milliseconds
	StepTimeout        int    `mapstructure:"step_timeout"`         // milliseconds, per movement intent
	FastTierTimeout    int    `mapstructure:"fast_tier_timeout"`    // milliseconds
	ContinuationTTL    int    `mapstructure:"continuation_ttl"`     // seconds
	HistorySize        int    `mapstructure:"history_size"`         // turns kept per conversation
	QualityMinLength   int    `mapstructure:"quality_min_length"`   // characters
	ManifestPath       string `mapstructure:"manifest_path"`        // optional agent manifest JSON
	ContinuationPrefix string `mapstructure:"continuation_prefix"`  // redis key prefix
	HistoryPrefix      string `mapstructure:"history_prefix"`       // redis key prefix

	// ResetPendingOnStart drops every stored continuation at startup, e.g.
	// after a catalog reload invalidated the candidate ids they hold.
	ResetPendingOnStart bool `mapstructure:"reset_pending_on_start"`
}

func (a AssistantConfig) RoutingTimeoutDuration() time.Duration {
	return time.Duration(a.RoutingTimeout) * time.Millisecond
}

func (a AssistantConfig) StepTimeoutDuration() time.Duration {
	return time.Duration(a.StepTimeout) * time.Millisecond
}

func (a AssistantConfig) FastTierTimeoutDuration() time.Duration {
	return time.Duration(a.FastTierTimeout) * time.Millisecond
}

func (a AssistantConfig) ContinuationTTLDuration() time.Duration {
	return time.Duration(a.ContinuationTTL) * time.Second
}

// NotificationConfig holds settings for low-stock alerts.
type NotificationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
		ToEmail   string `mapstructure:"to_email"`
	} `mapstructure:"email"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Address        string `mapstructure:"address"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"` // empty disables span export
}
