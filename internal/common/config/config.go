// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig               `mapstructure:"app"`
	Camunda  CamundaConfig           `mapstructure:"camunda"`
	Database DatabaseConfig          `mapstructure:"database"`
	Workers  map[string]WorkerConfig `mapstructure:"workers"`
	Mail     MailConfig              `mapstructure:"mail"`
	AWS      AWSConfig               `mapstructure:"aws"`
	Dispatch DispatchConfig          `mapstructure:"dispatch"`
	Logging  LoggingConfig           `mapstructure:"logging"`
	Server   ServerConfig            `mapstructure:"server"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	Plaintext      bool   `mapstructure:"plaintext"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
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
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig is optional; an empty address disables the template cache.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// PoolSize defaults to dispatch.max_concurrency so every in-flight
	// recipient can hit the cache at once.
	PoolSize int `mapstructure:"pool_size"`
}

func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

const (
	MailProviderSMTP = "smtp"
	MailProviderSES  = "ses"
)

// MailConfig selects the transport and the sender used when a notification
// carries none.
type MailConfig struct {
	Provider    string      `mapstructure:"provider"`
	DefaultFrom FromConfig  `mapstructure:"default_from"`
	SMTP        SMTPConfig  `mapstructure:"smtp"`
	SES         SESSettings `mapstructure:"ses"`
}

type FromConfig struct {
	Email     string `mapstructure:"email"`
	FirstName string `mapstructure:"first_name"`
	LastName  string `mapstructure:"last_name"`
}

type SMTPConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	UseTLS      bool   `mapstructure:"use_tls"`
	ImplicitTLS bool   `mapstructure:"implicit_tls"`
	Timeout     int    `mapstructure:"timeout"` // milliseconds
}

type SESSettings struct {
	ConfigurationSet string `mapstructure:"configuration_set"`
}

type AWSConfig struct {
	Region string `mapstructure:"region"`
}

// DispatchConfig tunes the recipient fan-out and the template cache.
type DispatchConfig struct {
	MaxConcurrency   int `mapstructure:"max_concurrency"`
	TemplateCacheTTL int `mapstructure:"template_cache_ttl"` // seconds
}

func (d DispatchConfig) CacheTTL() time.Duration {
	return time.Duration(d.TemplateCacheTTL) * time.Second
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ServerConfig is the address serving /metrics, /health and /ready.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}
