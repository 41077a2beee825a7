package mail

import (
	"fmt"
	"time"
)

type Config struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	UseTLS      bool          `mapstructure:"use_tls"`
	ImplicitTLS bool          `mapstructure:"implicit_tls"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

func DefaultConfig() *Config {
	return &Config{
		Port:    587,
		UseTLS:  true,
		Timeout: 30 * time.Second,
	}
}

func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("smtp host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("smtp port must be between 1 and 65535")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("smtp timeout must be positive")
	}
	if c.Password != "" && c.Username == "" {
		return fmt.Errorf("smtp username is required when a password is set")
	}
	return nil
}

func (c *Config) addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
