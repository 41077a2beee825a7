package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseYAML = `
app:
  name: notification-workers
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: localhost
    database: notifications
    user: ${TEST_DB_USER}
  redis:
    address: localhost:6379
mail:
  provider: smtp
  default_from:
    email: noreply@example.org
    first_name: Notify
  smtp:
    host: smtp.example.org
workers:
  mail-notification:
    enabled: true
    max_jobs_active: 8
dispatch:
  max_concurrency: 16
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("TEST_DB_USER", "notifier")
	t.Setenv("SMTP_PASSWORD", "s3cret")

	cfg, err := LoadFromFile(writeConfig(t, baseYAML))
	require.NoError(t, err)

	assert.Equal(t, "notifier", cfg.Database.Postgres.User)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.True(t, cfg.Database.Redis.Enabled())
	assert.Equal(t, 16, cfg.Database.Redis.PoolSize)

	assert.Equal(t, MailProviderSMTP, cfg.Mail.Provider)
	assert.Equal(t, "smtp.example.org", cfg.Mail.SMTP.Host)
	assert.Equal(t, 587, cfg.Mail.SMTP.Port)
	assert.Equal(t, "s3cret", cfg.Mail.SMTP.Password)
	assert.Equal(t, "noreply@example.org", cfg.Mail.DefaultFrom.Email)
	assert.Equal(t, "Notify", cfg.Mail.DefaultFrom.FirstName)

	assert.Equal(t, 16, cfg.Dispatch.MaxConcurrency)
	assert.Equal(t, 5*time.Minute, cfg.Dispatch.CacheTTL())
	assert.Equal(t, ":9090", cfg.Server.Address)

	w := GetWorkerConfig(cfg, "mail-notification")
	assert.Equal(t, 8, w.MaxJobsActive)
	assert.Equal(t, 30000, w.Timeout)
	assert.Equal(t, 3, w.MaxRetries)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing broker",
			yaml:    "database:\n  postgres:\n    host: h\n    database: d\n    user: u\nmail:\n  smtp:\n    host: s\n",
			wantErr: "camunda.broker_address is required",
		},
		{
			name:    "missing smtp host",
			yaml:    "camunda:\n  broker_address: b\ndatabase:\n  postgres:\n    host: h\n    database: d\n    user: u\n",
			wantErr: "mail.smtp.host is required",
		},
		{
			name:    "unknown provider",
			yaml:    "camunda:\n  broker_address: b\ndatabase:\n  postgres:\n    host: h\n    database: d\n    user: u\nmail:\n  provider: pigeon\n",
			wantErr: "mail.provider must be",
		},
		{
			name:    "negative concurrency",
			yaml:    "camunda:\n  broker_address: b\ndatabase:\n  postgres:\n    host: h\n    database: d\n    user: u\nmail:\n  provider: ses\ndispatch:\n  max_concurrency: -1\n",
			wantErr: "dispatch.max_concurrency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile_SESProvider(t *testing.T) {
	yaml := "camunda:\n  broker_address: b\ndatabase:\n  postgres:\n    host: h\n    database: d\n    user: u\nmail:\n  provider: ses\n  ses:\n    configuration_set: tracking\n"

	cfg, err := LoadFromFile(writeConfig(t, yaml))
	require.NoError(t, err)
	assert.Equal(t, MailProviderSES, cfg.Mail.Provider)
	assert.Equal(t, "tracking", cfg.Mail.SES.ConfigurationSet)
	assert.NotEmpty(t, cfg.AWS.Region)
	assert.False(t, cfg.Database.Redis.Enabled())
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestIsWorkerEnabled(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{"off": {Enabled: false}}}
	assert.False(t, IsWorkerEnabled(cfg, "off"))
	assert.True(t, IsWorkerEnabled(cfg, "unlisted"))
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}
