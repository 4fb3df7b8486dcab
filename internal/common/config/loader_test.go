// internal/common/config/loader_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  postgres:
    host: db.local
    database: intake
    user: intake
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.IntakePort)
	assert.Equal(t, 5001, cfg.Server.CRMPort)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, "db.local", cfg.Database.CRMPostgres.Host, "crm store falls back to the intake connection")
	assert.Equal(t, "crm-applications", cfg.Database.Elasticsearch.Index)
	assert.False(t, cfg.Database.Elasticsearch.Enabled())
	assert.Equal(t, 5000, cfg.Intake.RelayTimeout)
	assert.Equal(t, "admin", cfg.CRM.AdminUser)
	assert.Equal(t, "password", cfg.CRM.AdminPass)
	assert.Equal(t, 50, cfg.CRM.DefaultLimit)
	assert.Equal(t, 200, cfg.CRM.MaxLimit)
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.Equal(t, time.Hour, GetDuration(cfg.Session.TTL))
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_INTAKE_DB_HOST", "pg.internal")
	path := writeConfig(t, `
database:
  postgres:
    host: ${TEST_INTAKE_DB_HOST}
    database: intake
    user: intake
  crm_postgres:
    host: ${TEST_UNSET_CRM_HOST}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "pg.internal", cfg.Database.Postgres.Host)
	assert.Equal(t, "pg.internal", cfg.Database.CRMPostgres.Host)
}

func TestLoadFromFile_PlainEnvFallbacks(t *testing.T) {
	t.Setenv("FRONTEND_BASE_URL", "https://apply.example.com")
	t.Setenv("CRM_ADMIN_USER", "ops")
	t.Setenv("CRM_TOKEN_TTL_MS", "60000")
	path := writeConfig(t, `
app:
  name: test
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://apply.example.com", cfg.Intake.FrontendBaseURL)
	assert.Equal(t, "ops", cfg.CRM.AdminUser)
	assert.Equal(t, time.Minute, GetDuration(cfg.Session.TTL))
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.Database.Postgres = PostgresConfig{Host: "h", Database: "d", User: "u"}
		applyDefaults(cfg)
		return cfg
	}

	t.Run("intake ok", func(t *testing.T) {
		assert.NoError(t, valid().Validate(ComponentIntake))
	})

	t.Run("intake missing host", func(t *testing.T) {
		cfg := valid()
		cfg.Database.Postgres.Host = ""
		assert.EqualError(t, cfg.Validate(ComponentIntake), "database.postgres.host is required")
	})

	t.Run("replay needs webhook url", func(t *testing.T) {
		cfg := valid()
		assert.Error(t, cfg.Validate(ComponentReplay))
		cfg.Intake.CRMWebhookURL = "http://crm/api/applications/webhook"
		assert.NoError(t, cfg.Validate(ComponentReplay))
	})

	t.Run("crm redis backend needs address", func(t *testing.T) {
		cfg := valid()
		cfg.Session.Backend = "redis"
		assert.Error(t, cfg.Validate(ComponentCRM))
		cfg.Database.Redis.Address = "localhost:6379"
		assert.NoError(t, cfg.Validate(ComponentCRM))
	})

	t.Run("crm unknown backend", func(t *testing.T) {
		cfg := valid()
		cfg.Session.Backend = "memcached"
		assert.Error(t, cfg.Validate(ComponentCRM))
	})

	t.Run("crm email notifications need recipients", func(t *testing.T) {
		cfg := valid()
		cfg.Notifications.Email.Enabled = true
		cfg.Notifications.Email.FromEmail = "no-reply@example.com"
		assert.Error(t, cfg.Validate(ComponentCRM))
		cfg.Notifications.Email.Recipients = []string{"hr@example.com"}
		assert.NoError(t, cfg.Validate(ComponentCRM))
	})

	t.Run("unknown component", func(t *testing.T) {
		assert.Error(t, valid().Validate("worker"))
	})
}

func TestPostgresConfig_GetDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "crm", Password: "secret", Database: "crm", SSLMode: "disable"}

	assert.Equal(t, "host=db port=5432 user=crm password=secret dbname=crm sslmode=disable", p.GetDSN())
}
