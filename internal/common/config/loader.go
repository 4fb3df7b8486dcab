// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Components validated by Validate.
const (
	ComponentIntake = "intake"
	ComponentCRM    = "crm"
	ComponentReplay = "replay"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml over it,
// applies environment overrides and defaults.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideEmptyConfig(&cfg)
	applyDefaults(&cfg)

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			// unset variables expand to "" so defaults and fallbacks still apply
			v.Set(key, os.ExpandEnv(strVal))
		}
	}
}

// overrideEmptyConfig honours the plain environment variable names the
// deployment scripts already export.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.Intake.FrontendBaseURL, "FRONTEND_BASE_URL")
	setIfEmpty(&cfg.Intake.CRMWebhookURL, "CRM_WEBHOOK_URL")
	setIfEmpty(&cfg.Intake.CRMWebhookToken, "CRM_WEBHOOK_TOKEN")
	setIfEmpty(&cfg.CRM.AdminUser, "CRM_ADMIN_USER")
	setIfEmpty(&cfg.CRM.AdminPass, "CRM_ADMIN_PASS")
	setIfEmpty(&cfg.CRM.WebhookToken, "CRM_WEBHOOK_TOKEN")
	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	setIfEmpty(&cfg.Logging.Level, "LOG_LEVEL")

	if cfg.Session.TTL == 0 {
		if val := os.Getenv("CRM_TOKEN_TTL_MS"); val != "" {
			if ms, err := strconv.Atoi(val); err == nil {
				cfg.Session.TTL = ms
			}
		}
	}
}

func setIfEmpty(dst *string, envKey string) {
	if *dst != "" {
		return
	}
	if val := os.Getenv(envKey); val != "" {
		*dst = val
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "application-intake"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	if cfg.Server.IntakePort == 0 {
		cfg.Server.IntakePort = 5000
	}
	if cfg.Server.CRMPort == 0 {
		cfg.Server.CRMPort = 5001
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}

	postgresDefaults(&cfg.Database.Postgres)
	if cfg.Database.CRMPostgres.Host == "" {
		cfg.Database.CRMPostgres = cfg.Database.Postgres
	}
	postgresDefaults(&cfg.Database.CRMPostgres)

	if cfg.Database.Elasticsearch.Index == "" {
		cfg.Database.Elasticsearch.Index = "crm-applications"
	}

	if cfg.Intake.RelayTimeout == 0 {
		cfg.Intake.RelayTimeout = 5000
	}

	if cfg.CRM.AdminUser == "" {
		cfg.CRM.AdminUser = "admin"
	}
	if cfg.CRM.AdminPass == "" {
		cfg.CRM.AdminPass = "password"
	}
	if cfg.CRM.DefaultLimit == 0 {
		cfg.CRM.DefaultLimit = 50
	}
	if cfg.CRM.MaxLimit == 0 {
		cfg.CRM.MaxLimit = 200
	}

	if cfg.Session.Backend == "" {
		cfg.Session.Backend = "memory"
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = int(time.Hour / time.Millisecond)
	}
	if cfg.Session.SweepInterval == 0 {
		cfg.Session.SweepInterval = int(5 * time.Minute / time.Millisecond)
	}
	if cfg.Session.KeyPrefix == "" {
		cfg.Session.KeyPrefix = "crm:session:"
	}

	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = 1
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func postgresDefaults(p *PostgresConfig) {
	if p.Port == 0 {
		p.Port = 5432
	}
	if p.MaxConnections == 0 {
		p.MaxConnections = 25
	}
	if p.MaxIdle == 0 {
		p.MaxIdle = 5
	}
	if p.SSLMode == "" {
		p.SSLMode = "disable"
	}
}

// Validate checks the fields a given component cannot start without.
func (c *Config) Validate(component string) error {
	switch component {
	case ComponentIntake, ComponentReplay:
		if err := validatePostgres("database.postgres", c.Database.Postgres); err != nil {
			return err
		}
		if component == ComponentReplay && c.Intake.CRMWebhookURL == "" {
			return fmt.Errorf("intake.crm_webhook_url is required")
		}
	case ComponentCRM:
		if err := validatePostgres("database.crm_postgres", c.Database.CRMPostgres); err != nil {
			return err
		}
		switch c.Session.Backend {
		case "memory":
		case "redis":
			if c.Database.Redis.Address == "" {
				return fmt.Errorf("database.redis.address is required for the redis session backend")
			}
		default:
			return fmt.Errorf("session.backend must be memory or redis, got %q", c.Session.Backend)
		}
		if c.Notifications.Email.Enabled && (c.Notifications.Email.FromEmail == "" || len(c.Notifications.Email.Recipients) == 0) {
			return fmt.Errorf("notifications.email requires from_email and recipients")
		}
		if c.Notifications.SNS.Enabled && c.Notifications.SNS.TopicARN == "" {
			return fmt.Errorf("notifications.sns.topic_arn is required")
		}
	default:
		return fmt.Errorf("unknown component %q", component)
	}
	return nil
}

func validatePostgres(prefix string, p PostgresConfig) error {
	if p.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if p.Database == "" {
		return fmt.Errorf("%s.database is required", prefix)
	}
	if p.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
