// cmd/crm-server/main.go
package main

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	awsclient "intake-crm/internal/common/aws"
	"intake-crm/internal/common/config"
	"intake-crm/internal/common/database"
	"intake-crm/internal/common/logger"
	"intake-crm/internal/common/observability"
	"intake-crm/internal/common/server"
	"intake-crm/internal/crm"
	"intake-crm/internal/session"
)

const serviceName = "crm-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, serviceName)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	if err := cfg.Validate(config.ComponentCRM); err != nil {
		zapLog.Fatal("invalid configuration", zap.Error(err))
	}
	zapLog.Info("Starting CRM service...", zap.String("environment", cfg.App.Environment))

	tracing, err := observability.NewTracing(cfg.Tracing, serviceName)
	if err != nil {
		zapLog.Fatal("tracing setup failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = server.RetryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.CRMPostgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()

	if err := pg.Migrate(ctx, database.CRMSchema...); err != nil {
		zapLog.Fatal("crm schema migration failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Optional Elasticsearch search index ---
	var searcher crm.Searcher
	if cfg.Database.Elasticsearch.Enabled() {
		var esClient *database.ElasticsearchClient
		err = server.RetryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 5, 2*time.Second, zapLog, "Elasticsearch connection")

		if err == nil {
			err = esClient.EnsureIndex(ctx, cfg.Database.Elasticsearch.Index, crm.IndexMapping)
		}
		if err != nil {
			zapLog.Warn("Elasticsearch unavailable, search falls back to PostgreSQL", zap.Error(err))
		} else {
			searcher = crm.NewSearchIndex(esClient.Client, cfg.Database.Elasticsearch.Index)
			zapLog.Info("Elasticsearch connected successfully", zap.String("index", cfg.Database.Elasticsearch.Index))
		}
	}

	// --- Session store ---
	var sessions session.Store
	ttl := config.GetDuration(cfg.Session.TTL)
	switch cfg.Session.Backend {
	case "redis":
		redis := database.NewRedis(cfg.Database.Redis)
		err = server.RetryWithBackoff(func() error {
			return redis.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()
		sessions = session.NewRedisStore(redis.Client, cfg.Session.KeyPrefix, ttl)
		zapLog.Info("Redis session store connected successfully")
	default:
		memory := session.NewMemoryStore(ttl)
		memory.StartSweeper(ctx, config.GetDuration(cfg.Session.SweepInterval))
		sessions = memory
	}

	notifier := newNotifier(ctx, cfg, log, zapLog)

	crmCfg := &crm.Config{DefaultLimit: cfg.CRM.DefaultLimit, MaxLimit: cfg.CRM.MaxLimit}
	service := crm.NewService(crmCfg, crm.NewPostgresStore(pg.DB), searcher, notifier, log)

	auth := session.NewHandler(&session.Config{
		AdminUser:    cfg.CRM.AdminUser,
		AdminPass:    cfg.CRM.AdminPass,
		WebhookToken: cfg.CRM.WebhookToken,
	}, sessions, log)

	r := server.NewEngine(cfg, log, serviceName)
	auth.Register(r)
	crm.NewHandler(crmCfg, service, log).Register(r, auth.RequireAuth())

	if dir := cfg.CRM.PublicDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			r.Static("/crm", dir)
			zapLog.Info("Serving CRM UI", zap.String("dir", dir))
		}
	}

	err = server.Run(cfg, r, cfg.Server.CRMPort, zapLog, func(ctx context.Context) {
		if err := service.Wait(ctx); err != nil {
			zapLog.Warn("Background indexing and notifications did not finish", zap.Error(err))
		}
		if err := tracing.Shutdown(ctx); err != nil {
			zapLog.Error("Error shutting down tracer", zap.Error(err))
		}
	})
	if err != nil {
		zapLog.Error("CRM service stopped with error", zap.Error(err))
		return
	}
	zapLog.Info("CRM service stopped gracefully")
}

// newNotifier returns nil when no channel is enabled.
func newNotifier(ctx context.Context, cfg *config.Config, log logger.Logger, zapLog *zap.Logger) *crm.Notifier {
	n := cfg.Notifications
	if !n.Email.Enabled && !n.SNS.Enabled {
		return nil
	}

	awsCfg, err := awsclient.LoadConfig(ctx, n.AWS.Region)
	if err != nil {
		zapLog.Warn("AWS config unavailable, notifications disabled", zap.Error(err))
		return nil
	}

	var email crm.EmailSender
	if n.Email.Enabled {
		email = awsclient.NewSESClient(awsCfg)
	}
	var publisher crm.TopicPublisher
	if n.SNS.Enabled {
		publisher = awsclient.NewSNSClient(awsCfg)
	}

	return crm.NewNotifier(crm.NotifierConfig{
		FromEmail:  n.Email.FromEmail,
		Recipients: n.Email.Recipients,
		TopicARN:   n.SNS.TopicARN,
	}, email, publisher, log)
}
