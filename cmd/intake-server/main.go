// cmd/intake-server/main.go
package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"intake-crm/internal/common/config"
	"intake-crm/internal/common/database"
	"intake-crm/internal/common/logger"
	"intake-crm/internal/common/observability"
	"intake-crm/internal/common/server"
	"intake-crm/internal/intake"
	"intake-crm/internal/relay"
)

const serviceName = "intake-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, serviceName)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	if err := cfg.Validate(config.ComponentIntake); err != nil {
		zapLog.Fatal("invalid configuration", zap.Error(err))
	}
	zapLog.Info("Starting intake service...", zap.String("environment", cfg.App.Environment))

	tracing, err := observability.NewTracing(cfg.Tracing, serviceName)
	if err != nil {
		zapLog.Fatal("tracing setup failed", zap.Error(err))
	}
	obs := observability.New(serviceName)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = server.RetryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()

	if err := pg.Migrate(ctx, database.IntakeSchema...); err != nil {
		zapLog.Fatal("intake schema migration failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	intakeCfg := &intake.Config{
		FrontendBaseURL: cfg.Intake.FrontendBaseURL,
		CRMWebhookURL:   cfg.Intake.CRMWebhookURL,
		CRMWebhookToken: cfg.Intake.CRMWebhookToken,
		RelayTimeout:    config.GetDuration(cfg.Intake.RelayTimeout),
	}

	relayClient := relay.NewClient(intakeCfg.RelayTimeout, intakeCfg.CRMWebhookToken, obs)
	dispatcher := relay.NewDispatcher(relayClient, intakeCfg.CRMWebhookURL, log)
	if intakeCfg.CRMWebhookURL == "" {
		zapLog.Warn("intake.crm_webhook_url is not set, CRM relay disabled")
	}

	service := intake.NewService(intakeCfg, intake.NewPostgresStore(pg.DB), log)

	r := server.NewEngine(cfg, log, serviceName)
	intake.NewHandler(service, dispatcher, log).Register(r)

	err = server.Run(cfg, r, cfg.Server.IntakePort, zapLog, func(ctx context.Context) {
		if err := dispatcher.Wait(ctx); err != nil {
			zapLog.Warn("In-flight relays abandoned", zap.Error(err))
		}
		if err := tracing.Shutdown(ctx); err != nil {
			zapLog.Error("Error shutting down tracer", zap.Error(err))
		}
	})
	if err != nil {
		zapLog.Error("Intake service stopped with error", zap.Error(err))
		return
	}
	zapLog.Info("Intake service stopped gracefully")
}
