// cmd/worker-manager/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notification-workers/internal/common/aws"
	"notification-workers/internal/common/camunda"
	"notification-workers/internal/common/config"
	"notification-workers/internal/common/database"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/common/observability"
	"notification-workers/internal/dispatch"
	"notification-workers/internal/mail"
	"notification-workers/internal/models"
	"notification-workers/internal/templates"
	mn "notification-workers/internal/workers/communication/mail-notification"

	"go.uber.org/zap"
)

func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	if err := run(cfg, logger.NewZapAdapter(zapLog)); err != nil {
		zapLog.Fatal("worker manager failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log logger.Logger) error {
	log.Info("Starting worker manager", map[string]interface{}{
		"app":         cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	obs := observability.New(serviceName(cfg), log)
	defer obs.Shutdown()

	ctx := context.Background()
	checks := map[string]mn.ReadinessCheck{}

	// --- Template storage ---
	var pg *database.PostgresClient
	err := retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		return err
	}
	defer pg.Close()

	if err := pg.EnsureSchema(ctx); err != nil {
		return err
	}
	checks["postgres"] = pg.Ping

	var resolver templates.Resolver = templates.NewRepository(pg.DB)

	if cfg.Database.Redis.Enabled() {
		rdb := database.NewRedis(cfg.Database.Redis)
		defer rdb.Close()

		rdb.Probe(ctx, log)
		resolver = templates.NewCachedResolver(resolver, rdb.Client, cfg.Dispatch.CacheTTL(), log)
	}

	// --- Mail transport ---
	sender, err := newSender(ctx, cfg, log, checks)
	if err != nil {
		return err
	}

	dispatcher, err := dispatch.New(dispatch.Options{
		Resolver: resolver,
		Sender:   sender,
		Pool:     dispatch.NewPool(cfg.Dispatch.MaxConcurrency, log),
		Logger:   log,
		DefaultFrom: models.Profile{
			Email:     cfg.Mail.DefaultFrom.Email,
			FirstName: cfg.Mail.DefaultFrom.FirstName,
			LastName:  cfg.Mail.DefaultFrom.LastName,
		},
	})
	if err != nil {
		return err
	}

	// --- Zeebe ---
	var camundaClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		camundaClient, err = camunda.NewClientWithConfig(camunda.ClientConfigFrom(cfg.Camunda))
		return err
	}, 10, 2*time.Second, log, "Zeebe client initialization")
	if err != nil {
		return err
	}
	defer camundaClient.Close()

	handler, err := mn.NewHandler(mn.HandlerOptions{
		AppConfig:     cfg,
		Camunda:       camundaClient,
		Logger:        log,
		Dispatcher:    dispatcher,
		Observability: obs,
		Checks:        checks,
	})
	if err != nil {
		return fmt.Errorf("failed to create %s handler: %w", mn.WorkerName, err)
	}
	if err := handler.Register(); err != nil {
		return fmt.Errorf("failed to register %s: %w", mn.TaskType, err)
	}
	defer handler.Close()

	// --- Health & Metrics Server ---
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           newServeMux(handler.HealthCheck),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("Health/Metrics server listening", map[string]interface{}{"address": cfg.Server.Address})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Health/Metrics server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutdown signal received, stopping workers...", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Error stopping health server", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Worker manager stopped gracefully", nil)
	return nil
}

func newSender(ctx context.Context, cfg *config.Config, log logger.Logger, checks map[string]mn.ReadinessCheck) (mail.Sender, error) {
	switch cfg.Mail.Provider {
	case config.MailProviderSES:
		client, err := aws.NewSESClient(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, err
		}
		log.Info("Using SES mail transport", map[string]interface{}{"region": cfg.AWS.Region})
		return aws.NewSESSender(client, cfg.Mail.SES.ConfigurationSet, log), nil

	default:
		smtpSender, err := mail.NewSMTPSender(&mail.Config{
			Host:        cfg.Mail.SMTP.Host,
			Port:        cfg.Mail.SMTP.Port,
			Username:    cfg.Mail.SMTP.Username,
			Password:    cfg.Mail.SMTP.Password,
			UseTLS:      cfg.Mail.SMTP.UseTLS,
			ImplicitTLS: cfg.Mail.SMTP.ImplicitTLS,
			Timeout:     config.GetDuration(cfg.Mail.SMTP.Timeout),
		}, log)
		if err != nil {
			return nil, err
		}
		checks["smtp"] = smtpSender.TestConnection
		log.Info("Using SMTP mail transport", map[string]interface{}{
			"host": cfg.Mail.SMTP.Host,
			"port": cfg.Mail.SMTP.Port,
		})
		return smtpSender, nil
	}
}

func serviceName(cfg *config.Config) string {
	if cfg.App.Name != "" {
		return cfg.App.Name
	}
	return "notification-workers"
}
