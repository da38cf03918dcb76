package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/apsicologia/clinicauth"
	"github.com/apsicologia/clinicauth/httpapi"
	"github.com/apsicologia/clinicauth/logging"
	"github.com/apsicologia/clinicauth/store/postgres"
)

const shutdownGrace = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := loadServerConfig()
	if err != nil {
		return err
	}

	log := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return err
	}

	engineCfg := defaultEngineConfig(clinicauth.Config{})
	engineCfg.Token.AccessSecret = []byte(cfg.AccessSecret)
	engineCfg.Token.RefreshSecret = []byte(cfg.RefreshSecret)
	engineCfg.Token.Issuer = cfg.TokenIssuer
	engineCfg.ProductionMode = cfg.Production

	var sink clinicauth.AuditSink
	if cfg.AuditPath != "" {
		auditFile, err := os.OpenFile(cfg.AuditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return err
		}
		defer auditFile.Close()
		sink = clinicauth.NewJSONWriterSink(auditFile)
		engineCfg.Audit.Enabled = true
	}

	engine, err := clinicauth.New().
		WithConfig(engineCfg).
		WithStore(postgres.New(db)).
		WithRedis(redisClient).
		WithAuditSink(sink).
		WithLogger(log).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	api := httpapi.NewServer(engine, log, nil)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "http server listening", "addr", cfg.HTTPAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// defaultEngineConfig mirrors the library defaults so the binary only has to
// supply secrets and deployment toggles.
func defaultEngineConfig(cfg clinicauth.Config) clinicauth.Config {
	cfg.Password.Cost = 12
	cfg.Token.AccessTTL = 15 * time.Minute
	cfg.Token.RefreshTTL = 7 * 24 * time.Hour
	cfg.TwoFactor.Issuer = "apsicologia"
	cfg.TwoFactor.Digits = 6
	cfg.TwoFactor.Period = 30
	cfg.TwoFactor.Skew = 1
	cfg.TwoFactor.EnrollmentTTL = 10 * time.Minute
	cfg.TwoFactor.BackupCodeCount = 10
	cfg.TwoFactor.BackupCodeLength = 10
	cfg.TwoFactor.MaxAttempts = 5
	cfg.TwoFactor.AttemptWindow = 10 * time.Minute
	cfg.Reset.TokenTTL = time.Hour
	cfg.Verification.TokenTTL = 24 * time.Hour
	cfg.RateLimit.LoginMaxAttempts = 10
	cfg.RateLimit.LoginWindow = 15 * time.Minute
	cfg.Audit.BufferSize = 1024
	cfg.Audit.DropIfFull = true
	cfg.Metrics.Enabled = true
	return cfg
}
