package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/dealdesk/dealdesk-backend/api/routes"
	"github.com/dealdesk/dealdesk-backend/internal/bookings"
	"github.com/dealdesk/dealdesk-backend/internal/confirmations"
	"github.com/dealdesk/dealdesk-backend/internal/invoices"
	"github.com/dealdesk/dealdesk-backend/internal/reports"
	"github.com/dealdesk/dealdesk-backend/internal/snapshots"
	"github.com/dealdesk/dealdesk-backend/pkg/config"
	"github.com/dealdesk/dealdesk-backend/pkg/db"
	"github.com/dealdesk/dealdesk-backend/pkg/logger"
	"github.com/dealdesk/dealdesk-backend/pkg/metrics"
	"github.com/dealdesk/dealdesk-backend/pkg/migrate"
	"github.com/dealdesk/dealdesk-backend/pkg/redis"
	"github.com/dealdesk/dealdesk-backend/pkg/signing"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	signer, err := signing.NewSigner(cfg.Signing.Secret)
	if err != nil {
		logg.Error(context.Background(), "failed to create signer", err)
		os.Exit(1)
	}

	snapshotSvc, err := snapshots.NewService(snapshots.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create snapshots service", err)
		os.Exit(1)
	}
	confirmationSvc, err := confirmations.NewService(confirmations.NewRepository(dbClient.DB()), snapshotSvc, signer)
	if err != nil {
		logg.Error(context.Background(), "failed to create confirmations service", err)
		os.Exit(1)
	}
	bookingSvc, err := bookings.NewService(bookings.NewRepository(dbClient.DB()), snapshotSvc, cfg.Booking)
	if err != nil {
		logg.Error(context.Background(), "failed to create bookings service", err)
		os.Exit(1)
	}
	reportSvc, err := reports.NewService(reports.NewRepository(dbClient.DB()), bookingSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create reports service", err)
		os.Exit(1)
	}
	invoiceSvc, err := invoices.NewService(invoices.NewRepository(dbClient.DB()), snapshotSvc, reportSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create invoices service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.New(routes.Deps{
			Logger:           logg,
			Snapshots:        snapshotSvc,
			Confirmations:    confirmationSvc,
			Bookings:         bookingSvc,
			Reports:          reportSvc,
			Invoices:         invoiceSvc,
			DB:               dbClient,
			Redis:            redisClient,
			IdempotencyStore: redisClient,
			IdempotencyTTL:   cfg.Idempotency.TTL,
			Metrics:          metrics.NewHTTPMetrics(),
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
