package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hanna-agency/workshop-registration/api"
	"github.com/hanna-agency/workshop-registration/config"
	"github.com/hanna-agency/workshop-registration/notification"
	"github.com/hanna-agency/workshop-registration/payment"
	"github.com/hanna-agency/workshop-registration/reminder"
	"github.com/hanna-agency/workshop-registration/supervisor"
)

const serviceName = "workshop-registration"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Env)

	shutdownTracing, err := setupTracing(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownTracing(shutdownCtx)
	}()

	db, closeDB, err := createStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	processed, closeLedger, err := createLedger(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLedger()

	sender, err := createEmailSender(ctx, logger, cfg.Env)
	if err != nil {
		return err
	}

	dispatcher := notification.NewDispatcher(sender, cfg.EmailFromAddress, db, logger)
	scanner := reminder.NewScanner(db, db, dispatcher, logger, reminder.WithProfileURL(cfg.ProfileURL))

	registrationAPI := api.NewAPI(
		db,
		logger,
		api.Settings{
			Env:                cfg.Env,
			CronSecret:         cfg.CronSecret,
			AdminAPIToken:      cfg.AdminAPIToken,
			CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		},
		payment.NewStripeVerifier(cfg.StripeWebhookSecret),
		payment.NewPayPalClient(cfg.PayPalBaseURL, cfg.PayPalClientID, cfg.PayPalClientSecret, nil),
		dispatcher,
		scanner,
		processed,
	)

	handler, err := registrationAPI.Handler()
	if err != nil {
		return err
	}

	server := &http.Server{
		Handler:           handler,
		Addr:              cfg.Addr(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	tree := supervisor.NewTree(logger, supervisor.DefaultTreeConfig())
	tree.AddAPIService(supervisor.NewHTTPServerService(server, 15*time.Second))
	tree.AddJobService(reminder.NewScheduler(scanner, cfg.ReminderScanInterval, logger))

	logger.Info("Starting server",
		slog.String("addr", cfg.Addr()),
		slog.String("env", string(cfg.Env)),
		slog.String("store", string(cfg.StoreBackend)),
	)
	return tree.Serve(ctx)
}

func newLogger(env config.Environment) *slog.Logger {
	if env == config.PROD {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
