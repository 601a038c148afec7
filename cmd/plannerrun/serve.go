package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"plannerrun/internal/alert"
	"plannerrun/internal/checkout"
	"plannerrun/internal/fulfillment"
	"plannerrun/internal/gpt"
	"plannerrun/internal/mailer"
	"plannerrun/internal/payment"
	"plannerrun/internal/server"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API (and the fulfillment worker when WORKER_ENABLED)",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, l, err := setup()
	if err != nil {
		return err
	}
	defer l.Sync()
	l.Infow("Starting PlannerRun API...", "version", Version)

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := connectDB(ctx, cfg.DB, l)
	if err != nil {
		return err
	}
	defer database.Close()

	smtpMailer, err := mailer.NewSMTPMailer(cfg.SMTP)
	if err != nil {
		return err
	}

	stripeClient := payment.NewStripeClient(cfg.Stripe, cfg.BaseURL, l)

	opts := checkout.Options{RequirePaid: cfg.Stripe.RequirePaid}
	if cfg.Telegram.Token != "" {
		alerter, err := alert.NewTelegramAlerter(cfg.Telegram.Token, cfg.Telegram.AdminChatID, l)
		if err != nil {
			// alerts are optional; the API works without them
			l.Errorw("Telegram alerts disabled", "error", err)
		} else {
			opts.Alerter = alerter
		}
	}
	if !cfg.Stripe.RequirePaid {
		l.Warnw("STRIPE_REQUIRE_PAID is off: unpaid sessions will be stored and confirmed")
	}

	svc := checkout.NewService(database, stripeClient, smtpMailer, l, opts)

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := server.NewRouter(server.NewHandlers(svc, database, l, cfg.Server.ExposeErrors), cfg.Origins(), l)
	httpServer := server.NewServer(cfg.Server.Port, router, l)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	workerDone := make(chan struct{})
	if cfg.Worker.Enabled {
		planner, err := gpt.NewClient(cfg.GPT)
		if err != nil {
			cancelWorker()
			return err
		}
		worker := fulfillment.NewWorker(database, planner, smtpMailer, cfg.Worker, l)
		go func() {
			defer close(workerDone)
			_ = worker.Run(workerCtx)
		}()
	} else {
		close(workerDone)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		l.Infow("Shutting down...")
	case runErr = <-serverErr:
		if runErr != nil {
			l.Errorw("HTTP server failed", "error", runErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop HTTP server first
	if err := httpServer.Stop(shutdownCtx); err != nil {
		l.Errorw("Error during HTTP server shutdown", "error", err)
	}

	// Then stop the worker
	cancelWorker()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		l.Warnw("Fulfillment worker did not stop in time")
	}

	l.Infow("PlannerRun API stopped")
	return runErr
}
