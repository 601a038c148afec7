package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"plannerrun/internal/fulfillment"
	"plannerrun/internal/gpt"
	"plannerrun/internal/mailer"
)

var fulfillOnce bool

func fulfillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fulfill",
		Short: "Generate and email training plans for paid customers",
		Long: `Claims pending customers oldest payment first, generates a training plan
with the OpenAI API, emails it and marks the customer completed.

Several fulfill processes may run at once; each customer is claimed by exactly one.

Examples:
  plannerrun fulfill
  plannerrun fulfill --once`,
		RunE: runFulfill,
	}

	cmd.Flags().BoolVar(&fulfillOnce, "once", false, "drain the queue once and exit")

	return cmd
}

func runFulfill(cmd *cobra.Command, args []string) error {
	cfg, l, err := setup()
	if err != nil {
		return err
	}
	defer l.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := connectDB(ctx, cfg.DB, l)
	if err != nil {
		return err
	}
	defer database.Close()

	planner, err := gpt.NewClient(cfg.GPT)
	if err != nil {
		return err
	}
	smtpMailer, err := mailer.NewSMTPMailer(cfg.SMTP)
	if err != nil {
		return err
	}

	worker := fulfillment.NewWorker(database, planner, smtpMailer, cfg.Worker, l)

	if fulfillOnce {
		n, err := worker.Drain(ctx)
		fmt.Printf("Delivered %d plan(s)\n", n)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
	return worker.Run(ctx)
}
