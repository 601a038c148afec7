package fulfillment

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"plannerrun/internal/config"
	"plannerrun/internal/models"
	"plannerrun/pkg/logger"
)

const planSubject = "Seu plano de treino - PlannerRun"

type Queue interface {
	ClaimOldestPending(ctx context.Context, staleAfter time.Duration) (*models.Customer, error)
	MarkCompleted(ctx context.Context, id int64) error
	ReleaseClaim(ctx context.Context, id int64, retryIn time.Duration) error
}

type Planner interface {
	GeneratePlan(ctx context.Context, c *models.Customer) (string, error)
}

type Mailer interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// Worker delivers training plans to paid customers, oldest payment first.
type Worker struct {
	queue        Queue
	planner      Planner
	mailer       Mailer
	interval     time.Duration
	retryBackoff time.Duration
	maxBackoff   time.Duration
	claimTimeout time.Duration
	logger       *logger.Logger
}

func NewWorker(queue Queue, planner Planner, mailer Mailer, cfg config.Worker, logger *logger.Logger) *Worker {
	w := &Worker{
		queue:        queue,
		planner:      planner,
		mailer:       mailer,
		interval:     cfg.Interval,
		retryBackoff: cfg.RetryBackoff,
		maxBackoff:   cfg.MaxRetryBackoff,
		claimTimeout: cfg.ClaimTimeout,
		logger:       logger,
	}
	if w.interval <= 0 {
		w.interval = 30 * time.Second
	}
	// a failed row must leave the head of the queue, or Drain would claim it again at once
	if w.retryBackoff <= 0 {
		w.retryBackoff = time.Minute
	}
	if w.maxBackoff <= 0 {
		w.maxBackoff = time.Hour
	}
	if w.maxBackoff < w.retryBackoff {
		w.maxBackoff = w.retryBackoff
	}
	if w.claimTimeout <= 0 {
		w.claimTimeout = 15 * time.Minute
	}
	return w
}

// backoff is how long a customer with the given number of failed attempts
// waits before the next one: retryBackoff doubled per attempt, capped.
func (w *Worker) backoff(attempts int) time.Duration {
	d := w.retryBackoff
	for i := 0; i < attempts && d < w.maxBackoff; i++ {
		d *= 2
	}
	if d > w.maxBackoff {
		d = w.maxBackoff
	}
	return d
}

// ProcessNext handles at most one claimable customer. It reports false when
// nothing could be claimed. A delivery failure is returned with true: the
// claim is released with a backoff so other customers are served first.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	customer, err := w.queue.ClaimOldestPending(ctx, w.claimTimeout)
	if err != nil {
		return false, fmt.Errorf("failed to claim pending customer: %w", err)
	}
	if customer == nil {
		return false, nil
	}

	log := w.logger.With("user_id", customer.ID, "attempts", customer.Attempts)
	log.Infow("Generating training plan")

	if err := w.deliver(ctx, customer); err != nil {
		retryIn := w.backoff(customer.Attempts)
		// release with a fresh context so shutdown does not strand the row
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if relErr := w.queue.ReleaseClaim(releaseCtx, customer.ID, retryIn); relErr != nil {
			log.Errorw("Failed to release claim; row is reclaimed after the claim timeout",
				"error", relErr, "claim_timeout", w.claimTimeout)
		} else {
			log.Warnw("Delivery failed, retry scheduled", "error", err, "retry_in", retryIn)
		}
		return true, err
	}

	// The plan is already out; a fresh context keeps shutdown from leaving
	// the row in processing, where it would be delivered a second time.
	markCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.queue.MarkCompleted(markCtx, customer.ID); err != nil {
		log.Errorw("Plan sent but row not completed; it will be delivered again after the claim timeout",
			"error", err, "claim_timeout", w.claimTimeout)
		return true, fmt.Errorf("plan sent but failed to mark customer %d completed: %w", customer.ID, err)
	}

	log.Infow("Training plan delivered")
	return true, nil
}

func (w *Worker) deliver(ctx context.Context, customer *models.Customer) error {
	plan, err := w.planner.GeneratePlan(ctx, customer)
	if err != nil {
		return fmt.Errorf("failed to generate plan for customer %d: %w", customer.ID, err)
	}

	body := "🎉 Seu plano de treino personalizado está pronto!\n\n" + plan
	if err := w.mailer.Send(ctx, customer.Email, planSubject, body); err != nil {
		return fmt.Errorf("failed to email plan to customer %d: %w", customer.ID, err)
	}
	return nil
}

// Drain processes customers until nothing is claimable. A customer whose
// delivery fails is skipped (its retry is scheduled) and draining goes on;
// those failures are returned together. Claim and context errors stop the
// drain. It returns how many customers were delivered.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	var (
		delivered int
		failures  error
	)
	for ctx.Err() == nil {
		processed, err := w.ProcessNext(ctx)
		if !processed {
			return delivered, multierr.Append(failures, err)
		}
		if err != nil {
			failures = multierr.Append(failures, err)
			continue
		}
		delivered++
	}
	return delivered, multierr.Append(failures, ctx.Err())
}

// Run drains the queue every interval until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Infow("Fulfillment worker started", "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if n, err := w.Drain(ctx); err != nil && ctx.Err() == nil {
			w.logger.Errorw("Fulfillment run failed", "error", err, "delivered", n)
		} else if n > 0 {
			w.logger.Infow("Fulfillment run finished", "delivered", n)
		}

		select {
		case <-ctx.Done():
			w.logger.Infow("Fulfillment worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}
