// Package checkout runs the four customer-facing operations: open a checkout
// session, save an intake without payment, reconcile a paid session, and
// count customers. Each is a fixed sequence of calls with no retries.
package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"plannerrun/internal/apperr"
	"plannerrun/internal/models"
	"plannerrun/internal/payment"
	"plannerrun/pkg/logger"
)

const (
	EmailSent   = "sent"
	EmailFailed = "failed"
	DBSaved     = "saved"

	confirmationSubject = "Confirmação de Pagamento - PlannerRun"
)

type Store interface {
	InsertCustomer(ctx context.Context, c *models.Customer) error
	CountCustomers(ctx context.Context) (int64, error)
}

type Payments interface {
	CreateCheckoutSession(ctx context.Context, req payment.CheckoutRequest) (*payment.Session, error)
	RetrieveSession(ctx context.Context, sessionID string) (*payment.Session, error)
}

type Mailer interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

type Alerter interface {
	CustomerPaid(ctx context.Context, c *models.Customer) error
}

type Options struct {
	// RequirePaid rejects sessions whose payment has not completed.
	RequirePaid bool
	// Alerter is optional.
	Alerter Alerter
	// Now defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	store       Store
	payments    Payments
	mailer      Mailer
	alerter     Alerter
	requirePaid bool
	now         func() time.Time
	logger      *logger.Logger
}

func NewService(store Store, payments Payments, mailer Mailer, log *logger.Logger, opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:       store,
		payments:    payments,
		mailer:      mailer,
		alerter:     opts.Alerter,
		requirePaid: opts.RequirePaid,
		now:         now,
		logger:      log,
	}
}

// ReconcileResult is what the payment-details endpoint returns.
type ReconcileResult struct {
	Customer    *models.Customer
	EmailStatus string
	DBStatus    string
}

// CreateSession validates the form and opens a Stripe checkout session,
// returning its redirect URL. The tier is checked before anything else.
func (s *Service) CreateSession(ctx context.Context, form *models.IntakeForm, idempotencyKey string) (string, error) {
	months, ok := form.Tier()
	if !ok {
		return "", apperr.New(apperr.KindInvalidTier, "checkout.CreateSession", "mesesAcompanhamento inválido")
	}

	intake, err := form.Intake()
	if err != nil {
		return "", err
	}

	sess, err := s.payments.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		Months:         months,
		Intake:         intake,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return "", err
	}

	s.logger.Infow("Checkout session created", "session_id", sess.ID, "meses", months)
	return sess.URL, nil
}

// SaveIntake stores an intake that did not go through payment.
func (s *Service) SaveIntake(ctx context.Context, form *models.IntakeForm) (*models.Customer, error) {
	intake, err := form.Intake()
	if err != nil {
		return nil, err
	}

	customer := &models.Customer{Intake: intake, Status: models.StatusRegistered}
	if err := s.store.InsertCustomer(ctx, customer); err != nil {
		return nil, err
	}

	s.logger.Infow("Intake saved", "user_id", customer.ID)
	return customer, nil
}

// Reconcile reads a checkout session back, stores its intake as a new
// pending customer and emails a confirmation. Calling it twice with the same
// session stores two rows. A mail failure does not fail the call; it is
// reported through EmailStatus.
func (s *Service) Reconcile(ctx context.Context, sessionID string) (*ReconcileResult, error) {
	const op = "checkout.Reconcile"

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, apperr.New(apperr.KindValidation, op, "session_id obrigatório")
	}

	sess, err := s.payments.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if s.requirePaid && !sess.Paid() {
		return nil, apperr.New(apperr.KindPaymentIncomplete, op,
			fmt.Sprintf("pagamento não concluído (payment_status=%s)", sess.PaymentStatus))
	}

	intake, err := models.IntakeFromMetadata(sess.Metadata)
	if err != nil {
		return nil, err
	}

	paidAt := s.now().UTC()
	customer := &models.Customer{
		Intake:        intake,
		Status:        models.StatusPending,
		DataPagamento: &paidAt,
	}
	if err := s.store.InsertCustomer(ctx, customer); err != nil {
		return nil, err
	}

	result := &ReconcileResult{
		Customer:    customer,
		EmailStatus: EmailSent,
		DBStatus:    DBSaved,
	}

	body := fmt.Sprintf("Obrigado pelo pagamento! ID interno: %d.", customer.ID)
	if err := s.mailer.Send(ctx, intake.Email, confirmationSubject, body); err != nil {
		s.logger.Errorw("Failed to send confirmation email",
			"error", err, "user_id", customer.ID, "session_id", sessionID)
		result.EmailStatus = EmailFailed
	} else {
		s.logger.Infow("Confirmation email sent", "user_id", customer.ID)
	}

	if s.alerter != nil {
		if err := s.alerter.CustomerPaid(ctx, customer); err != nil {
			s.logger.Warnw("Failed to send payment alert", "error", err, "user_id", customer.ID)
		}
	}

	return result, nil
}

func (s *Service) CountCustomers(ctx context.Context) (int64, error) {
	return s.store.CountCustomers(ctx)
}
