package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"

	"plannerrun/internal/apperr"
	"plannerrun/internal/config"
	"plannerrun/internal/models"
	"plannerrun/pkg/logger"
)

// CheckoutRequest is everything needed to open a checkout session.
type CheckoutRequest struct {
	Months         int64
	Intake         models.Intake
	IdempotencyKey string
}

// Session is the part of a Stripe checkout session the API cares about.
type Session struct {
	ID            string
	URL           string
	Metadata      map[string]string
	PaymentStatus string
}

// Paid reports whether the customer completed payment. A session fully
// covered by a promotion code needs no payment and counts as paid.
func (s *Session) Paid() bool {
	switch stripe.CheckoutSessionPaymentStatus(s.PaymentStatus) {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return true
	}
	return false
}

type StripeClient struct {
	api        *client.API
	baseURL    string
	priceTiers map[int64]string
	timeout    time.Duration
}

func NewStripeClient(cfg config.Stripe, baseURL string, log *logger.Logger) *StripeClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	// Each call carries its own deadline; the client timeout only backstops it.
	backendConfig := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: 2 * timeout},
		LeveledLogger:     log.SugaredLogger,
		MaxNetworkRetries: stripe.Int64(0),
	}
	if cfg.APIURL != "" {
		backendConfig.URL = stripe.String(strings.TrimRight(cfg.APIURL, "/"))
	}
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendConfig),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendConfig),
	}

	return &StripeClient{
		api:        client.New(cfg.SecretKey, backends),
		baseURL:    strings.TrimRight(baseURL, "/"),
		priceTiers: cfg.PriceTiers(),
		timeout:    timeout,
	}
}

// PriceFor resolves a subscription length to its configured price id.
func (s *StripeClient) PriceFor(months int64) (string, error) {
	priceID, ok := s.priceTiers[months]
	if !ok || priceID == "" {
		return "", apperr.New(apperr.KindInvalidTier, "payment.PriceFor", "mesesAcompanhamento inválido")
	}
	return priceID, nil
}

// CreateCheckoutSession opens a one-time card payment session carrying the
// intake as metadata. An unknown tier fails before Stripe is contacted.
func (s *StripeClient) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*Session, error) {
	const op = "payment.CreateCheckoutSession"

	priceID, err := s.PriceFor(req.Months)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{
			"card",
		}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		Mode:                stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:          stripe.String(s.baseURL + "/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:           stripe.String(s.baseURL + "/cancel"),
		AllowPromotionCodes: stripe.Bool(true),
		PhoneNumberCollection: &stripe.CheckoutSessionPhoneNumberCollectionParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.Intake.Email != "" {
		params.CustomerEmail = stripe.String(req.Intake.Email)
	}
	for k, v := range req.Intake.Metadata() {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, providerError(ctx, op, err)
	}

	return toSession(sess), nil
}

// RetrieveSession fetches a session by id. Payment status is returned, not
// checked; the caller decides whether an unpaid session may be used.
func (s *StripeClient) RetrieveSession(ctx context.Context, sessionID string) (*Session, error) {
	const op = "payment.RetrieveSession"

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, providerError(ctx, op, err)
	}
	return toSession(sess), nil
}

func toSession(sess *stripe.CheckoutSession) *Session {
	out := &Session{
		ID:            sess.ID,
		URL:           sess.URL,
		Metadata:      sess.Metadata,
		PaymentStatus: string(sess.PaymentStatus),
	}
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	return out
}

func providerError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return apperr.FromContext(apperr.KindProvider, op, ctx.Err())
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == http.StatusNotFound || stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return &apperr.Error{Kind: apperr.KindNotFound, Op: op, Msg: "checkout session not found", Err: err}
		}
		return apperr.Wrap(apperr.KindProvider, op, fmt.Errorf("stripe %s: %s", stripeErr.Type, stripeErr.Msg))
	}
	return apperr.FromContext(apperr.KindProvider, op, err)
}
