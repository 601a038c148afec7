package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"plannerrun/internal/apperr"
	"plannerrun/internal/checkout"
	"plannerrun/internal/models"
	"plannerrun/pkg/logger"
)

type CheckoutService interface {
	CreateSession(ctx context.Context, form *models.IntakeForm, idempotencyKey string) (string, error)
	SaveIntake(ctx context.Context, form *models.IntakeForm) (*models.Customer, error)
	Reconcile(ctx context.Context, sessionID string) (*checkout.ReconcileResult, error)
	CountCustomers(ctx context.Context) (int64, error)
}

// Pinger reports whether the database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	svc          CheckoutService
	db           Pinger
	logger       *logger.Logger
	exposeErrors bool
}

func NewHandlers(svc CheckoutService, db Pinger, logger *logger.Logger, exposeErrors bool) *Handlers {
	return &Handlers{svc: svc, db: db, logger: logger, exposeErrors: exposeErrors}
}

// Health answers OK only while the database is reachable, so the pod is
// taken out of rotation when Postgres is gone.
func (h *Handlers) Health(c *gin.Context) {
	if err := h.db.Ping(c.Request.Context()); err != nil {
		h.logger.Warnw("Health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database unavailable"})
		return
	}
	c.String(http.StatusOK, "OK")
}

type paymentDetailsResponse struct {
	UserID      int64   `json:"user_id"`
	Altura      float64 `json:"altura"`
	Peso        float64 `json:"peso"`
	Idade       int     `json:"idade"`
	Objetivo    string  `json:"objetivo"`
	Dias        int     `json:"dias"`
	Meses       int     `json:"meses"`
	Nivel       string  `json:"nivel"`
	Email       string  `json:"email"`
	EmailStatus string  `json:"email_status"`
	DBStatus    string  `json:"db_status"`
}

func (h *Handlers) CreateCheckoutSession(c *gin.Context) {
	var form models.IntakeForm
	if err := c.ShouldBindJSON(&form); err != nil {
		h.fail(c, invalidBody("server.CreateCheckoutSession", err))
		return
	}

	url, err := h.svc.CreateSession(c.Request.Context(), &form, c.GetHeader("Idempotency-Key"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *Handlers) PaymentDetails(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		h.fail(c, apperr.New(apperr.KindValidation, "server.PaymentDetails", "session_id obrigatório"))
		return
	}

	result, err := h.svc.Reconcile(c.Request.Context(), sessionID)
	if err != nil {
		h.fail(c, err)
		return
	}

	cust := result.Customer
	c.JSON(http.StatusOK, paymentDetailsResponse{
		UserID:      cust.ID,
		Altura:      cust.Altura,
		Peso:        cust.Peso,
		Idade:       cust.Idade,
		Objetivo:    cust.Objetivo,
		Dias:        cust.Dias,
		Meses:       cust.Meses,
		Nivel:       cust.Nivel,
		Email:       cust.Email,
		EmailStatus: result.EmailStatus,
		DBStatus:    result.DBStatus,
	})
}

func (h *Handlers) SaveUserInput(c *gin.Context) {
	var form models.IntakeForm
	if err := c.ShouldBindJSON(&form); err != nil {
		h.fail(c, invalidBody("server.SaveUserInput", err))
		return
	}

	customer, err := h.svc.SaveIntake(c.Request.Context(), &form)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Dados salvos com sucesso",
		"user_id": customer.ID,
	})
}

func (h *Handlers) ClientesCount(c *gin.Context) {
	count, err := h.svc.CountCustomers(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// fail logs err and writes {"error": ...} with the status of its kind.
func (h *Handlers) fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)

	fields := []interface{}{
		"error", err,
		"kind", kind.String(),
		"path", c.Request.URL.Path,
		requestIDKey, c.GetString(requestIDKey),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Errorw("Request failed", fields...)
	} else {
		h.logger.Warnw("Request rejected", fields...)
	}

	c.JSON(status, gin.H{"error": apperr.PublicMessage(err, h.exposeErrors)})
}

func invalidBody(op string, err error) error {
	return &apperr.Error{Kind: apperr.KindValidation, Op: op, Msg: "corpo JSON inválido", Err: err}
}
