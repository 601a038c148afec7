package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindInvalidTier, http.StatusBadRequest},
		{KindPaymentIncomplete, http.StatusPaymentRequired},
		{KindTimeout, http.StatusGatewayTimeout},
		{KindProvider, http.StatusInternalServerError},
		{KindNotFound, http.StatusInternalServerError},
		{KindConnection, http.StatusInternalServerError},
		{KindConstraint, http.StatusInternalServerError},
		{KindUnknown, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := HTTPStatus(tt.kind); got != tt.want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestKindOfSurvivesWrapping(t *testing.T) {
	t.Parallel()

	base := New(KindConstraint, "db.InsertCustomer", "bad age")
	wrapped := fmt.Errorf("saving intake: %w", base)

	if got := KindOf(wrapped); got != KindConstraint {
		t.Errorf("Expected constraint kind, got %s", got)
	}
	if !Is(wrapped, KindConstraint) {
		t.Error("Expected Is to match constraint kind")
	}
	if got := KindOf(errors.New("plain")); got != KindUnknown {
		t.Errorf("Expected unknown kind for plain error, got %s", got)
	}
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("dial: %w", context.DeadlineExceeded)
	err := FromContext(KindProvider, "payment.RetrieveSession", cause)
	if KindOf(err) != KindTimeout {
		t.Errorf("Expected timeout kind, got %s", KindOf(err))
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("Expected cause to stay in the chain")
	}

	err = FromContext(KindProvider, "payment.RetrieveSession", errors.New("boom"))
	if KindOf(err) != KindProvider {
		t.Errorf("Expected provider kind, got %s", KindOf(err))
	}
}

func TestPublicMessage(t *testing.T) {
	t.Parallel()

	clientErr := New(KindInvalidTier, "payment.PriceFor", "mesesAcompanhamento inválido")
	if got := PublicMessage(clientErr, false); got != "mesesAcompanhamento inválido" {
		t.Errorf("Expected client message, got %q", got)
	}

	serverErr := Wrap(KindConnection, "db.CountCustomers", errors.New("password authentication failed for user \"postgres\""))
	hidden := PublicMessage(serverErr, false)
	if strings.Contains(hidden, "password") {
		t.Errorf("Expected internal detail to be hidden, got %q", hidden)
	}
	if hidden != "database unavailable" {
		t.Errorf("Expected generic message, got %q", hidden)
	}

	exposed := PublicMessage(serverErr, true)
	if !strings.Contains(exposed, "password authentication failed") {
		t.Errorf("Expected raw error when exposing, got %q", exposed)
	}
}

func TestErrorString(t *testing.T) {
	t.Parallel()

	err := &Error{Kind: KindNotFound, Op: "payment.RetrieveSession", Msg: "checkout session not found", Err: errors.New("404")}
	if got := err.Error(); got != "payment.RetrieveSession: checkout session not found: 404" {
		t.Errorf("Unexpected error string %q", got)
	}
}
