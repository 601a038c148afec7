// Package apperr defines the failure kinds shared by the gateways and the
// checkout flow, and how each kind is reported over HTTP.
package apperr

import (
	"context"
	"errors"
	"net/http"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindInvalidTier
	KindProvider
	KindNotFound
	KindConnection
	KindConstraint
	KindTimeout
	KindPaymentIncomplete
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInvalidTier:
		return "invalid_tier"
	case KindProvider:
		return "provider"
	case KindNotFound:
		return "not_found"
	case KindConnection:
		return "connection"
	case KindConstraint:
		return "constraint"
	case KindTimeout:
		return "timeout"
	case KindPaymentIncomplete:
		return "payment_incomplete"
	default:
		return "unknown"
	}
}

// Error carries a kind, the operation that failed and an optional cause.
// Msg is safe to show to API clients; Err may contain internal detail.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Op + ": " + e.Msg + ": " + e.Err.Error()
	case e.Err != nil:
		return e.Op + ": " + e.Err.Error()
	default:
		return e.Op + ": " + e.Msg
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

func Wrap(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// FromContext returns a timeout error when err was caused by a cancelled or
// expired context, otherwise it wraps err with the fallback kind.
func FromContext(fallback Kind, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Kind: KindTimeout, Op: op, Msg: "deadline exceeded", Err: err}
	}
	return Wrap(fallback, op, err)
}

// KindOf reports the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindInvalidTier:
		return http.StatusBadRequest
	case KindPaymentIncomplete:
		return http.StatusPaymentRequired
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the client-facing text for err. Client errors always expose
// their message; server errors only when expose is set.
func PublicMessage(err error, expose bool) string {
	kind := KindOf(err)
	if HTTPStatus(kind) < http.StatusInternalServerError {
		var e *Error
		if errors.As(err, &e) && e.Msg != "" {
			return e.Msg
		}
		return err.Error()
	}
	if expose {
		return err.Error()
	}
	switch kind {
	case KindProvider:
		return "payment provider error"
	case KindNotFound:
		return "checkout session not found"
	case KindConnection:
		return "database unavailable"
	case KindConstraint:
		return "invalid customer data"
	case KindTimeout:
		return "upstream service timed out"
	default:
		return "internal error"
	}
}
