package db

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"

	"plannerrun/internal/apperr"
)

// classify maps a pgx error onto the store error kinds. SQLSTATE classes 22
// (data exception) and 23 (integrity constraint) are caller data problems;
// everything else means the store could not serve the request.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || pgconn.Timeout(err) {
		return &apperr.Error{Kind: apperr.KindTimeout, Op: op, Msg: "database deadline exceeded", Err: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		switch pgErr.Code[:2] {
		case "22", "23":
			return apperr.Wrap(apperr.KindConstraint, op, err)
		}
	}
	return apperr.Wrap(apperr.KindConnection, op, err)
}
