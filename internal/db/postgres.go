package db

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"plannerrun/internal/apperr"
	"plannerrun/internal/config"
	"plannerrun/internal/models"
)

const customerColumns = `id, altura, peso, idade, objetivo, dias, meses, nivel, email, status, data_pagamento, tentativas, retry_at, created_at`

type PostgresDB struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

// ConnString builds a postgres:// URL for cfg. Every part is escaped, so
// empty or unusual passwords survive parsing.
func ConnString(cfg config.DB) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(cfg.Host, cfg.Port),
		Path:   "/" + cfg.DBName,
	}
	if cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	} else if cfg.User != "" {
		u.User = url.User(cfg.User)
	}

	q := url.Values{}
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	q.Set("pool_max_conns", strconv.Itoa(maxConns(cfg)))
	u.RawQuery = q.Encode()

	return u.String()
}

func maxConns(cfg config.DB) int {
	if cfg.MaxConns <= 0 {
		return 10
	}
	return cfg.MaxConns
}

func NewPostgresDB(ctx context.Context, cfg config.DB) (*PostgresDB, error) {
	const op = "db.Connect"

	poolConfig, err := pgxpool.ParseConfig(ConnString(cfg))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConnection, op, fmt.Errorf("failed to parse DB connection string: %w", err))
	}

	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}
	poolConfig.ConnConfig.ConnectTimeout = connectTimeout
	poolConfig.MaxConns = int32(maxConns(cfg))
	poolConfig.MaxConnIdleTime = 15 * time.Minute
	poolConfig.MaxConnLifetime = time.Hour

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, classify(op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, classify(op, err)
	}

	queryTimeout := cfg.QueryTimeout
	if queryTimeout <= 0 {
		queryTimeout = 5 * time.Second
	}
	return &PostgresDB{pool: pool, queryTimeout: queryTimeout}, nil
}

func (db *PostgresDB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

func (db *PostgresDB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, db.queryTimeout)
	defer cancel()
	if err := db.pool.Ping(ctx); err != nil {
		return classify("db.Ping", err)
	}
	return nil
}

// InsertCustomer stores c in its own transaction and sets c.ID.
func (db *PostgresDB) InsertCustomer(ctx context.Context, c *models.Customer) error {
	const op = "db.InsertCustomer"

	ctx, cancel := context.WithTimeout(ctx, db.queryTimeout)
	defer cancel()

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return classify(op, err)
	}
	// no-op once committed
	defer tx.Rollback(ctx)

	status := c.Status
	if status == "" {
		status = models.StatusRegistered
	}

	query := `
        INSERT INTO clientes (altura, peso, idade, objetivo, dias, meses, nivel, email, status, data_pagamento)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING id, created_at
    `
	err = tx.QueryRow(ctx, query,
		c.Altura, c.Peso, c.Idade, c.Objetivo,
		c.Dias, c.Meses, c.Nivel, c.Email,
		status, c.DataPagamento,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return classify(op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classify(op, err)
	}
	c.Status = status
	return nil
}

func (db *PostgresDB) CountCustomers(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, db.queryTimeout)
	defer cancel()

	var count int64
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clientes`).Scan(&count); err != nil {
		return 0, classify("db.CountCustomers", err)
	}
	return count, nil
}

// FetchOldestPending returns the oldest row that is not completed, without
// claiming it. Two callers may see the same row; workers use
// ClaimOldestPending instead. Returns nil when nothing is pending.
func (db *PostgresDB) FetchOldestPending(ctx context.Context) (*models.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, db.queryTimeout)
	defer cancel()

	query := `
        SELECT ` + customerColumns + `
        FROM clientes
        WHERE status <> $1 AND status <> $2
        ORDER BY data_pagamento ASC NULLS LAST, id ASC
        LIMIT 1
    `
	c, err := scanCustomer(db.pool.QueryRow(ctx, query, models.StatusCompleted, models.StatusRegistered))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("db.FetchOldestPending", err)
	}
	return c, nil
}

// ClaimOldestPending atomically moves the oldest claimable row to processing
// and returns it. A row is claimable when it is pending and its retry time has
// passed, or when it has been processing for longer than staleAfter (the
// worker holding it died or lost track of it). Concurrent callers never
// receive the same row. Returns nil when nothing is claimable.
func (db *PostgresDB) ClaimOldestPending(ctx context.Context, staleAfter time.Duration) (*models.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, db.queryTimeout)
	defer cancel()

	query := `
        UPDATE clientes
        SET status = $1, claimed_at = now()
        WHERE id = (
            SELECT id FROM clientes
            WHERE (status = $2 AND (retry_at IS NULL OR retry_at <= now()))
               OR (status = $1 AND COALESCE(claimed_at, created_at) < now() - make_interval(secs => $3))
            ORDER BY data_pagamento ASC NULLS LAST, id ASC
            LIMIT 1
            FOR UPDATE SKIP LOCKED
        )
        RETURNING ` + customerColumns
	c, err := scanCustomer(db.pool.QueryRow(ctx, query,
		models.StatusProcessing, models.StatusPending, staleAfter.Seconds()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("db.ClaimOldestPending", err)
	}
	return c, nil
}

// MarkCompleted flips a row to concluido. Completing an already completed
// row is a no-op; an unknown id is a not-found error.
func (db *PostgresDB) MarkCompleted(ctx context.Context, id int64) error {
	const op = "db.MarkCompleted"

	ctx, cancel := context.WithTimeout(ctx, db.queryTimeout)
	defer cancel()

	tag, err := db.pool.Exec(ctx,
		`UPDATE clientes SET status = $1, claimed_at = NULL, retry_at = NULL WHERE id = $2 AND status <> $1`,
		models.StatusCompleted, id,
	)
	if err != nil {
		return classify(op, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := db.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM clientes WHERE id = $1)`, id).Scan(&exists); err != nil {
			return classify(op, err)
		}
		if !exists {
			return apperr.New(apperr.KindNotFound, op, fmt.Sprintf("cliente %d not found", id))
		}
	}
	return nil
}

// ReleaseClaim puts a processing row back in the pending queue after a failed
// delivery. The row counts one more attempt and stays out of the queue for
// retryIn, so rows behind it are served first.
func (db *PostgresDB) ReleaseClaim(ctx context.Context, id int64, retryIn time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, db.queryTimeout)
	defer cancel()

	_, err := db.pool.Exec(ctx, `
        UPDATE clientes
        SET status = $1,
            tentativas = tentativas + 1,
            retry_at = now() + make_interval(secs => $2),
            claimed_at = NULL
        WHERE id = $3 AND status = $4`,
		models.StatusPending, retryIn.Seconds(), id, models.StatusProcessing,
	)
	if err != nil {
		return classify("db.ReleaseClaim", err)
	}
	return nil
}

func scanCustomer(row pgx.Row) (*models.Customer, error) {
	var c models.Customer
	err := row.Scan(
		&c.ID, &c.Altura, &c.Peso, &c.Idade, &c.Objetivo,
		&c.Dias, &c.Meses, &c.Nivel, &c.Email,
		&c.Status, &c.DataPagamento, &c.Attempts, &c.RetryAt, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
