package db

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS clientes (
            id SERIAL PRIMARY KEY,
            altura DOUBLE PRECISION NOT NULL,
            peso DOUBLE PRECISION NOT NULL,
            idade INTEGER NOT NULL,
            objetivo TEXT NOT NULL,
            dias INTEGER NOT NULL,
            meses INTEGER NOT NULL,
            nivel TEXT NOT NULL,
            email TEXT NOT NULL CHECK (email <> ''),
            status TEXT NOT NULL DEFAULT 'cadastrado',
            data_pagamento TIMESTAMPTZ,
            tentativas INTEGER NOT NULL DEFAULT 0,
            retry_at TIMESTAMPTZ,
            claimed_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
	`ALTER TABLE clientes ADD COLUMN IF NOT EXISTS status TEXT NOT NULL DEFAULT 'cadastrado'`,
	`ALTER TABLE clientes ADD COLUMN IF NOT EXISTS data_pagamento TIMESTAMPTZ`,
	`ALTER TABLE clientes ADD COLUMN IF NOT EXISTS created_at TIMESTAMPTZ NOT NULL DEFAULT now()`,
	`ALTER TABLE clientes ADD COLUMN IF NOT EXISTS tentativas INTEGER NOT NULL DEFAULT 0`,
	`ALTER TABLE clientes ADD COLUMN IF NOT EXISTS retry_at TIMESTAMPTZ`,
	`ALTER TABLE clientes ADD COLUMN IF NOT EXISTS claimed_at TIMESTAMPTZ`,
	`CREATE INDEX IF NOT EXISTS clientes_pendentes_idx ON clientes (data_pagamento) WHERE status = 'pendente'`,
	`CREATE INDEX IF NOT EXISTS clientes_processando_idx ON clientes (claimed_at) WHERE status = 'processando'`,
}

// EnsureSchema creates the clientes table and queue columns if missing.
func (db *PostgresDB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return classify("db.EnsureSchema", fmt.Errorf("%w in stmt: %s", err, stmt))
		}
	}
	return nil
}
