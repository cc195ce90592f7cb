// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"franchise-ledger/internal/common/config"
)

//go:embed schema.sql
var ledgerSchema string

// ledgerTables must all exist once EnsureSchema has run.
var ledgerTables = []string{
	"franchises",
	"franchise_tokens",
	"token_holdings",
	"token_transactions",
	"franchise_wallets",
	"wallet_transactions",
	"revenue_ledger",
	"settlement_outbox",
}

// PostgresClient owns the pool backing the ledger store.
type PostgresClient struct {
	DB *sql.DB
}

func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres %s/%s: %w", cfg.Host, cfg.Database, err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLife) * time.Second)

	return &PostgresClient{DB: db}, nil
}

// NewPostgresWithDB wraps an already opened pool.
func NewPostgresWithDB(db *sql.DB) *PostgresClient {
	return &PostgresClient{DB: db}
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *PostgresClient) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}

// EnsureSchema applies the idempotent ledger DDL and then checks that every
// ledger table is visible to the configured user.
func (c *PostgresClient) EnsureSchema(ctx context.Context) error {
	if _, err := c.DB.ExecContext(ctx, ledgerSchema); err != nil {
		return fmt.Errorf("apply ledger schema: %w", err)
	}

	for _, table := range ledgerTables {
		var found sql.NullString
		if err := c.DB.QueryRowContext(ctx, `SELECT to_regclass($1)::text`, table).Scan(&found); err != nil {
			return fmt.Errorf("check table %s: %w", table, err)
		}
		if !found.Valid {
			return fmt.Errorf("ledger table %s is missing after migration", table)
		}
	}
	return nil
}
