package postgres

import (
	"context"
	"fmt"

	"sale-service/config"
	"sale-service/internal/store"
	"sale-service/internal/util"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Store is the PostgreSQL implementation of store.Repository
type Store struct {
	scope
	db     *sqlx.DB
	txOpts TxOptions
}

// scope runs queries against either the pool or an open transaction
type scope struct {
	q sqlx.ExtContext
}

func (s scope) Inventory() store.InventoryStore { return s }
func (s scope) Ledger() store.LedgerStore       { return s }
func (s scope) Sales() store.SalesStore         { return s }

// NewStore creates a new database store
func NewStore(cfg config.DatabaseConfig, txOpts TxOptions) (*Store, error) {
	db, err := sqlx.Connect("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return New(db, txOpts), nil
}

// New wraps an existing connection
func New(db *sqlx.DB, txOpts TxOptions) *Store {
	return &Store{
		scope:  scope{q: db},
		db:     db,
		txOpts: txOpts,
	}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// WithinTx runs fn inside a READ COMMITTED transaction, retrying on
// transient conflicts.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Scope) error) error {
	ctx, span := util.StartSpan(ctx, "postgres.WithinTx")
	defer span.End()

	return WithRetry(ctx, s.db, s.txOpts, func(tx *sqlx.Tx) error {
		return fn(ctx, scope{q: tx})
	})
}
