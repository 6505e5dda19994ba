package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"chariblock/internal/storage"
	"chariblock/pkg/platform/sentinel"
	txctx "chariblock/pkg/platform/tx"
)

var _ storage.Store = (*Store)(nil)

// PostgreSQL error codes the store translates into sentinel errors.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Store persists profiles, charities, donations and credentials in
// PostgreSQL. Methods called with a context carrying an open transaction
// (see RunInTx) run inside it.
type Store struct {
	db      *sql.DB
	timeout time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithTxTimeout overrides storage.DefaultTxTimeout.
func WithTxTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New constructs a PostgreSQL-backed store over an open pool.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, timeout: storage.DefaultTxTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) conn(ctx context.Context) txctx.Querier {
	return txctx.Conn(ctx, s.db)
}

// RunInTx opens a READ COMMITTED transaction, hands fn a context carrying it
// and commits when fn succeeds. Nested calls join the outer transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txctx.From(ctx); ok {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin transaction: %w: %v", sentinel.ErrUnavailable, err)
	}
	// An earlier caller deadline still wins
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return translate("begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txctx.WithTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return translate("commit transaction", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// translate wraps a driver error with the matching sentinel so services can
// classify it without importing pgconn.
func translate(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, sentinel.ErrNotFound)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w: %v", op, sentinel.ErrUnavailable, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w: %s", op, sentinel.ErrDuplicateKey, pgErr.ConstraintName)
		case pgForeignKeyViolation:
			return fmt.Errorf("%s: %w: %s", op, sentinel.ErrReferenceNotFound, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
