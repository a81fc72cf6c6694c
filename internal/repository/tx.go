package repository

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mareon-hq/mareon-backend/internal/common"
)

// Querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx, so every
// repository works both standalone and inside a unit of work.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UnitOfWork bundles the repositories bound to one transaction.
type UnitOfWork struct {
	Documents   DocumentRepository
	Files       DocumentFileRepository
	ParsingJobs ParsingJobRepository
}

// TxRunner runs a function inside a single database transaction. The
// transaction commits only if fn returns nil; any error rolls it back and is
// returned unchanged so callers keep their own error classification.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}

type pgxTxRunner struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewTxRunner(pool *pgxpool.Pool, logger *slog.Logger) TxRunner {
	return &pgxTxRunner{pool: pool, logger: logger}
}

func (r *pgxTxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error("failed to begin transaction", "error", err)
		return common.WrapError(err, "begin tx")
	}

	uow := UnitOfWork{
		Documents:   NewDocumentRepository(tx, r.logger),
		Files:       NewDocumentFileRepository(tx, r.logger),
		ParsingJobs: NewParsingJobRepository(tx, r.logger),
	}

	if err := fn(ctx, uow); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && rbErr != pgx.ErrTxClosed {
			r.logger.Error("rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error("commit failed", "error", err)
		return common.WrapError(err, "commit tx")
	}
	return nil
}
