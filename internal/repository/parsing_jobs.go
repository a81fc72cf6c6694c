package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mareon-hq/mareon-backend/constants"
	"github.com/mareon-hq/mareon-backend/internal/common"
	"github.com/mareon-hq/mareon-backend/internal/entity"
)

const parsingJobsTable = "parsing_jobs"

// Postgres unique_violation; raised by the partial unique indexes when a
// concurrent insert loses the race.
const pgUniqueViolation = "23505"

type ParsingJobRepository interface {
	Create(ctx context.Context, job *entity.ParsingJob) error
	// ExistsForMessage reports whether any job already references this
	// delivery message id.
	ExistsForMessage(ctx context.Context, messageID string) (bool, error)
	// ExistsActiveForFile reports whether a non-terminal job exists for the
	// file. The read locks matching rows (skipping already-locked ones) so
	// concurrent confirmations for the same file serialize here instead of
	// both passing the check.
	ExistsActiveForFile(ctx context.Context, fileID uuid.UUID) (bool, error)
}

type parsingJobRepo struct {
	db     Querier
	logger *slog.Logger
}

func NewParsingJobRepository(db Querier, logger *slog.Logger) ParsingJobRepository {
	return &parsingJobRepo{db: db, logger: logger}
}

func (r *parsingJobRepo) Create(ctx context.Context, job *entity.ParsingJob) error {
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	query, args := entsql.Dialect(dialect.Postgres).
		Insert(parsingJobsTable).
		Columns(
			"id", "org_id", "document_id", "document_file_id", "status",
			"attempt_count", "max_attempts", "message_id", "publish_time",
			"source_object", "result_bucket", "result_prefix",
			"created_at", "updated_at",
		).
		Values(
			job.ID, job.OrgID, job.DocumentID, job.DocumentFileID, string(job.Status),
			job.AttemptCount, job.MaxAttempts, job.MessageID, job.PublishTime,
			job.SourceObject, job.ResultBucket, job.ResultPrefix,
			job.CreatedAt, job.UpdatedAt,
		).
		Query()

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			r.logger.Warn("parsing job insert lost a uniqueness race",
				"document_file_id", job.DocumentFileID, "constraint", pgErr.ConstraintName)
			return common.ErrAlreadyExists
		}
		r.logger.Error("failed to create parsing job", "document_file_id", job.DocumentFileID, "error", err)
		return common.WrapError(err, "create parsing job")
	}
	r.logger.Info("parsing job created", "job_id", job.ID, "document_file_id", job.DocumentFileID)
	return nil
}

func (r *parsingJobRepo) ExistsForMessage(ctx context.Context, messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}

	query, args := entsql.Dialect(dialect.Postgres).
		Select("id").
		From(entsql.Table(parsingJobsTable)).
		Where(entsql.EQ("message_id", messageID)).
		Limit(1).
		Query()

	return r.exists(ctx, query, args)
}

func (r *parsingJobRepo) ExistsActiveForFile(ctx context.Context, fileID uuid.UUID) (bool, error) {
	statuses := make([]any, 0, len(constants.ActiveJobStatuses))
	for _, s := range constants.ActiveJobStatuses {
		statuses = append(statuses, string(s))
	}

	query, args := entsql.Dialect(dialect.Postgres).
		Select("id").
		From(entsql.Table(parsingJobsTable)).
		Where(entsql.And(
			entsql.EQ("document_file_id", fileID),
			entsql.In("status", statuses...),
		)).
		Limit(1).
		ForUpdate(entsql.WithLockAction(entsql.SkipLocked)).
		Query()

	return r.exists(ctx, query, args)
}

func (r *parsingJobRepo) exists(ctx context.Context, query string, args []any) (bool, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx, query, args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		r.logger.Error("parsing job existence check failed", "error", err)
		return false, common.WrapError(err, "parsing job existence check")
	}
	return true, nil
}
