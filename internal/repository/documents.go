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

	"github.com/mareon-hq/mareon-backend/internal/common"
	"github.com/mareon-hq/mareon-backend/internal/entity"
)

const documentsTable = "documents"

var documentColumns = []string{
	"id", "org_id", "title", "document_type", "description",
	"created_by", "created_at", "updated_at",
}

type DocumentRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	Create(ctx context.Context, doc *entity.Document) error
}

type documentRepo struct {
	db     Querier
	logger *slog.Logger
}

func NewDocumentRepository(db Querier, logger *slog.Logger) DocumentRepository {
	return &documentRepo{db: db, logger: logger}
}

func (r *documentRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	query, args := entsql.Dialect(dialect.Postgres).
		Select(documentColumns...).
		From(entsql.Table(documentsTable)).
		Where(entsql.EQ("id", id)).
		Query()

	var doc entity.Document
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&doc.ID, &doc.OrgID, &doc.Title, &doc.DocumentType, &doc.Description,
		&doc.CreatedBy, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to get document", "document_id", id, "error", err)
		return nil, common.WrapError(err, "get document")
	}
	return &doc, nil
}

func (r *documentRepo) Create(ctx context.Context, doc *entity.Document) error {
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	query, args := entsql.Dialect(dialect.Postgres).
		Insert(documentsTable).
		Columns(documentColumns...).
		Values(
			doc.ID, doc.OrgID, doc.Title, doc.DocumentType, doc.Description,
			doc.CreatedBy, doc.CreatedAt, doc.UpdatedAt,
		).
		Query()

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		r.logger.Error("failed to create document", "org_id", doc.OrgID, "title", doc.Title, "error", err)
		return common.WrapError(err, "create document")
	}
	r.logger.Info("document created", "document_id", doc.ID, "org_id", doc.OrgID)
	return nil
}
