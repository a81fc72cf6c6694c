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

const documentFilesTable = "document_files"

var documentFileColumns = []string{
	"id", "document_id", "org_id", "source_uri", "original_name", "mime_type",
	"file_size_bytes", "content_md5_b64", "version_number", "is_latest",
	"requires_parsing", "uploaded_by", "uploaded_at",
}

// ObservedUpload carries the storage-reported facts about a finalized
// object. These are authoritative; the client-declared values captured at
// initiation are only claims.
type ObservedUpload struct {
	SourceURI     string
	FileSizeBytes *int64
	MimeType      *string
	ContentMD5B64 *string
}

type DocumentFileRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.DocumentFile, error)
	Create(ctx context.Context, f *entity.DocumentFile) error
	// ConfirmSource sets source_uri (and the observed metadata) only if it
	// is currently NULL, returning whether this call was the first writer.
	ConfirmSource(ctx context.Context, id uuid.UUID, observed ObservedUpload) (bool, error)
}

type documentFileRepo struct {
	db     Querier
	logger *slog.Logger
}

func NewDocumentFileRepository(db Querier, logger *slog.Logger) DocumentFileRepository {
	return &documentFileRepo{db: db, logger: logger}
}

func (r *documentFileRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.DocumentFile, error) {
	query, args := entsql.Dialect(dialect.Postgres).
		Select(documentFileColumns...).
		From(entsql.Table(documentFilesTable)).
		Where(entsql.EQ("id", id)).
		Query()

	var f entity.DocumentFile
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&f.ID, &f.DocumentID, &f.OrgID, &f.SourceURI, &f.OriginalName, &f.MimeType,
		&f.FileSizeBytes, &f.ContentMD5B64, &f.VersionNumber, &f.IsLatest,
		&f.RequiresParsing, &f.UploadedBy, &f.UploadedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to get document file", "document_file_id", id, "error", err)
		return nil, common.WrapError(err, "get document file")
	}
	return &f, nil
}

func (r *documentFileRepo) Create(ctx context.Context, f *entity.DocumentFile) error {
	if f.UploadedAt.IsZero() {
		f.UploadedAt = time.Now().UTC()
	}

	query, args := entsql.Dialect(dialect.Postgres).
		Insert(documentFilesTable).
		Columns(documentFileColumns...).
		Values(
			f.ID, f.DocumentID, f.OrgID, f.SourceURI, f.OriginalName, f.MimeType,
			f.FileSizeBytes, f.ContentMD5B64, f.VersionNumber, f.IsLatest,
			f.RequiresParsing, f.UploadedBy, f.UploadedAt,
		).
		Query()

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		r.logger.Error("failed to create document file", "document_id", f.DocumentID, "error", err)
		return common.WrapError(err, "create document file")
	}
	r.logger.Info("document file created", "document_file_id", f.ID, "document_id", f.DocumentID)
	return nil
}

// ConfirmSource is a single conditional update so two concurrent
// confirmations cannot both win: the row is mutated only while source_uri is
// still NULL.
func (r *documentFileRepo) ConfirmSource(ctx context.Context, id uuid.UUID, observed ObservedUpload) (bool, error) {
	ub := entsql.Dialect(dialect.Postgres).
		Update(documentFilesTable).
		Set("source_uri", observed.SourceURI).
		Set("uploaded_at", time.Now().UTC())
	if observed.FileSizeBytes != nil {
		ub.Set("file_size_bytes", *observed.FileSizeBytes)
	}
	if observed.MimeType != nil {
		ub.Set("mime_type", *observed.MimeType)
	}
	if observed.ContentMD5B64 != nil {
		ub.Set("content_md5_b64", *observed.ContentMD5B64)
	}
	query, args := ub.
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.IsNull("source_uri"),
		)).
		Query()

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to confirm source uri", "document_file_id", id, "error", err)
		return false, common.WrapError(err, "confirm source uri")
	}
	return tag.RowsAffected() > 0, nil
}
