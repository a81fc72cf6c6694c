package documents

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mareon-hq/mareon-backend/constants"
	"github.com/mareon-hq/mareon-backend/internal/common"
	"github.com/mareon-hq/mareon-backend/internal/entity"
	"github.com/mareon-hq/mareon-backend/internal/repository"
	"github.com/mareon-hq/mareon-backend/internal/storage"
)

// InitiateUploadRequest captures client-declared upload metadata. All of it
// is unverified claims; the confirmation pipeline treats the
// storage-reported values as authoritative once the file lands.
type InitiateUploadRequest struct {
	DocumentID    *uuid.UUID `json:"document_id,omitempty"`
	DocumentTitle string     `json:"document_title,omitempty"`
	DocumentType  string     `json:"document_type,omitempty"`
	OriginalName  string     `json:"original_name,omitempty"`
	MimeType      string     `json:"mime_type,omitempty"`
	FileSizeBytes *int64     `json:"file_size_bytes,omitempty"`
	ContentMD5B64 string     `json:"content_md5_b64,omitempty"`
	SkipParsing   bool       `json:"skip_parsing,omitempty"`
}

type InitiateUploadResponse struct {
	UploadURL       string            `json:"upload_url"`
	Method          string            `json:"method"`
	RequiredHeaders map[string]string `json:"required_headers"`
	DocumentID      uuid.UUID         `json:"document_id"`
	DocumentFileID  uuid.UUID         `json:"document_file_id"`
	ExpectedPath    string            `json:"expected_path"`
}

// UploadService is the producer side of the pipeline: it creates the
// pending Document/DocumentFile rows and issues the signed PUT URL whose use
// eventually triggers the finalize notification.
type UploadService struct {
	tx     repository.TxRunner
	store  storage.BlobStore
	urlTTL time.Duration
	logger *slog.Logger
}

func NewUploadService(tx repository.TxRunner, store storage.BlobStore, urlTTL time.Duration, logger *slog.Logger) *UploadService {
	if urlTTL <= 0 {
		urlTTL = time.Hour
	}
	return &UploadService{tx: tx, store: store, urlTTL: urlTTL, logger: logger}
}

// InitiateUpload creates (or validates) a Document, creates a DocumentFile
// with source_uri = NULL, and returns a signed upload URL for the expected
// path. Everything, URL issuance included, happens in one transaction: a
// failed URL grant leaves no orphan pending-file rows behind.
func (s *UploadService) InitiateUpload(ctx context.Context, auth common.AuthContext, req InitiateUploadRequest) (*InitiateUploadResponse, error) {
	contentType := req.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var resp *InitiateUploadResponse
	err := s.tx.WithinTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		var doc *entity.Document
		if req.DocumentID != nil {
			existing, err := uow.Documents.GetByID(ctx, *req.DocumentID)
			if errors.Is(err, common.ErrNotFound) {
				return common.ErrNotFound
			}
			if err != nil {
				return err
			}
			if existing.OrgID != auth.OrgID {
				return common.ErrNotFound
			}
			doc = existing
		} else {
			title := req.DocumentTitle
			if title == "" {
				title = "Untitled Document"
			}
			docType := req.DocumentType
			if docType == "" {
				docType = "OTHER"
			}
			userID := auth.UserID
			doc = &entity.Document{
				ID:           uuid.New(),
				OrgID:        auth.OrgID,
				Title:        title,
				DocumentType: docType,
				CreatedBy:    &userID,
			}
			if err := uow.Documents.Create(ctx, doc); err != nil {
				return err
			}
		}

		userID := auth.UserID
		file := &entity.DocumentFile{
			ID:              uuid.New(),
			DocumentID:      doc.ID,
			OrgID:           auth.OrgID,
			SourceURI:       nil, // set by the confirmation handler once the upload lands
			MimeType:        &contentType,
			FileSizeBytes:   req.FileSizeBytes,
			VersionNumber:   1,
			IsLatest:        true,
			RequiresParsing: !req.SkipParsing,
			UploadedBy:      &userID,
		}
		if req.OriginalName != "" {
			name := req.OriginalName
			file.OriginalName = &name
		}
		if req.ContentMD5B64 != "" {
			md5 := req.ContentMD5B64
			file.ContentMD5B64 = &md5
		}
		if err := uow.Files.Create(ctx, file); err != nil {
			return err
		}

		expectedPath := FormatUploadPath(
			auth.OrgID.String(), doc.ID.String(), file.ID.String(), constants.UploadObjectFilename)

		uploadURL, err := s.store.GenerateUploadURL(ctx, expectedPath, contentType, req.ContentMD5B64, s.urlTTL)
		if err != nil {
			return common.WrapError(err, "generate upload url")
		}

		headers := map[string]string{"Content-Type": contentType}
		if req.ContentMD5B64 != "" {
			headers["Content-MD5"] = req.ContentMD5B64
		}
		resp = &InitiateUploadResponse{
			UploadURL:       uploadURL,
			Method:          "PUT",
			RequiredHeaders: headers,
			DocumentID:      doc.ID,
			DocumentFileID:  file.ID,
			ExpectedPath:    expectedPath,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("upload initiated",
		"org_id", auth.OrgID, "document_id", resp.DocumentID, "document_file_id", resp.DocumentFileID)
	return resp, nil
}
