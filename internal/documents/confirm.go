package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mareon-hq/mareon-backend/constants"
	"github.com/mareon-hq/mareon-backend/internal/common"
	"github.com/mareon-hq/mareon-backend/internal/entity"
	"github.com/mareon-hq/mareon-backend/internal/processing"
	"github.com/mareon-hq/mareon-backend/internal/pubsub"
	"github.com/mareon-hq/mareon-backend/internal/repository"
)

// dropError marks an error inside the transaction as permanently
// unprocessable, so the classification survives the rollback path.
type dropError struct{ err error }

func (e dropError) Error() string { return e.err.Error() }
func (e dropError) Unwrap() error { return e.err }

func dropf(format string, args ...any) error {
	return dropError{err: fmt.Errorf(format, args...)}
}

// ConfirmHandler reconciles a finalized upload with its pending
// DocumentFile row and dispatches the follow-on parsing job. The whole
// reconciliation runs in one transaction; the job announcement is published
// after commit and is deliberately best-effort.
type ConfirmHandler struct {
	tx        repository.TxRunner
	jobs      *processing.Service
	publisher pubsub.Publisher
	topic     string
	logger    *slog.Logger
}

func NewConfirmHandler(
	tx repository.TxRunner,
	jobs *processing.Service,
	publisher pubsub.Publisher,
	topic string,
	logger *slog.Logger,
) *ConfirmHandler {
	return &ConfirmHandler{
		tx:        tx,
		jobs:      jobs,
		publisher: publisher,
		topic:     topic,
		logger:    logger,
	}
}

// Handler wraps the processor in the generic storage-upload matcher: only
// finalize events under the org-uploads prefix with an allowed content type
// reach Process.
func (h *ConfirmHandler) Handler(sub pubsub.Subscription) pubsub.Handler {
	return pubsub.NewUploadEventHandler(
		"document_upload_confirm",
		[]pubsub.Subscription{sub},
		[]string{constants.UploadPathPrefix},
		constants.AllowedUploadContentTypes,
		h.Process,
	)
}

// Process handles one finalize notification.
func (h *ConfirmHandler) Process(ctx context.Context, mc *pubsub.MessageContext, obj *pubsub.ObjectMetadata) pubsub.Result {
	h.logger.Info("processing upload", "object", obj.Name, "message_id", mc.MessageID)

	parsed, ok := ParseUploadPath(obj.Name)
	if !ok {
		return pubsub.Dropf("invalid upload path: %s", obj.Name)
	}
	fileID, err := uuid.Parse(parsed.DocumentFileID)
	if err != nil {
		return pubsub.Dropf("document file id in path is not a UUID: %s", parsed.DocumentFileID)
	}

	var job *entity.ParsingJob
	err = h.tx.WithinTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		file, err := uow.Files.GetByID(ctx, fileID)
		if errors.Is(err, common.ErrNotFound) {
			return dropf("document file not found: %s", fileID)
		}
		if err != nil {
			return err
		}

		if file.OrgID.String() != parsed.OrgID {
			return dropf("org id mismatch for file %s", fileID)
		}

		sourceURI := fmt.Sprintf("gs://%s/%s", obj.Bucket, obj.Name)
		observed := repository.ObservedUpload{SourceURI: sourceURI}
		if n, ok := obj.SizeBytes(); ok {
			observed.FileSizeBytes = &n
		}
		if obj.ContentType != "" {
			ct := obj.ContentType
			observed.MimeType = &ct
		}
		if obj.MD5Hash != "" {
			md5 := obj.MD5Hash
			observed.ContentMD5B64 = &md5
		}

		won, err := uow.Files.ConfirmSource(ctx, fileID, observed)
		if err != nil {
			return err
		}
		if !won && file.SourceURI != nil && *file.SourceURI != sourceURI {
			// First writer wins. Duplicate finalizes for a confirmed file
			// are expected under at-least-once delivery; a divergent path
			// is worth an operator's attention but no mutation.
			h.logger.Warn("finalize reports a different source for an already-confirmed file",
				"document_file_id", fileID, "stored", *file.SourceURI, "reported", sourceURI)
		}

		if !file.RequiresParsing {
			h.logger.Info("file does not require parsing", "document_file_id", fileID)
			return nil
		}

		docID := file.DocumentID
		job, err = h.jobs.CreateJobIfAbsent(ctx, uow.ParsingJobs, processing.JobRequest{
			OrgID:          file.OrgID,
			DocumentID:     &docID,
			DocumentFileID: fileID,
			MessageID:      mc.MessageID,
			PublishTime:    mc.PublishTime,
			SourceBucket:   obj.Bucket,
			SourceObject:   obj.Name,
			ResultPrefix:   ResultPrefix(parsed.OrgID, parsed.DocumentID, parsed.DocumentFileID),
		})
		return err
	})
	if err != nil {
		var d dropError
		if errors.As(err, &d) {
			return pubsub.Drop(d.err)
		}
		return pubsub.Retry(err)
	}

	if job != nil {
		h.announce(ctx, job)
	}
	return pubsub.Success()
}

// announce publishes the job-created event. The job is already committed, so
// a publish failure must never bounce the inbound notification: redelivery
// would only burn a retry cycle against the idempotency guard.
func (h *ConfirmHandler) announce(ctx context.Context, job *entity.ParsingJob) {
	payload := map[string]any{
		"job_id":           job.ID.String(),
		"org_id":           job.OrgID.String(),
		"document_file_id": job.DocumentFileID.String(),
		"status":           string(job.Status),
	}
	if job.DocumentID != nil {
		payload["document_id"] = job.DocumentID.String()
	}
	if job.SourceObject != nil {
		payload["source_object"] = *job.SourceObject
	}
	if job.ResultBucket != nil {
		payload["result_bucket"] = *job.ResultBucket
	}
	if job.ResultPrefix != nil {
		payload["result_prefix"] = *job.ResultPrefix
	}

	id, err := h.publisher.Publish(context.WithoutCancel(ctx), h.topic, payload, map[string]string{
		constants.AttrEventType: constants.EventParsingJobCreated,
	})
	if err != nil {
		h.logger.Error("failed to announce parsing job; job is committed, not retrying",
			"job_id", job.ID, "topic", h.topic, "error", err)
		return
	}
	h.logger.Info("announced parsing job", "job_id", job.ID, "published_message_id", id)
}
