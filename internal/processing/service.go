package processing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mareon-hq/mareon-backend/constants"
	"github.com/mareon-hq/mareon-backend/internal/common"
	"github.com/mareon-hq/mareon-backend/internal/entity"
	"github.com/mareon-hq/mareon-backend/internal/repository"
)

// DefaultMaxAttempts is how often the parsing worker may retry a job before
// marking it FAILED.
const DefaultMaxAttempts = 2

// JobRequest describes a reconciled upload a parsing job should be created
// for.
type JobRequest struct {
	OrgID          uuid.UUID
	DocumentID     *uuid.UUID
	DocumentFileID uuid.UUID

	// Delivery identity of the triggering notification.
	MessageID   string
	PublishTime time.Time

	// Storage locations.
	SourceBucket string
	SourceObject string // object name within the bucket
	ResultPrefix string
}

// Service owns the idempotency and job-creation rules: at most one job per
// delivered message, at most one active job per file, under concurrent and
// duplicate deliveries.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	return &Service{logger: logger}
}

// CreateJobIfAbsent creates a PENDING parsing job unless one already covers
// this delivery or this file. It returns (nil, nil) for every "already
// handled" outcome; those are normal, not errors. Callers run it inside the
// same transaction as the file reconciliation.
func (s *Service) CreateJobIfAbsent(ctx context.Context, jobs repository.ParsingJobRepository, req JobRequest) (*entity.ParsingJob, error) {
	// Message-level dedup: this exact delivery was already processed.
	if req.MessageID != "" {
		exists, err := jobs.ExistsForMessage(ctx, req.MessageID)
		if err != nil {
			return nil, err
		}
		if exists {
			s.logger.Info("job already exists for message, skipping",
				"message_id", req.MessageID, "document_file_id", req.DocumentFileID)
			return nil, nil
		}
	}

	// File-level dedup: one active job per file, regardless of which
	// delivery tries to create it.
	exists, err := jobs.ExistsActiveForFile(ctx, req.DocumentFileID)
	if err != nil {
		return nil, err
	}
	if exists {
		s.logger.Info("active job already exists for file, skipping",
			"document_file_id", req.DocumentFileID)
		return nil, nil
	}

	job := &entity.ParsingJob{
		ID:             uuid.New(),
		OrgID:          req.OrgID,
		DocumentID:     req.DocumentID,
		DocumentFileID: req.DocumentFileID,
		Status:         constants.JobStatusPending,
		AttemptCount:   0,
		MaxAttempts:    DefaultMaxAttempts,
	}
	if req.MessageID != "" {
		job.MessageID = &req.MessageID
	}
	if !req.PublishTime.IsZero() {
		t := req.PublishTime
		job.PublishTime = &t
	}
	if req.SourceBucket != "" && req.SourceObject != "" {
		src := fmt.Sprintf("gs://%s/%s", req.SourceBucket, req.SourceObject)
		job.SourceObject = &src
		job.ResultBucket = &req.SourceBucket
	}
	if req.ResultPrefix != "" {
		job.ResultPrefix = &req.ResultPrefix
	}

	if err := jobs.Create(ctx, job); err != nil {
		// The partial unique constraints are the last line of defense; a
		// losing concurrent insert is "someone else already created it".
		if errors.Is(err, common.ErrAlreadyExists) {
			s.logger.Info("lost job creation race, skipping",
				"document_file_id", req.DocumentFileID, "message_id", req.MessageID)
			return nil, nil
		}
		return nil, err
	}
	return job, nil
}
