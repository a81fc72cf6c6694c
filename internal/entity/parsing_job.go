package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mareon-hq/mareon-backend/constants"
)

// ParsingJob is one unit of follow-on parsing work for a DocumentFile.
//
// The pipeline only ever creates jobs in PENDING; every transition after
// that belongs to the parsing worker.
type ParsingJob struct {
	ID             uuid.UUID           `json:"id"`
	OrgID          uuid.UUID           `json:"org_id"`
	DocumentID     *uuid.UUID          `json:"document_id,omitempty"`
	DocumentFileID uuid.UUID           `json:"document_file_id"`
	Status         constants.JobStatus `json:"status"`
	AttemptCount   int                 `json:"attempt_count"`
	MaxAttempts    int                 `json:"max_attempts"`
	StartedAt      *time.Time          `json:"started_at,omitempty"`
	FinishedAt     *time.Time          `json:"finished_at,omitempty"`
	ErrorMessage   *string             `json:"error_message,omitempty"`
	ErrorDetails   json.RawMessage     `json:"error_details,omitempty"`

	// Delivery tracking (debugging + idempotency).
	MessageID   *string    `json:"message_id,omitempty"`
	PublishTime *time.Time `json:"publish_time,omitempty"`

	// Storage locations. SourceObject is the full URI of the uploaded file;
	// the result location is deterministic so the worker needs no lookup.
	SourceObject *string `json:"source_object,omitempty"`
	ResultBucket *string `json:"result_bucket,omitempty"`
	ResultPrefix *string `json:"result_prefix,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
