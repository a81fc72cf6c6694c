package entity

import (
	"time"

	"github.com/google/uuid"
)

// Document is the logical maritime document a vessel's files hang off.
type Document struct {
	ID           uuid.UUID  `json:"id"`
	OrgID        uuid.UUID  `json:"org_id"`
	Title        string     `json:"title"`
	DocumentType string     `json:"document_type"`
	Description  *string    `json:"description,omitempty"`
	CreatedBy    *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
