package entity

import (
	"time"

	"github.com/google/uuid"
)

// DocumentFile is one physical file version belonging to a Document.
//
// SourceURI stays nil from the moment the upload is initiated until the
// storage finalize notification is reconciled. Once set it is immutable: a
// later notification reporting a different object is logged and ignored.
type DocumentFile struct {
	ID              uuid.UUID  `json:"id"`
	DocumentID      uuid.UUID  `json:"document_id"`
	OrgID           uuid.UUID  `json:"org_id"`
	SourceURI       *string    `json:"source_uri,omitempty"`
	OriginalName    *string    `json:"original_name,omitempty"`
	MimeType        *string    `json:"mime_type,omitempty"`
	FileSizeBytes   *int64     `json:"file_size_bytes,omitempty"`
	ContentMD5B64   *string    `json:"content_md5_b64,omitempty"`
	VersionNumber   int        `json:"version_number"`
	IsLatest        bool       `json:"is_latest"`
	RequiresParsing bool       `json:"requires_parsing"`
	UploadedBy      *uuid.UUID `json:"uploaded_by,omitempty"`
	UploadedAt      time.Time  `json:"uploaded_at"`
}

// IsUploaded reports whether the file's bytes landed in object storage.
func (f *DocumentFile) IsUploaded() bool {
	return f.SourceURI != nil
}
