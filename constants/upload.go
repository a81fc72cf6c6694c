package constants

// UploadPathPrefix is the object-name prefix for direct org uploads. The
// upload-confirmation handler only looks at objects under this prefix.
const UploadPathPrefix = "org-uploads/"

// UploadObjectFilename is the fixed trailing segment of the expected upload
// path issued by the upload-initiation service.
const UploadObjectFilename = "source"

// AllowedUploadContentTypes holds the MIME types the confirmation pipeline
// accepts for parsing. Everything else is skipped, not an error.
var AllowedUploadContentTypes = map[string]struct{}{
	"application/pdf": {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":   {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"image/png":  {},
	"image/jpeg": {},
}

// Storage notification event types, carried as the eventType attribute on a
// push message.
const (
	EventObjectFinalize       = "OBJECT_FINALIZE"
	EventObjectDelete         = "OBJECT_DELETE"
	EventObjectMetadataUpdate = "OBJECT_METADATA_UPDATE"
)

// Default Pub/Sub resource short names. Overridable through config so the
// same binary runs against staging and prod subscriptions.
const (
	DefaultDocumentUploadsSubscription = "mareon-prod-document-uploads-api-sub"
	DefaultParsingJobsTopic            = "mareon-prod-parsing-jobs"
)

// Pub/Sub attribute keys and values used on outbound announcements.
const (
	AttrEventType          = "eventType"
	EventParsingJobCreated = "PARSING_JOB_CREATED"
)
