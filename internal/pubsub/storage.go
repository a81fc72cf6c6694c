package pubsub

import (
	"context"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mareon-hq/mareon-backend/constants"
)

// ObjectMetadata is the JSON_API_V1 object resource carried in a storage
// finalize notification's payload.
type ObjectMetadata struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"` // full object path
	Bucket         string            `json:"bucket"`
	ContentType    string            `json:"contentType"`
	Size           string            `json:"size"` // the JSON API encodes int64 as string
	TimeCreated    string            `json:"timeCreated"`
	Updated        string            `json:"updated"`
	Generation     string            `json:"generation"`
	Metageneration string            `json:"metageneration"`
	MD5Hash        string            `json:"md5Hash,omitempty"`
	CRC32C         string            `json:"crc32c,omitempty"`
	Etag           string            `json:"etag,omitempty"`
	StorageClass   string            `json:"storageClass,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// SizeBytes parses the string-encoded object size.
func (m *ObjectMetadata) SizeBytes() (int64, bool) {
	n, err := strconv.ParseInt(m.Size, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

var objectMetadataSchema = jsonschema.MustCompileString("storage-object.json", `{
	"type": "object",
	"required": ["name", "bucket", "contentType"],
	"properties": {
		"id":          {"type": "string"},
		"name":        {"type": "string", "minLength": 1},
		"bucket":      {"type": "string", "minLength": 1},
		"contentType": {"type": "string", "minLength": 1},
		"size":        {"type": "string"}
	}
}`)

// UploadProcessor is the narrow business-logic hook an upload handler wraps:
// it only ever sees finalize events that already passed the prefix and
// content-type filters.
type UploadProcessor func(ctx context.Context, mc *MessageContext, obj *ObjectMetadata) Result

// UploadEventHandler adapts an UploadProcessor into a Handler. It owns the
// generic storage-event filtering (finalize-only, path prefix allow-list,
// MIME allow-list) so processors stay free of transport concerns.
type UploadEventHandler struct {
	name          string
	subscriptions []Subscription
	prefixes      []string
	contentTypes  map[string]struct{}
	process       UploadProcessor
}

func NewUploadEventHandler(
	name string,
	subscriptions []Subscription,
	prefixes []string,
	contentTypes map[string]struct{},
	process UploadProcessor,
) *UploadEventHandler {
	return &UploadEventHandler{
		name:          name,
		subscriptions: subscriptions,
		prefixes:      prefixes,
		contentTypes:  contentTypes,
		process:       process,
	}
}

func (h *UploadEventHandler) Name() string { return h.name }

func (h *UploadEventHandler) Subscriptions() []Subscription { return h.subscriptions }

func (h *UploadEventHandler) Matches(mc *MessageContext) bool {
	if mc.EventType() != constants.EventObjectFinalize {
		return false
	}

	member := false
	for _, sub := range h.subscriptions {
		if sub == mc.Subscription {
			member = true
			break
		}
	}
	if !member {
		return false
	}

	if len(h.prefixes) > 0 {
		objectID := mc.ObjectID()
		ok := false
		for _, p := range h.prefixes {
			if strings.HasPrefix(objectID, p) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func (h *UploadEventHandler) Handle(ctx context.Context, mc *MessageContext) Result {
	if mc.DataJSON == nil {
		return Dropf("finalize payload is not JSON")
	}
	if err := objectMetadataSchema.Validate(mc.DataJSON); err != nil {
		return Dropf("finalize payload does not match the object schema: %v", err)
	}

	var obj ObjectMetadata
	if err := mc.DecodeJSON(&obj); err != nil {
		return Dropf("failed to decode object metadata: %v", err)
	}

	if len(h.contentTypes) > 0 {
		if _, ok := h.contentTypes[obj.ContentType]; !ok {
			return Dropf("content type %s not allowed", obj.ContentType)
		}
	}

	return h.process(ctx, mc, &obj)
}
