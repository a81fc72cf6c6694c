package pubsub

import (
	"encoding/json"
	"time"

	"github.com/mareon-hq/mareon-backend/constants"
)

// Subscription is the short (last-segment) name of a push subscription.
type Subscription string

// MessageContext is the parsed representation of one inbound push delivery.
// It lives for exactly one webhook request and is discarded after dispatch.
type MessageContext struct {
	// Subscription identity.
	SubscriptionResource string       // full: projects/.../subscriptions/...
	Subscription         Subscription // last path segment

	// Message metadata.
	MessageID   string
	PublishTime time.Time
	Attributes  map[string]string

	// Decoded payload. Only the base64 step is load-bearing; text and JSON
	// views are best-effort.
	DataRaw  []byte
	DataText string // empty when the payload is not valid UTF-8
	DataJSON any    // nil when the payload is not JSON
}

// EventType returns the storage event marker attribute, if present.
func (c *MessageContext) EventType() string {
	return c.Attributes[constants.AttrEventType]
}

// ObjectID returns the storage object name attribute, if present.
func (c *MessageContext) ObjectID() string {
	return c.Attributes["objectId"]
}

// BucketID returns the storage bucket attribute, if present.
func (c *MessageContext) BucketID() string {
	return c.Attributes["bucketId"]
}

// DecodeJSON unmarshals the raw payload into v.
func (c *MessageContext) DecodeJSON(v any) error {
	return json.Unmarshal(c.DataRaw, v)
}
