package pubsub

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mareon-hq/mareon-backend/internal/common"
)

// pushEnvelope is the wire shape of a Pub/Sub push delivery.
type pushEnvelope struct {
	Message      pushMessage `json:"message"`
	Subscription string      `json:"subscription"`
}

type pushMessage struct {
	MessageID   string            `json:"messageId"`
	PublishTime string            `json:"publishTime"`
	Data        string            `json:"data"`
	Attributes  map[string]string `json:"attributes"`
}

// The structural contract of a push body. Anything failing this is
// permanently unparseable: the transport answers 400 and the broker must not
// retry.
var envelopeSchema = jsonschema.MustCompileString("pubsub-push-envelope.json", `{
	"type": "object",
	"required": ["message", "subscription"],
	"properties": {
		"message": {
			"type": "object",
			"required": ["messageId", "data"],
			"properties": {
				"messageId":   {"type": "string", "minLength": 1},
				"publishTime": {"type": "string"},
				"data":        {"type": "string"},
				"attributes":  {"type": "object", "additionalProperties": {"type": "string"}}
			}
		},
		"subscription": {"type": "string", "minLength": 1}
	}
}`)

// ParseEnvelope decodes a push body into a MessageContext.
//
// The base64 data field is the only payload step that can fail the whole
// envelope; a payload that is not UTF-8 or not JSON simply degrades to a
// bytes-only context.
func ParseEnvelope(body []byte) (*MessageContext, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, common.NewAppError("ENVELOPE", "body is not valid JSON", err)
	}
	if err := envelopeSchema.Validate(raw); err != nil {
		return nil, common.NewAppError("ENVELOPE", "body does not match the push contract", err)
	}

	var env pushEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, common.NewAppError("ENVELOPE", "malformed push envelope", err)
	}

	dataRaw, err := base64.StdEncoding.DecodeString(env.Message.Data)
	if err != nil {
		return nil, common.NewAppError("ENVELOPE", "message data is not valid base64", err)
	}

	mc := &MessageContext{
		SubscriptionResource: env.Subscription,
		Subscription:         Subscription(shortName(env.Subscription)),
		MessageID:            env.Message.MessageID,
		Attributes:           env.Message.Attributes,
		DataRaw:              dataRaw,
	}
	if mc.Attributes == nil {
		mc.Attributes = map[string]string{}
	}

	// Publish time is informational; a missing or odd timestamp is not a
	// reason to bounce the delivery.
	if t, err := time.Parse(time.RFC3339, env.Message.PublishTime); err == nil {
		mc.PublishTime = t
	}

	if utf8.Valid(dataRaw) {
		mc.DataText = string(dataRaw)
	}
	var payload any
	if err := json.Unmarshal(dataRaw, &payload); err == nil {
		mc.DataJSON = payload
	}

	return mc, nil
}

// shortName reduces a full subscription resource path to its last segment.
func shortName(resource string) string {
	if i := strings.LastIndex(resource, "/"); i >= 0 {
		return resource[i+1:]
	}
	return resource
}
