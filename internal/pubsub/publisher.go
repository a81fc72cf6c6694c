package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"github.com/mareon-hq/mareon-backend/internal/common"
)

// OutboundMessage is one entry of a batch publish.
type OutboundMessage struct {
	Data       any
	Attributes map[string]string
}

// Publisher emits follow-on events, at-least-once, best-effort ordered. Data
// may be raw bytes, a string, or any JSON-marshalable value.
type Publisher interface {
	Publish(ctx context.Context, topic string, data any, attributes map[string]string) (string, error)
	// PublishBatch returns one id per input, preserving order. Every entry
	// is attempted before failures are reported, as one aggregate
	// BatchError naming the failed indexes.
	PublishBatch(ctx context.Context, topic string, messages []OutboundMessage) ([]string, error)
	Close() error
}

// BatchError reports which entries of a batch publish failed.
type BatchError struct {
	Topic  string
	Errors map[int]error
}

func (e *BatchError) Error() string {
	idxs := make([]int, 0, len(e.Errors))
	for i := range e.Errors {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)
	parts := make([]string, 0, len(idxs))
	for _, i := range idxs {
		parts = append(parts, fmt.Sprintf("%d: %v", i, e.Errors[i]))
	}
	return fmt.Sprintf("batch publish failures on %s: %s", e.Topic, strings.Join(parts, ", "))
}

// serializeData converts publishable data into wire bytes. Values that
// cannot be marshaled directly fall back to their string form so structured
// payloads with odd leaves still publish deterministically.
func serializeData(data any) ([]byte, error) {
	switch v := data.(type) {
	case nil:
		return nil, common.NewAppError("PUBLISH", "nil data", nil)
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			b, err = json.Marshal(fmt.Sprint(v))
			if err != nil {
				return nil, common.NewAppError("PUBLISH", "unsupported data type", err)
			}
		}
		return b, nil
	}
}

// gcpPublisher publishes through Cloud Pub/Sub, waiting on each server
// acknowledgment with a bounded timeout.
type gcpPublisher struct {
	client  *gcppubsub.Client
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	topics map[string]*gcppubsub.Topic
}

func NewGCPPublisher(ctx context.Context, projectID string, timeout time.Duration, logger *slog.Logger, opts ...option.ClientOption) (Publisher, error) {
	if projectID == "" {
		return nil, common.NewAppError("PUBLISH", "project id is required", nil)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client, err := gcppubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, common.WrapError(err, "create pubsub client")
	}
	return &gcpPublisher{
		client:  client,
		timeout: timeout,
		logger:  logger,
		topics:  make(map[string]*gcppubsub.Topic),
	}, nil
}

func (p *gcpPublisher) topic(name string) *gcppubsub.Topic {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.topics[name]
	if !ok {
		t = p.client.Topic(name)
		p.topics[name] = t
	}
	return t
}

func (p *gcpPublisher) Publish(ctx context.Context, topic string, data any, attributes map[string]string) (string, error) {
	serialized, err := serializeData(data)
	if err != nil {
		return "", err
	}

	res := p.topic(topic).Publish(ctx, &gcppubsub.Message{
		Data:       serialized,
		Attributes: attributes,
	})

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	id, err := res.Get(ctx)
	if err != nil {
		p.logger.Error("publish failed", "topic", topic, "error", err)
		return "", common.WrapError(err, "publish to "+topic)
	}
	p.logger.Info("published message", "topic", topic, "message_id", id)
	return id, nil
}

func (p *gcpPublisher) PublishBatch(ctx context.Context, topic string, messages []OutboundMessage) ([]string, error) {
	t := p.topic(topic)

	// Issue every publish before waiting on any result; a bad entry must
	// not silently drop the remainder of the batch.
	results := make([]*gcppubsub.PublishResult, len(messages))
	failures := make(map[int]error)
	for i, msg := range messages {
		serialized, err := serializeData(msg.Data)
		if err != nil {
			failures[i] = err
			continue
		}
		results[i] = t.Publish(ctx, &gcppubsub.Message{
			Data:       serialized,
			Attributes: msg.Attributes,
		})
	}

	ids := make([]string, len(messages))
	for i, res := range results {
		if res == nil {
			continue
		}
		waitCtx, cancel := context.WithTimeout(ctx, p.timeout)
		id, err := res.Get(waitCtx)
		cancel()
		if err != nil {
			failures[i] = err
			continue
		}
		ids[i] = id
	}

	if len(failures) > 0 {
		err := &BatchError{Topic: topic, Errors: failures}
		p.logger.Error("batch publish failed", "topic", topic, "failed", len(failures), "total", len(messages))
		return ids, err
	}
	p.logger.Info("batch published", "topic", topic, "count", len(ids))
	return ids, nil
}

func (p *gcpPublisher) Close() error {
	p.mu.Lock()
	for _, t := range p.topics {
		t.Stop()
	}
	p.mu.Unlock()
	return p.client.Close()
}
