package pubsub

import (
	"context"
	"fmt"
	"sync"
)

// RecordedMessage is one message captured by a RecordingPublisher.
type RecordedMessage struct {
	Topic      string
	Data       any
	Attributes map[string]string
	MessageID  string
}

// RecordingPublisher implements Publisher in memory, recording every
// published message verbatim. It stands in for the production publisher in
// tests and in deployments without a messaging project configured.
type RecordingPublisher struct {
	mu       sync.Mutex
	messages []RecordedMessage

	// FailWith, when set, makes every publish attempt fail with this error.
	FailWith error
}

func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{}
}

func (p *RecordingPublisher) Publish(_ context.Context, topic string, data any, attributes map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailWith != nil {
		return "", p.FailWith
	}
	id := fmt.Sprintf("mock-%d", len(p.messages)+1)
	p.messages = append(p.messages, RecordedMessage{
		Topic:      topic,
		Data:       data,
		Attributes: attributes,
		MessageID:  id,
	})
	return id, nil
}

func (p *RecordingPublisher) PublishBatch(ctx context.Context, topic string, messages []OutboundMessage) ([]string, error) {
	ids := make([]string, len(messages))
	failures := make(map[int]error)
	for i, msg := range messages {
		id, err := p.Publish(ctx, topic, msg.Data, msg.Attributes)
		if err != nil {
			failures[i] = err
			continue
		}
		ids[i] = id
	}
	if len(failures) > 0 {
		return ids, &BatchError{Topic: topic, Errors: failures}
	}
	return ids, nil
}

func (p *RecordingPublisher) Close() error { return nil }

// Messages returns a copy of everything published so far.
func (p *RecordingPublisher) Messages() []RecordedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]RecordedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}
