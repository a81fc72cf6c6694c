package pubsub

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubHandler is a scriptable Handler for dispatch tests.
type stubHandler struct {
	name    string
	subs    []Subscription
	matches bool
	result  Result
	panics  bool

	calls int
}

func (h *stubHandler) Name() string { return h.name }

func (h *stubHandler) Subscriptions() []Subscription { return h.subs }

func (h *stubHandler) Matches(*MessageContext) bool { return h.matches }

func (h *stubHandler) Handle(context.Context, *MessageContext) Result {
	h.calls++
	if h.panics {
		panic("boom")
	}
	return h.result
}

func delivery(sub Subscription) *MessageContext {
	return &MessageContext{
		Subscription: sub,
		MessageID:    "msg-1",
		Attributes:   map[string]string{},
	}
}

func TestDispatchNoHandlers(t *testing.T) {
	d := NewDispatcher(testLogger())

	res := d.Dispatch(context.Background(), delivery("unknown-sub"))
	if res.Outcome != OutcomeSuccess {
		t.Errorf("Outcome = %v, want success (unroutable messages are acknowledged)", res.Outcome)
	}
	if res.Processed || res.Matched != 0 {
		t.Errorf("res = %+v, want unprocessed with zero matches", res)
	}
}

func TestDispatchSuccess(t *testing.T) {
	d := NewDispatcher(testLogger())
	h := &stubHandler{name: "h", subs: []Subscription{"s"}, matches: true, result: Success()}
	d.Register(h)

	res := d.Dispatch(context.Background(), delivery("s"))
	if res.Outcome != OutcomeSuccess || !res.Processed || res.Matched != 1 {
		t.Errorf("res = %+v, want processed success with one match", res)
	}
	if h.calls != 1 {
		t.Errorf("handler called %d times, want 1", h.calls)
	}
}

func TestDispatchSkipsNonMatching(t *testing.T) {
	d := NewDispatcher(testLogger())
	h := &stubHandler{name: "h", subs: []Subscription{"s"}, matches: false}
	d.Register(h)

	res := d.Dispatch(context.Background(), delivery("s"))
	if h.calls != 0 {
		t.Errorf("non-matching handler was invoked %d times", h.calls)
	}
	if res.Outcome != OutcomeSuccess || res.Matched != 0 {
		t.Errorf("res = %+v", res)
	}
}

func TestDispatchDropIsAcknowledged(t *testing.T) {
	d := NewDispatcher(testLogger())
	h := &stubHandler{name: "h", subs: []Subscription{"s"}, matches: true, result: Dropf("bad payload")}
	d.Register(h)

	res := d.Dispatch(context.Background(), delivery("s"))
	if res.Outcome != OutcomeSuccess {
		t.Errorf("Outcome = %v, want success: a drop must not trigger redelivery", res.Outcome)
	}
	if res.Processed {
		t.Error("Processed = true for a dropped message")
	}
}

func TestDispatchAggregatesRetry(t *testing.T) {
	// One handler fails retryably, one succeeds. The successful one still
	// runs, but the dispatch as a whole asks for redelivery.
	d := NewDispatcher(testLogger())
	failing := &stubHandler{name: "failing", subs: []Subscription{"s"}, matches: true, result: Retryf("db down")}
	healthy := &stubHandler{name: "healthy", subs: []Subscription{"s"}, matches: true, result: Success()}
	d.Register(failing)
	d.Register(healthy)

	res := d.Dispatch(context.Background(), delivery("s"))
	if res.Outcome != OutcomeRetry {
		t.Errorf("Outcome = %v, want retry", res.Outcome)
	}
	if res.Err == nil {
		t.Error("Err is nil for a retryable dispatch")
	}
	if !res.Processed {
		t.Error("Processed = false even though one handler succeeded")
	}
	if healthy.calls != 1 {
		t.Errorf("healthy handler called %d times, want 1", healthy.calls)
	}
	if res.Matched != 2 {
		t.Errorf("Matched = %d, want 2", res.Matched)
	}
}

func TestDispatchPanicIsRetryableAndIsolated(t *testing.T) {
	d := NewDispatcher(testLogger())
	panicking := &stubHandler{name: "panicking", subs: []Subscription{"s"}, matches: true, panics: true}
	healthy := &stubHandler{name: "healthy", subs: []Subscription{"s"}, matches: true, result: Success()}
	d.Register(panicking)
	d.Register(healthy)

	res := d.Dispatch(context.Background(), delivery("s"))
	if res.Outcome != OutcomeRetry {
		t.Errorf("Outcome = %v, want retry after a handler panic", res.Outcome)
	}
	if healthy.calls != 1 {
		t.Errorf("panic leaked into the dispatch loop: healthy handler called %d times", healthy.calls)
	}
}

func TestRegisterRoutesBySubscription(t *testing.T) {
	d := NewDispatcher(testLogger())
	a := &stubHandler{name: "a", subs: []Subscription{"sub-a"}, matches: true, result: Success()}
	b := &stubHandler{name: "b", subs: []Subscription{"sub-b"}, matches: true, result: Success()}
	d.Register(a)
	d.Register(b)

	d.Dispatch(context.Background(), delivery("sub-a"))
	if a.calls != 1 || b.calls != 0 {
		t.Errorf("calls a=%d b=%d, want only the sub-a handler invoked", a.calls, b.calls)
	}
}
