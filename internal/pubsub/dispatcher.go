package pubsub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Handler consumes push deliveries. Matching is two-stage: the dispatcher
// routes on subscription membership, then the handler's own Matches
// predicate refines (event type, path prefix, content type).
type Handler interface {
	Name() string
	Subscriptions() []Subscription
	Matches(mc *MessageContext) bool
	Handle(ctx context.Context, mc *MessageContext) Result
}

// DispatchResult is the aggregate of one delivery across all matched
// handlers.
type DispatchResult struct {
	Processed bool    // at least one handler completed successfully
	Matched   int     // handlers whose predicate accepted the message
	Outcome   Outcome // Retry if any handler failed retryably, else Success
	Err       error   // joined retryable errors, nil otherwise
}

// Dispatcher routes parsed deliveries to registered handlers. It is built
// once at startup and injected into the webhook route; tests construct their
// own instance.
type Dispatcher struct {
	handlers map[Subscription][]Handler
	logger   *slog.Logger
}

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[Subscription][]Handler),
		logger:   logger,
	}
}

func (d *Dispatcher) Register(h Handler) {
	for _, sub := range h.Subscriptions() {
		d.handlers[sub] = append(d.handlers[sub], h)
		d.logger.Info("registered pubsub handler", "handler", h.Name(), "subscription", string(sub))
	}
}

// Dispatch invokes every matching handler. Handlers are isolated from one
// another: a panic or failure in one never prevents the others from running.
// Drops are acknowledged; if any handler fails retryably the whole dispatch
// is retryable, because redelivery must be safe to repeat in full.
func (d *Dispatcher) Dispatch(ctx context.Context, mc *MessageContext) DispatchResult {
	handlers := d.handlers[mc.Subscription]
	if len(handlers) == 0 {
		d.logger.Warn("no handlers for subscription",
			"subscription", string(mc.Subscription), "message_id", mc.MessageID)
		return DispatchResult{Outcome: OutcomeSuccess}
	}

	var (
		res        DispatchResult
		retryables []error
	)
	for _, h := range handlers {
		if !h.Matches(mc) {
			continue
		}
		res.Matched++

		r := d.invoke(ctx, h, mc)
		switch r.Outcome {
		case OutcomeSuccess:
			res.Processed = true
			d.logger.Info("handler processed message",
				"handler", h.Name(), "message_id", mc.MessageID)
		case OutcomeDrop:
			d.logger.Warn("handler dropped message",
				"handler", h.Name(), "message_id", mc.MessageID, "reason", r.Err)
		case OutcomeRetry:
			d.logger.Error("handler failed (retryable)",
				"handler", h.Name(), "message_id", mc.MessageID, "error", r.Err)
			retryables = append(retryables, fmt.Errorf("%s: %w", h.Name(), r.Err))
		}
	}

	if len(retryables) > 0 {
		res.Outcome = OutcomeRetry
		res.Err = errors.Join(retryables...)
		return res
	}
	res.Outcome = OutcomeSuccess
	return res
}

// invoke shields the dispatch loop from handler panics; an uncaught panic is
// treated as retryable, failing safe toward redelivery over silent loss.
func (d *Dispatcher) invoke(ctx context.Context, h Handler, mc *MessageContext) (r Result) {
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("handler panicked",
				"handler", h.Name(), "message_id", mc.MessageID, "panic", rec)
			r = Retryf("handler %s panicked: %v", h.Name(), rec)
		}
	}()
	return h.Handle(ctx, mc)
}
