package pubsub

import "fmt"

// Outcome classifies how a handler (or a whole dispatch) finished. It maps
// one-to-one onto the transport response: Success and Drop are acknowledged
// (the broker must not resend), Retry asks for redelivery with backoff.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeDrop
	OutcomeRetry
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeDrop:
		return "drop"
	case OutcomeRetry:
		return "retry"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Result is a handler's outcome plus the error that explains a Drop or
// Retry. Err is nil for Success.
type Result struct {
	Outcome Outcome
	Err     error
}

func Success() Result {
	return Result{Outcome: OutcomeSuccess}
}

// Drop marks the message as permanently unprocessable: malformed, not
// relevant, or already handled. It is acknowledged, never retried.
func Drop(err error) Result {
	return Result{Outcome: OutcomeDrop, Err: err}
}

func Dropf(format string, args ...any) Result {
	return Drop(fmt.Errorf(format, args...))
}

// Retry marks a transient failure: the broker should redeliver.
func Retry(err error) Result {
	return Result{Outcome: OutcomeRetry, Err: err}
}

func Retryf(format string, args ...any) Result {
	return Retry(fmt.Errorf(format, args...))
}
