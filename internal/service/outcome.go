package service

import "homework-watcher/internal/homework"

// State is the terminal state of one poll cycle.
type State string

const (
	StateNotified State = "notified"
	StateNoChange State = "no_change"
	StateFailed   State = "failed"
)

// ErrorKind classifies why a cycle failed.
type ErrorKind string

const (
	KindNone          ErrorKind = ""
	KindFetch         ErrorKind = "fetch"
	KindShape         ErrorKind = "shape"
	KindMissingField  ErrorKind = "missing_field"
	KindUnknownStatus ErrorKind = "unknown_status"
	KindEmptyQueue    ErrorKind = "empty_queue"
	KindNotify        ErrorKind = "notify"
	KindInternal      ErrorKind = "internal"
)

// Outcome summarises a finished cycle. Message is a one-line diagnostic for
// failed cycles; Text is what was handed to the notifier.
type Outcome struct {
	State       State
	Kind        ErrorKind
	Message     string
	Err         error
	Text        string
	CurrentDate int64
}

// Failed reports whether the cycle ended in failure.
func (o Outcome) Failed() bool {
	return o.State == StateFailed
}

// Reportable reports whether the failure should be announced in chat. Delivery
// failures are not: the chat is the thing that just failed.
func (o Outcome) Reportable() bool {
	return o.State == StateFailed && o.Kind != KindNotify
}

func failed(kind ErrorKind, err error) Outcome {
	return Outcome{State: StateFailed, Kind: kind, Message: err.Error(), Err: err}
}

func validationKind(err error) ErrorKind {
	switch homework.KindOf(err) {
	case homework.KindShape:
		return KindShape
	case homework.KindMissingField:
		return KindMissingField
	case homework.KindUnknownStatus:
		return KindUnknownStatus
	case homework.KindEmptyQueue:
		return KindEmptyQueue
	default:
		return KindShape
	}
}
