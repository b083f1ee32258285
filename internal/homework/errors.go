package homework

import (
	"errors"
	"fmt"
)

// Kind classifies a payload contract violation.
type Kind string

const (
	KindShape         Kind = "shape"
	KindMissingField  Kind = "missing_field"
	KindUnknownStatus Kind = "unknown_status"
	KindEmptyQueue    Kind = "empty_queue"
)

var (
	// ErrShape matches payloads that are not the expected JSON structure.
	ErrShape = &ValidationError{Kind: KindShape}
	// ErrMissingField matches payloads lacking a required key.
	ErrMissingField = &ValidationError{Kind: KindMissingField}
	// ErrUnknownStatus matches records carrying an unrecognised status.
	ErrUnknownStatus = &ValidationError{Kind: KindUnknownStatus}
	// ErrEmptyQueue matches payloads with no homeworks; it is not a failure.
	ErrEmptyQueue = &ValidationError{Kind: KindEmptyQueue}
)

// ValidationError describes why a status payload was rejected.
type ValidationError struct {
	Kind  Kind
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case KindShape:
		if e.Field != "" {
			return fmt.Sprintf("unexpected type for %q: %s", e.Field, e.Value)
		}
		return fmt.Sprintf("response is not an object: %s", e.Value)
	case KindMissingField:
		if e.Value != "" {
			return fmt.Sprintf("field %q is %s", e.Field, e.Value)
		}
		return fmt.Sprintf("field %q is missing", e.Field)
	case KindUnknownStatus:
		return fmt.Sprintf("unknown homework status %q", e.Value)
	case KindEmptyQueue:
		return "homework list is empty"
	default:
		return "invalid status payload"
	}
}

// Is matches any ValidationError of the same kind, so the package sentinels
// can be used with errors.Is.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the validation kind carried by err, or "" when err is not a
// ValidationError.
func KindOf(err error) Kind {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr.Kind
	}
	return ""
}
