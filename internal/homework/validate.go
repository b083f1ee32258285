package homework

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	fieldHomeworks   = "homeworks"
	fieldCurrentDate = "current_date"
	fieldName        = "homework_name"
	fieldStatus      = "status"
)

// Decode parses a raw response body into generic JSON values. Numbers are
// kept as json.Number so timestamps survive untouched.
func Decode(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode status payload: %w", err)
	}
	return payload, nil
}

// Validate checks the payload contract and returns the first homework record.
// An empty homework list yields ErrEmptyQueue, which callers treat as a quiet
// cycle rather than a failure.
func Validate(payload any) (Homework, error) {
	root, ok := payload.(map[string]any)
	if !ok {
		return Homework{}, &ValidationError{Kind: KindShape, Value: typeName(payload)}
	}

	rawList, ok := root[fieldHomeworks]
	if !ok {
		return Homework{}, &ValidationError{Kind: KindMissingField, Field: fieldHomeworks}
	}
	list, ok := rawList.([]any)
	if !ok {
		return Homework{}, &ValidationError{
			Kind:  KindMissingField,
			Field: fieldHomeworks,
			Value: "not a list but " + typeName(rawList),
		}
	}

	if _, ok := root[fieldCurrentDate]; !ok {
		return Homework{}, &ValidationError{Kind: KindMissingField, Field: fieldCurrentDate}
	}

	if len(list) == 0 {
		return Homework{}, &ValidationError{Kind: KindEmptyQueue, Field: fieldHomeworks}
	}

	record, ok := list[0].(map[string]any)
	if !ok {
		return Homework{}, &ValidationError{Kind: KindShape, Field: fieldHomeworks + "[0]", Value: typeName(list[0])}
	}

	rawName, ok := record[fieldName]
	if !ok {
		return Homework{}, &ValidationError{Kind: KindMissingField, Field: fieldName}
	}
	name, ok := rawName.(string)
	if !ok {
		return Homework{}, &ValidationError{Kind: KindShape, Field: fieldName, Value: typeName(rawName)}
	}

	rawStatus, ok := record[fieldStatus]
	if !ok {
		return Homework{}, &ValidationError{Kind: KindMissingField, Field: fieldStatus}
	}
	status, ok := rawStatus.(string)
	if !ok || !Status(status).Valid() {
		return Homework{}, &ValidationError{Kind: KindUnknownStatus, Field: fieldStatus, Value: fmt.Sprint(rawStatus)}
	}

	return Homework{Name: name, Status: Status(status), Fields: record}, nil
}

// CurrentDate extracts the server acknowledgement timestamp from a payload.
func CurrentDate(payload any) (int64, bool) {
	root, ok := payload.(map[string]any)
	if !ok {
		return 0, false
	}
	switch v := root[fieldCurrentDate].(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "list"
	case string:
		return "string"
	case bool:
		return "bool"
	case json.Number, float64, int, int64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
