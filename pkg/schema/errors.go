package schema

import (
	"fmt"
)

// DecodeError reports text that is not a JSON object at all
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode record: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decode record: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// FieldTypeError reports a field that is missing, has the wrong structural type,
// or (for ts) holds malformed timestamp text. It always fails the whole record.
type FieldTypeError struct {
	Field    Field
	Expected string
	Actual   string
	Missing  bool
	Err      error
}

func (e *FieldTypeError) Error() string {
	switch {
	case e.Missing:
		return fmt.Sprintf("field %q: missing, expected %s", e.Field, e.Expected)
	case e.Err != nil:
		return fmt.Sprintf("field %q: expected %s, got %s: %v", e.Field, e.Expected, e.Actual, e.Err)
	default:
		return fmt.Sprintf("field %q: expected %s, got %s", e.Field, e.Expected, e.Actual)
	}
}

func (e *FieldTypeError) Unwrap() error {
	return e.Err
}
