package scoring

import (
	"errors"
	"fmt"
)

// ErrInvalidRecord is the sentinel wrapped by every InvalidRecordError.
var ErrInvalidRecord = errors.New("invalid record")

// InvalidRecordError reports a record missing a required feature or label.
// Index is the position in the input slice, or -1 for a single record.
type InvalidRecordError struct {
	Index  int
	Field  string
	Reason string
}

func (e *InvalidRecordError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid record: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid record %d: %s %s", e.Index, e.Field, e.Reason)
}

func (e *InvalidRecordError) Unwrap() error {
	return ErrInvalidRecord
}

// AtIndex returns a copy of err positioned at index i when err is an
// InvalidRecordError; other errors pass through unchanged.
func AtIndex(err error, i int) error {
	var ire *InvalidRecordError
	if errors.As(err, &ire) {
		out := *ire
		out.Index = i
		return &out
	}
	return err
}
