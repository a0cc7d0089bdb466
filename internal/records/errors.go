package records

import "fmt"

// MalformedRecordError reports input text that is not valid JSON.
//
// Index is the 1-based record (or line) position the decoder was at; 0 means
// the failure happened before the first record.
type MalformedRecordError struct {
	Index int
	Err   error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record at index %d: %v", e.Index, e.Err)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

// IncompleteRecordError reports a required field that is absent or null.
type IncompleteRecordError struct {
	Index int
	Field string
}

func (e *IncompleteRecordError) Error() string {
	return fmt.Sprintf("incomplete record at index %d: missing field %q", e.Index, e.Field)
}
