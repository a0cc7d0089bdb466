package pipeline

import (
	"errors"
	"fmt"

	"sparkify/internal/records"
)

// FileError is a fatal failure while processing one input file.
//
// Index is the 1-based record position when the failure is tied to a record,
// 0 otherwise. Err is one of the records/storage error kinds or an I/O error.
type FileError struct {
	Path  string
	Index int
	Err   error
}

func (e *FileError) Error() string {
	if e.Index > 0 {
		return fmt.Sprintf("%s: record %d: %v", e.Path, e.Index, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// recordIndex extracts the record position carried by a parse/extract error.
func recordIndex(err error) int {
	var mal *records.MalformedRecordError
	if errors.As(err, &mal) {
		return mal.Index
	}
	var inc *records.IncompleteRecordError
	if errors.As(err, &inc) {
		return inc.Index
	}
	return 0
}

// skipField names the offending field of a skipped record, if known.
func skipField(err error) string {
	var inc *records.IncompleteRecordError
	if errors.As(err, &inc) {
		return inc.Field
	}
	return "-"
}
