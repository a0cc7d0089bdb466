package storage

import "fmt"

// StoreWriteError reports an insert/update the store rejected for a reason
// other than the expected key conflict.
type StoreWriteError struct {
	Table string
	Err   error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("store write %s: %v", e.Table, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

// StoreLookupError reports a failed dimension lookup query.
type StoreLookupError struct {
	Err error
}

func (e *StoreLookupError) Error() string {
	return fmt.Sprintf("store lookup: %v", e.Err)
}

func (e *StoreLookupError) Unwrap() error { return e.Err }
