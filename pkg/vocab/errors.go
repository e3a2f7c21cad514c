package vocab

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPolicy = errors.New("vocab: invalid policy")
	ErrEmptyWord     = errors.New("vocab: empty word")
)

// PersistenceError reports a storage failure. The durable state from before
// the failed operation is left intact.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("vocab: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ConcurrencyError reports that a write would overwrite a newer stored record.
type ConcurrencyError struct {
	Word      string
	Stored    int64 // version held by the backend
	Attempted int64 // version that was being written
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("vocab: stale write for %q (stored version %d, attempted %d)", e.Word, e.Stored, e.Attempted)
}
