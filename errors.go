package straincrawler

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

var (
	// ErrNoURL is returned when a record carries no detail page locator.
	ErrNoURL = eris.New("record has no url")
	// ErrDisallowed is returned when robots.txt forbids the path.
	ErrDisallowed = eris.New("disallowed by robots.txt")
	ErrNotFound   = eris.New("not found")
)

// FetchError is a single failed document fetch: timeout, network failure or a non-2xx status.
// Fetches are never retried in-core.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// FieldError records one field whose extraction chain failed. The field is left empty.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// MalformedInputError means a catalog page could not be understood at all.
type MalformedInputError struct {
	URL    string
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed input %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed input %s: %s", e.URL, e.Reason)
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// PersistenceError is a store or database failure. Committed counts the work
// that was already durable when the failure happened.
type PersistenceError struct {
	Op        string
	Committed int
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s failed after %d committed: %v", e.Op, e.Committed, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsFetchError reports whether err is, or wraps, a *FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
