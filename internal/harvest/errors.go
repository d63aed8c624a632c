package harvest

import (
	"errors"
	"fmt"
)

// ErrChallenged signals that a fetch was blocked by an anti-bot challenge
// page. It is a recognized outcome, not a failure: callers skip the URL.
var ErrChallenged = errors.New("anti-bot challenge detected")

// ErrNotFound signals that no session directory exists for a job id.
var ErrNotFound = errors.New("session directory not found")

// FetchError reports a non-success HTTP status or an exhausted transport
// fallback for a single URL.
type FetchError struct {
	URL        string
	StatusCode int
	Status     string
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: status %d %s", e.URL, e.StatusCode, e.Status)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ValidationError carries a human-readable message suitable for a 4xx
// response body.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// StorageError reports a directory or file operation failure. It aborts
// only the affected URL's pipeline.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
