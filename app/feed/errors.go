package feed

import (
	"errors"
	"fmt"
)

// ErrNotModified reports that the remote document has not changed since the
// last retrieval. It is a success short-circuit, not a failure: the update
// finishes with a zero-change result and the parser is never invoked.
var ErrNotModified = errors.New("feed not modified")

// RetrieveError is a feed-level transport failure.
type RetrieveError struct {
	URL string
	Err error
}

func (e *RetrieveError) Error() string {
	return fmt.Sprintf("failed to retrieve %s: %v", e.URL, e.Err)
}

func (e *RetrieveError) Unwrap() error {
	return e.Err
}

// ParseError is a fatally malformed document.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// HookError wraps an error raised by a per-feed hook. It is recorded as that
// feed's update error and never aborts other feeds.
type HookError struct {
	Hook string // "before_feed", "after_entry" or "after_feed"
	URL  string
	Err  error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("%s hook failed for %s: %v", e.Hook, e.URL, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}

// StorageError is a storage read or write failure surfaced during an update.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
