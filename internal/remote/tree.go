// Package remote talks to the version-controlled file tree that backs all
// persistence. Every file carries a revision marker (the blob sha) that
// writers present as a compare-and-swap precondition.
package remote

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a path does not exist in the tree.
	ErrNotFound = errors.New("remote: not found")
	// ErrConflict is returned when a revision marker is stale or missing
	// for a file that already exists.
	ErrConflict = errors.New("remote: revision conflict")
	// ErrAuth is returned when the tree rejects the configured credential.
	ErrAuth = errors.New("remote: credential rejected")
)

// TransportError covers network failures, rate limiting and any remote
// response that has no more specific kind.
type TransportError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("remote transport: %s", e.Message)
	}
	return fmt.Sprintf("remote transport: status %d: %s", e.StatusCode, e.Message)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsRetryable reports whether the caller may retry the operation after
// re-reading the current state.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrConflict) {
		return true
	}
	var te *TransportError
	return errors.As(err, &te)
}

// File is the content of a single file and its current revision marker.
type File struct {
	Path    string
	Content []byte
	SHA     string
}

// Entry is one item of a directory listing.
type Entry struct {
	Name        string
	Path        string
	SHA         string
	Size        int64
	DownloadURL string
	IsDir       bool
}

// Tree is the contract every backend of the remote tree implements.
//
// Put with an empty sha creates the file and fails with ErrConflict if it
// already exists. Put and Delete with a sha fail with ErrConflict when the
// sha is not the file's current marker.
type Tree interface {
	Get(ctx context.Context, path string) (*File, error)
	Put(ctx context.Context, path string, content []byte, message, sha string) (string, error)
	Delete(ctx context.Context, path, sha, message string) error
	List(ctx context.Context, dir string) ([]Entry, error)
}
