package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bilgisen/redflag-cms/internal/remote"
)

var (
	// ErrAlreadyExists is returned by Create when a file already occupies
	// the article's storage key.
	ErrAlreadyExists = fmt.Errorf("article already exists: %w", remote.ErrConflict)
	// ErrSlugTaken is returned by Create when another article already
	// resolves to the same slug.
	ErrSlugTaken = fmt.Errorf("slug already in use: %w", remote.ErrConflict)
)

// IsRetryable reports whether re-reading and retrying can succeed. Create
// collisions are conflicts that no retry will resolve.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrAlreadyExists) || errors.Is(err, ErrSlugTaken) {
		return false
	}
	return remote.IsRetryable(err)
}

// ValidationError maps a field name to the rule it broke.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func invalid(field, rule string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: rule}}
}

// ItemError is a failure to read one file during a listing.
type ItemError struct {
	Path string
	Err  error
}

func (e ItemError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		Path  string `json:"path"`
		Error string `json:"error"`
	}{e.Path, msg})
}

// ListError reports the files a listing could not read. The listing that
// returns it still carries every record that was read successfully.
type ListError struct {
	Failed []ItemError
}

func (e *ListError) Error() string {
	if len(e.Failed) == 1 {
		return fmt.Sprintf("failed to read %s: %v", e.Failed[0].Path, e.Failed[0].Err)
	}
	return fmt.Sprintf("failed to read %d files, first %s: %v", len(e.Failed), e.Failed[0].Path, e.Failed[0].Err)
}

func (e *ListError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		errs = append(errs, f.Err)
	}
	return errs
}
