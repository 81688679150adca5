package models

import "time"

// PublishEvent records one attempt to signal the site builder.
type PublishEvent struct {
	Reason     string    `json:"reason"`
	StatusCode int       `json:"status_code,omitempty"`
	Error      string    `json:"error,omitempty"`
	Skipped    bool      `json:"skipped,omitempty"`
	Duration   string    `json:"duration,omitempty"`
	At         time.Time `json:"at"`
}

// OK reports whether the builder accepted the signal.
func (e *PublishEvent) OK() bool {
	return !e.Skipped && e.Error == "" && e.StatusCode >= 200 && e.StatusCode < 300
}
