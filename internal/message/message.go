// Package message defines the core data types flowing through the nova pipeline.
package message

import (
	"time"

	"github.com/google/uuid"
)

// Origin tells the caller where a reply came from.
type Origin string

const (
	// OriginLocal means an offline rule answered the request.
	OriginLocal Origin = "local"

	// OriginRemote means the backend answered the request.
	OriginRemote Origin = "remote"

	// OriginFallback means neither side produced an answer and the
	// generic offline text (possibly with error detail) was returned.
	OriginFallback Origin = "fallback"
)

// Request represents an utterance arriving from any front-end.
type Request struct {
	// ID is a unique identifier for this request (UUID).
	ID string `json:"id"`

	// Source identifies the sender (e.g., "http", "cli", "phone-alice").
	Source string `json:"source,omitempty"`

	// Text is the raw utterance, typed or already transcribed.
	Text string `json:"prompt"`

	// Timestamp is when the request was received.
	Timestamp time.Time `json:"timestamp"`
}

// NewRequest builds a request with a fresh ID and the current time.
func NewRequest(source, text string) *Request {
	return &Request{
		ID:        uuid.NewString(),
		Source:    source,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// Reply is the outcome of dispatching a request. Text is never empty.
type Reply struct {
	// RequestID echoes the ID of the request being answered.
	RequestID string `json:"request_id"`

	// Text is the speakable/displayable answer.
	Text string `json:"reply"`

	// Origin records which path produced Text.
	Origin Origin `json:"origin"`

	// Rule names the offline rule that matched, if any.
	Rule string `json:"rule,omitempty"`

	// Degraded is set when the backend was tried and failed.
	Degraded bool `json:"degraded,omitempty"`

	// Error carries the backend failure detail when Degraded is set.
	Error string `json:"error,omitempty"`
}

// BackendStatus is a point-in-time view of the active backend.
type BackendStatus struct {
	// URL is the active endpoint; empty in offline-only mode.
	URL string `json:"url,omitempty"`

	// Online is the most recent reachability result.
	Online bool `json:"online"`

	// CheckedAt is when Online was last determined; zero if never.
	CheckedAt time.Time `json:"checked_at,omitempty"`
}

