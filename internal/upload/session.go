package upload

import "time"

// State names the active step of the upload wizard.
type State string

const (
	// StateAwaitingFile is the implicit initial state; a session only
	// materialises once a file actually arrives.
	StateAwaitingFile State = "awaiting_file"
	// StateAwaitingShortenChoice waits for a yes/no on link shortening.
	StateAwaitingShortenChoice State = "awaiting_shorten_choice"
	// StateAwaitingPostChoice waits for a yes/no on posting to the channel.
	StateAwaitingPostChoice State = "awaiting_post_choice"
	// StateAwaitingFileName waits for the display name.
	StateAwaitingFileName State = "awaiting_file_name"
	// StatePosted is terminal; the announcement was attempted.
	StatePosted State = "posted"
	// StateCancelled is terminal; reachable from any non-initial state.
	StateCancelled State = "cancelled"
)

// Terminal reports whether the state ends the wizard.
func (s State) Terminal() bool {
	return s == StatePosted || s == StateCancelled
}

// Session carries one user's in-progress upload conversation. Exactly one
// session exists per user; a new upload replaces the old session outright.
type Session struct {
	UserID int64 `json:"user_id"`
	State  State `json:"state"`

	// FileReference is set once at ingest and immutable afterwards.
	FileReference string `json:"file_reference"`
	// ShortReference is present only when shortening was requested and
	// actually succeeded.
	ShortReference string `json:"short_reference,omitempty"`
	// PostTarget is the link the announcement will carry; chosen at the
	// shorten step.
	PostTarget  string `json:"post_target,omitempty"`
	DisplayName string `json:"display_name,omitempty"`

	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// NewSession creates a session holding a freshly ingested file reference.
func NewSession(userID int64, fileReference string) *Session {
	now := time.Now().UTC()
	return &Session{
		UserID:         userID,
		State:          StateAwaitingShortenChoice,
		FileReference:  fileReference,
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// Touch refreshes the activity timestamp used for TTL eviction.
func (s *Session) Touch() {
	s.LastActivityAt = time.Now().UTC()
}

// Expired reports whether the session passed its idle TTL.
func (s *Session) Expired(ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(s.LastActivityAt) > ttl
}
