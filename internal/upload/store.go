package upload

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no live session exists for the user.
var ErrNotFound = errors.New("upload: session not found")

// Store is the shared session map keyed by user id. Last-writer-wins; each
// user's traffic is serialized upstream, so no transactional guarantees are
// needed.
type Store interface {
	Get(ctx context.Context, userID int64) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, userID int64) error
	Close() error
}
