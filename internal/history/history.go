package history

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/filegate/filegate/core/logger"
	"log/slog"
)

// Post is one audit row for a completed channel announcement.
type Post struct {
	ID          string    `db:"id"`
	UserID      int64     `db:"user_id"`
	DisplayName string    `db:"display_name"`
	Target      string    `db:"target"`
	Shortened   bool      `db:"shortened"`
	CreatedAt   time.Time `db:"created_at"`
}

// Stats summarises posting activity for the admin surface.
type Stats struct {
	TotalPosts     int64 `db:"total_posts"`
	DistinctUsers  int64 `db:"distinct_users"`
	ShortenedLinks int64 `db:"shortened_links"`
}

// Recorder persists post records in Postgres. A nil *Recorder is valid and
// records nothing, which is how the bot runs without a database.
type Recorder struct {
	db *sqlx.DB
}

// NewRecorder wraps an open connection pool.
func NewRecorder(db *sqlx.DB) *Recorder {
	return &Recorder{db: db}
}

const insertPost = `
	INSERT INTO posts (id, user_id, display_name, target, shortened, created_at)
	VALUES (:id, :user_id, :display_name, :target, :shortened, :created_at)`

// RecordPost writes one audit row. Failures are logged and swallowed; the
// audit log must never break a user-facing flow.
func (r *Recorder) RecordPost(ctx context.Context, userID int64, displayName, target string, shortened bool) error {
	if r == nil || r.db == nil {
		return nil
	}

	post := Post{
		ID:          uuid.NewString(),
		UserID:      userID,
		DisplayName: displayName,
		Target:      target,
		Shortened:   shortened,
		CreatedAt:   time.Now().UTC(),
	}

	if _, err := r.db.NamedExecContext(ctx, insertPost, post); err != nil {
		logger.Error(ctx, "history", "record.failed",
			slog.Int64("user_id", userID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return nil
	}

	logger.Debug(ctx, "history", "record.ok",
		slog.Int64("user_id", userID),
		slog.String("post_id", post.ID),
	)
	return nil
}

const selectStats = `
	SELECT
		COUNT(*)                                 AS total_posts,
		COUNT(DISTINCT user_id)                  AS distinct_users,
		COUNT(*) FILTER (WHERE shortened)        AS shortened_links
	FROM posts`

// Summary returns aggregate posting stats.
func (r *Recorder) Summary(ctx context.Context) (Stats, error) {
	var s Stats
	if r == nil || r.db == nil {
		return s, nil
	}
	err := r.db.GetContext(ctx, &s, selectStats)
	return s, err
}

const selectRecent = `
	SELECT id, user_id, display_name, target, shortened, created_at
	FROM posts
	ORDER BY created_at DESC
	LIMIT $1`

// Recent returns the latest posts, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]Post, error) {
	if r == nil || r.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	var posts []Post
	err := r.db.SelectContext(ctx, &posts, selectRecent, limit)
	return posts, err
}
