package postgres

import (
	"context"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/ancestrio/family-archive/internal"
)

// Recorder appends rows to activity_logs with a raw insert. Failures are
// logged and swallowed so an audit hiccup never fails the parent request.
type Recorder struct {
	db     *sqlx.DB
	logger *slog.Logger
}

func NewRecorder(db *sqlx.DB, logger *slog.Logger) *Recorder {
	return &Recorder{db: db, logger: logger}
}

func (r *Recorder) Record(userID int64, category, message string) {
	ctx, cancel := internal.WithTimeout(context.Background(), 0)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO activity_logs (user_id, category, message, created_at) VALUES ($1, $2, $3, now())`,
		userID, category, message,
	)
	if err != nil {
		r.logger.Warn("activity log write failed",
			"user_id", userID,
			"category", category,
			"error", err)
	}
}
