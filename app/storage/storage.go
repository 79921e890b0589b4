package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Promitpolok/ai-image-telegram-bot/core/logger"
)

// Store persists user preferences and a journal of inference requests.
// A nil *Store is valid and turns every method into a no-op, so the bot
// runs the same with or without a database.
type Store struct {
	db *sqlx.DB
}

// New wraps an open database handle.
func New(db *sqlx.DB) *Store {
	if db == nil {
		return nil
	}
	return &Store{db: db}
}

// RequestRecord is one journaled inference call.
type RequestRecord struct {
	ID         int64     `db:"id"`
	UserID     int64     `db:"user_id"`
	Flow       string    `db:"flow"`
	Model      string    `db:"model"`
	Status     string    `db:"status"`
	DurationMS int64     `db:"duration_ms"`
	CreatedAt  time.Time `db:"created_at"`
}

// Stats aggregates journal counts for the admin command.
type Stats struct {
	TotalRequests  int64 `db:"total_requests"`
	FailedRequests int64 `db:"failed_requests"`
	UniqueUsers    int64 `db:"unique_users"`
}

// PreferredRatio returns the user's stored ratio key, or "" if unset.
func (s *Store) PreferredRatio(ctx context.Context, userID int64) string {
	if s == nil {
		return ""
	}
	var ratio string
	err := s.db.GetContext(ctx, &ratio,
		`SELECT ratio FROM user_prefs WHERE user_id = $1`, userID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.STORE.Warn("prefs read failed",
				slog.String("event", "prefs.get"),
				slog.Int64("user_id", userID),
				slog.String("err", err.Error()),
			)
		}
		return ""
	}
	return ratio
}

// SetPreferredRatio upserts the user's ratio choice.
func (s *Store) SetPreferredRatio(ctx context.Context, userID int64, ratio string) error {
	if s == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_prefs (user_id, ratio, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (user_id) DO UPDATE SET ratio = $2, updated_at = now()`,
		userID, ratio)
	if err != nil {
		return fmt.Errorf("upsert user prefs: %w", err)
	}
	return nil
}

// RecordRequest journals one inference call. Failures are logged, not
// returned: persistence never blocks the user-facing path.
func (s *Store) RecordRequest(ctx context.Context, userID int64, flow, model, status string, took time.Duration) {
	if s == nil {
		return
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO requests (user_id, flow, model, status, duration_ms)
		 VALUES ($1, $2, $3, $4, $5)`,
		userID, flow, model, status, took.Milliseconds())
	if err != nil {
		logger.STORE.Warn("journal write failed",
			slog.String("event", "journal.insert"),
			slog.Int64("user_id", userID),
			slog.String("flow", flow),
			slog.String("err", err.Error()),
		)
	}
}

// GetStats returns aggregate journal counts.
func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	if s == nil {
		return Stats{}, errors.New("persistence is not configured")
	}
	var st Stats
	err := s.db.GetContext(ctx, &st,
		`SELECT count(*) AS total_requests,
		        count(*) FILTER (WHERE status = 'fail') AS failed_requests,
		        count(DISTINCT user_id) AS unique_users
		 FROM requests`)
	if err != nil {
		return Stats{}, fmt.Errorf("read stats: %w", err)
	}
	return st, nil
}
