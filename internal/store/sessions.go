package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is one compaction event: a bounded window of completed work folded
// into a summary. Rows are append-only and form the compaction audit trail.
type Session struct {
	ID           string    `json:"id"`
	ChatID       string    `json:"chat_id"`
	TriggerJobID string    `json:"trigger_job_id"`
	MessageCount int       `json:"message_count"` // counter value at compaction time
	Summary      string    `json:"summary"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateSession appends a compaction record.
func (db *DB) CreateSession(ctx context.Context, chatID, triggerJobID string, messageCount int, summary string) (string, error) {
	id := uuid.NewString()
	_, err := db.ExecContext(ctx,
		`INSERT INTO sessions (id, chat_id, trigger_job_id, message_count, summary) VALUES (?, ?, ?, ?, ?)`,
		id, chatID, triggerJobID, messageCount, summary)
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	return id, nil
}

// ListSessionsByChat returns a chat's compaction history, newest first.
func (db *DB) ListSessionsByChat(ctx context.Context, chatID string) ([]Session, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, chat_id, trigger_job_id, message_count, summary, created_at FROM sessions WHERE chat_id = ? ORDER BY created_at DESC, rowid DESC`,
		chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.ChatID, &s.TriggerJobID, &s.MessageCount, &s.Summary, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountSessions returns the total number of compaction records.
func (db *DB) CountSessions(ctx context.Context) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n)
	return n, err
}
