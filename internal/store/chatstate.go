package store

import (
	"context"
	"database/sql"
	"time"
)

// ChatState tracks per-conversation compaction progress. One row per chat.
type ChatState struct {
	ChatID        string    `json:"chat_id"`
	MessageCount  int       `json:"message_count"` // completions since last compaction
	LatestSummary *string   `json:"latest_summary,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// EnsureChatState creates the row for chatID if absent. Safe under concurrent
// first-touches for the same chat.
func (db *DB) EnsureChatState(ctx context.Context, chatID string) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO chat_states (chat_id, message_count) VALUES (?, 0)`, chatID)
	return err
}

// IncrementMessageCount bumps the counter server-side and returns the new
// value. The increment is a single atomic statement so concurrent job
// completions for the same chat never lose an update.
func (db *DB) IncrementMessageCount(ctx context.Context, chatID string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`UPDATE chat_states SET message_count = message_count + 1, updated_at = CURRENT_TIMESTAMP WHERE chat_id = ? RETURNING message_count`,
		chatID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ResetMessageCount zeroes the counter. Called exactly when a session row has
// been persisted for the chat.
func (db *DB) ResetMessageCount(ctx context.Context, chatID string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE chat_states SET message_count = 0, updated_at = CURRENT_TIMESTAMP WHERE chat_id = ?`, chatID)
	return err
}

// SetLatestSummary caches the most recent compaction summary on the chat row.
func (db *DB) SetLatestSummary(ctx context.Context, chatID, summary string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE chat_states SET latest_summary = ?, updated_at = CURRENT_TIMESTAMP WHERE chat_id = ?`,
		summary, chatID)
	return err
}

// GetChatState returns the chat's state, or nil if the chat has never been seen.
func (db *DB) GetChatState(ctx context.Context, chatID string) (*ChatState, error) {
	var s ChatState
	var summary sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT chat_id, message_count, latest_summary, updated_at FROM chat_states WHERE chat_id = ?`,
		chatID).Scan(&s.ChatID, &s.MessageCount, &summary, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if summary.Valid {
		s.LatestSummary = &summary.String
	}
	return &s, nil
}
