package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Schedule is a recurring rule that spawns jobs at computed future instants.
type Schedule struct {
	ID              int64      `json:"id"`
	Description     string     `json:"description"`
	NaturalSchedule string     `json:"natural_schedule"` // raw user text
	ParsedCron      string     `json:"parsed_cron"`      // normalized 5-field expression
	Prompt          string     `json:"prompt"`           // resubmitted as job input on firing
	Enabled         bool       `json:"enabled"`
	LastRunAt       *time.Time `json:"last_run_at,omitempty"`
	NextRunAt       time.Time  `json:"next_run_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

const scheduleColumns = `id, description, natural_schedule, parsed_cron, prompt, enabled, last_run_at, next_run_at, created_at, updated_at`

// CreateSchedule inserts a new enabled schedule with its first computed firing.
func (db *DB) CreateSchedule(ctx context.Context, description, naturalSchedule, parsedCron, prompt string, nextRunAt time.Time) (*Schedule, error) {
	res, err := db.ExecContext(ctx,
		`INSERT INTO schedules (description, natural_schedule, parsed_cron, prompt, enabled, next_run_at) VALUES (?, ?, ?, ?, 1, ?)`,
		description, naturalSchedule, parsedCron, prompt, nextRunAt)
	if err != nil {
		return nil, fmt.Errorf("creating schedule: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return db.GetSchedule(ctx, id)
}

// GetSchedule returns the schedule with the given id, or nil if absent.
func (db *DB) GetSchedule(ctx context.Context, id int64) (*Schedule, error) {
	row := db.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`, id)
	s, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListSchedules returns all schedules, newest first.
func (db *DB) ListSchedules(ctx context.Context) ([]Schedule, error) {
	return db.querySchedules(ctx,
		`SELECT `+scheduleColumns+` FROM schedules ORDER BY created_at DESC, id DESC`)
}

// GetDueSchedules returns enabled schedules whose next_run_at is at or before
// now. Pure read; safe to poll repeatedly.
func (db *DB) GetDueSchedules(ctx context.Context, now time.Time) ([]Schedule, error) {
	return db.querySchedules(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE enabled = 1 AND next_run_at <= ? ORDER BY next_run_at ASC`,
		now)
}

// RecordScheduleRun marks a firing: last_run_at = now, next_run_at advanced.
// Called once per firing, immediately after the spawned job is created, so the
// same occurrence is not fired again on the next poll.
func (db *DB) RecordScheduleRun(ctx context.Context, id int64, now, nextRunAt time.Time) error {
	_, err := db.ExecContext(ctx,
		`UPDATE schedules SET last_run_at = ?, next_run_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		now, nextRunAt, id)
	return err
}

// ToggleSchedule enables or disables a schedule. When enabling, nextRunAt must
// be freshly computed from the current instant; the pre-disable value is stale
// and would fire a backlog of missed occurrences.
func (db *DB) ToggleSchedule(ctx context.Context, id int64, enabled bool, nextRunAt *time.Time) error {
	if enabled {
		if nextRunAt == nil {
			return fmt.Errorf("enabling schedule %d requires a freshly computed next run", id)
		}
		_, err := db.ExecContext(ctx,
			`UPDATE schedules SET enabled = 1, next_run_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			*nextRunAt, id)
		return err
	}
	_, err := db.ExecContext(ctx,
		`UPDATE schedules SET enabled = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	return err
}

// DeleteSchedule removes a schedule.
func (db *DB) DeleteSchedule(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	return err
}

func (db *DB) querySchedules(ctx context.Context, query string, args ...interface{}) ([]Schedule, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func scanSchedule(r rowScanner) (*Schedule, error) {
	var s Schedule
	var lastRun sql.NullTime
	if err := r.Scan(&s.ID, &s.Description, &s.NaturalSchedule, &s.ParsedCron, &s.Prompt, &s.Enabled, &lastRun, &s.NextRunAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if lastRun.Valid {
		s.LastRunAt = &lastRun.Time
	}
	return &s, nil
}
