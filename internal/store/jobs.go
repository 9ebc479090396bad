package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/peterbot/peterbot/internal/core"
)

// CancelReason is the output text written when a job is cancelled.
const CancelReason = "Cancelled by user"

// chatHistoryLimit bounds ListJobsByChat to the most recent entries.
const chatHistoryLimit = 20

const jobColumns = `id, type, status, input, output, chat_id, schedule_id, skill_context, delivered, retry_count, created_at, updated_at`

// CreateJob inserts a new pending job and returns it. scheduleID is non-nil
// when the job was spawned by a schedule firing.
func (db *DB) CreateJob(ctx context.Context, typ core.JobType, input, chatID string, scheduleID *int64, skillContext string) (*core.Job, error) {
	id := uuid.NewString()
	_, err := db.ExecContext(ctx,
		`INSERT INTO jobs (id, type, status, input, chat_id, schedule_id, skill_context) VALUES (?, ?, 'pending', ?, ?, ?, ?)`,
		id, string(typ), input, chatID, scheduleID, skillContext,
	)
	if err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}
	return db.GetJob(ctx, id)
}

// GetJob returns the job with the given id, or nil if it does not exist.
func (db *DB) GetJob(ctx context.Context, id string) (*core.Job, error) {
	row := db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return j, nil
}

// MarkJobRunning transitions a job to running. Callers are expected to have
// confirmed the job is not already running; there is no locking here beyond
// the row update itself.
func (db *DB) MarkJobRunning(ctx context.Context, id string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE jobs SET status = 'running', updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	return err
}

// MarkJobCompleted stores the output and transitions the job to completed.
// A missing id is a no-op; check GetJob first if existence matters.
func (db *DB) MarkJobCompleted(ctx context.Context, id, output string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE jobs SET status = 'completed', output = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		output, id)
	return err
}

// MarkJobFailed stores the error text as output and transitions the job to failed.
func (db *DB) MarkJobFailed(ctx context.Context, id, errorText string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE jobs SET status = 'failed', output = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		errorText, id)
	return err
}

// MarkJobDelivered records that the result reached the originating channel.
// Only completed jobs can be delivered; anything else is a no-op.
func (db *DB) MarkJobDelivered(ctx context.Context, id string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE jobs SET delivered = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = 'completed'`, id)
	return err
}

// CancelJob transitions a pending or running job to failed with CancelReason.
// Cancelling a completed or failed job returns ErrInvalidTransition without
// touching the row. The status check and the write happen in one transaction
// so a job finishing concurrently is never clobbered after the fact.
func (db *DB) CancelJob(ctx context.Context, id string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	if core.JobStatus(status).IsTerminal() {
		return fmt.Errorf("cancel job %s from %s: %w", id, status, ErrInvalidTransition)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE jobs SET status = 'failed', output = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		CancelReason, id); err != nil {
		return err
	}
	return tx.Commit()
}

// RetryJob creates a fresh pending job carrying the failed job's input,
// chat and type. The old row is left untouched as an audit record.
// Retrying a job that is not failed returns ErrInvalidTransition.
func (db *DB) RetryJob(ctx context.Context, id string) (*core.Job, error) {
	old, err := db.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if old == nil {
		return nil, nil
	}
	if old.Status != core.StatusFailed {
		return nil, fmt.Errorf("retry job %s from %s: %w", id, old.Status, ErrInvalidTransition)
	}
	return db.CreateJob(ctx, old.Type, old.Input, old.ChatID, old.ScheduleID, old.SkillContext)
}

// IncrementJobRetryCount bumps the informational retry counter. User-visible
// retry creates a new job instead (RetryJob); this is for host-internal
// transient-failure retries that reuse the same row.
func (db *DB) IncrementJobRetryCount(ctx context.Context, id string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE jobs SET retry_count = retry_count + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	return err
}

// ListJobsByChat returns the most recent jobs for a chat, newest first.
func (db *DB) ListJobsByChat(ctx context.Context, chatID string) ([]core.Job, error) {
	return db.queryJobs(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE chat_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		chatID, chatHistoryLimit)
}

// ListPendingJobs returns up to limit pending jobs, oldest first, for the
// dispatch loop to pick up.
func (db *DB) ListPendingJobs(ctx context.Context, limit int) ([]core.Job, error) {
	return db.queryJobs(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = 'pending' ORDER BY created_at ASC, rowid ASC LIMIT ?`,
		limit)
}

// ListUndeliveredJobs returns completed jobs whose result has not yet been
// pushed to the originating channel, newest first. This is the feed the
// delivery poller works through.
func (db *DB) ListUndeliveredJobs(ctx context.Context) ([]core.Job, error) {
	return db.queryJobs(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = 'completed' AND delivered = 0 ORDER BY created_at DESC, rowid DESC`)
}

// ListRecentCompletedJobs returns the newest completed jobs for a chat, up to
// limit. Compaction summarizes this window.
func (db *DB) ListRecentCompletedJobs(ctx context.Context, chatID string, limit int) ([]core.Job, error) {
	return db.queryJobs(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE chat_id = ? AND status = 'completed' ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		chatID, limit)
}

func (db *DB) queryJobs(ctx context.Context, query string, args ...interface{}) ([]core.Job, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []core.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(r rowScanner) (*core.Job, error) {
	var j core.Job
	var output, skillContext sql.NullString
	var scheduleID sql.NullInt64
	var typ, status string
	if err := r.Scan(&j.ID, &typ, &status, &j.Input, &output, &j.ChatID, &scheduleID, &skillContext, &j.Delivered, &j.RetryCount, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	j.Type = core.JobType(typ)
	j.Status = core.JobStatus(status)
	if output.Valid {
		j.Output = &output.String
	}
	if scheduleID.Valid {
		j.ScheduleID = &scheduleID.Int64
	}
	if skillContext.Valid {
		j.SkillContext = skillContext.String
	}
	return &j, nil
}
