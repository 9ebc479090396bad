package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Solution is a user-saved past job result, retrievable later by keyword
// similarity. One solution per job; rows are never mutated.
type Solution struct {
	ID          int64     `json:"id"`
	JobID       string    `json:"job_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Tags        string    `json:"tags,omitempty"`
	Keywords    string    `json:"keywords,omitempty"` // space-joined normalized tokens
	CreatedAt   time.Time `json:"created_at"`
}

// CreateSolution captures a job's result for later retrieval. keywords is the
// space-joined normalized token set used for scoring.
func (db *DB) CreateSolution(ctx context.Context, jobID, title, description, tags, keywords string) (int64, error) {
	res, err := db.ExecContext(ctx,
		`INSERT INTO solutions (job_id, title, description, tags, keywords) VALUES (?, ?, ?, ?, ?)`,
		jobID, title, description, tags, keywords)
	if err != nil {
		return 0, fmt.Errorf("creating solution: %w", err)
	}
	return res.LastInsertId()
}

// GetSolutionByJob returns the solution captured for a job, or nil if none.
func (db *DB) GetSolutionByJob(ctx context.Context, jobID string) (*Solution, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, job_id, title, description, tags, keywords, created_at FROM solutions WHERE job_id = ?`, jobID)
	s, err := scanSolution(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListSolutionsWithKeywords returns every solution that has a non-empty
// keyword string. Solutions without keywords cannot be scored and are
// excluded here rather than filtered downstream.
func (db *DB) ListSolutionsWithKeywords(ctx context.Context) ([]Solution, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, job_id, title, description, tags, keywords, created_at FROM solutions WHERE keywords IS NOT NULL AND keywords != ''`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Solution
	for rows.Next() {
		s, err := scanSolution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func scanSolution(r rowScanner) (*Solution, error) {
	var s Solution
	var description, tags, keywords sql.NullString
	if err := r.Scan(&s.ID, &s.JobID, &s.Title, &description, &tags, &keywords, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Description = description.String
	s.Tags = tags.String
	s.Keywords = keywords.String
	return &s, nil
}
