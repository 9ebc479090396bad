// Package dispatch hosts the polling loops: due schedules spawn jobs, pending
// jobs run through the executor, completed results get delivered.
package dispatch

import (
	"context"
	"log"
	"time"

	"github.com/peterbot/peterbot/internal/core"
	"github.com/peterbot/peterbot/internal/cron"
	"github.com/peterbot/peterbot/internal/memory"
	"github.com/peterbot/peterbot/internal/store"
)

// Runner polls for due schedules and pending jobs and drives them forward.
type Runner struct {
	DB        *store.DB
	Executor  core.Executor
	Compactor *memory.Compactor

	// DefaultChatID owns schedule-spawned jobs; a personal assistant has one
	// primary conversation.
	DefaultChatID string

	Interval     time.Duration
	PendingBatch int

	// Now is swappable for tests; defaults to time.Now.
	Now func() time.Time
}

func NewRunner(db *store.DB, executor core.Executor, compactor *memory.Compactor, defaultChatID string) *Runner {
	return &Runner{
		DB:            db,
		Executor:      executor,
		Compactor:     compactor,
		DefaultChatID: defaultChatID,
		Interval:      30 * time.Second,
		PendingBatch:  5,
		Now:           time.Now,
	}
}

// Run polls until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	log.Println("[DISPATCH] started, polling every", r.Interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("[DISPATCH] stopped")
			return nil
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs one poll pass: fire due schedules, then work pending jobs.
func (r *Runner) Tick(ctx context.Context) {
	r.fireDueSchedules(ctx)
	r.runPendingJobs(ctx)
}

// fireDueSchedules spawns one job per due schedule, then records the run.
// Create-then-record, in that order: a crash between the two duplicates a
// firing on restart instead of skipping one. At-least-once for reminders.
func (r *Runner) fireDueSchedules(ctx context.Context) {
	now := r.Now()
	due, err := r.DB.GetDueSchedules(ctx, now)
	if err != nil {
		log.Printf("[DISPATCH] querying due schedules: %v", err)
		return
	}
	for _, s := range due {
		expr, err := cron.Parse(s.ParsedCron)
		if err != nil {
			// A stored expression should always parse; disable rather
			// than re-hitting it every tick.
			log.Printf("[DISPATCH] schedule %d has bad expression %q, disabling: %v", s.ID, s.ParsedCron, err)
			if err := r.DB.ToggleSchedule(ctx, s.ID, false, nil); err != nil {
				log.Printf("[DISPATCH] disabling schedule %d: %v", s.ID, err)
			}
			continue
		}

		id := s.ID
		job, err := r.DB.CreateJob(ctx, core.JobTypeTask, s.Prompt, r.DefaultChatID, &id, "")
		if err != nil {
			log.Printf("[DISPATCH] spawning job for schedule %d: %v", s.ID, err)
			continue
		}
		log.Printf("[DISPATCH] schedule %d fired job %s: %s", s.ID, job.ID, s.Description)

		if err := r.DB.RecordScheduleRun(ctx, s.ID, now, expr.Next(now)); err != nil {
			log.Printf("[DISPATCH] recording run for schedule %d: %v", s.ID, err)
		}
	}
}

// runPendingJobs picks up a batch of pending jobs and runs each to a terminal
// state, triggering compaction afterwards.
func (r *Runner) runPendingJobs(ctx context.Context) {
	jobs, err := r.DB.ListPendingJobs(ctx, r.PendingBatch)
	if err != nil {
		log.Printf("[DISPATCH] querying pending jobs: %v", err)
		return
	}
	for _, j := range jobs {
		if err := r.DB.MarkJobRunning(ctx, j.ID); err != nil {
			log.Printf("[DISPATCH] marking job %s running: %v", j.ID, err)
			continue
		}

		output, err := r.Executor.Execute(ctx, j)
		if err != nil {
			log.Printf("[DISPATCH] job %s failed: %v", j.ID, err)
			if err := r.DB.MarkJobFailed(ctx, j.ID, err.Error()); err != nil {
				log.Printf("[DISPATCH] marking job %s failed: %v", j.ID, err)
				continue
			}
		} else {
			if err := r.DB.MarkJobCompleted(ctx, j.ID, output); err != nil {
				log.Printf("[DISPATCH] marking job %s completed: %v", j.ID, err)
				continue
			}
		}

		if r.Compactor != nil {
			r.Compactor.CheckAndCompact(ctx, j.ChatID, j.ID)
		}
	}
}
