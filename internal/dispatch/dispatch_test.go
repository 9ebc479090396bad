package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/peterbot/peterbot/internal/core"
	"github.com/peterbot/peterbot/internal/store"
)

type fakeExecutor struct {
	output string
	err    error
	ran    []string
}

func (e *fakeExecutor) Execute(ctx context.Context, job core.Job) (string, error) {
	e.ran = append(e.ran, job.ID)
	return e.output, e.err
}

type fakeNotifier struct {
	err      error
	notified []string
}

func (n *fakeNotifier) Notify(ctx context.Context, job core.Job) error {
	if n.err != nil {
		return n.err
	}
	n.notified = append(n.notified, job.ID)
	return nil
}

func newTestRunner(t *testing.T, exec *fakeExecutor) (*Runner, *store.DB) {
	t.Helper()
	db, err := store.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	r := NewRunner(db, exec, nil, "chat1")
	r.Now = func() time.Time { return time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC) }
	return r, db
}

func TestTick_FiresDueSchedule(t *testing.T) {
	ctx := context.Background()
	exec := &fakeExecutor{output: "done"}
	r, db := newTestRunner(t, exec)

	now := r.Now()
	s, err := db.CreateSchedule(ctx, "hourly check", "every hour", "0 * * * *", "check the feeds", now.Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}

	r.Tick(ctx)

	jobs, _ := db.ListJobsByChat(ctx, "chat1")
	if len(jobs) != 1 {
		t.Fatalf("jobs = %d, want 1 spawned", len(jobs))
	}
	j := jobs[0]
	if j.Input != "check the feeds" || j.Type != core.JobTypeTask {
		t.Errorf("spawned job = %+v", j)
	}
	if j.ScheduleID == nil || *j.ScheduleID != s.ID {
		t.Errorf("schedule_id = %v, want %d", j.ScheduleID, s.ID)
	}
	// Same tick also ran it.
	if j.Status != core.StatusCompleted || j.Output == nil || *j.Output != "done" {
		t.Errorf("job after tick = %+v", j)
	}

	// Run recorded: last_run_at set, next advanced past now.
	got, _ := db.GetSchedule(ctx, s.ID)
	if got.LastRunAt == nil || !got.LastRunAt.Equal(now) {
		t.Errorf("last_run_at = %v, want %v", got.LastRunAt, now)
	}
	if want := time.Date(2026, 8, 29, 11, 0, 0, 0, time.UTC); !got.NextRunAt.Equal(want) {
		t.Errorf("next_run_at = %v, want %v", got.NextRunAt, want)
	}

	// Next tick fires nothing new.
	r.Tick(ctx)
	jobs, _ = db.ListJobsByChat(ctx, "chat1")
	if len(jobs) != 1 {
		t.Errorf("jobs after second tick = %d, want still 1", len(jobs))
	}
}

func TestTick_ExecutorFailureMarksFailed(t *testing.T) {
	ctx := context.Background()
	exec := &fakeExecutor{err: errors.New("sandbox crashed")}
	r, db := newTestRunner(t, exec)

	j, _ := db.CreateJob(ctx, core.JobTypeTask, "doomed", "chat1", nil, "")
	r.Tick(ctx)

	got, _ := db.GetJob(ctx, j.ID)
	if got.Status != core.StatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if got.Output == nil || *got.Output != "sandbox crashed" {
		t.Errorf("output = %v", got.Output)
	}
}

func TestTick_RespectsPendingBatch(t *testing.T) {
	ctx := context.Background()
	exec := &fakeExecutor{output: "ok"}
	r, db := newTestRunner(t, exec)
	r.PendingBatch = 2

	for i := 0; i < 3; i++ {
		_, _ = db.CreateJob(ctx, core.JobTypeTask, "task", "chat1", nil, "")
	}
	r.Tick(ctx)
	if len(exec.ran) != 2 {
		t.Errorf("ran %d jobs, want batch of 2", len(exec.ran))
	}
	r.Tick(ctx)
	if len(exec.ran) != 3 {
		t.Errorf("ran %d jobs total, want 3", len(exec.ran))
	}
}

func TestTick_BadStoredExpressionDisablesSchedule(t *testing.T) {
	ctx := context.Background()
	exec := &fakeExecutor{output: "ok"}
	r, db := newTestRunner(t, exec)

	// Corrupt the stored expression behind the store API's back.
	s, _ := db.CreateSchedule(ctx, "broken", "n", "0 * * * *", "p", r.Now().Add(-time.Minute))
	if _, err := db.ExecContext(ctx, `UPDATE schedules SET parsed_cron = 'nonsense' WHERE id = ?`, s.ID); err != nil {
		t.Fatal(err)
	}

	r.Tick(ctx)

	got, _ := db.GetSchedule(ctx, s.ID)
	if got.Enabled {
		t.Error("schedule with unparseable expression should be disabled")
	}
	jobs, _ := db.ListJobsByChat(ctx, "chat1")
	if len(jobs) != 0 {
		t.Errorf("spawned jobs from a broken schedule: %+v", jobs)
	}
}

func TestDelivery_MarksDelivered(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(ctx, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	done, _ := db.CreateJob(ctx, core.JobTypeTask, "done", "chat1", nil, "")
	_ = db.MarkJobCompleted(ctx, done.ID, "out")
	pending, _ := db.CreateJob(ctx, core.JobTypeTask, "pending", "chat1", nil, "")

	n := &fakeNotifier{}
	d := NewDelivery(db, n)
	d.Tick(ctx)

	if len(n.notified) != 1 || n.notified[0] != done.ID {
		t.Errorf("notified = %v", n.notified)
	}
	got, _ := db.GetJob(ctx, done.ID)
	if !got.Delivered {
		t.Error("completed job should be delivered")
	}
	still, _ := db.GetJob(ctx, pending.ID)
	if still.Delivered {
		t.Error("pending job must not be delivered")
	}

	// Delivered jobs leave the feed.
	d.Tick(ctx)
	if len(n.notified) != 1 {
		t.Errorf("re-notified: %v", n.notified)
	}
}

func TestDelivery_FailedNotifyStaysQueued(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(ctx, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	done, _ := db.CreateJob(ctx, core.JobTypeTask, "done", "chat1", nil, "")
	_ = db.MarkJobCompleted(ctx, done.ID, "out")

	n := &fakeNotifier{err: errors.New("channel down")}
	d := NewDelivery(db, n)
	d.Tick(ctx)

	got, _ := db.GetJob(ctx, done.ID)
	if got.Delivered {
		t.Error("failed notify must not mark delivered")
	}

	n.err = nil
	d.Tick(ctx)
	got, _ = db.GetJob(ctx, done.ID)
	if !got.Delivered {
		t.Error("job should deliver once the channel recovers")
	}
}
