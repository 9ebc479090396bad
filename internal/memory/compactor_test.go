package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/peterbot/peterbot/internal/core"
	"github.com/peterbot/peterbot/internal/store"
)

type fakeGenerator struct {
	summary string
	err     error
	calls   int
}

func (g *fakeGenerator) GenerateText(ctx context.Context, systemPrompt, prompt string) (string, error) {
	g.calls++
	return g.summary, g.err
}

func (g *fakeGenerator) GenerateStructured(ctx context.Context, systemPrompt, prompt string, schema map[string]interface{}, out interface{}) error {
	return errors.New("not used")
}

func newTestCompactor(t *testing.T, gen *fakeGenerator) (*Compactor, *store.DB) {
	t.Helper()
	db, err := store.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewCompactor(db, gen), db
}

func completedJob(t *testing.T, db *store.DB, chatID, input string) *core.Job {
	t.Helper()
	ctx := context.Background()
	j, err := db.CreateJob(ctx, core.JobTypeTask, input, chatID, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.MarkJobCompleted(ctx, j.ID, "result of "+input); err != nil {
		t.Fatal(err)
	}
	return j
}

func TestCheckAndCompact_BelowThresholdIsNoOp(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{summary: "sum"}
	c, db := newTestCompactor(t, gen)

	trigger := completedJob(t, db, "chat1", "task")
	for i := 0; i < DefaultThreshold-1; i++ {
		c.CheckAndCompact(ctx, "chat1", trigger.ID)
	}

	if n, _ := db.CountSessions(ctx); n != 0 {
		t.Errorf("sessions = %d, want 0 below threshold", n)
	}
	s, _ := db.GetChatState(ctx, "chat1")
	if s.MessageCount != DefaultThreshold-1 {
		t.Errorf("count = %d, want %d", s.MessageCount, DefaultThreshold-1)
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times below threshold", gen.calls)
	}
}

func TestCheckAndCompact_AtThreshold(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{summary: "three sentences of synthesis."}
	c, db := newTestCompactor(t, gen)

	var trigger *core.Job
	for i := 0; i < 5; i++ {
		trigger = completedJob(t, db, "chat1", fmt.Sprintf("task %d", i))
	}
	for i := 0; i < DefaultThreshold; i++ {
		c.CheckAndCompact(ctx, "chat1", trigger.ID)
	}

	sessions, err := db.ListSessionsByChat(ctx, "chat1")
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 {
		t.Fatalf("sessions = %d, want exactly 1", len(sessions))
	}
	got := sessions[0]
	if got.MessageCount != DefaultThreshold {
		t.Errorf("session message_count = %d, want %d", got.MessageCount, DefaultThreshold)
	}
	if got.TriggerJobID != trigger.ID {
		t.Errorf("trigger_job_id = %s, want %s", got.TriggerJobID, trigger.ID)
	}
	if got.Summary != gen.summary {
		t.Errorf("summary = %q", got.Summary)
	}

	s, _ := db.GetChatState(ctx, "chat1")
	if s.MessageCount != 0 {
		t.Errorf("count = %d, want 0 after compaction", s.MessageCount)
	}
	if s.LatestSummary == nil || *s.LatestSummary != gen.summary {
		t.Errorf("latest_summary = %v", s.LatestSummary)
	}
}

func TestCheckAndCompact_NoMaterialLeavesCounter(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{summary: "sum"}
	c, db := newTestCompactor(t, gen)

	// No completed jobs exist for this chat at all.
	for i := 0; i < DefaultThreshold; i++ {
		c.CheckAndCompact(ctx, "chat1", "trigger-id")
	}

	if n, _ := db.CountSessions(ctx); n != 0 {
		t.Errorf("sessions = %d, want 0 without material", n)
	}
	s, _ := db.GetChatState(ctx, "chat1")
	if s.MessageCount != DefaultThreshold {
		t.Errorf("count = %d, want %d (un-reset)", s.MessageCount, DefaultThreshold)
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times with no material", gen.calls)
	}
}

func TestCheckAndCompact_GeneratorFailureSwallowed(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{err: errors.New("model unavailable")}
	c, db := newTestCompactor(t, gen)

	trigger := completedJob(t, db, "chat1", "task")
	// Must not panic or propagate; counter stays for a later retry.
	for i := 0; i < DefaultThreshold; i++ {
		c.CheckAndCompact(ctx, "chat1", trigger.ID)
	}

	if n, _ := db.CountSessions(ctx); n != 0 {
		t.Errorf("sessions = %d, want 0 after failed summarize", n)
	}
	s, _ := db.GetChatState(ctx, "chat1")
	if s.MessageCount != DefaultThreshold {
		t.Errorf("count = %d, want %d (un-reset)", s.MessageCount, DefaultThreshold)
	}

	// Self-healing: once the collaborator recovers, the next completion
	// compacts the oversized backlog.
	gen.err = nil
	gen.summary = "recovered"
	c.CheckAndCompact(ctx, "chat1", trigger.ID)
	sessions, _ := db.ListSessionsByChat(ctx, "chat1")
	if len(sessions) != 1 || sessions[0].MessageCount != DefaultThreshold+1 {
		t.Errorf("after recovery: %+v", sessions)
	}
	s, _ = db.GetChatState(ctx, "chat1")
	if s.MessageCount != 0 {
		t.Errorf("count = %d, want 0 after recovery", s.MessageCount)
	}
}

func TestCheckAndCompact_ConfiguredThreshold(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{summary: "sum"}
	c, db := newTestCompactor(t, gen)

	if err := db.SetConfigValue(ctx, "compaction_threshold", "3"); err != nil {
		t.Fatal(err)
	}
	trigger := completedJob(t, db, "chat1", "task")

	c.CheckAndCompact(ctx, "chat1", trigger.ID)
	c.CheckAndCompact(ctx, "chat1", trigger.ID)
	if n, _ := db.CountSessions(ctx); n != 0 {
		t.Fatalf("compacted before configured threshold")
	}
	c.CheckAndCompact(ctx, "chat1", trigger.ID)
	if n, _ := db.CountSessions(ctx); n != 1 {
		t.Errorf("sessions = %d, want 1 at configured threshold", n)
	}
}
