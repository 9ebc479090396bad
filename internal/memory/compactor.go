// Package memory bounds per-chat history by folding completed work into
// summaries once a counter passes a configurable threshold.
package memory

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/peterbot/peterbot/internal/core"
	"github.com/peterbot/peterbot/internal/store"
)

// DefaultThreshold is the compaction trigger used when the config table has
// no compaction_threshold entry.
const DefaultThreshold = 20

// thresholdKey is the config table key holding the trigger count.
const thresholdKey = "compaction_threshold"

const summarySystemPrompt = "You summarize a personal assistant's completed work for one conversation. " +
	"Produce a 3-5 sentence synthesis capturing the tasks addressed, the approaches used, and their outcomes. " +
	"Plain prose, no lists."

// Compactor folds a chat's recent completed jobs into a Session summary.
type Compactor struct {
	DB        *store.DB
	Generator core.TextGenerator

	// The threshold read sits on every job completion; cache it briefly
	// instead of hitting the config table each time.
	thresholds *expirable.LRU[string, int]
}

func NewCompactor(db *store.DB, gen core.TextGenerator) *Compactor {
	return &Compactor{
		DB:         db,
		Generator:  gen,
		thresholds: expirable.NewLRU[string, int](1, nil, 30*time.Second),
	}
}

// CheckAndCompact counts one completion for chatID and, at the threshold,
// summarizes the chat's recent completed jobs into a new Session and resets
// the counter.
//
// Compaction is best-effort: it logs and swallows every failure rather than
// propagating, so the delivery path that triggered it is never blocked. A
// failed attempt leaves the counter alone; the next completion retries with a
// larger backlog.
func (c *Compactor) CheckAndCompact(ctx context.Context, chatID, triggerJobID string) {
	if err := c.DB.EnsureChatState(ctx, chatID); err != nil {
		log.Printf("[COMPACT] ensure chat state %s: %v", chatID, err)
		return
	}
	count, err := c.DB.IncrementMessageCount(ctx, chatID)
	if err != nil {
		log.Printf("[COMPACT] increment count %s: %v", chatID, err)
		return
	}

	threshold := c.threshold(ctx)
	if count < threshold {
		return
	}

	jobs, err := c.DB.ListRecentCompletedJobs(ctx, chatID, threshold)
	if err != nil {
		log.Printf("[COMPACT] fetch completed jobs %s: %v", chatID, err)
		return
	}
	if len(jobs) == 0 {
		// Nothing to summarize; resetting now would erase history the
		// user hasn't seen. Leave the counter for the next attempt.
		return
	}

	summary, err := c.summarize(ctx, jobs)
	if err != nil {
		log.Printf("[COMPACT] summarize %s: %v", chatID, err)
		return
	}

	if _, err := c.DB.CreateSession(ctx, chatID, triggerJobID, count, summary); err != nil {
		log.Printf("[COMPACT] persist session %s: %v", chatID, err)
		return
	}
	if err := c.DB.SetLatestSummary(ctx, chatID, summary); err != nil {
		log.Printf("[COMPACT] cache summary %s: %v", chatID, err)
	}
	if err := c.DB.ResetMessageCount(ctx, chatID); err != nil {
		log.Printf("[COMPACT] reset count %s: %v", chatID, err)
		return
	}
	log.Printf("[COMPACT] chat %s compacted %d jobs at count %d", chatID, len(jobs), count)
}

func (c *Compactor) threshold(ctx context.Context) int {
	if v, ok := c.thresholds.Get(thresholdKey); ok {
		return v
	}
	v, err := c.DB.GetConfigInt(ctx, thresholdKey, DefaultThreshold)
	if err != nil {
		log.Printf("[COMPACT] read threshold: %v", err)
		return DefaultThreshold
	}
	if v <= 0 {
		v = DefaultThreshold
	}
	c.thresholds.Add(thresholdKey, v)
	return v
}

func (c *Compactor) summarize(ctx context.Context, jobs []core.Job) (string, error) {
	var sb strings.Builder
	sb.WriteString("Completed work, newest first:\n\n")
	for _, j := range jobs {
		sb.WriteString(fmt.Sprintf("Task: %s\n", j.Input))
		if j.Output != nil {
			sb.WriteString(fmt.Sprintf("Result: %s\n", *j.Output))
		}
		sb.WriteString("\n")
	}
	summary, err := c.Generator.GenerateText(ctx, summarySystemPrompt, sb.String())
	if err != nil {
		return "", fmt.Errorf("summarization failed: %w", err)
	}
	return summary, nil
}
