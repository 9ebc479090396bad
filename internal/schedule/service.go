package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/peterbot/peterbot/internal/cron"
	"github.com/peterbot/peterbot/internal/store"
)

// Service wraps schedule persistence with the recurrence bookkeeping the
// store itself does not enforce.
type Service struct {
	DB     *store.DB
	Parser *Parser

	// Now is swappable for tests; defaults to time.Now.
	Now func() time.Time
}

func NewService(db *store.DB, parser *Parser) *Service {
	return &Service{DB: db, Parser: parser, Now: time.Now}
}

// Create parses the natural-language recurrence and, when accepted, stores a
// new enabled schedule with its first computed firing. An ambiguous parse
// (ErrAmbiguous) creates nothing.
func (s *Service) Create(ctx context.Context, naturalSchedule, prompt string) (*store.Schedule, error) {
	parsed, err := s.Parser.ParseNatural(ctx, naturalSchedule)
	if err != nil {
		return nil, err
	}
	next, err := cron.Next(parsed.Cron, s.Now())
	if err != nil {
		return nil, err
	}
	if next.IsZero() {
		return nil, fmt.Errorf("%w: %q never fires", cron.ErrInvalidExpr, parsed.Cron)
	}
	return s.DB.CreateSchedule(ctx, parsed.Description, naturalSchedule, parsed.Cron, prompt, next)
}

// Enable turns a schedule back on, recomputing next_run_at from the current
// instant so a long-disabled schedule cannot fire a backlog of stale
// occurrences. Missing ids are a no-op.
func (s *Service) Enable(ctx context.Context, id int64) error {
	sched, err := s.DB.GetSchedule(ctx, id)
	if err != nil {
		return err
	}
	if sched == nil {
		return nil
	}
	next, err := cron.Next(sched.ParsedCron, s.Now())
	if err != nil {
		return err
	}
	return s.DB.ToggleSchedule(ctx, id, true, &next)
}

// Disable turns a schedule off.
func (s *Service) Disable(ctx context.Context, id int64) error {
	return s.DB.ToggleSchedule(ctx, id, false, nil)
}

// Delete removes a schedule outright.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.DB.DeleteSchedule(ctx, id)
}
