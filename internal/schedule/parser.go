// Package schedule turns natural-language recurrence requests into stored
// schedules and keeps their next firings honest.
package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/peterbot/peterbot/internal/core"
	"github.com/peterbot/peterbot/internal/cron"
)

// MinConfidence gates acceptance of a parsed natural-language schedule.
// Below it the parse is treated as a normal negative result: a wrong cron
// expression fires silently and repeatedly, so the system prefers asking the
// user to rephrase. Product trade-off, kept visible.
const MinConfidence = 0.5

// ErrAmbiguous marks a parse whose confidence fell below MinConfidence.
// Callers branch on it; it is not an exceptional failure.
var ErrAmbiguous = errors.New("ambiguous schedule")

const parseSystemPrompt = "Convert the user's scheduling request into a standard 5-field cron expression " +
	"(minute hour day-of-month month day-of-week). Respond with the expression, a short human-readable " +
	"paraphrase of when it fires, and your confidence in [0,1] that the expression matches the request."

var parseSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"cron":        map[string]interface{}{"type": "string"},
		"description": map[string]interface{}{"type": "string"},
		"confidence":  map[string]interface{}{"type": "number"},
	},
	"required":             []string{"cron", "description", "confidence"},
	"additionalProperties": false,
}

// ParseResult is an accepted natural-language parse.
type ParseResult struct {
	Cron        string  `json:"cron"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// Parser delegates natural-language recurrence translation to the
// text-generation collaborator and validates what comes back.
type Parser struct {
	Generator core.TextGenerator
}

func NewParser(gen core.TextGenerator) *Parser {
	return &Parser{Generator: gen}
}

// ParseNatural translates text into a validated cron expression. Collaborator
// failures propagate as ordinary errors; a syntactically bad expression from
// the collaborator surfaces as cron.ErrInvalidExpr; confidence below
// MinConfidence returns ErrAmbiguous and must not create or mutate anything.
func (p *Parser) ParseNatural(ctx context.Context, text string) (*ParseResult, error) {
	var r ParseResult
	if err := p.Generator.GenerateStructured(ctx, parseSystemPrompt, text, parseSchema, &r); err != nil {
		return nil, fmt.Errorf("parsing schedule %q: %w", text, err)
	}
	if _, err := cron.Parse(r.Cron); err != nil {
		return nil, err
	}
	if r.Confidence < MinConfidence {
		return nil, fmt.Errorf("%w: confidence %.2f for %q", ErrAmbiguous, r.Confidence, text)
	}
	return &r, nil
}
