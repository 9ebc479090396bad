// Package cron parses standard 5-field recurrence expressions
// (minute hour day-of-month month day-of-week) and computes occurrences.
package cron

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidExpr is wrapped into every parse failure so callers can translate
// syntax errors into a user-facing "invalid schedule" outcome.
var ErrInvalidExpr = errors.New("invalid cron expression")

// Expr is a parsed 5-field cron expression.
type Expr struct {
	minute uint64
	hour   uint64
	dom    uint64
	month  uint64
	dow    uint64

	// A starred day field is unrestricted; when both day fields are
	// restricted, standard cron matches a day if either one does.
	domStar bool
	dowStar bool

	raw string
}

// String returns the original expression text.
func (e *Expr) String() string { return e.raw }

// Parse parses a 5-field expression. Each field accepts "*", numbers, ranges
// (a-b), steps (*/n, a-b/n) and comma lists. Weekday 0 and 7 both mean Sunday.
func Parse(expr string) (*Expr, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("%w: %q: expected 5 fields, got %d", ErrInvalidExpr, expr, len(fields))
	}

	e := &Expr{raw: strings.Join(fields, " ")}
	var err error
	if e.minute, _, err = parseField(fields[0], 0, 59, nil); err != nil {
		return nil, fmt.Errorf("%w: minute field %q: %v", ErrInvalidExpr, fields[0], err)
	}
	if e.hour, _, err = parseField(fields[1], 0, 23, nil); err != nil {
		return nil, fmt.Errorf("%w: hour field %q: %v", ErrInvalidExpr, fields[1], err)
	}
	if e.dom, e.domStar, err = parseField(fields[2], 1, 31, nil); err != nil {
		return nil, fmt.Errorf("%w: day-of-month field %q: %v", ErrInvalidExpr, fields[2], err)
	}
	if e.month, _, err = parseField(fields[3], 1, 12, nil); err != nil {
		return nil, fmt.Errorf("%w: month field %q: %v", ErrInvalidExpr, fields[3], err)
	}
	// 7 folds onto Sunday (0).
	if e.dow, e.dowStar, err = parseField(fields[4], 0, 7, func(n int) int {
		if n == 7 {
			return 0
		}
		return n
	}); err != nil {
		return nil, fmt.Errorf("%w: day-of-week field %q: %v", ErrInvalidExpr, fields[4], err)
	}
	return e, nil
}

// parseField builds a bitmask of allowed values. normalize, when non-nil,
// folds aliases (weekday 7 -> 0) after bounds checking.
func parseField(s string, min, max int, normalize func(int) int) (uint64, bool, error) {
	if s == "" {
		return 0, false, errors.New("empty field")
	}
	var mask uint64
	star := false
	for _, part := range strings.Split(s, ",") {
		step := 1
		rng := part
		if i := strings.IndexByte(part, '/'); i >= 0 {
			rng = part[:i]
			n, err := strconv.Atoi(part[i+1:])
			if err != nil || n <= 0 {
				return 0, false, fmt.Errorf("bad step in %q", part)
			}
			step = n
		}

		lo, hi := min, max
		switch {
		case rng == "*":
			if part == "*" {
				star = true
			}
		case strings.Contains(rng, "-"):
			bounds := strings.SplitN(rng, "-", 2)
			var err error
			if lo, err = strconv.Atoi(bounds[0]); err != nil {
				return 0, false, fmt.Errorf("bad range in %q", part)
			}
			if hi, err = strconv.Atoi(bounds[1]); err != nil {
				return 0, false, fmt.Errorf("bad range in %q", part)
			}
			if lo > hi {
				return 0, false, fmt.Errorf("descending range in %q", part)
			}
		default:
			n, err := strconv.Atoi(rng)
			if err != nil {
				return 0, false, fmt.Errorf("bad value %q", part)
			}
			lo, hi = n, n
			if strings.IndexByte(part, '/') < 0 {
				hi = n
			} else {
				// "n/step" means n-max/step per common cron behavior
				hi = max
			}
		}
		if lo < min || hi > max {
			return 0, false, fmt.Errorf("value out of range [%d,%d] in %q", min, max, part)
		}
		for v := lo; v <= hi; v += step {
			n := v
			if normalize != nil {
				n = normalize(n)
			}
			mask |= 1 << uint(n)
		}
	}
	return mask, star, nil
}

func (e *Expr) bit(mask uint64, v int) bool { return mask&(1<<uint(v)) != 0 }

func (e *Expr) dayMatches(t time.Time) bool {
	domOK := e.bit(e.dom, t.Day())
	dowOK := e.bit(e.dow, int(t.Weekday()))
	// Standard cron: both restricted -> either may match; otherwise both
	// (a starred field matches every day anyway).
	if !e.domStar && !e.dowStar {
		return domOK || dowOK
	}
	return domOK && dowOK
}

// Next returns the first instant strictly after from that matches the
// expression, at minute resolution, in from's location. Returns the zero time
// if no occurrence exists within five years (e.g. "0 0 30 2 *").
func (e *Expr) Next(from time.Time) time.Time {
	loc := from.Location()
	t := time.Date(from.Year(), from.Month(), from.Day(), from.Hour(), from.Minute(), 0, 0, loc)
	t = t.Add(time.Minute)
	limit := from.AddDate(5, 0, 0)

	for t.Before(limit) {
		if !e.bit(e.month, int(t.Month())) {
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, loc)
			continue
		}
		if !e.dayMatches(t) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
			continue
		}
		if !e.bit(e.hour, t.Hour()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, loc)
			continue
		}
		if !e.bit(e.minute, t.Minute()) {
			t = t.Add(time.Minute)
			continue
		}
		return t
	}
	return time.Time{}
}

// Next parses expr and returns its first occurrence after from.
func Next(expr string, from time.Time) (time.Time, error) {
	e, err := Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	return e.Next(from), nil
}
