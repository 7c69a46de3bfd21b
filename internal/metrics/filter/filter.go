// Package filter implements the composable predicate stages applied to a
// candidate sample set before aggregation.
//
// A stage never executes anything: it appends conjunctive SQL predicates to
// a Predicate, which the store turns into a single filtered range scan.
// Stages are independent and order-insensitive; applying them in any order
// yields the same result set.
package filter

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/lumohealth/vitalstore/internal/errors"
)

// Predicate accumulates WHERE conditions and their arguments for the
// sample scan. The zero value is ready to use and matches everything.
type Predicate struct {
	conds []string
	args  []any
}

// Append adds one condition and its arguments.
func (p *Predicate) Append(cond string, args ...any) {
	p.conds = append(p.conds, cond)
	p.args = append(p.args, args...)
}

// Clause returns the combined WHERE clause (without the WHERE keyword)
// and the matching argument list. Empty when no stage added a condition.
func (p *Predicate) Clause() (string, []any) {
	if len(p.conds) == 0 {
		return "", nil
	}
	return strings.Join(p.conds, " AND "), p.args
}

// Stage is one predicate stage of the pipeline.
type Stage interface {
	Apply(p *Predicate) error
}

// Apply runs every stage against a fresh Predicate.
func Apply(stages ...Stage) (*Predicate, error) {
	p := &Predicate{}
	for _, s := range stages {
		if err := s.Apply(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// UserStage restricts to samples whose owning session belongs to the user.
// This stage is mandatory: an empty user id fails the whole query.
type UserStage struct {
	UserID string
}

// Apply implements Stage.
func (s UserStage) Apply(p *Predicate) error {
	if s.UserID == "" {
		return errors.ErrMissingRequiredFilter
	}
	if _, err := uuid.Parse(s.UserID); err != nil {
		return errors.NewInvalidParameter("user_id", s.UserID)
	}
	p.Append("sessions.user_id = ?", s.UserID)
	return nil
}

// SessionStage restricts to a single session's samples. A zero value is a
// no-op so the optional parameter can be passed through unconditionally.
type SessionStage struct {
	SessionID string
}

// Apply implements Stage.
func (s SessionStage) Apply(p *Predicate) error {
	if s.SessionID == "" {
		return nil
	}
	if _, err := uuid.Parse(s.SessionID); err != nil {
		return errors.NewInvalidParameter("session_id", s.SessionID)
	}
	p.Append("samples.session_id = ?", s.SessionID)
	return nil
}

// SeriesStage restricts to series matching a comma-separated pattern list.
// Each pattern is an exact series name or a glob where '*' matches any run
// of characters; patterns are OR-combined. An empty list is a no-op.
type SeriesStage struct {
	Patterns string
}

// Apply implements Stage.
func (s SeriesStage) Apply(p *Predicate) error {
	raw := strings.Split(s.Patterns, ",")
	var conds []string
	var args []any
	for _, pat := range raw {
		pat = strings.TrimSpace(pat)
		if pat == "" {
			continue
		}
		if strings.Contains(pat, "*") {
			conds = append(conds, "regexp_matches(samples.series, ?)")
			args = append(args, GlobToRegexp(pat))
		} else {
			conds = append(conds, "samples.series = ?")
			args = append(args, pat)
		}
	}
	if len(conds) == 0 {
		return nil
	}
	p.Append("("+strings.Join(conds, " OR ")+")", args...)
	return nil
}

// GlobToRegexp translates a series glob into an anchored regular
// expression: every '*' matches any run of characters, everything else is
// literal. "session.urine.*" matches "session.urine.color" but not
// "session.gut_health_score".
func GlobToRegexp(glob string) string {
	return "^" + strings.ReplaceAll(regexp.QuoteMeta(glob), `\*`, ".*") + "$"
}

// TimeWindowStage restricts to samples whose timestamp lies within
// [StartMs, EndMs] inclusive. Construct it with ResolveWindow so the
// defaulting rules are applied consistently.
type TimeWindowStage struct {
	StartMs int64
	EndMs   int64
}

// Apply implements Stage.
func (s TimeWindowStage) Apply(p *Predicate) error {
	p.Append("samples.ts >= ? AND samples.ts <= ?", s.StartMs, s.EndMs)
	return nil
}
