package filter

import (
	"regexp"
	"testing"

	"github.com/google/uuid"

	"github.com/lumohealth/vitalstore/internal/errors"
)

func TestApplyRequiresUser(t *testing.T) {
	_, err := Apply(UserStage{})
	if !errors.Is(err, errors.ErrMissingRequiredFilter) {
		t.Fatalf("err = %v, want ErrMissingRequiredFilter", err)
	}
}

func TestUserStageRejectsMalformedID(t *testing.T) {
	_, err := Apply(UserStage{UserID: "not-a-uuid"})
	if !errors.Is(err, errors.ErrInvalidParameter) {
		t.Fatalf("err = %v, want ErrInvalidParameter", err)
	}
}

func TestUserStageClause(t *testing.T) {
	id := uuid.New().String()
	p, err := Apply(UserStage{UserID: id})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	clause, args := p.Clause()
	if clause != "sessions.user_id = ?" {
		t.Errorf("clause = %q", clause)
	}
	if len(args) != 1 || args[0] != id {
		t.Errorf("args = %v", args)
	}
}

func TestSessionStageOptional(t *testing.T) {
	p, err := Apply(UserStage{UserID: uuid.New().String()}, SessionStage{})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	clause, _ := p.Clause()
	if clause != "sessions.user_id = ?" {
		t.Errorf("zero session stage added a condition: %q", clause)
	}

	if _, err := Apply(UserStage{UserID: uuid.New().String()}, SessionStage{SessionID: "bogus"}); !errors.Is(err, errors.ErrInvalidParameter) {
		t.Errorf("malformed session id err = %v, want ErrInvalidParameter", err)
	}
}

func TestSeriesStageExactAndGlob(t *testing.T) {
	p, err := Apply(SeriesStage{Patterns: "session.gut_health_score, session.urine.*"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	clause, args := p.Clause()
	want := "(samples.series = ? OR regexp_matches(samples.series, ?))"
	if clause != want {
		t.Errorf("clause = %q, want %q", clause, want)
	}
	if len(args) != 2 {
		t.Fatalf("args = %v", args)
	}
	if args[0] != "session.gut_health_score" {
		t.Errorf("exact arg = %v", args[0])
	}
	if args[1] != GlobToRegexp("session.urine.*") {
		t.Errorf("glob arg = %v", args[1])
	}
}

func TestSeriesStageEmptyIsNoop(t *testing.T) {
	for _, patterns := range []string{"", " ", ",,"} {
		p, err := Apply(SeriesStage{Patterns: patterns})
		if err != nil {
			t.Fatalf("apply(%q): %v", patterns, err)
		}
		if clause, _ := p.Clause(); clause != "" {
			t.Errorf("patterns %q produced clause %q", patterns, clause)
		}
	}
}

func TestGlobToRegexp(t *testing.T) {
	re := regexp.MustCompile(GlobToRegexp("session.urine.*"))

	matches := []string{"session.urine.color", "session.urine.night_count"}
	for _, s := range matches {
		if !re.MatchString(s) {
			t.Errorf("%q should match session.urine.*", s)
		}
	}

	// The dot is literal: the glob must not bleed into sibling series.
	rejects := []string{"session.gut_health_score", "session.urineXcolor", "other.urine.color"}
	for _, s := range rejects {
		if re.MatchString(s) {
			t.Errorf("%q should not match session.urine.*", s)
		}
	}

	// Without a star the pattern is fully anchored and literal.
	exact := regexp.MustCompile(GlobToRegexp("session.urine.color"))
	if !exact.MatchString("session.urine.color") || exact.MatchString("session.urine.colors") {
		t.Error("literal glob should match exactly one series name")
	}
}

func TestStagesOrderInsensitive(t *testing.T) {
	user := UserStage{UserID: uuid.New().String()}
	series := SeriesStage{Patterns: "session.sleep_quality"}
	window := TimeWindowStage{StartMs: 1000, EndMs: 2000}

	a, err := Apply(user, series, window)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	b, err := Apply(window, user, series)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	clauseA, argsA := a.Clause()
	clauseB, argsB := b.Clause()
	if countConds(clauseA) != countConds(clauseB) {
		t.Errorf("different condition counts: %q vs %q", clauseA, clauseB)
	}
	if len(argsA) != len(argsB) {
		t.Errorf("different arg counts: %v vs %v", argsA, argsB)
	}
}

func countConds(clause string) int {
	return len(regexp.MustCompile(`\?`).FindAllString(clause, -1))
}
