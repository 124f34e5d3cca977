package grading

import (
	"sort"
	"strings"
)

// Q is the view of a question needed for grading.
type Q struct {
	Type      Type
	AnswerKey []string
}

// Result is the verdict for one answer.
type Result struct {
	Correct bool
	// Ungraded is set for essays: Correct is true for them only so that every
	// submission counts toward the same totals.
	Ungraded bool
}

// Strategy grades one question type.
type Strategy interface {
	Grade(submitted, key []string) Result
}

// Grader routes by question type to the right Strategy.
type Grader interface {
	Grade(q Q, submitted Value) Result
}

type defaultGrader struct {
	strategies map[Type]Strategy
}

// NewDefaultGrader installs the built-in strategies.
func NewDefaultGrader() Grader {
	return &defaultGrader{
		strategies: map[Type]Strategy{
			TypeSingle:   membershipStrategy{},
			TypeFill:     membershipStrategy{},
			TypeMultiple: exactSetStrategy{},
			TypeEssay:    essayStrategy{},
		},
	}
}

func (g *defaultGrader) Grade(q Q, submitted Value) Result {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{}
	}
	var tokens []string
	if submitted != nil {
		tokens = submitted.Tokens()
	}
	if q.Type != TypeEssay && len(tokens) == 0 {
		return Result{}
	}
	return s.Grade(tokens, cleanKey(q.AnswerKey))
}

var std = NewDefaultGrader()

// Grade is the verdict for already-normalized tokens against a key.
func Grade(t Type, submitted, key []string) bool {
	return std.Grade(Q{Type: t, AnswerKey: key}, Normalize(submitted, t)).Correct
}

// --- Strategies ---

// membershipStrategy accepts the first submitted token if it is any one of
// the accepted keys. Fill-in keys list alternative phrasings this way.
type membershipStrategy struct{}

func (membershipStrategy) Grade(submitted, key []string) Result {
	first := submitted[0]
	for _, k := range key {
		if k == first {
			return Result{Correct: true}
		}
	}
	return Result{}
}

// exactSetStrategy needs the submitted letters to be exactly the key,
// in any order.
type exactSetStrategy struct{}

func (exactSetStrategy) Grade(submitted, key []string) Result {
	a := sortedSet(submitted)
	b := sortedSet(key)
	if len(a) != len(b) {
		return Result{}
	}
	for i := range a {
		if a[i] != b[i] {
			return Result{}
		}
	}
	return Result{Correct: true}
}

type essayStrategy struct{}

func (essayStrategy) Grade(_, _ []string) Result {
	return Result{Correct: true, Ungraded: true}
}

// helpers

func cleanKey(key []string) []string {
	out := make([]string, 0, len(key))
	for _, k := range key {
		if s := strings.TrimSpace(k); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func sortedSet(arr []string) []string {
	seen := make(map[string]struct{}, len(arr))
	out := make([]string, 0, len(arr))
	for _, s := range arr {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
