// Package banktest seeds banks, chapters and questions for tests.
package banktest

import (
	"context"
	"fmt"
	"testing"

	"github.com/mind-engage/mindengage-quiz/internal/bank"
	"github.com/mind-engage/mindengage-quiz/internal/grading"
)

func Bank(t testing.TB, s *bank.SQLStore, name string) bank.Bank {
	t.Helper()
	b, err := s.CreateBank(context.Background(), name, "")
	if err != nil {
		t.Fatalf("seed bank %q: %v", name, err)
	}
	return b
}

func Chapter(t testing.TB, s *bank.SQLStore, bankID int64, name string) bank.Chapter {
	t.Helper()
	c, err := s.CreateChapter(context.Background(), bankID, name, 0)
	if err != nil {
		t.Fatalf("seed chapter %q: %v", name, err)
	}
	return c
}

// Question stores a question in chapter c. Choice types get options A-D.
func Question(t testing.TB, s *bank.SQLStore, c bank.Chapter, typ grading.Type, key ...string) bank.Question {
	t.Helper()
	in := bank.NewQuestion{
		BankID:      c.BankID,
		ChapterID:   c.ID,
		Title:       fmt.Sprintf("%s question in %s", typ, c.Name),
		Type:        typ,
		AnswerKey:   key,
		Explanation: "because " + fmt.Sprint(key),
	}
	if typ.HasOptions() {
		in.Options = []bank.Option{
			{Label: "A", Text: "first"},
			{Label: "B", Text: "second"},
			{Label: "C", Text: "third"},
			{Label: "D", Text: "fourth"},
		}
	}
	q, err := s.CreateQuestion(context.Background(), in)
	if err != nil {
		t.Fatalf("seed question: %v", err)
	}
	return q
}

// Questions stores n single-choice questions keyed "A".
func Questions(t testing.TB, s *bank.SQLStore, c bank.Chapter, n int) []bank.Question {
	t.Helper()
	out := make([]bank.Question, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Question(t, s, c, grading.TypeSingle, "A"))
	}
	return out
}
