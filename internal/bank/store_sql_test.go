package bank_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-quiz/internal/bank"
	"github.com/mind-engage/mindengage-quiz/internal/bank/banktest"
	"github.com/mind-engage/mindengage-quiz/internal/db/dbtest"
	"github.com/mind-engage/mindengage-quiz/internal/grading"
)

func TestCreateAndReadQuestion(t *testing.T) {
	dbh := dbtest.Open(t)
	s := bank.NewSQLStore(dbh)
	b := banktest.Bank(t, s, "DB101")
	c := banktest.Chapter(t, s, b.ID, "Normalization")

	created := banktest.Question(t, s, c, grading.TypeMultiple, "C", "A")

	got, err := s.Question(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, grading.TypeMultiple, got.Type)
	assert.Equal(t, []string{"C", "A"}, got.AnswerKey)
	assert.Equal(t, "DB101", got.BankName)
	assert.Equal(t, "Normalization", got.ChapterName)
	require.Len(t, got.Options, 4)
	assert.Equal(t, "A", got.Options[0].Label)
	assert.Equal(t, "D", got.Options[3].Label)

	pub := got.Public()
	assert.Nil(t, pub.AnswerKey)
	assert.Empty(t, pub.Explanation)
}

func TestCreateQuestionRejectsMalformedKeys(t *testing.T) {
	dbh := dbtest.Open(t)
	s := bank.NewSQLStore(dbh)
	b := banktest.Bank(t, s, "DB101")
	c := banktest.Chapter(t, s, b.ID, "Normalization")
	opts := []bank.Option{{Label: "A", Text: "x"}, {Label: "B", Text: "y"}}
	ctx := context.Background()

	_, err := s.CreateQuestion(ctx, bank.NewQuestion{BankID: b.ID, ChapterID: c.ID, Title: "q", Type: grading.TypeSingle, Options: opts, AnswerKey: []string{"a"}})
	assert.ErrorIs(t, err, grading.ErrInvalidAnswerFormat)

	_, err = s.CreateQuestion(ctx, bank.NewQuestion{BankID: b.ID, ChapterID: c.ID, Title: "q", Type: grading.TypeSingle, Options: opts, AnswerKey: []string{"C"}})
	assert.ErrorIs(t, err, grading.ErrInvalidAnswerFormat, "key letter without an option")

	_, err = s.CreateQuestion(ctx, bank.NewQuestion{BankID: b.ID, ChapterID: c.ID, Title: "q", Type: grading.TypeSingle,
		Options: []bank.Option{{Label: "A"}, {Label: "A"}}, AnswerKey: []string{"A"}})
	assert.ErrorIs(t, err, bank.ErrInvalidQuestion)

	_, err = s.CreateQuestion(ctx, bank.NewQuestion{BankID: b.ID, ChapterID: c.ID, Title: "", Type: grading.TypeFill, AnswerKey: []string{"x"}})
	assert.ErrorIs(t, err, bank.ErrInvalidQuestion)

	_, err = s.CreateQuestion(ctx, bank.NewQuestion{BankID: b.ID, ChapterID: 999, Title: "q", Type: grading.TypeFill, AnswerKey: []string{"x"}})
	assert.ErrorIs(t, err, bank.ErrChapterNotFound)

	other := banktest.Bank(t, s, "OS201")
	_, err = s.CreateQuestion(ctx, bank.NewQuestion{BankID: other.ID, ChapterID: c.ID, Title: "q", Type: grading.TypeFill, AnswerKey: []string{"x"}})
	assert.ErrorIs(t, err, bank.ErrInvalidQuestion)

	assert.Equal(t, 0, dbtest.Count(t, dbh, `SELECT COUNT(*) FROM questions`))
	assert.Equal(t, 0, dbtest.Count(t, dbh, `SELECT COUNT(*) FROM options`))
}

func TestQuestionNotFound(t *testing.T) {
	s := bank.NewSQLStore(dbtest.Open(t))
	_, err := s.Question(context.Background(), 42)
	assert.ErrorIs(t, err, bank.ErrQuestionNotFound)
}

func TestListBanksAndChapters(t *testing.T) {
	dbh := dbtest.Open(t)
	s := bank.NewSQLStore(dbh)
	ctx := context.Background()
	os := banktest.Bank(t, s, "OS201")
	db101 := banktest.Bank(t, s, "DB101")

	_, err := s.CreateChapter(ctx, db101.ID, "Transactions", 2)
	require.NoError(t, err)
	norm, err := s.CreateChapter(ctx, db101.ID, "Normalization", 1)
	require.NoError(t, err)
	banktest.Questions(t, s, norm, 3)

	_, err = s.CreateChapter(ctx, 777, "nowhere", 0)
	assert.ErrorIs(t, err, bank.ErrBankNotFound)

	banks, err := s.ListBanks(ctx)
	require.NoError(t, err)
	require.Len(t, banks, 2)
	assert.Equal(t, "DB101", banks[0].Name)
	assert.Equal(t, 2, banks[0].ChapterCount)
	assert.Equal(t, 3, banks[0].QuestionCount)
	assert.Equal(t, os.ID, banks[1].ID)

	chapters, err := s.ListChapters(ctx, db101.ID)
	require.NoError(t, err)
	require.Len(t, chapters, 2)
	assert.Equal(t, "Normalization", chapters[0].Name)
	assert.Equal(t, "Transactions", chapters[1].Name)
}

func TestUpdateAndDeleteQuestion(t *testing.T) {
	dbh := dbtest.Open(t)
	s := bank.NewSQLStore(dbh)
	ctx := context.Background()
	b := banktest.Bank(t, s, "DB101")
	c := banktest.Chapter(t, s, b.ID, "Normalization")
	q := banktest.Question(t, s, c, grading.TypeSingle, "A")

	got, err := s.UpdateQuestion(ctx, q.ID, bank.NewQuestion{
		Title:       "Which normal form removes transitive dependencies?",
		Type:        grading.TypeSingle,
		Options:     []bank.Option{{Label: "A", Text: "2NF"}, {Label: "B", Text: "3NF"}},
		AnswerKey:   []string{"B"},
		Explanation: "3NF",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, got.AnswerKey)
	assert.Equal(t, c.ID, got.ChapterID)
	assert.Len(t, got.Options, 2)

	_, err = s.UpdateQuestion(ctx, q.ID, bank.NewQuestion{Title: "x", Type: grading.TypeSingle,
		Options: []bank.Option{{Label: "A"}, {Label: "B"}}, AnswerKey: []string{"Z"}})
	assert.ErrorIs(t, err, grading.ErrInvalidAnswerFormat)

	require.NoError(t, s.DeleteQuestion(ctx, q.ID))
	assert.ErrorIs(t, s.DeleteQuestion(ctx, q.ID), bank.ErrQuestionNotFound)
	assert.Equal(t, 0, dbtest.Count(t, dbh, `SELECT COUNT(*) FROM options`))
}

func TestBankAndChapterEdits(t *testing.T) {
	dbh := dbtest.Open(t)
	s := bank.NewSQLStore(dbh)
	ctx := context.Background()
	b := banktest.Bank(t, s, "DB101")
	other := banktest.Bank(t, s, "OS101")
	c := banktest.Chapter(t, s, b.ID, "Normalization")
	banktest.Chapter(t, s, b.ID, "Indexes")
	banktest.Questions(t, s, c, 2)

	_, err := s.CreateBank(ctx, "DB101", "again")
	assert.ErrorIs(t, err, bank.ErrDuplicateName)
	_, err = s.UpdateBank(ctx, other.ID, "DB101", "")
	assert.ErrorIs(t, err, bank.ErrDuplicateName)
	_, err = s.CreateChapter(ctx, b.ID, "Normalization", 0)
	assert.ErrorIs(t, err, bank.ErrDuplicateName)
	_, err = s.UpdateChapter(ctx, c.ID, "Indexes", 0)
	assert.ErrorIs(t, err, bank.ErrDuplicateName)
	_, err = s.CreateChapter(ctx, other.ID, "Normalization", 0)
	assert.NoError(t, err, "chapter names are per bank")

	renamed, err := s.UpdateBank(ctx, b.ID, "Databases", "intro")
	require.NoError(t, err)
	assert.Equal(t, "Databases", renamed.Name)
	ch, err := s.UpdateChapter(ctx, c.ID, "Normal forms", 5)
	require.NoError(t, err)
	assert.Equal(t, b.ID, ch.BankID)
	assert.Equal(t, 5, ch.SortOrder)

	_, err = s.UpdateBank(ctx, 9999, "x", "")
	assert.ErrorIs(t, err, bank.ErrBankNotFound)
	_, err = s.UpdateChapter(ctx, 9999, "x", 0)
	assert.ErrorIs(t, err, bank.ErrChapterNotFound)

	require.NoError(t, s.DeleteChapter(ctx, c.ID))
	assert.Equal(t, 0, dbtest.Count(t, dbh, `SELECT COUNT(*) FROM questions WHERE chapter_id=$1`, c.ID))
	assert.ErrorIs(t, s.DeleteChapter(ctx, c.ID), bank.ErrChapterNotFound)

	require.NoError(t, s.DeleteBank(ctx, b.ID))
	assert.Equal(t, 0, dbtest.Count(t, dbh, `SELECT COUNT(*) FROM chapters WHERE bank_id=$1`, b.ID))
	assert.ErrorIs(t, s.DeleteBank(ctx, b.ID), bank.ErrBankNotFound)
}
