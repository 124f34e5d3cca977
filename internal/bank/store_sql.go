package bank

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-quiz/internal/db"
	"github.com/mind-engage/mindengage-quiz/internal/grading"
)

var (
	ErrBankNotFound     = errors.New("bank not found")
	ErrChapterNotFound  = errors.New("chapter not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrInvalidQuestion  = errors.New("invalid question")
	ErrDuplicateName    = errors.New("name already in use")
)

// Reader is the read side other packages grade against.
type Reader interface {
	Question(ctx context.Context, id int64) (Question, error)
	Options(ctx context.Context, ids []int64) (map[int64][]Option, error)
}

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(dbh *sql.DB) *SQLStore {
	return &SQLStore{db: dbh}
}

func (s *SQLStore) CreateBank(ctx context.Context, name, description string) (Bank, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Bank{}, fmt.Errorf("%w: bank name required", ErrInvalidQuestion)
	}
	b := Bank{Name: name, Description: description}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO banks (name, description, created_at) VALUES ($1,$2,$3) RETURNING id`,
		name, description, time.Now().Unix()).Scan(&b.ID)
	if db.IsUniqueViolation(err) {
		return Bank{}, fmt.Errorf("%w: bank %q", ErrDuplicateName, name)
	}
	if err != nil {
		return Bank{}, fmt.Errorf("create bank: %w", err)
	}
	return b, nil
}

// UpdateBank renames a bank and replaces its description.
func (s *SQLStore) UpdateBank(ctx context.Context, id int64, name, description string) (Bank, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Bank{}, fmt.Errorf("%w: bank name required", ErrInvalidQuestion)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE banks SET name=$1, description=$2 WHERE id=$3`, name, description, id)
	if db.IsUniqueViolation(err) {
		return Bank{}, fmt.Errorf("%w: bank %q", ErrDuplicateName, name)
	}
	if err != nil {
		return Bank{}, fmt.Errorf("update bank: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Bank{}, ErrBankNotFound
	}
	return Bank{ID: id, Name: name, Description: description}, nil
}

// DeleteBank removes a bank with its chapters, questions and the exams
// drawn from it.
func (s *SQLStore) DeleteBank(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM banks WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete bank: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBankNotFound
	}
	return nil
}

func (s *SQLStore) CreateChapter(ctx context.Context, bankID int64, name string, sortOrder int) (Chapter, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Chapter{}, fmt.Errorf("%w: chapter name required", ErrInvalidQuestion)
	}
	if err := s.exists(ctx, `SELECT 1 FROM banks WHERE id=$1`, bankID); err != nil {
		return Chapter{}, notFound(err, ErrBankNotFound)
	}
	c := Chapter{BankID: bankID, Name: name, SortOrder: sortOrder}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO chapters (bank_id, name, sort_order) VALUES ($1,$2,$3) RETURNING id`,
		bankID, name, sortOrder).Scan(&c.ID)
	if db.IsUniqueViolation(err) {
		return Chapter{}, fmt.Errorf("%w: chapter %q", ErrDuplicateName, name)
	}
	if err != nil {
		return Chapter{}, fmt.Errorf("create chapter: %w", err)
	}
	return c, nil
}

// UpdateChapter renames and reorders a chapter. A chapter stays in its bank;
// its questions carry the bank id too.
func (s *SQLStore) UpdateChapter(ctx context.Context, id int64, name string, sortOrder int) (Chapter, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Chapter{}, fmt.Errorf("%w: chapter name required", ErrInvalidQuestion)
	}
	c := Chapter{ID: id, Name: name, SortOrder: sortOrder}
	err := s.db.QueryRowContext(ctx,
		`UPDATE chapters SET name=$1, sort_order=$2 WHERE id=$3 RETURNING bank_id`,
		name, sortOrder, id).Scan(&c.BankID)
	if errors.Is(err, sql.ErrNoRows) {
		return Chapter{}, ErrChapterNotFound
	}
	if db.IsUniqueViolation(err) {
		return Chapter{}, fmt.Errorf("%w: chapter %q", ErrDuplicateName, name)
	}
	if err != nil {
		return Chapter{}, fmt.Errorf("update chapter: %w", err)
	}
	return c, nil
}

// DeleteChapter removes a chapter, its questions and everyone's progress
// in it.
func (s *SQLStore) DeleteChapter(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chapters WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete chapter: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrChapterNotFound
	}
	return nil
}

// CreateQuestion validates q (answer key shape included) and stores it with
// its options in one transaction.
func (s *SQLStore) CreateQuestion(ctx context.Context, in NewQuestion) (Question, error) {
	q, err := validateQuestion(in)
	if err != nil {
		return Question{}, err
	}
	var chapterBank int64
	err = s.db.QueryRowContext(ctx, `SELECT bank_id FROM chapters WHERE id=$1`, q.ChapterID).Scan(&chapterBank)
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, ErrChapterNotFound
	}
	if err != nil {
		return Question{}, err
	}
	if chapterBank != q.BankID {
		return Question{}, fmt.Errorf("%w: chapter %d does not belong to bank %d", ErrInvalidQuestion, q.ChapterID, q.BankID)
	}

	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO questions (bank_id, chapter_id, title, type, answer_key, explanation, created_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
			q.BankID, q.ChapterID, q.Title, string(q.Type), grading.EncodeTokens(q.AnswerKey),
			q.Explanation, time.Now().Unix()).Scan(&q.ID); err != nil {
			return err
		}
		for i, o := range q.Options {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO options (question_id, label, text, sort_order) VALUES ($1,$2,$3,$4)`,
				q.ID, o.Label, o.Text, i); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Question{}, fmt.Errorf("create question: %w", err)
	}
	return q, nil
}

// UpdateQuestion replaces a question's content, key and options. Stored
// verdicts that were graded against the old key are left alone.
func (s *SQLStore) UpdateQuestion(ctx context.Context, id int64, in NewQuestion) (Question, error) {
	var bankID, chapterID int64
	err := s.db.QueryRowContext(ctx, `SELECT bank_id, chapter_id FROM questions WHERE id=$1`, id).Scan(&bankID, &chapterID)
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, ErrQuestionNotFound
	}
	if err != nil {
		return Question{}, err
	}
	in.BankID, in.ChapterID = bankID, chapterID
	q, err := validateQuestion(in)
	if err != nil {
		return Question{}, err
	}
	q.ID = id

	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE questions SET title=$1, type=$2, answer_key=$3, explanation=$4 WHERE id=$5`,
			q.Title, string(q.Type), grading.EncodeTokens(q.AnswerKey), q.Explanation, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM options WHERE question_id=$1`, id); err != nil {
			return err
		}
		for i, o := range q.Options {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO options (question_id, label, text, sort_order) VALUES ($1,$2,$3,$4)`,
				id, o.Label, o.Text, i); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Question{}, fmt.Errorf("update question: %w", err)
	}
	return s.Question(ctx, id)
}

// DeleteQuestion removes a question. Its practice submissions go with it;
// exam slots keep their verdict and lose the reference.
func (s *SQLStore) DeleteQuestion(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrQuestionNotFound
	}
	return nil
}

func validateQuestion(in NewQuestion) (Question, error) {
	q := Question{
		BankID:      in.BankID,
		ChapterID:   in.ChapterID,
		Title:       strings.TrimSpace(in.Title),
		Type:        in.Type,
		Explanation: in.Explanation,
	}
	if q.Title == "" {
		return Question{}, fmt.Errorf("%w: title required", ErrInvalidQuestion)
	}
	key, err := grading.ValidateKey(in.AnswerKey, in.Type)
	if err != nil {
		return Question{}, err
	}
	q.AnswerKey = key

	if !in.Type.HasOptions() {
		return q, nil
	}
	if len(in.Options) < 2 {
		return Question{}, fmt.Errorf("%w: choice questions need at least two options", ErrInvalidQuestion)
	}
	labels := make(map[string]struct{}, len(in.Options))
	for _, o := range in.Options {
		label := strings.TrimSpace(o.Label)
		if !grading.IsLetter(label) {
			return Question{}, fmt.Errorf("%w: option label %q is not a letter", grading.ErrInvalidAnswerFormat, o.Label)
		}
		if _, dup := labels[label]; dup {
			return Question{}, fmt.Errorf("%w: duplicate option label %q", ErrInvalidQuestion, label)
		}
		labels[label] = struct{}{}
		q.Options = append(q.Options, Option{Label: label, Text: o.Text})
	}
	for _, k := range key {
		if _, ok := labels[k]; !ok {
			return Question{}, fmt.Errorf("%w: answer %q names no option", grading.ErrInvalidAnswerFormat, k)
		}
	}
	return q, nil
}

// Question loads one question with its options, answer key and the names of
// its bank and chapter. The key is decoded leniently.
func (s *SQLStore) Question(ctx context.Context, id int64) (Question, error) {
	qs, err := s.queryQuestions(ctx, questionSelect+` WHERE q.id=$1`, id)
	if err != nil {
		return Question{}, err
	}
	if len(qs) == 0 {
		return Question{}, ErrQuestionNotFound
	}
	return qs[0], nil
}

// Options returns the ordered options for each question id.
func (s *SQLStore) Options(ctx context.Context, ids []int64) (map[int64][]Option, error) {
	out := make(map[int64][]Option, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT question_id, label, text FROM options
		  WHERE question_id IN (`+db.Placeholders(1, len(ids))+`)
		  ORDER BY question_id, sort_order, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var qid int64
		var o Option
		if err := rows.Scan(&qid, &o.Label, &o.Text); err != nil {
			return nil, err
		}
		out[qid] = append(out[qid], o)
	}
	return out, rows.Err()
}

// ListBanks returns every bank by name with chapter and question counts.
func (s *SQLStore) ListBanks(ctx context.Context) ([]Bank, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT b.id, b.name, b.description,
		        (SELECT COUNT(*) FROM chapters c WHERE c.bank_id = b.id),
		        (SELECT COUNT(*) FROM questions q WHERE q.bank_id = b.id)
		   FROM banks b ORDER BY b.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Bank{}
	for rows.Next() {
		var b Bank
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.ChapterCount, &b.QuestionCount); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListChapters returns the chapters of a bank ordered by sort_order, name.
func (s *SQLStore) ListChapters(ctx context.Context, bankID int64) ([]Chapter, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, bank_id, name, sort_order FROM chapters
		  WHERE bank_id=$1 ORDER BY sort_order, name`, bankID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Chapter{}
	for rows.Next() {
		var c Chapter
		if err := rows.Scan(&c.ID, &c.BankID, &c.Name, &c.SortOrder); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) exists(ctx context.Context, query string, args ...any) error {
	var one int
	return s.db.QueryRowContext(ctx, query, args...).Scan(&one)
}

// notFound swaps sql.ErrNoRows for the domain sentinel.
func notFound(err, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}
