package bank

import (
	"context"
	"fmt"
	"strings"

	"github.com/mind-engage/mindengage-quiz/internal/grading"
)

const (
	// SearchLimit caps a keyword search.
	SearchLimit = 100
	// PageSize is the admin question listing page size.
	PageSize = 20
)

const questionSelect = `SELECT q.id, q.bank_id, q.chapter_id, q.title, q.type, q.answer_key, q.explanation,
       COALESCE(b.name, ''), COALESCE(c.name, '')
  FROM questions q
  LEFT JOIN banks b ON b.id = q.bank_id
  LEFT JOIN chapters c ON c.id = q.chapter_id`

// QuestionFilter narrows the admin question listing. Zero fields match all.
type QuestionFilter struct {
	BankID    int64
	ChapterID int64
	Type      grading.Type
	Page      int
}

type QuestionPage struct {
	Questions []Question `json:"questions"`
	Total     int        `json:"total"`
	Page      int        `json:"page"`
	PageSize  int        `json:"page_size"`
}

// Search finds questions whose title contains keyword, newest first.
func (s *SQLStore) Search(ctx context.Context, keyword string) ([]Question, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return []Question{}, nil
	}
	return s.queryQuestions(ctx,
		questionSelect+` WHERE q.title LIKE $1 ORDER BY q.id DESC LIMIT $2`,
		"%"+keyword+"%", SearchLimit)
}

// Preview lists a bank's questions in chapter order, optionally just one
// chapter's.
func (s *SQLStore) Preview(ctx context.Context, bankID, chapterID int64) ([]Question, error) {
	if err := s.exists(ctx, `SELECT 1 FROM banks WHERE id=$1`, bankID); err != nil {
		return nil, notFound(err, ErrBankNotFound)
	}
	query := questionSelect + ` WHERE q.bank_id=$1`
	args := []any{bankID}
	if chapterID > 0 {
		query += ` AND q.chapter_id=$2`
		args = append(args, chapterID)
	}
	return s.queryQuestions(ctx, query+` ORDER BY c.sort_order, q.id`, args...)
}

// ListQuestions pages through questions newest first.
func (s *SQLStore) ListQuestions(ctx context.Context, f QuestionFilter) (QuestionPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.BankID > 0 {
		add("q.bank_id=$%d", f.BankID)
	}
	if f.ChapterID > 0 {
		add("q.chapter_id=$%d", f.ChapterID)
	}
	if f.Type != "" {
		add("q.type=$%d", string(f.Type))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	page := QuestionPage{Page: f.Page, PageSize: PageSize}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions q`+clause, args...).Scan(&page.Total); err != nil {
		return QuestionPage{}, fmt.Errorf("count questions: %w", err)
	}
	n := len(args)
	args = append(args, PageSize, (f.Page-1)*PageSize)
	qs, err := s.queryQuestions(ctx,
		questionSelect+clause+fmt.Sprintf(` ORDER BY q.id DESC LIMIT $%d OFFSET $%d`, n+1, n+2), args...)
	if err != nil {
		return QuestionPage{}, err
	}
	page.Questions = qs
	return page, nil
}

// queryQuestions runs a questionSelect query and attaches options. Rows are
// closed before options are loaded.
func (s *SQLStore) queryQuestions(ctx context.Context, query string, args ...any) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out := []Question{}
	for rows.Next() {
		var q Question
		var typ, key string
		if err := rows.Scan(&q.ID, &q.BankID, &q.ChapterID, &q.Title, &typ, &key, &q.Explanation,
			&q.BankName, &q.ChapterName); err != nil {
			rows.Close()
			return nil, err
		}
		q.Type = grading.Type(typ)
		q.AnswerKey = grading.DecodeTokens(key)
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	ids := make([]int64, len(out))
	for i, q := range out {
		ids[i] = q.ID
	}
	opts, err := s.Options(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Options = opts[out[i].ID]
	}
	return out, nil
}
