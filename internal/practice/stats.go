package practice

import (
	"context"
	"math"

	"github.com/mind-engage/mindengage-quiz/internal/db"
)

const recentChapterLimit = 5

// ChapterOverview lists every chapter of a bank with the user's tally.
func (s *SQLStore) ChapterOverview(ctx context.Context, userID, bankID int64) ([]ChapterSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.name,
		        (SELECT COUNT(*) FROM questions q WHERE q.chapter_id = c.id),
		        COALESCE(p.total_count, 0), COALESCE(p.correct_count, 0)
		   FROM chapters c
		   LEFT JOIN chapter_progress p ON p.chapter_id = c.id AND p.user_id = $1
		  WHERE c.bank_id = $2
		  ORDER BY c.sort_order, c.name`, userID, bankID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ChapterSummary{}
	for rows.Next() {
		var c ChapterSummary
		if err := rows.Scan(&c.ChapterID, &c.ChapterName, &c.QuestionTotal, &c.TotalCount, &c.CorrectCount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Stats aggregates the user's practice history.
func (s *SQLStore) Stats(ctx context.Context, userID int64) (Stats, error) {
	st := Stats{ByType: map[string]int{}, RecentChapters: []ChapterRate{}}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN is_correct THEN 1 ELSE 0 END), 0),
		        COUNT(DISTINCT question_id),
		        COUNT(DISTINCT `+db.DayExpr(s.driver, "created_at")+`)
		   FROM submissions WHERE user_id=$1`, userID).
		Scan(&st.TotalAnswers, &st.CorrectAnswers, &st.UniqueQuestions, &st.StudyDays)
	if err != nil {
		return Stats{}, err
	}

	if err := s.countByType(ctx, userID, st.ByType); err != nil {
		return Stats{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.name, b.name, p.total_count, p.correct_count
		   FROM chapter_progress p
		   JOIN chapters c ON c.id = p.chapter_id
		   JOIN banks b ON b.id = c.bank_id
		  WHERE p.user_id = $1
		  ORDER BY p.updated_at DESC, c.id
		  LIMIT $2`, userID, recentChapterLimit)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var r ChapterRate
		if err := rows.Scan(&r.ChapterID, &r.ChapterName, &r.BankName, &r.TotalCount, &r.CorrectCount); err != nil {
			return Stats{}, err
		}
		r.Rate = rate(r.CorrectCount, r.TotalCount)
		st.RecentChapters = append(st.RecentChapters, r)
	}
	return st, rows.Err()
}

func (s *SQLStore) countByType(ctx context.Context, userID int64, into map[string]int) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT q.type, COUNT(*)
		   FROM submissions s JOIN questions q ON q.id = s.question_id
		  WHERE s.user_id = $1
		  GROUP BY q.type`, userID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return err
		}
		into[typ] = n
	}
	return rows.Err()
}

func rate(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(correct)*1000/float64(total)) / 10
}
