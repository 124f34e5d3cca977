package exam

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mind-engage/mindengage-quiz/internal/bank"
	"github.com/mind-engage/mindengage-quiz/internal/grading"
)

func (s *SQLStore) Get(ctx context.Context, examID, userID int64) (Exam, error) {
	e, err := s.header(ctx, examID, userID)
	if err != nil {
		return Exam{}, err
	}
	e.Slots, err = s.slots(ctx, examID, e.Status == StatusCompleted)
	return e, err
}

// Review joins every slot with its live question, so key and explanation
// edits made after submission show up while the stored verdicts stay.
func (s *SQLStore) Review(ctx context.Context, examID, userID int64) (Exam, error) {
	e, err := s.header(ctx, examID, userID)
	if err != nil {
		return Exam{}, err
	}
	if e.Status != StatusCompleted {
		return Exam{}, ErrExamInProgress
	}
	e.Slots, err = s.slots(ctx, examID, true)
	return e, err
}

// List returns the user's exams, newest first.
func (s *SQLStore) List(ctx context.Context, userID int64) ([]Exam, error) {
	rows, err := s.db.QueryContext(ctx, examSelect+` WHERE e.user_id=$1 ORDER BY e.created_at DESC, e.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Exam{}
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const examSelect = `SELECT e.id, e.user_id, e.bank_id, COALESCE(b.name, ''), e.title, e.question_count,
       e.status, e.created_at, e.submitted_at,
       (SELECT COUNT(*) FROM exam_questions eq WHERE eq.exam_id = e.id AND eq.is_correct)
  FROM exams e LEFT JOIN banks b ON b.id = e.bank_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanExam(r scanner) (Exam, error) {
	var (
		e         Exam
		status    string
		submitted sql.NullInt64
		correct   int
	)
	if err := r.Scan(&e.ID, &e.UserID, &e.BankID, &e.BankName, &e.Title, &e.QuestionCount,
		&status, &e.CreatedAt, &submitted, &correct); err != nil {
		return Exam{}, err
	}
	e.Status = Status(status)
	if submitted.Valid {
		e.SubmittedAt = &submitted.Int64
	}
	if e.Status == StatusCompleted {
		e.CorrectCount = &correct
	}
	return e, nil
}

func (s *SQLStore) header(ctx context.Context, examID, userID int64) (Exam, error) {
	e, err := scanExam(s.db.QueryRowContext(ctx, examSelect+` WHERE e.id=$1 AND e.user_id=$2`, examID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return Exam{}, ErrExamNotFound
	}
	return e, err
}

func (s *SQLStore) slots(ctx context.Context, examID int64, reveal bool) ([]Slot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT question_order, question_id, user_answer, is_correct
		   FROM exam_questions WHERE exam_id=$1 ORDER BY question_order`, examID)
	if err != nil {
		return nil, err
	}
	var out []Slot
	for rows.Next() {
		var (
			sl      Slot
			qid     sql.NullInt64
			answer  sql.NullString
			correct sql.NullBool
		)
		if err := rows.Scan(&sl.Order, &qid, &answer, &correct); err != nil {
			rows.Close()
			return nil, err
		}
		if qid.Valid {
			sl.QuestionID = &qid.Int64
		}
		sl.UserAnswer = grading.DecodeTokens(answer.String)
		if sl.UserAnswer == nil {
			sl.UserAnswer = []string{}
		}
		sl.Answered = answer.Valid && len(sl.UserAnswer) > 0
		if correct.Valid {
			sl.IsCorrect = &correct.Bool
		}
		out = append(out, sl)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].QuestionID == nil {
			continue
		}
		q, err := s.questions.Question(ctx, *out[i].QuestionID)
		if errors.Is(err, bank.ErrQuestionNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !reveal {
			q = q.Public()
		}
		out[i].Question = &q
	}
	return out, nil
}
