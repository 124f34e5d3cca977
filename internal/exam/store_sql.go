package exam

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-quiz/internal/bank"
	"github.com/mind-engage/mindengage-quiz/internal/db"
	"github.com/mind-engage/mindengage-quiz/internal/events"
	"github.com/mind-engage/mindengage-quiz/internal/grading"
	syncx "github.com/mind-engage/mindengage-quiz/internal/sync"
)

type SQLStore struct {
	db        *sql.DB
	questions bank.Reader
	grader    grading.Grader
	events    *events.Recorder
	log       logrus.FieldLogger

	intn    func(n int) int
	shuffle func(n int, swap func(i, j int))
	now     func() time.Time
}

func NewSQLStore(dbh *sql.DB, questions bank.Reader, rec *events.Recorder, log logrus.FieldLogger) *SQLStore {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if rec == nil {
		rec = events.NewRecorder(syncx.NewEventRepo(dbh, ""), nil, log)
	}
	return &SQLStore{
		db:        dbh,
		questions: questions,
		grader:    grading.NewDefaultGrader(),
		events:    rec,
		log:       log.WithField("component", "exam"),
		intn:      rand.IntN,
		shuffle:   rand.Shuffle,
		now:       time.Now,
	}
}

// Create samples count distinct questions of the bank, shuffles the draw once
// more, and stores the exam with slots ordered 1..count.
func (s *SQLStore) Create(ctx context.Context, userID, bankID int64, title string, count int) (Exam, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Exam{}, fmt.Errorf("%w: title required", ErrInvalidExam)
	}
	if count < 1 {
		return Exam{}, fmt.Errorf("%w: question count must be positive", ErrInvalidExam)
	}
	e := Exam{UserID: userID, BankID: bankID, Title: title, QuestionCount: count, Status: StatusInProgress}
	err := s.db.QueryRowContext(ctx, `SELECT name FROM banks WHERE id=$1`, bankID).Scan(&e.BankName)
	if errors.Is(err, sql.ErrNoRows) {
		return Exam{}, bank.ErrBankNotFound
	}
	if err != nil {
		return Exam{}, err
	}

	pool, err := s.bankQuestionIDs(ctx, bankID)
	if err != nil {
		return Exam{}, err
	}
	if len(pool) < count {
		s.log.WithFields(logrus.Fields{"bank_id": bankID, "available": len(pool), "requested": count}).
			Debug("not enough questions for exam")
		return Exam{}, ErrInsufficientQuestions
	}
	drawn := sample(pool, count, s.intn)
	s.shuffle(len(drawn), func(i, j int) { drawn[i], drawn[j] = drawn[j], drawn[i] })

	e.CreatedAt = s.now().Unix()
	var ev syncx.Event
	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO exams (user_id, bank_id, title, question_count, status, created_at)
			 VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
			userID, bankID, title, count, string(StatusInProgress), e.CreatedAt).Scan(&e.ID); err != nil {
			return fmt.Errorf("insert exam: %w", err)
		}
		for i, qid := range drawn {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO exam_questions (exam_id, question_id, question_order) VALUES ($1,$2,$3)`,
				e.ID, qid, i+1); err != nil {
				return fmt.Errorf("insert exam question: %w", err)
			}
		}
		var err error
		ev, err = s.events.Append(ctx, tx, syncx.TypeExamCreated, examKey(e.ID), map[string]any{
			"exam_id":        e.ID,
			"user_id":        userID,
			"bank_id":        bankID,
			"question_count": count,
		})
		return err
	})
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"user_id": userID, "bank_id": bankID}).Error("create exam failed")
		return Exam{}, err
	}
	s.events.Publish(ctx, ev)
	return e, nil
}

func (s *SQLStore) bankQuestionIDs(ctx context.Context, bankID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM questions WHERE bank_id=$1 ORDER BY id`, bankID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// sample draws n ids without replacement (partial Fisher-Yates on a copy).
func sample(ids []int64, n int, intn func(int) int) []int64 {
	pool := append([]int64(nil), ids...)
	for i := 0; i < n; i++ {
		j := i + intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}

func (s *SQLStore) SaveAnswer(ctx context.Context, examID, userID int64, order int, raw []string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE exam_questions SET user_answer=$1
		  WHERE exam_id=$2 AND question_order=$3
		    AND EXISTS (SELECT 1 FROM exams e WHERE e.id=$4 AND e.user_id=$5 AND e.status='in_progress')`,
		grading.EncodeTokens(raw), examID, order, examID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if s.editable(ctx, examID, userID) {
		return ErrSlotNotFound
	}
	return ErrExamNotEditable
}

func (s *SQLStore) editable(ctx context.Context, examID, userID int64) bool {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM exams WHERE id=$1 AND user_id=$2 AND status='in_progress'`, examID, userID).Scan(&one)
	return err == nil
}

type gradeRow struct {
	slotID int64
	answer sql.NullString
	typ    sql.NullString
	key    sql.NullString
}

// Submit flips the exam to completed and grades every slot against the
// current answer key in the same transaction. The guarded status update
// makes a second submit fail.
func (s *SQLStore) Submit(ctx context.Context, examID, userID int64) (Result, error) {
	var (
		out Result
		ev  syncx.Event
	)
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE exams SET status='completed', submitted_at=$1
			  WHERE id=$2 AND user_id=$3 AND status='in_progress'`,
			s.now().Unix(), examID, userID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrExamNotEditable
		}

		rows, err := tx.QueryContext(ctx,
			`SELECT eq.id, eq.user_answer, q.type, q.answer_key
			   FROM exam_questions eq
			   LEFT JOIN questions q ON q.id = eq.question_id
			  WHERE eq.exam_id=$1
			  ORDER BY eq.question_order`, examID)
		if err != nil {
			return err
		}
		var slots []gradeRow
		for rows.Next() {
			var g gradeRow
			if err := rows.Scan(&g.slotID, &g.answer, &g.typ, &g.key); err != nil {
				rows.Close()
				return err
			}
			slots = append(slots, g)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, g := range slots {
			correct := false
			if g.typ.Valid {
				t := grading.Type(g.typ.String)
				answer := grading.Normalize(grading.DecodeTokens(g.answer.String), t)
				correct = s.grader.Grade(grading.Q{Type: t, AnswerKey: grading.DecodeTokens(g.key.String)}, answer).Correct
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE exam_questions SET is_correct=$1 WHERE id=$2`, correct, g.slotID); err != nil {
				return fmt.Errorf("grade slot: %w", err)
			}
			if correct {
				out.CorrectCount++
			}
		}
		out.TotalCount = len(slots)

		ev, err = s.events.Append(ctx, tx, syncx.TypeExamSubmitted, examKey(examID), map[string]any{
			"exam_id":       examID,
			"user_id":       userID,
			"correct_count": out.CorrectCount,
			"total_count":   out.TotalCount,
		})
		return err
	})
	if errors.Is(err, ErrExamNotEditable) {
		return Result{}, err
	}
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"user_id": userID, "exam_id": examID}).Error("submit exam failed")
		return Result{}, err
	}
	s.events.Publish(ctx, ev)
	return out, nil
}

// Delete removes an owned exam with its slots.
func (s *SQLStore) Delete(ctx context.Context, examID, userID int64) error {
	var ev syncx.Event
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM exams WHERE id=$1 AND user_id=$2`, examID, userID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrExamNotFound
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM exam_questions WHERE exam_id=$1`, examID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM exams WHERE id=$1`, examID); err != nil {
			return err
		}
		ev, err = s.events.Append(ctx, tx, syncx.TypeExamDeleted, examKey(examID), map[string]any{
			"exam_id": examID,
			"user_id": userID,
			"status":  status,
		})
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrExamNotFound) {
			s.log.WithError(err).WithFields(logrus.Fields{"user_id": userID, "exam_id": examID}).Error("delete exam failed")
		}
		return err
	}
	s.events.Publish(ctx, ev)
	return nil
}

func examKey(id int64) string { return fmt.Sprintf("exam:%d", id) }
