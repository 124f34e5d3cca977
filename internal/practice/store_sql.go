package practice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-quiz/internal/bank"
	"github.com/mind-engage/mindengage-quiz/internal/db"
	"github.com/mind-engage/mindengage-quiz/internal/events"
	"github.com/mind-engage/mindengage-quiz/internal/grading"
	syncx "github.com/mind-engage/mindengage-quiz/internal/sync"
)

// Routine outcomes the caller branches on.
var (
	ErrNoMoreQuestions    = errors.New("no more questions")
	ErrNoPreviousQuestion = errors.New("no previous question")
	ErrNothingToReset     = errors.New("nothing to reset")
)

type Store interface {
	SubmitAnswer(ctx context.Context, userID, questionID int64, raw []string) (SubmitResult, error)
	ResetChapter(ctx context.Context, userID, chapterID int64) error
	Next(ctx context.Context, userID, bankID, chapterID int64, mode Mode, afterID int64) (Question, error)
	Prev(ctx context.Context, userID, bankID, chapterID, currentID int64) (Question, error)
	Progress(ctx context.Context, userID, chapterID int64) (Progress, error)
	ChapterOverview(ctx context.Context, userID, bankID int64) ([]ChapterSummary, error)
	Stats(ctx context.Context, userID int64) (Stats, error)
}

type SQLStore struct {
	db        *sql.DB
	driver    db.Driver
	questions bank.Reader
	grader    grading.Grader
	events    *events.Recorder
	log       logrus.FieldLogger

	intn func(n int) int
	now  func() time.Time
}

// NewSQLStore wires the practice store. A nil recorder logs events to the
// event_log table without publishing them.
func NewSQLStore(dbh *sql.DB, driver db.Driver, questions bank.Reader, rec *events.Recorder, log logrus.FieldLogger) *SQLStore {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if rec == nil {
		rec = events.NewRecorder(syncx.NewEventRepo(dbh, ""), nil, log)
	}
	return &SQLStore{
		db:        dbh,
		driver:    driver,
		questions: questions,
		grader:    grading.NewDefaultGrader(),
		events:    rec,
		log:       log.WithField("component", "practice"),
		intn:      rand.IntN,
		now:       time.Now,
	}
}

// SubmitAnswer grades raw against the question's key and records the
// submission and the chapter progress increment as one unit.
func (s *SQLStore) SubmitAnswer(ctx context.Context, userID, questionID int64, raw []string) (SubmitResult, error) {
	q, err := s.questions.Question(ctx, questionID)
	if err != nil {
		return SubmitResult{}, err
	}
	answer := grading.Normalize(raw, q.Type)
	verdict := s.grader.Grade(grading.Q{Type: q.Type, AnswerKey: q.AnswerKey}, answer)

	res := SubmitResult{
		IsCorrect:     verdict.Correct,
		Ungraded:      verdict.Ungraded,
		CorrectAnswer: q.AnswerKey,
		Explanation:   q.Explanation,
	}
	if res.CorrectAnswer == nil {
		res.CorrectAnswer = []string{}
	}

	var ev syncx.Event
	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO submissions (user_id, question_id, user_answer, is_correct, created_at)
			 VALUES ($1,$2,$3,$4,$5) RETURNING id`,
			userID, q.ID, grading.EncodeTokens(answer.Tokens()), verdict.Correct, s.now().Unix()).
			Scan(&res.SubmissionID); err != nil {
			return fmt.Errorf("insert submission: %w", err)
		}
		p, err := s.recordSubmission(ctx, tx, userID, q.ChapterID, verdict.Correct)
		if err != nil {
			return err
		}
		res.Progress = p
		ev, err = s.events.Append(ctx, tx, syncx.TypeSubmissionGraded, progressKey(userID, q.ChapterID), map[string]any{
			"submission_id": res.SubmissionID,
			"user_id":       userID,
			"question_id":   q.ID,
			"chapter_id":    q.ChapterID,
			"is_correct":    verdict.Correct,
			"total_count":   p.TotalCount,
			"correct_count": p.CorrectCount,
		})
		return err
	})
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"user_id": userID, "question_id": questionID}).
			Error("submit answer failed")
		return SubmitResult{}, err
	}
	s.events.Publish(ctx, ev)
	return res, nil
}

// recordSubmission is the only writer of chapter_progress counters. It must
// run in the transaction that inserted the submission.
func (s *SQLStore) recordSubmission(ctx context.Context, q db.Querier, userID, chapterID int64, correct bool) (Progress, error) {
	inc := 0
	if correct {
		inc = 1
	}
	p := Progress{UserID: userID, ChapterID: chapterID}
	err := q.QueryRowContext(ctx,
		`INSERT INTO chapter_progress (user_id, chapter_id, total_count, correct_count, updated_at)
		 VALUES ($1,$2,1,$3,$4)
		 ON CONFLICT (user_id, chapter_id) DO UPDATE SET
		   total_count = chapter_progress.total_count + 1,
		   correct_count = chapter_progress.correct_count + EXCLUDED.correct_count,
		   updated_at = EXCLUDED.updated_at
		 RETURNING total_count, correct_count`,
		userID, chapterID, inc, s.now().Unix()).Scan(&p.TotalCount, &p.CorrectCount)
	if err != nil {
		return Progress{}, fmt.Errorf("record progress: %w", err)
	}
	return p, nil
}

// ResetChapter forgets the user's submissions for the chapter's questions
// and drops its progress row.
func (s *SQLStore) ResetChapter(ctx context.Context, userID, chapterID int64) error {
	var ev syncx.Event
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM questions WHERE chapter_id=$1`, chapterID).Scan(&n); err != nil {
			return err
		}
		if n == 0 {
			return ErrNothingToReset
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM submissions
			  WHERE user_id=$1 AND question_id IN (SELECT id FROM questions WHERE chapter_id=$2)`,
			userID, chapterID)
		if err != nil {
			return fmt.Errorf("delete submissions: %w", err)
		}
		deleted, _ := res.RowsAffected()
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM chapter_progress WHERE user_id=$1 AND chapter_id=$2`, userID, chapterID); err != nil {
			return fmt.Errorf("delete progress: %w", err)
		}
		ev, err = s.events.Append(ctx, tx, syncx.TypeChapterReset, progressKey(userID, chapterID), map[string]any{
			"user_id":             userID,
			"chapter_id":          chapterID,
			"deleted_submissions": deleted,
		})
		return err
	})
	if errors.Is(err, ErrNothingToReset) {
		s.log.WithFields(logrus.Fields{"user_id": userID, "chapter_id": chapterID}).Debug("reset: chapter has no questions")
		return err
	}
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"user_id": userID, "chapter_id": chapterID}).
			Error("reset chapter failed")
		return err
	}
	s.events.Publish(ctx, ev)
	return nil
}

// Progress returns the user's tally for a chapter; zero if never practiced.
func (s *SQLStore) Progress(ctx context.Context, userID, chapterID int64) (Progress, error) {
	p := Progress{UserID: userID, ChapterID: chapterID}
	err := s.db.QueryRowContext(ctx,
		`SELECT total_count, correct_count FROM chapter_progress WHERE user_id=$1 AND chapter_id=$2`,
		userID, chapterID).Scan(&p.TotalCount, &p.CorrectCount)
	if errors.Is(err, sql.ErrNoRows) {
		return p, nil
	}
	return p, err
}

func progressKey(userID, chapterID int64) string {
	return fmt.Sprintf("progress:%d:%d", userID, chapterID)
}
