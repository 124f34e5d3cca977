package practice

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-quiz/internal/grading"
)

// Next returns the question after afterID (sequential) or a random question
// the user has never answered anywhere (random). afterID 0 means from the
// start; random mode ignores it.
func (s *SQLStore) Next(ctx context.Context, userID, bankID, chapterID int64, mode Mode, afterID int64) (Question, error) {
	var (
		id  int64
		err error
	)
	if mode == ModeRandom {
		id, err = s.randomUnanswered(ctx, userID, bankID, chapterID)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT id FROM questions
			  WHERE bank_id=$1 AND chapter_id=$2 AND id > $3
			  ORDER BY id LIMIT 1`, bankID, chapterID, afterID).Scan(&id)
	}
	if errors.Is(err, sql.ErrNoRows) {
		s.log.WithFields(logrus.Fields{"user_id": userID, "chapter_id": chapterID, "mode": mode}).Debug("no more questions")
		return Question{}, ErrNoMoreQuestions
	}
	if err != nil {
		return Question{}, err
	}
	return s.withAttempt(ctx, userID, id)
}

// Prev is identity ordered in every mode.
func (s *SQLStore) Prev(ctx context.Context, userID, bankID, chapterID, currentID int64) (Question, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM questions
		  WHERE bank_id=$1 AND chapter_id=$2 AND id < $3
		  ORDER BY id DESC LIMIT 1`, bankID, chapterID, currentID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, ErrNoPreviousQuestion
	}
	if err != nil {
		return Question{}, err
	}
	return s.withAttempt(ctx, userID, id)
}

// randomUnanswered picks uniformly among the chapter's questions the user
// has no submission for. The exclusion is not scoped to the chapter.
func (s *SQLStore) randomUnanswered(ctx context.Context, userID, bankID, chapterID int64) (int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT q.id FROM questions q
		  WHERE q.bank_id=$1 AND q.chapter_id=$2
		    AND NOT EXISTS (SELECT 1 FROM submissions s WHERE s.user_id=$3 AND s.question_id=q.id)
		  ORDER BY q.id`, bankID, chapterID, userID)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, sql.ErrNoRows
	}
	return ids[s.intn(len(ids))], nil
}

// withAttempt loads the question and attaches the user's latest submission.
func (s *SQLStore) withAttempt(ctx context.Context, userID, questionID int64) (Question, error) {
	bq, err := s.questions.Question(ctx, questionID)
	if err != nil {
		return Question{}, err
	}
	var stored string
	var correct bool
	err = s.db.QueryRowContext(ctx,
		`SELECT user_answer, is_correct FROM submissions
		  WHERE user_id=$1 AND question_id=$2
		  ORDER BY created_at DESC, id DESC LIMIT 1`, userID, questionID).Scan(&stored, &correct)
	if errors.Is(err, sql.ErrNoRows) {
		return Question{Question: bq.Public()}, nil
	}
	if err != nil {
		return Question{}, err
	}
	return Question{
		Question:   bq,
		Answered:   true,
		UserAnswer: grading.DecodeTokens(stored),
		IsCorrect:  &correct,
	}, nil
}
