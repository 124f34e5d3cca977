package exam

import (
	"context"
	"errors"
)

var (
	ErrExamNotFound          = errors.New("exam not found")
	ErrExamNotEditable       = errors.New("exam not editable")
	ErrExamInProgress        = errors.New("exam not submitted yet")
	ErrInsufficientQuestions = errors.New("insufficient questions")
	ErrSlotNotFound          = errors.New("exam question not found")
	ErrInvalidExam           = errors.New("invalid exam")
)

type Store interface {
	// Create draws count questions from the bank into a new in_progress exam.
	Create(ctx context.Context, userID, bankID int64, title string, count int) (Exam, error)
	// SaveAnswer overwrites the answer at the 1-based order.
	SaveAnswer(ctx context.Context, examID, userID int64, order int, raw []string) error
	Submit(ctx context.Context, examID, userID int64) (Result, error)

	// Get is the taking view: keys are withheld while in progress.
	Get(ctx context.Context, examID, userID int64) (Exam, error)
	// Review shows a completed exam against the current keys.
	Review(ctx context.Context, examID, userID int64) (Exam, error)
	List(ctx context.Context, userID int64) ([]Exam, error)
	Delete(ctx context.Context, examID, userID int64) error
}
