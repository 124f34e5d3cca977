package exam

import "github.com/mind-engage/mindengage-quiz/internal/bank"

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

type Exam struct {
	ID            int64  `json:"id"`
	UserID        int64  `json:"user_id"`
	BankID        int64  `json:"bank_id"`
	BankName      string `json:"bank_name,omitempty"`
	Title         string `json:"title"`
	QuestionCount int    `json:"question_count"`
	Status        Status `json:"status"` // in_progress|completed
	CreatedAt     int64  `json:"created_at"`
	SubmittedAt   *int64 `json:"submitted_at,omitempty"`

	// Set once completed.
	CorrectCount *int `json:"correct_count,omitempty"`

	Slots []Slot `json:"questions,omitempty"`
}

// Slot is one ordered question of an exam. Question is nil when the bank
// question was deleted after the exam was drawn.
type Slot struct {
	Order      int            `json:"question_order"`
	QuestionID *int64         `json:"question_id"`
	Question   *bank.Question `json:"question,omitempty"`
	UserAnswer []string       `json:"user_answer"`
	Answered   bool           `json:"answered"`
	IsCorrect  *bool          `json:"is_correct,omitempty"`
}

type Result struct {
	CorrectCount int `json:"correct_count"`
	TotalCount   int `json:"total_count"`
}
