package bank

import "github.com/mind-engage/mindengage-quiz/internal/grading"

type Bank struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	ChapterCount  int    `json:"chapter_count"`
	QuestionCount int    `json:"question_count"`
}

type Chapter struct {
	ID        int64  `json:"id"`
	BankID    int64  `json:"bank_id"`
	Name      string `json:"chapter_name"`
	SortOrder int    `json:"sort_order"`
}

// Option is one labelled choice of a single/multiple question.
type Option struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

type Question struct {
	ID          int64        `json:"id"`
	BankID      int64        `json:"bank_id"`
	ChapterID   int64        `json:"chapter_id"`
	Title       string       `json:"title"`
	Type        grading.Type `json:"type"`
	Options     []Option     `json:"options,omitempty"`
	AnswerKey   []string     `json:"answer_key,omitempty"`
	Explanation string       `json:"explanation,omitempty"`

	BankName    string `json:"bank_name,omitempty"`
	ChapterName string `json:"chapter_name,omitempty"`
}

// Public strips what a student must not see before answering.
func (q Question) Public() Question {
	q.AnswerKey = nil
	q.Explanation = ""
	return q
}

// NewQuestion is the admin input for a question.
type NewQuestion struct {
	BankID      int64
	ChapterID   int64
	Title       string
	Type        grading.Type
	Options     []Option
	AnswerKey   []string
	Explanation string
}
