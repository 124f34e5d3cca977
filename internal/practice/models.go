package practice

import "github.com/mind-engage/mindengage-quiz/internal/bank"

// Mode picks how Next walks a chapter.
type Mode string

const (
	ModeSequential Mode = "sequential"
	ModeRandom     Mode = "random"
)

// Submission is one graded practice attempt. Rows are append-only.
type Submission struct {
	ID         int64    `json:"id"`
	UserID     int64    `json:"user_id"`
	QuestionID int64    `json:"question_id"`
	UserAnswer []string `json:"user_answer"`
	IsCorrect  bool     `json:"is_correct"`
	CreatedAt  int64    `json:"created_at"`
}

// Progress is the per (user, chapter) tally. Every submission counts,
// repeats included.
type Progress struct {
	UserID       int64 `json:"user_id"`
	ChapterID    int64 `json:"chapter_id"`
	TotalCount   int   `json:"total_count"`
	CorrectCount int   `json:"correct_count"`
}

// Question is a practice question with the caller's latest attempt. The
// answer key and explanation are only present once it has been answered.
type Question struct {
	bank.Question
	Answered   bool     `json:"answered"`
	UserAnswer []string `json:"user_answer,omitempty"`
	IsCorrect  *bool    `json:"is_correct,omitempty"`
}

type SubmitResult struct {
	SubmissionID  int64    `json:"submission_id"`
	IsCorrect     bool     `json:"is_correct"`
	Ungraded      bool     `json:"ungraded,omitempty"`
	CorrectAnswer []string `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
	Progress      Progress `json:"progress"`
}

// ChapterSummary is one row of the home screen overview.
type ChapterSummary struct {
	ChapterID     int64  `json:"chapter_id"`
	ChapterName   string `json:"chapter_name"`
	QuestionTotal int    `json:"question_total"`
	TotalCount    int    `json:"total_count"`
	CorrectCount  int    `json:"correct_count"`
}

type ChapterRate struct {
	ChapterID    int64   `json:"chapter_id"`
	ChapterName  string  `json:"chapter_name"`
	BankName     string  `json:"bank_name"`
	TotalCount   int     `json:"total"`
	CorrectCount int     `json:"correct"`
	Rate         float64 `json:"rate"` // percent, one decimal
}

type Stats struct {
	TotalAnswers    int            `json:"total_answers"`
	CorrectAnswers  int            `json:"correct_answers"`
	UniqueQuestions int            `json:"unique_questions"`
	StudyDays       int            `json:"study_days"`
	ByType          map[string]int `json:"by_type"`
	RecentChapters  []ChapterRate  `json:"recent_chapters"`
}
