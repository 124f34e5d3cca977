package http

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-quiz/internal/bank"
	"github.com/mind-engage/mindengage-quiz/internal/grading"
)

// BankStore is what the bank and admin routes need from the question store.
type BankStore interface {
	ListBanks(ctx context.Context) ([]bank.Bank, error)
	ListChapters(ctx context.Context, bankID int64) ([]bank.Chapter, error)
	CreateBank(ctx context.Context, name, description string) (bank.Bank, error)
	CreateChapter(ctx context.Context, bankID int64, name string, sortOrder int) (bank.Chapter, error)
	CreateQuestion(ctx context.Context, in bank.NewQuestion) (bank.Question, error)
	UpdateQuestion(ctx context.Context, id int64, in bank.NewQuestion) (bank.Question, error)
	DeleteQuestion(ctx context.Context, id int64) error
	Question(ctx context.Context, id int64) (bank.Question, error)

	Search(ctx context.Context, keyword string) ([]bank.Question, error)
	Preview(ctx context.Context, bankID, chapterID int64) ([]bank.Question, error)
	ListQuestions(ctx context.Context, f bank.QuestionFilter) (bank.QuestionPage, error)
	UpdateBank(ctx context.Context, id int64, name, description string) (bank.Bank, error)
	DeleteBank(ctx context.Context, id int64) error
	UpdateChapter(ctx context.Context, id int64, name string, sortOrder int) (bank.Chapter, error)
	DeleteChapter(ctx context.Context, id int64) error
}

// GET /banks
func ListBanksHandler(store BankStore, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		banks, err := store.ListBanks(r.Context())
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeOK(w, banks)
	}
}

// GET /banks/{bankID}/chapters
func ListChaptersHandler(store BankStore, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bankID, err := urlID(r, "bankID")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		chapters, err := store.ListChapters(r.Context(), bankID)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeOK(w, chapters)
	}
}

// GET /search?keyword=
func SearchQuestionsHandler(store BankStore, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs, err := store.Search(r.Context(), r.URL.Query().Get("keyword"))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeOK(w, qs)
	}
}

// GET /banks/{bankID}/questions?chapter_id=
func PreviewBankHandler(store BankStore, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bankID, err := urlID(r, "bankID")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		chapterID, err := optionalQueryID(r, "chapter_id")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		qs, err := store.Preview(r.Context(), bankID, chapterID)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeOK(w, qs)
	}
}

// GET /admin/questions?bank_id=&chapter_id=&type=&page=
func ListQuestionsHandler(store BankStore, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			f   bank.QuestionFilter
			err error
		)
		if f.BankID, err = optionalQueryID(r, "bank_id"); err != nil {
			writeError(w, r, log, err)
			return
		}
		if f.ChapterID, err = optionalQueryID(r, "chapter_id"); err != nil {
			writeError(w, r, log, err)
			return
		}
		f.Type = grading.Type(r.URL.Query().Get("type"))
		if f.Type != "" && !f.Type.Valid() {
			writeFail(w, http.StatusBadRequest, "unknown question type")
			return
		}
		f.Page = parseIntDefault(r.URL.Query().Get("page"), 1)
		page, err := store.ListQuestions(r.Context(), f)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeOK(w, page)
	}
}

type createBankReq struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=1000"`
}

// POST /admin/banks
func CreateBankHandler(store BankStore, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createBankReq
		if err := decode(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		b, err := store.CreateBank(r.Context(), req.Name, req.Description)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, envelope{Success: true, Data: b})
	}
}

// PUT /admin/banks/{bankID}
func UpdateBankHandler(store BankStore, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := urlID(r, "bankID")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		var req createBankReq
		if err := decode(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		b, err := store.UpdateBank(r.Context(), id, req.Name, req.Description)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeOK(w, b)
	}
}

// DELETE /admin/banks/{bankID}
func DeleteBankHandler(store BankStore, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := urlID(r, "bankID")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		if err := store.DeleteBank(r.Context(), id); err != nil {
			writeError(w, r, log, err)
			return
		}
		log.WithField("bank_id", id).Info("bank deleted")
		writeJSON(w, http.StatusOK, envelope{Success: true})
	}
}

type createChapterReq struct {
	BankID    int64  `json:"bank_id" validate:"required,gt=0"`
	Name      string `json:"name" validate:"required,max=100"`
	SortOrder int    `json:"sort_order"`
}

// POST /admin/chapters
func CreateChapterHandler(store BankStore, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createChapterReq
		if err := decode(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		c, err := store.CreateChapter(r.Context(), req.BankID, req.Name, req.SortOrder)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, envelope{Success: true, Data: c})
	}
}

type updateChapterReq struct {
	Name      string `json:"name" validate:"required,max=100"`
	SortOrder int    `json:"sort_order"`
}

// PUT /admin/chapters/{chapterID}
func UpdateChapterHandler(store BankStore, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := urlID(r, "chapterID")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		var req updateChapterReq
		if err := decode(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		c, err := store.UpdateChapter(r.Context(), id, req.Name, req.SortOrder)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeOK(w, c)
	}
}

// DELETE /admin/chapters/{chapterID}
func DeleteChapterHandler(store BankStore, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := urlID(r, "chapterID")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		if err := store.DeleteChapter(r.Context(), id); err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, envelope{Success: true})
	}
}

type optionReq struct {
	Label string `json:"label" validate:"required"`
	Text  string `json:"text"`
}

type questionReq struct {
	BankID      int64        `json:"bank_id"`
	ChapterID   int64        `json:"chapter_id"`
	Title       string       `json:"title" validate:"required"`
	Type        grading.Type `json:"type" validate:"required,oneof=single multiple fill essay"`
	Options     []optionReq  `json:"options" validate:"dive"`
	AnswerKey   []string     `json:"answer_key"`
	Explanation string       `json:"explanation"`
}

func (q questionReq) toNew() bank.NewQuestion {
	in := bank.NewQuestion{
		BankID:      q.BankID,
		ChapterID:   q.ChapterID,
		Title:       q.Title,
		Type:        q.Type,
		AnswerKey:   q.AnswerKey,
		Explanation: q.Explanation,
	}
	for _, o := range q.Options {
		in.Options = append(in.Options, bank.Option{Label: o.Label, Text: o.Text})
	}
	return in
}

// POST /admin/questions
func CreateQuestionHandler(store BankStore, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req questionReq
		if err := decode(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		if req.BankID <= 0 || req.ChapterID <= 0 {
			writeFail(w, http.StatusBadRequest, "bank_id and chapter_id required")
			return
		}
		q, err := store.CreateQuestion(r.Context(), req.toNew())
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, envelope{Success: true, Data: q})
	}
}

// PUT /admin/questions/{questionID}; bank and chapter stay as stored.
func UpdateQuestionHandler(store BankStore, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := urlID(r, "questionID")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		var req questionReq
		if err := decode(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		q, err := store.UpdateQuestion(r.Context(), id, req.toNew())
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeOK(w, q)
	}
}

// GET /admin/questions/{questionID}, answer key included.
func GetQuestionHandler(store BankStore, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := urlID(r, "questionID")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		q, err := store.Question(r.Context(), id)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeOK(w, q)
	}
}

// DELETE /admin/questions/{questionID}
func DeleteQuestionHandler(store BankStore, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := urlID(r, "questionID")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		if err := store.DeleteQuestion(r.Context(), id); err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, envelope{Success: true})
	}
}
