package http

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-quiz/internal/grading"
	"github.com/mind-engage/mindengage-quiz/internal/practice"
)

// GET /practice/next?bank_id=&chapter_id=&random=1&current_id=
func NextQuestionHandler(store practice.Store, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bankID, chapterID, err := bankAndChapter(r)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		var after int64
		if s := r.URL.Query().Get("current_id"); s != "" {
			if after, err = parseID(s, "current_id"); err != nil {
				writeError(w, r, log, err)
				return
			}
		}
		mode := practice.ModeSequential
		if v := r.URL.Query().Get("random"); v == "1" || v == "true" {
			mode = practice.ModeRandom
		}
		q, err := store.Next(r.Context(), currentUser(r), bankID, chapterID, mode, after)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeOK(w, q)
	}
}

// GET /practice/prev?bank_id=&chapter_id=&current_question_id=
func PrevQuestionHandler(store practice.Store, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bankID, chapterID, err := bankAndChapter(r)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		current, err := queryID(r, "current_question_id")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		q, err := store.Prev(r.Context(), currentUser(r), bankID, chapterID, current)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeOK(w, q)
	}
}

func bankAndChapter(r *http.Request) (int64, int64, error) {
	bankID, err := queryID(r, "bank_id")
	if err != nil {
		return 0, 0, err
	}
	chapterID, err := queryID(r, "chapter_id")
	if err != nil {
		return 0, 0, err
	}
	return bankID, chapterID, nil
}

type submitAnswerReq struct {
	QuestionID int64           `json:"question_id" validate:"required,gt=0"`
	UserAnswer json.RawMessage `json:"user_answer"`
}

// POST /practice/answers
func SubmitAnswerHandler(store practice.Store, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitAnswerReq
		if err := decode(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		tokens, err := grading.ParseRaw(req.UserAnswer)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		res, err := store.SubmitAnswer(r.Context(), currentUser(r), req.QuestionID, tokens)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeOK(w, res)
	}
}

type resetReq struct {
	ChapterID int64 `json:"chapter_id" validate:"required,gt=0"`
}

// POST /practice/reset
func ResetChapterHandler(store practice.Store, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resetReq
		if err := decode(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		if err := store.ResetChapter(r.Context(), currentUser(r), req.ChapterID); err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, envelope{Success: true, Message: "chapter progress reset"})
	}
}

// GET /banks/{bankID}/progress
func ChapterOverviewHandler(store practice.Store, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bankID, err := urlID(r, "bankID")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		ov, err := store.ChapterOverview(r.Context(), currentUser(r), bankID)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeOK(w, ov)
	}
}

// GET /stats
func StatsHandler(store practice.Store, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := store.Stats(r.Context(), currentUser(r))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeOK(w, st)
	}
}
