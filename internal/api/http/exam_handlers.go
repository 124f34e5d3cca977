package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-quiz/internal/exam"
	"github.com/mind-engage/mindengage-quiz/internal/grading"
)

type createExamReq struct {
	BankID        int64  `json:"bank_id" validate:"required,gt=0"`
	Title         string `json:"title" validate:"required,max=200"`
	QuestionCount int    `json:"question_count" validate:"required,gt=0,lte=500"`
}

// POST /exams
func CreateExamHandler(store exam.Store, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createExamReq
		if err := decode(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		e, err := store.Create(r.Context(), currentUser(r), req.BankID, req.Title, req.QuestionCount)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, envelope{Success: true, Data: e})
	}
}

// GET /exams
func ListExamsHandler(store exam.Store, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.List(r.Context(), currentUser(r))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeOK(w, list)
	}
}

// GET /exams/{examID}
func GetExamHandler(store exam.Store, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := urlID(r, "examID")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		e, err := store.Get(r.Context(), id, currentUser(r))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeOK(w, e)
	}
}

type saveExamAnswerReq struct {
	UserAnswer json.RawMessage `json:"user_answer"`
}

// PUT /exams/{examID}/answers/{order}; order is 1-based.
func SaveExamAnswerHandler(store exam.Store, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := urlID(r, "examID")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		order, err := strconv.Atoi(chi.URLParam(r, "order"))
		if err != nil || order < 1 {
			writeFail(w, http.StatusBadRequest, "order must be a positive integer")
			return
		}
		var req saveExamAnswerReq
		if err := decode(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		tokens, err := grading.ParseRaw(req.UserAnswer)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		if err := store.SaveAnswer(r.Context(), id, currentUser(r), order, tokens); err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, envelope{Success: true})
	}
}

// POST /exams/{examID}/submit
func SubmitExamHandler(store exam.Store, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := urlID(r, "examID")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		res, err := store.Submit(r.Context(), id, currentUser(r))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeOK(w, res)
	}
}

// GET /exams/{examID}/review
func ReviewExamHandler(store exam.Store, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := urlID(r, "examID")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		e, err := store.Review(r.Context(), id, currentUser(r))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeOK(w, e)
	}
}

// DELETE /exams/{examID}
func DeleteExamHandler(store exam.Store, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := urlID(r, "examID")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		if err := store.Delete(r.Context(), id, currentUser(r)); err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, envelope{Success: true})
	}
}
