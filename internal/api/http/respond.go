package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	authmw "github.com/mind-engage/mindengage-quiz/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quiz/internal/bank"
	"github.com/mind-engage/mindengage-quiz/internal/exam"
	"github.com/mind-engage/mindengage-quiz/internal/grading"
	"github.com/mind-engage/mindengage-quiz/internal/practice"
)

var errBadRequest = errors.New("bad request")

var validate = validator.New(validator.WithRequiredStructEnabled())

// envelope is the body of every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func writeFail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Message: msg})
}

// writeError maps domain errors to statuses. Routine outcomes are answered
// with 200 and success=false; only unexpected errors are logged.
func writeError(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, err error) {
	switch {
	case errors.Is(err, practice.ErrNoMoreQuestions),
		errors.Is(err, practice.ErrNoPreviousQuestion),
		errors.Is(err, practice.ErrNothingToReset):
		writeFail(w, http.StatusOK, err.Error())
	case errors.Is(err, errBadRequest),
		errors.Is(err, grading.ErrInvalidAnswerFormat),
		errors.Is(err, bank.ErrInvalidQuestion),
		errors.Is(err, exam.ErrInvalidExam),
		errors.Is(err, authmw.ErrInvalidRole):
		writeFail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, authmw.ErrInvalidCredentials):
		writeFail(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, bank.ErrBankNotFound),
		errors.Is(err, bank.ErrChapterNotFound),
		errors.Is(err, bank.ErrQuestionNotFound),
		errors.Is(err, exam.ErrExamNotFound),
		errors.Is(err, exam.ErrSlotNotFound),
		errors.Is(err, authmw.ErrUserNotFound):
		writeFail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, exam.ErrExamNotEditable),
		errors.Is(err, exam.ErrExamInProgress),
		errors.Is(err, bank.ErrDuplicateName),
		errors.Is(err, authmw.ErrUsernameTaken),
		errors.Is(err, authmw.ErrCannotDeleteSelf):
		writeFail(w, http.StatusConflict, err.Error())
	case errors.Is(err, exam.ErrInsufficientQuestions):
		writeFail(w, http.StatusUnprocessableEntity, err.Error())
	default:
		log.WithError(err).WithFields(logrus.Fields{
			"req_id": middleware.GetReqID(r.Context()),
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
		writeFail(w, http.StatusInternalServerError, "internal error")
	}
}

// decode reads a JSON body into dst and runs its validate tags.
func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: bad json", errBadRequest)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+" "+fe.Tag())
			}
			return fmt.Errorf("%w: %s", errBadRequest, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func urlID(r *http.Request, name string) (int64, error) {
	return parseID(chi.URLParam(r, name), name)
}

func queryID(r *http.Request, name string) (int64, error) {
	return parseID(r.URL.Query().Get(name), name)
}

// optionalQueryID is 0 when the parameter is absent.
func optionalQueryID(r *http.Request, name string) (int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" || v == "0" {
		return 0, nil
	}
	return parseID(v, name)
}

func parseID(s, name string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", errBadRequest, name)
	}
	return id, nil
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}

// currentUser is the verified caller; JWTMiddleware guarantees it is set
// on protected routes.
func currentUser(r *http.Request) int64 {
	return authmw.UserIDFromContext(r.Context())
}
