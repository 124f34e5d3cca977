package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	authmw "github.com/mind-engage/mindengage-quiz/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quiz/internal/bank"
	"github.com/mind-engage/mindengage-quiz/internal/db"
	"github.com/mind-engage/mindengage-quiz/internal/db/dbtest"
	"github.com/mind-engage/mindengage-quiz/internal/events"
	"github.com/mind-engage/mindengage-quiz/internal/exam"
	"github.com/mind-engage/mindengage-quiz/internal/practice"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
	syncx "github.com/mind-engage/mindengage-quiz/internal/sync"
)

type testServer struct {
	srv  *httptest.Server
	hook *test.Hook
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dbh := dbtest.Open(t)
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	eventRepo := syncx.NewEventRepo(dbh, "test")
	rec := events.NewRecorder(eventRepo, nil, log)
	banks := bank.NewSQLStore(dbh)
	users := authmw.NewUserStore(dbh, bcrypt.MinCost)

	_, err := users.Create(context.Background(), "admin", "admin-pw", rbac.RoleAdmin)
	require.NoError(t, err)

	r := NewRouter(Deps{
		Auth:               authmw.NewAuthService("test-secret", time.Hour),
		Users:              users,
		Banks:              banks,
		Practice:           practice.NewSQLStore(dbh, db.DriverSQLite, banks, rec, log),
		Exams:              exam.NewSQLStore(dbh, banks, rec, log),
		Events:             eventRepo,
		Log:                log,
		CORSOrigins:        []string{"http://localhost:3000"},
		EnableRegistration: true,
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, hook: hook}
}

type reply struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, reply) {
	t.Helper()
	code, _, rep := s.send(t, method, path, token, body)
	return code, rep
}

// send is do plus the response Content-Type.
func (s *testServer) send(t *testing.T, method, path, token string, body any) (int, string, reply) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out reply
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out), "%s %s: body is not the JSON envelope", method, path)
	return resp.StatusCode, resp.Header.Get("Content-Type"), out
}

func (s *testServer) token(t *testing.T, path, user, pw string) string {
	t.Helper()
	code, rep := s.do(t, http.MethodPost, path, "", map[string]string{"username": user, "password": pw})
	require.True(t, code == http.StatusOK || code == http.StatusCreated, "login status %d: %s", code, rep.Message)
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rep.Data, &tok))
	return tok.AccessToken
}

func into[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

// seed creates bank DB101 with chapter Normalization holding
// Q1 (single, A) and Q2 (multiple, A+C).
func (s *testServer) seed(t *testing.T, admin string) (bankID, chapterID, q1, q2 int64) {
	t.Helper()
	code, rep := s.do(t, http.MethodPost, "/admin/banks", admin, map[string]any{"name": "DB101"})
	require.Equal(t, http.StatusCreated, code, rep.Message)
	bankID = into[bank.Bank](t, rep.Data).ID

	code, rep = s.do(t, http.MethodPost, "/admin/chapters", admin, map[string]any{"bank_id": bankID, "name": "Normalization"})
	require.Equal(t, http.StatusCreated, code, rep.Message)
	chapterID = into[bank.Chapter](t, rep.Data).ID

	opts := []map[string]string{{"label": "A", "text": "1NF"}, {"label": "B", "text": "2NF"}, {"label": "C", "text": "3NF"}}
	code, rep = s.do(t, http.MethodPost, "/admin/questions", admin, map[string]any{
		"bank_id": bankID, "chapter_id": chapterID, "title": "Q1", "type": "single",
		"options": opts, "answer_key": []string{"A"}, "explanation": "atomic values",
	})
	require.Equal(t, http.StatusCreated, code, rep.Message)
	q1 = into[bank.Question](t, rep.Data).ID

	code, rep = s.do(t, http.MethodPost, "/admin/questions", admin, map[string]any{
		"bank_id": bankID, "chapter_id": chapterID, "title": "Q2", "type": "multiple",
		"options": opts, "answer_key": []string{"A", "C"},
	})
	require.Equal(t, http.StatusCreated, code, rep.Message)
	q2 = into[bank.Question](t, rep.Data).ID
	return
}

func TestPracticeFlow(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "/auth/login", "admin", "admin-pw")
	bankID, chapterID, q1, q2 := s.seed(t, admin)
	student := s.token(t, "/auth/register", "alice", "alice-pw")

	code, rep := s.do(t, http.MethodGet, fmt.Sprintf("/practice/next?bank_id=%d&chapter_id=%d", bankID, chapterID), student, nil)
	require.Equal(t, http.StatusOK, code)
	first := into[practice.Question](t, rep.Data)
	assert.Equal(t, q1, first.ID)
	assert.Nil(t, first.AnswerKey)

	submit := func(qid int64, answer any) practice.SubmitResult {
		code, rep := s.do(t, http.MethodPost, "/practice/answers", student, map[string]any{"question_id": qid, "user_answer": answer})
		require.Equal(t, http.StatusOK, code, rep.Message)
		return into[practice.SubmitResult](t, rep.Data)
	}
	res := submit(q1, []string{"A"})
	assert.True(t, res.IsCorrect)
	assert.Equal(t, "atomic values", res.Explanation)
	res = submit(q2, []string{"C", "A"})
	assert.True(t, res.IsCorrect)
	res = submit(q2, "A")
	assert.False(t, res.IsCorrect)
	assert.Equal(t, 3, res.Progress.TotalCount)
	assert.Equal(t, 2, res.Progress.CorrectCount)

	code, rep = s.do(t, http.MethodPost, "/practice/answers", student, map[string]any{"question_id": q1, "user_answer": 7})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, rep.Success)
	code, _ = s.do(t, http.MethodPost, "/practice/answers", student, map[string]any{"user_answer": "A"})
	assert.Equal(t, http.StatusBadRequest, code)

	// random mode has nothing left once everything was answered
	code, rep = s.do(t, http.MethodGet, fmt.Sprintf("/practice/next?bank_id=%d&chapter_id=%d&random=1", bankID, chapterID), student, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, rep.Success)
	assert.Equal(t, practice.ErrNoMoreQuestions.Error(), rep.Message)

	code, rep = s.do(t, http.MethodGet, fmt.Sprintf("/practice/prev?bank_id=%d&chapter_id=%d&current_question_id=%d", bankID, chapterID, q2), student, nil)
	require.Equal(t, http.StatusOK, code)
	prev := into[practice.Question](t, rep.Data)
	assert.Equal(t, q1, prev.ID)
	assert.True(t, prev.Answered)

	code, rep = s.do(t, http.MethodGet, fmt.Sprintf("/banks/%d/progress", bankID), student, nil)
	require.Equal(t, http.StatusOK, code)
	ov := into[[]practice.ChapterSummary](t, rep.Data)
	require.Len(t, ov, 1)
	assert.Equal(t, 3, ov[0].TotalCount)

	code, rep = s.do(t, http.MethodGet, "/stats", student, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 3, into[practice.Stats](t, rep.Data).TotalAnswers)

	code, rep = s.do(t, http.MethodPost, "/practice/reset", student, map[string]any{"chapter_id": chapterID})
	require.Equal(t, http.StatusOK, code)
	assert.True(t, rep.Success)

	code, rep = s.do(t, http.MethodGet, fmt.Sprintf("/practice/next?bank_id=%d&chapter_id=%d&random=1", bankID, chapterID), student, nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, rep.Success, "chapter eligible again after reset")

	for _, e := range s.hook.AllEntries() {
		assert.NotEqual(t, logrus.ErrorLevel, e.Level, "routine outcomes are not errors: %s", e.Message)
	}
}

func TestExamFlow(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "/auth/login", "admin", "admin-pw")
	bankID, _, _, _ := s.seed(t, admin)
	student := s.token(t, "/auth/register", "alice", "alice-pw")
	other := s.token(t, "/auth/register", "mallory", "mallory-pw")

	code, rep := s.do(t, http.MethodPost, "/exams", student, map[string]any{"bank_id": bankID, "title": "midterm", "question_count": 3})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, exam.ErrInsufficientQuestions.Error(), rep.Message)

	code, rep = s.do(t, http.MethodPost, "/exams", student, map[string]any{"bank_id": bankID, "title": "midterm", "question_count": 2})
	require.Equal(t, http.StatusCreated, code, rep.Message)
	examID := into[exam.Exam](t, rep.Data).ID

	code, rep = s.do(t, http.MethodGet, fmt.Sprintf("/exams/%d", examID), student, nil)
	require.Equal(t, http.StatusOK, code)
	taking := into[exam.Exam](t, rep.Data)
	require.Len(t, taking.Slots, 2)
	for _, sl := range taking.Slots {
		require.NotNil(t, sl.Question)
		assert.Nil(t, sl.Question.AnswerKey)
		answer := []string{"A"}
		if sl.Question.Type == "multiple" {
			answer = []string{"C", "A"}
		}
		code, rep = s.do(t, http.MethodPut, fmt.Sprintf("/exams/%d/answers/%d", examID, sl.Order), student, map[string]any{"user_answer": answer})
		require.Equal(t, http.StatusOK, code, rep.Message)
	}

	code, _ = s.do(t, http.MethodPut, fmt.Sprintf("/exams/%d/answers/1", examID), other, map[string]any{"user_answer": "B"})
	assert.Equal(t, http.StatusConflict, code)
	code, _ = s.do(t, http.MethodPut, fmt.Sprintf("/exams/%d/answers/0", examID), student, map[string]any{"user_answer": "B"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodGet, fmt.Sprintf("/exams/%d/review", examID), student, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, rep = s.do(t, http.MethodPost, fmt.Sprintf("/exams/%d/submit", examID), student, nil)
	require.Equal(t, http.StatusOK, code, rep.Message)
	assert.Equal(t, exam.Result{CorrectCount: 2, TotalCount: 2}, into[exam.Result](t, rep.Data))

	code, _ = s.do(t, http.MethodPost, fmt.Sprintf("/exams/%d/submit", examID), student, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, rep = s.do(t, http.MethodGet, fmt.Sprintf("/exams/%d/review", examID), student, nil)
	require.Equal(t, http.StatusOK, code)
	for _, sl := range into[exam.Exam](t, rep.Data).Slots {
		require.NotNil(t, sl.Question)
		assert.NotEmpty(t, sl.Question.AnswerKey)
	}

	code, rep = s.do(t, http.MethodGet, "/exams", student, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, into[[]exam.Exam](t, rep.Data), 1)

	code, _ = s.do(t, http.MethodDelete, fmt.Sprintf("/exams/%d", examID), other, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = s.do(t, http.MethodDelete, fmt.Sprintf("/exams/%d", examID), student, nil)
	assert.Equal(t, http.StatusOK, code)

	code, rep = s.do(t, http.MethodGet, "/admin/events", admin, nil)
	require.Equal(t, http.StatusOK, code)
	var types []string
	for _, e := range into[[]syncx.Event](t, rep.Data) {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{syncx.TypeExamCreated, syncx.TypeExamSubmitted, syncx.TypeExamDeleted}, types)
}

func TestPermissionsAndAuth(t *testing.T) {
	s := newTestServer(t)
	student := s.token(t, "/auth/register", "alice", "alice-pw")

	for _, tok := range []string{"", "not-a-jwt"} {
		code, ct, rep := s.send(t, http.MethodGet, "/banks", tok, nil)
		assert.Equal(t, http.StatusUnauthorized, code)
		assert.Equal(t, "application/json", ct)
		assert.False(t, rep.Success)
		assert.NotEmpty(t, rep.Message)
	}
	code, ct, rep := s.send(t, http.MethodPost, "/admin/banks", student, map[string]any{"name": "x"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "application/json", ct)
	assert.Equal(t, "forbidden", rep.Message)

	code, _ = s.do(t, http.MethodGet, "/users", student, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = s.do(t, http.MethodGet, "/admin/events", student, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, rep = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, rep.Success)
	code, _ = s.do(t, http.MethodPost, "/auth/register", "", map[string]string{"username": "alice", "password": "another-pw"})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = s.do(t, http.MethodPost, "/users/change-password", student, map[string]string{"old_password": "alice-pw", "new_password": "fresh-pw"})
	assert.Equal(t, http.StatusOK, code)
	s.token(t, "/auth/login", "alice", "fresh-pw")

	code, rep = s.do(t, http.MethodGet, "/banks", student, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, into[[]bank.Bank](t, rep.Data))
}

func TestAdminQuestionValidation(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "/auth/login", "admin", "admin-pw")
	bankID, chapterID, q1, _ := s.seed(t, admin)

	code, rep := s.do(t, http.MethodPost, "/admin/questions", admin, map[string]any{
		"bank_id": bankID, "chapter_id": chapterID, "title": "bad", "type": "single",
		"options": []map[string]string{{"label": "A"}, {"label": "B"}}, "answer_key": []string{"a"},
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, rep.Message, "invalid answer format")

	code, _ = s.do(t, http.MethodPost, "/admin/questions", admin, map[string]any{
		"bank_id": bankID, "chapter_id": chapterID, "title": "bad", "type": "ranking",
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, rep = s.do(t, http.MethodGet, fmt.Sprintf("/admin/questions/%d", q1), admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"A"}, into[bank.Question](t, rep.Data).AnswerKey)

	code, _ = s.do(t, http.MethodGet, "/admin/questions/9999", admin, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSearchAndPreview(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "/auth/login", "admin", "admin-pw")
	bankID, chapterID, q1, q2 := s.seed(t, admin)
	student := s.token(t, "/auth/register", "alice", "alice-pw")

	code, rep := s.do(t, http.MethodGet, "/search?keyword=Q", student, nil)
	require.Equal(t, http.StatusOK, code)
	found := into[[]bank.Question](t, rep.Data)
	require.Len(t, found, 2)
	assert.Equal(t, q2, found[0].ID)
	assert.Equal(t, []string{"A", "C"}, found[0].AnswerKey)
	assert.Len(t, found[0].Options, 3)

	code, rep = s.do(t, http.MethodGet, fmt.Sprintf("/banks/%d/questions?chapter_id=%d", bankID, chapterID), student, nil)
	require.Equal(t, http.StatusOK, code)
	preview := into[[]bank.Question](t, rep.Data)
	require.Len(t, preview, 2)
	assert.Equal(t, q1, preview[0].ID)
	assert.Equal(t, "atomic values", preview[0].Explanation)

	code, _ = s.do(t, http.MethodGet, "/banks/9999/questions", student, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = s.do(t, http.MethodGet, "/admin/questions", student, nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestAdminCatalogAndUsers(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "/auth/login", "admin", "admin-pw")
	bankID, chapterID, _, q2 := s.seed(t, admin)

	code, rep := s.do(t, http.MethodGet, fmt.Sprintf("/admin/questions?bank_id=%d&type=multiple", bankID), admin, nil)
	require.Equal(t, http.StatusOK, code)
	page := into[bank.QuestionPage](t, rep.Data)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, q2, page.Questions[0].ID)
	code, _ = s.do(t, http.MethodGet, "/admin/questions?type=ranking", admin, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPost, "/admin/banks", admin, map[string]any{"name": "DB101"})
	assert.Equal(t, http.StatusConflict, code, "duplicate bank name")
	code, _ = s.do(t, http.MethodPost, "/admin/chapters", admin, map[string]any{"bank_id": bankID, "name": "Normalization"})
	assert.Equal(t, http.StatusConflict, code, "duplicate chapter name")

	code, rep = s.do(t, http.MethodPut, fmt.Sprintf("/admin/chapters/%d", chapterID), admin, map[string]any{"name": "Normal forms", "sort_order": 3})
	require.Equal(t, http.StatusOK, code, rep.Message)
	assert.Equal(t, "Normal forms", into[bank.Chapter](t, rep.Data).Name)
	code, rep = s.do(t, http.MethodPut, fmt.Sprintf("/admin/banks/%d", bankID), admin, map[string]any{"name": "Databases"})
	require.Equal(t, http.StatusOK, code, rep.Message)

	code, rep = s.do(t, http.MethodPost, "/admin/users", admin, map[string]string{"username": "bob", "password": "bob-pw", "role": "student"})
	require.Equal(t, http.StatusCreated, code, rep.Message)
	bob := into[authmw.User](t, rep.Data)
	code, _ = s.do(t, http.MethodPost, "/admin/users", admin, map[string]string{"username": "carol", "role": "student"})
	assert.Equal(t, http.StatusBadRequest, code, "new users need a password")
	code, _ = s.do(t, http.MethodPut, fmt.Sprintf("/admin/users/%d", bob.ID), admin, map[string]string{"username": "admin", "role": "student"})
	assert.Equal(t, http.StatusConflict, code)
	code, rep = s.do(t, http.MethodPut, fmt.Sprintf("/admin/users/%d", bob.ID), admin, map[string]string{"username": "bobby", "role": "admin"})
	require.Equal(t, http.StatusOK, code, rep.Message)
	s.token(t, "/auth/login", "bobby", "bob-pw")

	code, rep = s.do(t, http.MethodGet, "/users?role=admin", admin, nil)
	require.Equal(t, http.StatusOK, code)
	var adminID int64
	for _, u := range into[[]authmw.User](t, rep.Data) {
		if u.Username == "admin" {
			adminID = u.ID
		}
	}
	require.NotZero(t, adminID)
	code, _ = s.do(t, http.MethodDelete, fmt.Sprintf("/admin/users/%d", adminID), admin, nil)
	assert.Equal(t, http.StatusConflict, code, "no self-deletion")
	code, _ = s.do(t, http.MethodDelete, fmt.Sprintf("/admin/users/%d", bob.ID), admin, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "bobby", "password": "bob-pw"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodDelete, fmt.Sprintf("/admin/banks/%d", bankID), admin, nil)
	assert.Equal(t, http.StatusOK, code)
	code, rep = s.do(t, http.MethodGet, "/banks", admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, into[[]bank.Bank](t, rep.Data))
}
