package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	authmw "github.com/mind-engage/mindengage-quiz/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quiz/internal/exam"
	"github.com/mind-engage/mindengage-quiz/internal/logging"
	"github.com/mind-engage/mindengage-quiz/internal/practice"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
	syncx "github.com/mind-engage/mindengage-quiz/internal/sync"
)

type Deps struct {
	Auth     *authmw.AuthService
	Users    *authmw.UserStore
	Banks    BankStore
	Practice practice.Store
	Exams    exam.Store
	Events   *syncx.EventRepo

	Log                *logrus.Logger
	CORSOrigins        []string
	EnableRegistration bool
}

// NewRouter mounts every route. Protected routes verify the JWT, load the
// stored role, then check the route's permission.
func NewRouter(d Deps) chi.Router {
	log := d.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logging.RequestLogger(log), middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", LoginHandler(d.Auth, d.Users, log))
	if d.EnableRegistration {
		r.Post("/auth/register", RegisterHandler(d.Auth, d.Users, log))
	}
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(d.Auth), authmw.AttachRoleFromDB(d.Users))

		pr.With(rbac.Require("user:change_password")).
			Post("/users/change-password", ChangePasswordHandler(d.Users, log))
		pr.With(rbac.Require("users:list")).
			Get("/users", ListUsersHandler(d.Users, log))

		// Browsing
		pr.With(rbac.Require("bank:view")).Get("/banks", ListBanksHandler(d.Banks, log))
		pr.With(rbac.Require("bank:view")).Get("/banks/{bankID}/chapters", ListChaptersHandler(d.Banks, log))
		pr.With(rbac.Require("bank:view")).Get("/banks/{bankID}/questions", PreviewBankHandler(d.Banks, log))
		pr.With(rbac.Require("bank:view")).Get("/search", SearchQuestionsHandler(d.Banks, log))
		pr.With(rbac.Require("practice:view")).Get("/banks/{bankID}/progress", ChapterOverviewHandler(d.Practice, log))

		// Practice
		pr.Route("/practice", func(p chi.Router) {
			p.With(rbac.Require("practice:view")).Get("/next", NextQuestionHandler(d.Practice, log))
			p.With(rbac.Require("practice:view")).Get("/prev", PrevQuestionHandler(d.Practice, log))
			p.With(rbac.Require("practice:answer")).Post("/answers", SubmitAnswerHandler(d.Practice, log))
			p.With(rbac.Require("practice:reset")).Post("/reset", ResetChapterHandler(d.Practice, log))
		})
		pr.With(rbac.Require("practice:view")).Get("/stats", StatsHandler(d.Practice, log))

		// Exams
		pr.Route("/exams", func(e chi.Router) {
			e.With(rbac.Require("exam:create")).Post("/", CreateExamHandler(d.Exams, log))
			e.With(rbac.Require("exam:view")).Get("/", ListExamsHandler(d.Exams, log))
			e.With(rbac.Require("exam:view")).Get("/{examID}", GetExamHandler(d.Exams, log))
			e.With(rbac.Require("exam:answer")).Put("/{examID}/answers/{order}", SaveExamAnswerHandler(d.Exams, log))
			e.With(rbac.Require("exam:submit")).Post("/{examID}/submit", SubmitExamHandler(d.Exams, log))
			e.With(rbac.Require("exam:view")).Get("/{examID}/review", ReviewExamHandler(d.Exams, log))
			e.With(rbac.Require("exam:delete_own")).Delete("/{examID}", DeleteExamHandler(d.Exams, log))
		})

		// Admin
		pr.Route("/admin", func(a chi.Router) {
			a.Group(func(b chi.Router) {
				b.Use(rbac.Require("bank:edit"))
				b.Post("/banks", CreateBankHandler(d.Banks, log))
				b.Put("/banks/{bankID}", UpdateBankHandler(d.Banks, log))
				b.Delete("/banks/{bankID}", DeleteBankHandler(d.Banks, log))
				b.Post("/chapters", CreateChapterHandler(d.Banks, log))
				b.Put("/chapters/{chapterID}", UpdateChapterHandler(d.Banks, log))
				b.Delete("/chapters/{chapterID}", DeleteChapterHandler(d.Banks, log))
				b.Get("/questions", ListQuestionsHandler(d.Banks, log))
				b.Post("/questions", CreateQuestionHandler(d.Banks, log))
				b.Get("/questions/{questionID}", GetQuestionHandler(d.Banks, log))
				b.Put("/questions/{questionID}", UpdateQuestionHandler(d.Banks, log))
				b.Delete("/questions/{questionID}", DeleteQuestionHandler(d.Banks, log))
			})
			a.Group(func(u chi.Router) {
				u.Use(rbac.Require("users:edit"))
				u.Post("/users", CreateUserHandler(d.Users, log))
				u.Put("/users/{userID}", UpdateUserHandler(d.Users, log))
				u.Delete("/users/{userID}", DeleteUserHandler(d.Users, log))
			})
			a.With(rbac.Require("events:view")).Get("/events", EventFeedHandler(d.Events, log))
		})
	})

	return r
}
