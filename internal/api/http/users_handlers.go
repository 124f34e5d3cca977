package http

import (
	"net/http"

	"github.com/sirupsen/logrus"

	authmw "github.com/mind-engage/mindengage-quiz/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
)

type credentialsReq struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,max=72"`
}

type tokenResp struct {
	AccessToken string      `json:"access_token"`
	User        authmw.User `json:"user"`
}

// POST /auth/login
func LoginHandler(a *authmw.AuthService, users *authmw.UserStore, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsReq
		if err := decode(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		u, err := users.Authenticate(r.Context(), req.Username, req.Password)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		issueToken(w, r, a, u, http.StatusOK, log)
	}
}

// POST /auth/register creates a student account and logs it in.
func RegisterHandler(a *authmw.AuthService, users *authmw.UserStore, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsReq
		if err := decode(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		if len(req.Password) < 6 {
			writeFail(w, http.StatusBadRequest, "password must be at least 6 characters")
			return
		}
		u, err := users.Create(r.Context(), req.Username, req.Password, rbac.RoleStudent)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		log.WithField("user_id", u.ID).Info("user registered")
		issueToken(w, r, a, u, http.StatusCreated, log)
	}
}

func issueToken(w http.ResponseWriter, r *http.Request, a *authmw.AuthService, u authmw.User, status int, log logrus.FieldLogger) {
	tok, err := a.IssueJWT(u.ID, u.Role)
	if err != nil {
		writeError(w, r, log, err)
		return
	}
	writeJSON(w, status, envelope{Success: true, Data: tokenResp{AccessToken: tok, User: u}})
}

// GET /users?role=
func ListUsersHandler(users *authmw.UserStore, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := users.List(r.Context(), r.URL.Query().Get("role"))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeOK(w, list)
	}
}

type adminUserReq struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"max=72"`
	Role     string `json:"role" validate:"required"`
}

// POST /admin/users
func CreateUserHandler(users *authmw.UserStore, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req adminUserReq
		if err := decode(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		if req.Password == "" {
			writeFail(w, http.StatusBadRequest, "password required for a new user")
			return
		}
		u, err := users.Create(r.Context(), req.Username, req.Password, req.Role)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, envelope{Success: true, Data: u})
	}
}

// PUT /admin/users/{userID}; an empty password leaves it unchanged.
func UpdateUserHandler(users *authmw.UserStore, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := urlID(r, "userID")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		var req adminUserReq
		if err := decode(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		u, err := users.Update(r.Context(), id, req.Username, req.Password, req.Role)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeOK(w, u)
	}
}

// DELETE /admin/users/{userID}
func DeleteUserHandler(users *authmw.UserStore, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := urlID(r, "userID")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		if err := users.Delete(r.Context(), id, currentUser(r)); err != nil {
			writeError(w, r, log, err)
			return
		}
		log.WithFields(logrus.Fields{"user_id": id, "by": currentUser(r)}).Info("user deleted")
		writeJSON(w, http.StatusOK, envelope{Success: true})
	}
}
