package http

import (
	"net/http"

	"github.com/sirupsen/logrus"

	authmw "github.com/mind-engage/mindengage-quiz/internal/auth/middleware"
)

type changePasswordReq struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6,max=72"`
}

// POST /users/change-password
func ChangePasswordHandler(users *authmw.UserStore, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req changePasswordReq
		if err := decode(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		if err := users.ChangePassword(r.Context(), currentUser(r), req.OldPassword, req.NewPassword); err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, envelope{Success: true, Message: "password changed"})
	}
}
