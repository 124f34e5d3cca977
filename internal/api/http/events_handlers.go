package http

import (
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	syncx "github.com/mind-engage/mindengage-quiz/internal/sync"
)

// GET /admin/events?since=&limit=
func EventFeedHandler(repo *syncx.EventRepo, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var since int64
		if s := r.URL.Query().Get("since"); s != "" {
			v, err := strconv.ParseInt(s, 10, 64)
			if err != nil || v < 0 {
				writeFail(w, http.StatusBadRequest, "since must be a non-negative integer")
				return
			}
			since = v
		}
		evs, err := repo.Since(r.Context(), since, parseIntDefault(r.URL.Query().Get("limit"), 100))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeOK(w, evs)
	}
}
