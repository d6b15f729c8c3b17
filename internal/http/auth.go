package http

import (
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// managerHeader carries the shared manager secret on privileged
// requests.
const managerHeader = "X-Manager-Password"

// wipeConfirmPhrase must accompany the full-wipe request body. The
// capability check alone is not enough for an irreversible bulk delete.
const wipeConfirmPhrase = "DELETE ALL EXPENSES"

// requireManager gates a handler behind the manager capability. The
// presented secret is compared with bcrypt against the configured
// hash; with no hash configured the endpoints stay disabled.
func (s *Server) requireManager(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.managerHash == "" {
			writeError(w, r, http.StatusForbidden, "manager endpoints are not configured")
			return
		}
		secret := r.Header.Get(managerHeader)
		if secret == "" {
			writeError(w, r, http.StatusUnauthorized, "manager password required")
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(s.managerHash), []byte(secret)); err != nil {
			slog.WarnContext(r.Context(), "Manager password rejected",
				"url", r.URL.Path, "method", r.Method)
			writeError(w, r, http.StatusForbidden, "invalid manager password")
			return
		}
		next(w, r)
	}
}
