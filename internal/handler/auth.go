package handler

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/mcqgen/internal/model"
)

// AdminUser is the basic-auth user name for admin routes.
const AdminUser = "admin"

// requireAdmin checks HTTP basic credentials against the configured bcrypt
// hash. Admin routes are refused outright when no hash is configured.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(h.config.AdminPasswordHash) == 0 {
			http.Error(w, "admin access disabled", http.StatusForbidden)
			return
		}

		user, password, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(AdminUser)) != 1 ||
			bcrypt.CompareHashAndPassword(h.config.AdminPasswordHash, []byte(password)) != nil {
			slog.Warn("admin authentication failed", "path", r.URL.Path, "remote", r.RemoteAddr)
			w.Header().Set("WWW-Authenticate", `Basic realm="mcqgen", charset="UTF-8"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := model.ContextWithAdmin(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}
