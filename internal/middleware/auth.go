package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// AdminCookie carries the admin token issued by the login handler.
const AdminCookie = "admin"

// AdminToken derives the cookie and bearer token from the admin password.
// An empty password yields no token and locks the admin routes.
func AdminToken(password string) string {
	if password == "" {
		return ""
	}
	sum := sha256.Sum256([]byte("partscope-admin:" + password))
	return hex.EncodeToString(sum[:])
}

// IsAdminPath reports whether path serves the shared archive or the logs.
func IsAdminPath(path string) bool {
	return strings.HasPrefix(path, "/api/history") || strings.HasPrefix(path, "/logs/")
}

// Authorized checks the admin cookie or an "Authorization: Bearer" header.
func Authorized(r *http.Request, token string) bool {
	if token == "" {
		return false
	}
	presented := ""
	if cookie, err := r.Cookie(AdminCookie); err == nil {
		presented = cookie.Value
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		presented = strings.TrimPrefix(auth, "Bearer ")
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(token)) == 1
}

// AuthMiddleware guards the history archive and the log endpoints. API
// callers get 401; browsers asking for a log page are sent to /login.
func AuthMiddleware(password string, next http.Handler) http.Handler {
	token := AdminToken(password)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAdminPath(r.URL.Path) || Authorized(r, token) {
			next.ServeHTTP(w, r)
			return
		}

		if strings.HasPrefix(r.URL.Path, "/api/") ||
			r.Method != http.MethodGet ||
			r.Header.Get("X-Requested-With") == "XMLHttpRequest" ||
			strings.HasPrefix(r.Header.Get("Accept"), "application/json") {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	})
}
