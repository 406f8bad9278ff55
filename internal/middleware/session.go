package middleware

import (
	"net/http"
	"strings"

	"partscope/internal/service/session"
)

// SessionCookie names the cookie carrying the viewer's session ID.
const SessionCookie = "session"

// SessionMiddleware attaches the caller's session to API requests, issuing a
// new session cookie when none (or an expired one) was presented. Static
// pages and log endpoints pass through untouched.
func SessionMiddleware(store *session.Store, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/api/history") {
			next.ServeHTTP(w, r)
			return
		}

		var id string
		if cookie, err := r.Cookie(SessionCookie); err == nil {
			id = cookie.Value
		}

		sess, created := store.Get(id)
		if created {
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    sess.ID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), sess)))
	})
}
