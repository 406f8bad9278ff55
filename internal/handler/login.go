package handler

import (
	"crypto/subtle"
	"net/http"

	"partscope/internal/logger"
	"partscope/internal/middleware"
)

// LoginHandler handles POST /auth/login by checking the admin password and
// issuing the admin cookie.
func LoginHandler(password string, logger *logger.Logger) http.HandlerFunc {
	token := middleware.AdminToken(password)

	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		given := r.FormValue("password")
		if token == "" || subtle.ConstantTimeCompare([]byte(given), []byte(password)) != 1 {
			logger.Warning("Rejected admin login from %s", r.RemoteAddr)
			http.Error(w, "Invalid password", http.StatusUnauthorized)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     middleware.AdminCookie,
			Value:    token,
			Path:     "/",
			MaxAge:   86400,
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})
		http.Redirect(w, r, "/logs/info", http.StatusSeeOther)
	}
}

// LogoutHandler drops the admin cookie.
func LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     middleware.AdminCookie,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
		})
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}
