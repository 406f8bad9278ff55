package route

import (
	"net/http"
	"os"
	"path/filepath"

	"partscope/internal/handler"
	"partscope/internal/logger"
	"partscope/internal/middleware"
	"partscope/internal/repository"
	"partscope/internal/service/session"
	"partscope/internal/service/storage"
	"partscope/internal/service/websocket"
)

// StaticDir holds the page and its assets.
var StaticDir = "static"

// Services bundles what the routes need. Archive and Repo are nil when the
// history archive is disabled.
type Services struct {
	Logger  *logger.Logger
	Store   *session.Store
	Hub     *websocket.HubService
	Archive *storage.ArchiveService
	Repo    repository.PredictionRepository
	// AdminPassword unlocks history and logs; empty keeps them locked.
	AdminPassword string
}

// dynamicHTMLHandler serves /path as static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == "/" {
		path = "/index"
	}

	filePath := filepath.Join(StaticDir, filepath.Clean("/"+path)+".html")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers the page, the session API, the history archive and
// the log endpoints, and wraps the mux with the admin and session middleware.
func SetupRoutes(s Services) http.Handler {
	mux := http.NewServeMux()
	log := s.Logger

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(StaticDir))))

	// Session API
	mux.HandleFunc("/api/state", handler.StateHandler(log))
	mux.HandleFunc("/api/mode", handler.ModeHandler(log))
	mux.HandleFunc("/api/upload", handler.UploadHandler(log))
	mux.HandleFunc("/api/capture", handler.CaptureHandler(log))
	mux.HandleFunc("/api/analyze", handler.AnalyzeHandler(log))
	mux.HandleFunc("/api/error/dismiss", handler.DismissErrorHandler(log))
	mux.HandleFunc("/api/events", handler.EventsHandler(s.Hub, log))

	// Admin login
	mux.HandleFunc("/auth/login", handler.LoginHandler(s.AdminPassword, log))
	mux.HandleFunc("/auth/logout", handler.LogoutHandler())

	// History archive
	if s.Repo != nil && s.Archive != nil {
		mux.HandleFunc("/api/history", handler.HistoryHandler(s.Repo, log))
		mux.HandleFunc("/api/history/stats", handler.HistoryStatsHandler(s.Repo, log))
		mux.HandleFunc("/api/history/image", handler.HistoryImageHandler(s.Archive, s.Repo, log))
		mux.HandleFunc("/api/history/clear", handler.ClearHistoryHandler(s.Archive, s.Repo, log))
	}

	// Log endpoints
	for _, level := range logger.Levels {
		mux.HandleFunc("/logs/"+level, handler.ShowLogsHandler(log, level))
		mux.HandleFunc("/logs/"+level+"/clear", handler.ClearLogsHandler(log, level))
	}

	// Automatic HTML handler mapping, e.g. /about -> static/about.html
	mux.HandleFunc("/", dynamicHTMLHandler)

	return middleware.SessionMiddleware(s.Store, middleware.AuthMiddleware(s.AdminPassword, mux))
}
