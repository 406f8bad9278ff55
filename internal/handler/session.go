package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"partscope/internal/acquisition"
	"partscope/internal/logger"
	"partscope/internal/service/session"
)

// MaxUploadSize bounds multipart uploads and capture bodies.
const MaxUploadSize = 10 << 20

// StateHandler returns the caller's current session snapshot.
func StateHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		sess, ok := currentSession(w, r)
		if !ok {
			return
		}
		writeJSON(w, logger, http.StatusOK, sess.Snapshot())
	}
}

// ModeHandler switches the acquisition tab. Accepts form value or JSON "mode".
func ModeHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		sess, ok := currentSession(w, r)
		if !ok {
			return
		}

		raw := r.FormValue("mode")
		if raw == "" && strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			var body struct {
				Mode string `json:"mode"`
			}
			if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&body); err != nil {
				http.Error(w, "Invalid request body", http.StatusBadRequest)
				return
			}
			raw = body.Mode
		}

		mode, err := session.ParseMode(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		sess.SwitchMode(mode)
		writeJSON(w, logger, http.StatusOK, sess.Snapshot())
	}
}

// UploadHandler accepts a multipart "file" field as the new selection.
func UploadHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		sess, ok := currentSession(w, r)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
		if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
			http.Error(w, "Failed to parse form", http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "No image file provided. Use 'file' as the form field name", http.StatusBadRequest)
			return
		}
		defer file.Close()

		logger.Info("Received file: %s, size: %d bytes", header.Filename, header.Size)

		err = sess.SelectFile(header.Filename, header.Header.Get("Content-Type"), file)
		writeSelectionResult(w, logger, sess, err)
	}
}

// CaptureHandler accepts {"image": "<data URI>"} from the camera tab.
func CaptureHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		sess, ok := currentSession(w, r)
		if !ok {
			return
		}

		var body struct {
			Image string `json:"image"`
		}
		// base64 inflates the payload by a third
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxUploadSize*4/3+1024)).Decode(&body); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if body.Image == "" {
			http.Error(w, "Image is required", http.StatusBadRequest)
			return
		}

		err := sess.CaptureCamera(body.Image)
		writeSelectionResult(w, logger, sess, err)
	}
}

func writeSelectionResult(w http.ResponseWriter, logger *logger.Logger, sess *session.Session, err error) {
	var readErr *acquisition.ReadError
	switch {
	case err == nil:
		writeJSON(w, logger, http.StatusOK, sess.Snapshot())
	case errors.Is(err, session.ErrWrongMode):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &readErr):
		writeJSON(w, logger, http.StatusBadRequest, sess.Snapshot())
	default:
		logger.Error("Selection failed for session %s: %v", sess.ID, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// AnalyzeHandler submits the selected image. The prediction outlives the
// request's cancellation so a late answer is still judged against the
// current selection instead of being aborted.
func AnalyzeHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		sess, ok := currentSession(w, r)
		if !ok {
			return
		}

		err := sess.Analyze(context.WithoutCancel(r.Context()))

		status := http.StatusOK
		switch {
		case errors.Is(err, session.ErrNotReady), errors.Is(err, session.ErrNoImage), errors.Is(err, session.ErrBusy):
			status = http.StatusConflict
		case errors.Is(err, session.ErrStale):
			logger.Info("Session %s: analysis superseded by a new selection", sess.ID)
		}
		writeJSON(w, logger, status, sess.Snapshot())
	}
}

// DismissErrorHandler clears the error banner.
func DismissErrorHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		sess, ok := currentSession(w, r)
		if !ok {
			return
		}
		sess.DismissError()
		writeJSON(w, logger, http.StatusOK, sess.Snapshot())
	}
}
