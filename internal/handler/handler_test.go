package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"partscope/internal/config"
	"partscope/internal/inference"
	"partscope/internal/logger"
	"partscope/internal/middleware"
	"partscope/internal/model"
	"partscope/internal/repository/sqlite"
	"partscope/internal/service/session"
	"partscope/internal/service/storage"
)

// ==================== Test fixtures ====================

type backend struct {
	health  string
	predict func(w http.ResponseWriter, r *http.Request)
}

func newBackend(t *testing.T, b backend) *inference.Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			io.WriteString(w, b.health)
		case "/predict":
			b.predict(w, r)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return inference.NewClient(server.URL, server.Client(), logger.NewDiscard())
}

const healthy = `{"status":"healthy","model_loaded":true}`

func okPrediction(w http.ResponseWriter, r *http.Request) {
	io.WriteString(w, `{"predicted_class":"Gen Set 15 KVA (TMTL) Blower Assy","confidence":0.93,"processing_time":0.12,"part_details":null}`)
}

type apiFixture struct {
	handler http.Handler
	store   *session.Store
}

func newAPI(t *testing.T, client *inference.Client) *apiFixture {
	t.Helper()
	log := logger.NewDiscard()
	gate := newTestGate(t, client)
	store := session.NewStore(session.Dependencies{
		Gate:      gate,
		Predictor: client,
		Logger:    log,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/api/state", StateHandler(log))
	mux.HandleFunc("/api/mode", ModeHandler(log))
	mux.HandleFunc("/api/upload", UploadHandler(log))
	mux.HandleFunc("/api/capture", CaptureHandler(log))
	mux.HandleFunc("/api/analyze", AnalyzeHandler(log))
	mux.HandleFunc("/api/error/dismiss", DismissErrorHandler(log))

	return &apiFixture{handler: middleware.SessionMiddleware(store, mux), store: store}
}

func newTestGate(t *testing.T, client *inference.Client) *session.Gate {
	t.Helper()
	gate := session.NewGate()
	gate.Probe(context.Background(), client)
	return gate
}

// do runs a request, carrying the session cookie between calls.
func (f *apiFixture) do(t *testing.T, cookie *http.Cookie, req *http.Request) (*httptest.ResponseRecorder, *http.Cookie) {
	t.Helper()
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			cookie = c
		}
	}
	return rec, cookie
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) session.State {
	t.Helper()
	var state session.State
	if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
		t.Fatalf("Failed to decode state: %v (body %q)", err, rec.Body.String())
	}
	return state
}

func uploadRequest(t *testing.T, name, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("CreatePart failed: %v", err)
	}
	part.Write(data)
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// ==================== Session API ====================

func TestState_IssuesSessionCookie(t *testing.T) {
	api := newAPI(t, newBackend(t, backend{health: healthy, predict: okPrediction}))

	rec, cookie := api.do(t, nil, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if cookie == nil {
		t.Fatal("Expected session cookie")
	}

	state := decodeState(t, rec)
	if state.SessionID != cookie.Value {
		t.Errorf("Expected session %s, got %s", cookie.Value, state.SessionID)
	}
	if state.Mode != session.ModeFile {
		t.Errorf("Expected file mode, got %s", state.Mode)
	}
	if state.Readiness.State != inference.StateReady {
		t.Errorf("Expected ready, got %s", state.Readiness.State)
	}
	if state.CanAnalyze {
		t.Error("Expected analyze disabled without an image")
	}
	if !state.Result.Empty {
		t.Error("Expected placeholder result")
	}

	rec, _ = api.do(t, cookie, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	if decodeState(t, rec).SessionID != cookie.Value {
		t.Error("Expected the same session on second request")
	}
	if api.store.Len() != 1 {
		t.Errorf("Expected 1 session, got %d", api.store.Len())
	}
}

func TestUploadAndAnalyze(t *testing.T) {
	var gotName, gotType string
	client := newBackend(t, backend{health: healthy, predict: func(w http.ResponseWriter, r *http.Request) {
		_, header, err := r.FormFile("file")
		if err == nil {
			gotName = header.Filename
			gotType = header.Header.Get("Content-Type")
		}
		okPrediction(w, r)
	}})
	api := newAPI(t, client)

	rec, cookie := api.do(t, nil, uploadRequest(t, "gear.jpg", "image/jpeg", []byte{0xff, 0xd8, 0xff}))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected upload status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	state := decodeState(t, rec)
	if state.Image == nil || state.Image.Name != "gear.jpg" {
		t.Fatalf("Expected gear.jpg selected, got %+v", state.Image)
	}
	if !strings.HasPrefix(state.Image.DisplayData, "data:image/jpeg;base64,") {
		t.Errorf("Unexpected display data %q", state.Image.DisplayData)
	}
	if !state.CanAnalyze {
		t.Error("Expected analyze enabled")
	}

	rec, _ = api.do(t, cookie, httptest.NewRequest(http.MethodPost, "/api/analyze", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected analyze status 200, got %d", rec.Code)
	}
	state = decodeState(t, rec)
	if state.Result.ConfidenceLabel != "93.00% Confidence" {
		t.Errorf("Unexpected confidence label %q", state.Result.ConfidenceLabel)
	}
	if !state.Result.NoPartDetails {
		t.Error("Expected no-part-details flag")
	}
	if gotName != "gear.jpg" || gotType != "image/jpeg" {
		t.Errorf("Backend received %s (%s)", gotName, gotType)
	}
}

func TestCaptureRequiresCameraMode(t *testing.T) {
	api := newAPI(t, newBackend(t, backend{health: healthy, predict: okPrediction}))
	body := `{"image":"data:image/png;base64,iVBORw0KGgo="}`

	rec, cookie := api.do(t, nil, httptest.NewRequest(http.MethodPost, "/api/capture", strings.NewReader(body)))
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 in file mode, got %d", rec.Code)
	}

	modeReq := httptest.NewRequest(http.MethodPost, "/api/mode", strings.NewReader(`{"mode":"camera"}`))
	modeReq.Header.Set("Content-Type", "application/json")
	rec, _ = api.do(t, cookie, modeReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected mode switch 200, got %d", rec.Code)
	}

	rec, _ = api.do(t, cookie, httptest.NewRequest(http.MethodPost, "/api/capture", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected capture 200, got %d: %s", rec.Code, rec.Body.String())
	}
	state := decodeState(t, rec)
	if state.Image == nil || state.Image.Name != "camera-capture.jpg" {
		t.Errorf("Expected camera-capture.jpg, got %+v", state.Image)
	}
}

func TestCapture_BadDataURI(t *testing.T) {
	api := newAPI(t, newBackend(t, backend{health: healthy, predict: okPrediction}))

	modeReq := httptest.NewRequest(http.MethodPost, "/api/mode", strings.NewReader("mode=camera"))
	modeReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	_, cookie := api.do(t, nil, modeReq)

	rec, _ := api.do(t, cookie, httptest.NewRequest(http.MethodPost, "/api/capture",
		strings.NewReader(`{"image":"data:image/png;base64,%%%"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	state := decodeState(t, rec)
	if state.Error == "" {
		t.Error("Expected error banner")
	}

	rec, _ = api.do(t, cookie, httptest.NewRequest(http.MethodPost, "/api/error/dismiss", nil))
	if decodeState(t, rec).Error != "" {
		t.Error("Expected banner dismissed")
	}
}

func TestAnalyze_ModelNotLoaded(t *testing.T) {
	api := newAPI(t, newBackend(t, backend{
		health:  `{"status":"healthy","model_loaded":false}`,
		predict: okPrediction,
	}))

	_, cookie := api.do(t, nil, uploadRequest(t, "a.png", "image/png", []byte("x")))
	rec, _ := api.do(t, cookie, httptest.NewRequest(http.MethodPost, "/api/analyze", nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409, got %d", rec.Code)
	}
	state := decodeState(t, rec)
	if state.Readiness.Message != "API is available but model is not properly loaded" {
		t.Errorf("Unexpected readiness message %q", state.Readiness.Message)
	}
	if state.CanAnalyze {
		t.Error("Expected analyze disabled")
	}
}

func TestAnalyze_ServerDetail(t *testing.T) {
	api := newAPI(t, newBackend(t, backend{health: healthy, predict: func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"detail":"File must be an image"}`)
	}}))

	_, cookie := api.do(t, nil, uploadRequest(t, "a.txt", "text/plain", []byte("x")))
	rec, _ := api.do(t, cookie, httptest.NewRequest(http.MethodPost, "/api/analyze", nil))
	state := decodeState(t, rec)
	if state.Error != "Prediction failed: File must be an image" {
		t.Errorf("Unexpected banner %q", state.Error)
	}
	if !state.Result.Empty {
		t.Error("Expected no result after failure")
	}
}

func TestModeSwitchClearsSelection(t *testing.T) {
	api := newAPI(t, newBackend(t, backend{health: healthy, predict: okPrediction}))
	_, cookie := api.do(t, nil, uploadRequest(t, "a.png", "image/png", []byte("x")))
	api.do(t, cookie, httptest.NewRequest(http.MethodPost, "/api/analyze", nil))

	rec, _ := api.do(t, cookie, httptest.NewRequest(http.MethodPost, "/api/mode?mode=camera", nil))
	state := decodeState(t, rec)
	if state.Image != nil || !state.Result.Empty {
		t.Error("Expected image and result cleared by mode switch")
	}
}

func TestMethodAndValidation(t *testing.T) {
	api := newAPI(t, newBackend(t, backend{health: healthy, predict: okPrediction}))

	tests := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"get analyze", httptest.NewRequest(http.MethodGet, "/api/analyze", nil), http.StatusMethodNotAllowed},
		{"post state", httptest.NewRequest(http.MethodPost, "/api/state", nil), http.StatusMethodNotAllowed},
		{"bad mode", httptest.NewRequest(http.MethodPost, "/api/mode?mode=video", nil), http.StatusBadRequest},
		{"upload without form", httptest.NewRequest(http.MethodPost, "/api/upload", nil), http.StatusBadRequest},
		{"capture empty", httptest.NewRequest(http.MethodPost, "/api/capture", strings.NewReader(`{}`)), http.StatusBadRequest},
		{"analyze without image", httptest.NewRequest(http.MethodPost, "/api/analyze", nil), http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := api.do(t, nil, tt.req)
			if rec.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

// ==================== History ====================

func TestHistoryHandlers(t *testing.T) {
	dir := t.TempDir()
	db, err := sqlite.New(filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	repo := sqlite.NewPredictionRepository(db)

	imagesDir := filepath.Join(dir, "images")
	os.MkdirAll(imagesDir, 0755)
	archive := storage.NewArchiveService(&config.Config{ImageDirectory: imagesDir, ArchiveBufferLimit: 10, ArchiveFlushSeconds: 30}, logger.NewDiscard(), repo)

	filename := "2026-03-01_10-00_00.000_abcd1234.png"
	os.WriteFile(filepath.Join(imagesDir, filename), []byte("png-bytes"), 0644)
	repo.Insert(&model.Prediction{
		ImageID: "abcd1234", Filename: filename, FilePath: filepath.Join(imagesDir, filename),
		FileSize: 9, MIMEType: "image/png", PredictedClass: "Gen Set Piston",
		Confidence: 0.8, Tier: "medium", Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	})

	log := logger.NewDiscard()

	rec := httptest.NewRecorder()
	HistoryHandler(repo, log)(rec, httptest.NewRequest(http.MethodGet, "/api/history?tier=medium&dateBefore=2026-03-01", nil))
	var page struct {
		Predictions []model.Prediction `json:"predictions"`
		Total       int                `json:"total"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("Failed to decode history: %v", err)
	}
	if page.Total != 1 || len(page.Predictions) != 1 {
		t.Errorf("Expected 1 prediction, got total %d len %d", page.Total, len(page.Predictions))
	}

	rec = httptest.NewRecorder()
	HistoryStatsHandler(repo, log)(rec, httptest.NewRequest(http.MethodGet, "/api/history/stats", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"total_predictions":1`) {
		t.Errorf("Unexpected stats response %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	HistoryImageHandler(archive, repo, log)(rec, httptest.NewRequest(http.MethodGet, "/api/history/image?name="+filename, nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "png-bytes" {
		t.Errorf("Unexpected image response %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	HistoryImageHandler(archive, repo, log)(rec, httptest.NewRequest(http.MethodGet, "/api/history/image?name=../history.db", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for traversal, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	ClearHistoryHandler(archive, repo, log)(rec, httptest.NewRequest(http.MethodGet, "/api/history/clear", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for GET clear, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	ClearHistoryHandler(archive, repo, log)(rec, httptest.NewRequest(http.MethodPost, "/api/history/clear", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}
	if _, err := os.Stat(filepath.Join(imagesDir, filename)); !os.IsNotExist(err) {
		t.Error("Expected archived image removed")
	}
}

// ==================== Logs ====================

func TestLogsHandlers(t *testing.T) {
	log, err := logger.New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer log.Close()
	log.Info("hello from test")

	rec := httptest.NewRecorder()
	ShowLogsHandler(log, "info")(rec, httptest.NewRequest(http.MethodGet, "/logs/info", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "hello from test") {
		t.Errorf("Unexpected log response %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	ClearLogsHandler(log, "info")(rec, httptest.NewRequest(http.MethodGet, "/logs/info/clear", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for GET clear, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	ClearLogsHandler(log, "info")(rec, httptest.NewRequest(http.MethodPost, "/logs/info/clear", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	ShowLogsHandler(logger.NewDiscard(), "info")(rec, httptest.NewRequest(http.MethodGet, "/logs/info", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for discard logger, got %d", rec.Code)
	}
}

// ==================== Admin login ====================

func TestLoginHandler(t *testing.T) {
	log := logger.NewDiscard()

	tests := []struct {
		name       string
		password   string
		method     string
		given      string
		wantStatus int
		wantCookie bool
	}{
		{"correct password", "s3cret", http.MethodPost, "s3cret", http.StatusSeeOther, true},
		{"wrong password", "s3cret", http.MethodPost, "guess", http.StatusUnauthorized, false},
		{"no password configured", "", http.MethodPost, "", http.StatusUnauthorized, false},
		{"GET not allowed", "s3cret", http.MethodGet, "s3cret", http.StatusMethodNotAllowed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/auth/login", strings.NewReader(url.Values{"password": {tt.given}}.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := httptest.NewRecorder()
			LoginHandler(tt.password, log)(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("Expected %d, got %d", tt.wantStatus, rec.Code)
			}
			var token string
			for _, c := range rec.Result().Cookies() {
				if c.Name == middleware.AdminCookie {
					token = c.Value
				}
			}
			if tt.wantCookie && token != middleware.AdminToken(tt.password) {
				t.Errorf("Expected admin token cookie, got %q", token)
			}
			if !tt.wantCookie && token != "" {
				t.Error("Expected no admin cookie")
			}
		})
	}
}

func TestLogoutHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	LogoutHandler()(rec, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Errorf("Expected expired admin cookie, got %+v", cookies)
	}
}
