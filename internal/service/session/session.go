// Package session holds the per-viewer state of the recognition page: the
// acquisition mode, the selected image, the latest result and the error
// banner.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"partscope/internal/acquisition"
	"partscope/internal/inference"
	"partscope/internal/logger"
	"partscope/internal/presenter"
)

// Mode is the active acquisition tab.
type Mode string

const (
	ModeFile   Mode = "file"
	ModeCamera Mode = "camera"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFile, ModeCamera:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

var (
	ErrWrongMode = errors.New("image source does not match the active mode")
	ErrNotReady  = errors.New("inference service is not ready")
	ErrNoImage   = errors.New("no image selected")
	ErrBusy      = errors.New("analysis already in progress")
	// ErrStale means the selection changed while a prediction was in flight
	// and its outcome was dropped.
	ErrStale = errors.New("selection changed during analysis")
)

// Predictor sends a payload to the inference service.
type Predictor interface {
	Predict(ctx context.Context, payload *acquisition.ImagePayload) (*inference.PredictionResult, error)
}

// Recorder receives every prediction that was applied to a session.
type Recorder interface {
	Record(payload *acquisition.ImagePayload, result *inference.PredictionResult)
}

type Dependencies struct {
	Gate      *Gate
	Predictor Predictor
	Recorder  Recorder
	Logger    *logger.Logger
	Notify    func(State)
}

// ImageView describes the selected image for the page.
type ImageView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MIMEType    string `json:"mime_type"`
	Size        int    `json:"size"`
	DisplayData string `json:"display_data"`
}

// State is a consistent snapshot of a session. Version grows with every
// change, so a viewer can discard snapshots older than the one it shows.
type State struct {
	SessionID  string              `json:"session_id"`
	Version    uint64              `json:"version"`
	Mode       Mode                `json:"mode"`
	Readiness  inference.Readiness `json:"readiness"`
	CanAnalyze bool                `json:"can_analyze"`
	Busy       bool                `json:"busy"`
	Image      *ImageView          `json:"image"`
	Result     presenter.ViewModel `json:"result"`
	Error      string              `json:"error,omitempty"`
}

type Session struct {
	ID string

	mu       sync.Mutex
	mode     Mode
	payload  *acquisition.ImagePayload
	result   *inference.PredictionResult
	inflight string // payload ID of the latest analysis still running
	banner   string
	version  uint64
	lastSeen time.Time
	deps     Dependencies
}

func New(id string, deps Dependencies) *Session {
	return &Session{
		ID:       id,
		mode:     ModeFile,
		lastSeen: time.Now(),
		deps:     deps,
	}
}

// SwitchMode changes the acquisition tab. The selected image and any result
// are cleared, even when m equals the current mode.
func (s *Session) SwitchMode(m Mode) {
	s.mu.Lock()
	s.mode = m
	s.payload = nil
	s.result = nil
	s.changed()
	s.mu.Unlock()

	s.deps.Logger.Info("Session %s switched to %s mode", s.ID, m)
	s.notify()
}

// SelectFile replaces the selection with an uploaded file.
func (s *Session) SelectFile(name, mimeType string, r io.Reader) error {
	if err := s.requireMode(ModeFile); err != nil {
		return err
	}
	payload, err := acquisition.FromFileSelection(name, mimeType, r)
	return s.applySelection(payload, err)
}

// CaptureCamera replaces the selection with a captured frame.
func (s *Session) CaptureCamera(dataURI string) error {
	if err := s.requireMode(ModeCamera); err != nil {
		return err
	}
	payload, err := acquisition.FromCameraCapture(dataURI)
	return s.applySelection(payload, err)
}

func (s *Session) requireMode(m Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != m {
		return ErrWrongMode
	}
	return nil
}

// applySelection installs a new payload. A read failure only raises the
// banner; the previous selection and result stay as they were.
func (s *Session) applySelection(payload *acquisition.ImagePayload, err error) error {
	s.mu.Lock()
	s.changed()
	if err != nil {
		s.banner = readErrorMessage(err)
		s.mu.Unlock()
		s.deps.Logger.Warning("Session %s: %v", s.ID, err)
		s.notify()
		return err
	}

	s.payload = payload
	s.result = nil
	s.mu.Unlock()

	s.deps.Logger.Info("Session %s selected %s (%d bytes)", s.ID, payload.Blob.Name, payload.Size())
	s.notify()
	return nil
}

// Analyze submits the selected image. It does nothing unless the backend is
// ready, an image is selected and that image is not already being analyzed.
// The outcome is applied only if the same image is still selected when it
// arrives, so replacing the image frees the session from a hung request.
func (s *Session) Analyze(ctx context.Context) error {
	if !s.deps.Gate.Readiness().Ready() {
		return ErrNotReady
	}

	s.mu.Lock()
	s.touch()
	switch {
	case s.payload == nil:
		s.mu.Unlock()
		return ErrNoImage
	case s.busy():
		s.mu.Unlock()
		return ErrBusy
	}
	payload := s.payload
	s.inflight = payload.ID
	s.banner = ""
	s.version++
	s.mu.Unlock()
	s.notify()

	result, err := s.deps.Predictor.Predict(ctx, payload)

	s.mu.Lock()
	if s.inflight == payload.ID {
		s.inflight = ""
	}
	s.version++
	if s.payload == nil || s.payload.ID != payload.ID {
		s.mu.Unlock()
		s.deps.Logger.Info("Session %s: discarded prediction for replaced image %s", s.ID, payload.ID)
		s.notify()
		return ErrStale
	}

	if err != nil {
		s.result = nil
		s.banner = predictionMessage(err)
		s.mu.Unlock()
		s.notify()
		return err
	}

	s.result = result
	s.mu.Unlock()

	if s.deps.Recorder != nil {
		s.deps.Recorder.Record(payload, result)
	}
	s.notify()
	return nil
}

// DismissError clears the banner.
func (s *Session) DismissError() {
	s.mu.Lock()
	s.banner = ""
	s.changed()
	s.mu.Unlock()
	s.notify()
}

// Refresh republishes the session under a new version, e.g. after the
// backend readiness changed.
func (s *Session) Refresh() {
	s.mu.Lock()
	s.version++
	s.mu.Unlock()
	s.notify()
}

func (s *Session) Snapshot() State {
	readiness := s.deps.Gate.Readiness()

	s.mu.Lock()
	defer s.mu.Unlock()

	state := State{
		SessionID:  s.ID,
		Version:    s.version,
		Mode:       s.mode,
		Readiness:  readiness,
		CanAnalyze: readiness.Ready() && s.payload != nil && !s.busy(),
		Busy:       s.busy(),
		Result:     presenter.Render(s.result),
		Error:      s.banner,
	}
	if s.payload != nil {
		state.Image = &ImageView{
			ID:          s.payload.ID,
			Name:        s.payload.Blob.Name,
			MIMEType:    s.payload.Blob.MIMEType,
			Size:        s.payload.Size(),
			DisplayData: s.payload.DisplayData,
		}
	}
	return state
}

// Result returns the raw prediction currently shown, if any.
func (s *Session) Result() *inference.PredictionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Payload returns the selected image, if any.
func (s *Session) Payload() *acquisition.ImagePayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payload
}

// LastSeen is the time of the most recent interaction.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Touch marks the session as active.
func (s *Session) Touch() {
	s.mu.Lock()
	s.touch()
	s.mu.Unlock()
}

func (s *Session) touch() {
	s.lastSeen = time.Now()
}

// busy expects the mutex to be held.
func (s *Session) busy() bool {
	return s.payload != nil && s.inflight == s.payload.ID
}

// changed expects the mutex to be held.
func (s *Session) changed() {
	s.version++
	s.touch()
}

// idleSince reports whether the session has not been used since cutoff.
func (s *Session) idleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen.Before(cutoff)
}

func (s *Session) notify() {
	if s.deps.Notify != nil {
		s.deps.Notify(s.Snapshot())
	}
}

func readErrorMessage(err error) string {
	var readErr *acquisition.ReadError
	if errors.As(err, &readErr) {
		return fmt.Sprintf("Could not read image %s. Please select another image.", readErr.Source)
	}
	return "Could not read image. Please select another image."
}

func predictionMessage(err error) string {
	var predErr *inference.PredictionError
	if errors.As(err, &predErr) {
		return predErr.Message()
	}
	return inference.GenericPredictionMessage
}
