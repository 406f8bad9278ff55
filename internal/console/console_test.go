package console

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"partscope/internal/acquisition"
	"partscope/internal/inference"
	"partscope/internal/logger"
	"partscope/internal/runner"
	"partscope/internal/service/session"
)

type readyChecker struct{}

func (readyChecker) CheckHealth(ctx context.Context) inference.Readiness {
	return inference.Readiness{State: inference.StateReady}
}

type stubPredictor struct{}

func (stubPredictor) Predict(ctx context.Context, payload *acquisition.ImagePayload) (*inference.PredictionResult, error) {
	return &inference.PredictionResult{PredictedClass: "Gen Set 35 KVA(TMTL) Piston", Confidence: 0.75, ProcessingTime: 0.2}, nil
}

func newTestConsole(t *testing.T, r *runner.Runner) (*Console, *bytes.Buffer) {
	t.Helper()
	gate := session.NewGate()
	gate.Probe(context.Background(), readyChecker{})
	sess := session.New("console", session.Dependencies{
		Gate:      gate,
		Predictor: stubPredictor{},
		Logger:    logger.NewDiscard(),
	})
	var out bytes.Buffer
	return New(sess, r, &out), &out
}

func writeImage(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("\x89PNG\r\n\x1a\nfake"), 0644); err != nil {
		t.Fatalf("Failed to write image: %v", err)
	}
	return path
}

func TestExecute_UploadAndAnalyze(t *testing.T) {
	c, out := newTestConsole(t, nil)
	ctx := context.Background()

	if err := c.Execute(ctx, "upload "+writeImage(t, "gear part.png")); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if !strings.Contains(out.String(), "Selected gear part.png (image/png") {
		t.Errorf("Unexpected output %q", out.String())
	}

	out.Reset()
	if err := c.Execute(ctx, "analyze"); err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	for _, want := range []string{"Gen Set 35 KVA(TMTL) Piston", "75.00% Confidence [medium]", "No matching part details found."} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected output to contain %q, got %q", want, out.String())
		}
	}
}

func TestExecute_ModeAndCapture(t *testing.T) {
	c, out := newTestConsole(t, nil)
	ctx := context.Background()
	path := writeImage(t, "frame.png")

	if err := c.Execute(ctx, "capture "+path); !errors.Is(err, session.ErrWrongMode) {
		t.Errorf("Expected ErrWrongMode, got %v", err)
	}
	if err := c.Execute(ctx, "mode camera"); err != nil {
		t.Fatalf("mode failed: %v", err)
	}
	if err := c.Execute(ctx, "capture "+path); err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	if !strings.Contains(out.String(), "Selected camera-capture.jpg") {
		t.Errorf("Unexpected output %q", out.String())
	}
}

func TestExecute_Errors(t *testing.T) {
	c, _ := newTestConsole(t, nil)
	ctx := context.Background()

	tests := []struct {
		line string
		want error
	}{
		{"analyze", session.ErrNoImage},
		{"local", nil},
		{"quit", ErrQuit},
	}
	for _, tt := range tests {
		err := c.Execute(ctx, tt.line)
		if tt.want != nil && !errors.Is(err, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.line, tt.want, err)
		}
		if tt.want == nil && err == nil {
			t.Errorf("%s: expected an error", tt.line)
		}
	}

	if err := c.Execute(ctx, "dance"); err == nil {
		t.Error("Expected unknown command error")
	}
	if err := c.Execute(ctx, "mode"); err == nil {
		t.Error("Expected usage error")
	}
	if err := c.Execute(ctx, ""); err != nil {
		t.Errorf("Expected blank line ignored, got %v", err)
	}
}

func TestExecute_LocalWithoutModel(t *testing.T) {
	c, _ := newTestConsole(t, runner.New(nil, logger.NewDiscard()))
	ctx := context.Background()

	if err := c.Execute(ctx, "upload "+writeImage(t, "a.png")); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if err := c.Execute(ctx, "local"); !errors.Is(err, runner.ErrModelNotLoaded) {
		t.Errorf("Expected ErrModelNotLoaded, got %v", err)
	}
}
