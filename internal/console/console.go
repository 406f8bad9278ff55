// Package console drives a recognition session from a terminal.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"partscope/internal/acquisition"
	"partscope/internal/presenter"
	"partscope/internal/runner"
	"partscope/internal/service/session"
)

// ErrQuit is returned by Execute for the quit command.
var ErrQuit = errors.New("quit")

const helpText = `Commands:
  mode file|camera     switch acquisition mode (clears image and result)
  upload <path>        select an image file (file mode)
  capture <path>       submit an image as a camera frame (camera mode)
  analyze              send the selected image to the inference service
  status               show the current state
  dismiss              clear the error message
  load <model>         load an on-device model (.onnx or .pb)
  local                classify the selected image on-device
  help                 show this help
  quit                 exit`

type Console struct {
	sess   *session.Session
	runner *runner.Runner
	out    io.Writer
}

// New creates a console for sess. r may be nil when no on-device runner is available.
func New(sess *session.Session, r *runner.Runner, out io.Writer) *Console {
	return &Console{sess: sess, runner: r, out: out}
}

func (c *Console) Help() {
	fmt.Fprintln(c.out, helpText)
}

// Execute runs one command line.
func (c *Console) Execute(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	arg := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))

	switch cmd {
	case "mode":
		if len(args) != 1 {
			return errors.New("usage: mode file|camera")
		}
		m, err := session.ParseMode(args[0])
		if err != nil {
			return err
		}
		c.sess.SwitchMode(m)
		fmt.Fprintf(c.out, "Mode: %s\n", m)
	case "upload":
		if arg == "" {
			return errors.New("usage: upload <path>")
		}
		return c.upload(arg)
	case "capture":
		if arg == "" {
			return errors.New("usage: capture <path>")
		}
		return c.capture(arg)
	case "analyze":
		return c.analyze(ctx)
	case "status":
		c.printState(c.sess.Snapshot())
	case "dismiss":
		c.sess.DismissError()
	case "load":
		if arg == "" {
			return errors.New("usage: load <model>")
		}
		if c.runner == nil {
			return errors.New("on-device runner unavailable")
		}
		if err := c.runner.LoadModel(arg); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Model loaded: %s\n", arg)
	case "local":
		return c.local()
	case "help":
		c.Help()
	case "quit", "exit":
		return ErrQuit
	default:
		return fmt.Errorf("unknown command %q, type help", cmd)
	}
	return nil
}

func (c *Console) upload(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	if err := c.sess.SelectFile(filepath.Base(path), mimeType, f); err != nil {
		return err
	}
	c.printImage()
	return nil
}

func (c *Console) capture(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	if err := c.sess.CaptureCamera(acquisition.EncodeDataURI(mimeType, data)); err != nil {
		return err
	}
	c.printImage()
	return nil
}

func (c *Console) analyze(ctx context.Context) error {
	err := c.sess.Analyze(ctx)
	state := c.sess.Snapshot()
	switch {
	case errors.Is(err, session.ErrNotReady):
		if state.Readiness.Message != "" {
			return fmt.Errorf("%w: %s", err, state.Readiness.Message)
		}
		return err
	case errors.Is(err, session.ErrNoImage), errors.Is(err, session.ErrBusy):
		return err
	}
	c.printState(state)
	return nil
}

func (c *Console) local() error {
	if c.runner == nil {
		return errors.New("on-device runner unavailable")
	}
	payload := c.sess.Payload()
	if payload == nil {
		return session.ErrNoImage
	}
	pred, err := c.runner.Predict(payload.Blob.Data)
	if err != nil {
		return err
	}
	tier := presenter.Classify(float64(pred.Confidence))
	fmt.Fprintf(c.out, "On-device: %s (class %d) %.2f%% Confidence [%s]\n",
		pred.Label, pred.ClassIndex, float64(pred.Confidence)*100, tier)
	return nil
}

func (c *Console) printImage() {
	state := c.sess.Snapshot()
	if state.Image != nil {
		fmt.Fprintf(c.out, "Selected %s (%s, %d bytes)\n", state.Image.Name, state.Image.MIMEType, state.Image.Size)
	}
}

func (c *Console) printState(state session.State) {
	fmt.Fprintf(c.out, "API: %s", state.Readiness.State)
	if state.Readiness.Message != "" {
		fmt.Fprintf(c.out, " (%s)", state.Readiness.Message)
	}
	fmt.Fprintf(c.out, "\nMode: %s\n", state.Mode)
	if state.Image != nil {
		fmt.Fprintf(c.out, "Image: %s\n", state.Image.Name)
	}
	if state.Error != "" {
		fmt.Fprintf(c.out, "Error: %s\n", state.Error)
	}

	vm := state.Result
	if vm.Empty {
		fmt.Fprintln(c.out, vm.Placeholder)
		return
	}
	fmt.Fprintf(c.out, "%s\n%s [%s]\nProcessing time: %s\n", vm.PredictedClass, vm.ConfidenceLabel, vm.Tier, vm.ProcessingTime)
	if vm.NoPartDetails {
		fmt.Fprintln(c.out, vm.NoPartDetailsMessage)
	} else if p := vm.Part; p != nil {
		fmt.Fprintf(c.out, "Part Number: %s\nNomenclature: %s\nCategory: %s\nOEM: %s\n", p.PartNumber, p.Nomenclature, p.Category, p.OEM)
	}
	fmt.Fprintln(c.out, vm.Note)
}
