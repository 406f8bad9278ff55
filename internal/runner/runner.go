// Package runner is the on-device alternative to the remote inference
// service. It is not on the active request path; the console exposes it.
package runner

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nfnt/resize"

	"partscope/internal/logger"
)

// InputSize is the square side the model expects.
const InputSize = 224

// InputShape is the NHWC tensor shape fed to every backend.
var InputShape = []int64{1, InputSize, InputSize, 3}

// ErrModelNotLoaded is returned by Predict before a successful LoadModel.
var ErrModelNotLoaded = errors.New("model not loaded")

// Backend executes one forward pass over a preprocessed NHWC input and
// returns the 1-D score vector. Implementations release every tensor they
// allocate before returning.
type Backend interface {
	Forward(input []float32) ([]float32, error)
	Close() error
}

// Loader opens a model file as a Backend.
type Loader func(path string) (Backend, error)

// Prediction is the outcome of a local forward pass.
type Prediction struct {
	ClassIndex int     `json:"class_index"`
	Confidence float32 `json:"confidence"`
	Label      string  `json:"label"`
}

type Runner struct {
	mu      sync.Mutex
	loaders map[string]Loader
	backend Backend
	path    string
	labels  Labels
	logger  *logger.Logger
}

func New(labels Labels, logger *logger.Logger) *Runner {
	if labels == nil {
		labels = DefaultLabels()
	}
	return &Runner{
		loaders: make(map[string]Loader),
		labels:  labels,
		logger:  logger,
	}
}

// Register binds a loader to a model file extension such as ".onnx".
func (r *Runner) Register(ext string, loader Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[strings.ToLower(ext)] = loader
}

// LoadModel always loads path, even when a model is already in place. The
// previous backend is closed only after the new one opened successfully.
func (r *Runner) LoadModel(path string) error {
	ext := strings.ToLower(filepath.Ext(path))

	r.mu.Lock()
	loader, ok := r.loaders[ext]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("no backend registered for %q models", ext)
	}

	backend, err := loader(path)
	if err != nil {
		r.logger.Error("Error loading model %s: %v", path, err)
		return fmt.Errorf("failed to load model %s: %w", path, err)
	}

	r.mu.Lock()
	previous := r.backend
	r.backend = backend
	r.path = path
	r.mu.Unlock()

	if previous != nil {
		if err := previous.Close(); err != nil {
			r.logger.Warning("Failed to release previous model: %v", err)
		}
	}

	r.logger.Info("Model loaded successfully from %s", path)
	return nil
}

// Ready reports whether a model has been loaded.
func (r *Runner) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend != nil
}

// ModelPath returns the currently loaded model file.
func (r *Runner) ModelPath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

// Predict decodes imageBytes (JPEG or PNG) and classifies it.
func (r *Runner) Predict(imageBytes []byte) (Prediction, error) {
	if !r.Ready() {
		return Prediction{}, ErrModelNotLoaded
	}
	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to decode image: %w", err)
	}
	return r.PredictImage(img)
}

// PredictImage classifies an already decoded image.
func (r *Runner) PredictImage(img image.Image) (Prediction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.backend == nil {
		return Prediction{}, ErrModelNotLoaded
	}

	scores, err := r.backend.Forward(Preprocess(img))
	if err != nil {
		r.logger.Error("Error making prediction: %v", err)
		return Prediction{}, fmt.Errorf("inference failed: %w", err)
	}

	idx, confidence := Argmax(scores)
	if idx < 0 {
		return Prediction{}, errors.New("model returned no scores")
	}

	return Prediction{
		ClassIndex: idx,
		Confidence: confidence,
		Label:      r.labels.Name(idx),
	}, nil
}

func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.backend == nil {
		return nil
	}
	err := r.backend.Close()
	r.backend = nil
	r.path = ""
	return err
}

// Preprocess resizes img to InputSize x InputSize with bilinear
// interpolation and returns it as NHWC float32 RGB scaled into [0, 1].
func Preprocess(img image.Image) []float32 {
	resized := resize.Resize(InputSize, InputSize, img, resize.Bilinear)
	bounds := resized.Bounds()

	data := make([]float32, 0, InputSize*InputSize*3)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			data = append(data,
				float32(r>>8)/255.0,
				float32(g>>8)/255.0,
				float32(b>>8)/255.0,
			)
		}
	}
	return data
}

// Argmax returns the index and value of the largest score. Equal maxima
// resolve to the lowest index. An empty vector yields -1.
func Argmax(scores []float32) (int, float32) {
	if len(scores) == 0 {
		return -1, 0
	}
	maxIdx := 0
	maxVal := scores[0]
	for i, val := range scores {
		if val > maxVal {
			maxVal = val
			maxIdx = i
		}
	}
	return maxIdx, maxVal
}
