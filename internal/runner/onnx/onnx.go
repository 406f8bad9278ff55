// Package onnx runs ONNX classification models through onnxruntime.
package onnx

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"partscope/internal/runner"
)

var envMu sync.Mutex

// Init prepares the shared onnxruntime environment. libraryPath may be empty
// to use the platform default library name.
func Init(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}
	return nil
}

// Shutdown tears the environment down. Call after every Backend is closed.
func Shutdown() error {
	envMu.Lock()
	defer envMu.Unlock()

	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// Backend is a loaded ONNX model with one input and one output.
type Backend struct {
	session     *ort.DynamicAdvancedSession
	outputShape ort.Shape
}

// Loader returns a runner.Loader that initializes the environment on first use.
func Loader(libraryPath string) runner.Loader {
	return func(path string) (runner.Backend, error) {
		if err := Init(libraryPath); err != nil {
			return nil, err
		}
		return Open(path)
	}
}

// Open creates a session for the model at path.
func Open(path string) (*Backend, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("expected one input and one output, got %d and %d", len(inputs), len(outputs))
	}

	session, err := ort.NewDynamicAdvancedSession(path,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &Backend{
		session:     session,
		outputShape: fixedShape(outputs[0].Dimensions),
	}, nil
}

// Forward allocates the input and output tensors for a single run and
// destroys both before returning.
func (b *Backend) Forward(input []float32) ([]float32, error) {
	inputTensor, err := ort.NewTensor(ort.NewShape(runner.InputShape...), input)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputTensor, err := ort.NewEmptyTensor[float32](b.outputShape)
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	if err := b.session.Run([]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor}); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	data := outputTensor.GetData()
	scores := make([]float32, len(data))
	copy(scores, data)
	return scores, nil
}

func (b *Backend) Close() error {
	if b.session == nil {
		return nil
	}
	err := b.session.Destroy()
	b.session = nil
	return err
}

// fixedShape replaces symbolic dimensions (batch, usually) with 1.
func fixedShape(dims ort.Shape) ort.Shape {
	shape := make(ort.Shape, len(dims))
	for i, d := range dims {
		if d < 1 {
			d = 1
		}
		shape[i] = d
	}
	return shape
}
