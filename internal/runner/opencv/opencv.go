// Package opencv runs frozen graph classifiers through the OpenCV DNN module.
package opencv

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"
	"os"

	"gocv.io/x/gocv"

	"partscope/internal/runner"
)

type Backend struct {
	net gocv.Net
}

// Loader opens a graph model (.pb, .caffemodel, ...) with an optional config file.
func Loader(configPath string) runner.Loader {
	return func(path string) (runner.Backend, error) {
		return Open(path, configPath)
	}
}

func Open(modelPath, configPath string) (*Backend, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network")
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	return &Backend{net: net}, nil
}

// Forward packs the NHWC input into an RGB float Mat, lets OpenCV reorder it
// into an NCHW blob and reads back the first output row.
func (b *Backend) Forward(input []float32) ([]float32, error) {
	if len(input) != runner.InputSize*runner.InputSize*3 {
		return nil, fmt.Errorf("unexpected input length %d", len(input))
	}

	mat, err := gocv.NewMatFromBytes(runner.InputSize, runner.InputSize, gocv.MatTypeCV32FC3, float32Bytes(input))
	if err != nil {
		return nil, fmt.Errorf("failed to build input mat: %w", err)
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, 1.0, image.Pt(runner.InputSize, runner.InputSize), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	b.net.SetInput(blob, "")

	output := b.net.Forward("")
	defer output.Close()

	if output.Empty() {
		return nil, fmt.Errorf("network produced no output")
	}

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read output: %w", err)
	}
	scores := make([]float32, len(data))
	copy(scores, data)
	return scores, nil
}

func (b *Backend) Close() error {
	return b.net.Close()
}

func float32Bytes(values []float32) []byte {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}
