// Package acquisition turns file uploads and camera captures into a single
// in-memory image payload.
package acquisition

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	// CameraCaptureFilename is the name given to every camera-captured blob.
	CameraCaptureFilename = "camera-capture.jpg"
	// DefaultMIMEType is assumed when a data URI header carries no usable type.
	DefaultMIMEType = "image/png"
)

// Blob is the binary form of a payload as it is sent to the inference service.
type Blob struct {
	Name     string
	MIMEType string
	Data     []byte
}

// ImagePayload holds one user-supplied image in both of its forms. ID
// identifies the selection; a new upload or capture always gets a new ID.
type ImagePayload struct {
	ID          string
	DisplayData string
	Blob        Blob
}

// Size returns the blob length in bytes.
func (p *ImagePayload) Size() int {
	return len(p.Blob.Data)
}

// FromFileSelection reads the selected file fully and builds a payload from it.
func FromFileSelection(name, mimeType string, r io.Reader) (*ImagePayload, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, &ReadError{Source: name, Err: err}
	}
	data := buf.Bytes()

	if mimeType == "" {
		mimeType = http.DetectContentType(data)
		if i := strings.IndexByte(mimeType, ';'); i >= 0 {
			mimeType = mimeType[:i]
		}
	}

	return &ImagePayload{
		ID:          uuid.NewString(),
		DisplayData: EncodeDataURI(mimeType, data),
		Blob: Blob{
			Name:     name,
			MIMEType: mimeType,
			Data:     data,
		},
	}, nil
}

// FromCameraCapture decodes a base64 data URI produced by a camera control.
// The URI itself is kept as the display form.
func FromCameraCapture(dataURI string) (*ImagePayload, error) {
	mimeType, data, err := DecodeDataURI(dataURI)
	if err != nil {
		return nil, &ReadError{Source: CameraCaptureFilename, Err: err}
	}

	return &ImagePayload{
		ID:          uuid.NewString(),
		DisplayData: dataURI,
		Blob: Blob{
			Name:     CameraCaptureFilename,
			MIMEType: mimeType,
			Data:     data,
		},
	}, nil
}

// ReadError reports an image that could not be read or decoded.
type ReadError struct {
	Source string
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read image %s: %v", e.Source, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}
