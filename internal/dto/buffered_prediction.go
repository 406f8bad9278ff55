package dto

import (
	"time"

	"partscope/internal/acquisition"
	"partscope/internal/inference"
)

// BufferedPrediction is an applied prediction waiting to be archived.
type BufferedPrediction struct {
	Timestamp time.Time
	Payload   *acquisition.ImagePayload
	Result    *inference.PredictionResult
}
