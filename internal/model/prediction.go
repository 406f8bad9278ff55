package model

import "time"

// Prediction is one archived analysis: the submitted image on disk and the
// result that was shown for it.
type Prediction struct {
	ID             int64     `json:"id"`
	ImageID        string    `json:"image_id"`
	Filename       string    `json:"filename"`
	SourceName     string    `json:"source_name"`
	FilePath       string    `json:"filepath"`
	FileSize       int64     `json:"filesize"`
	MIMEType       string    `json:"mime_type"`
	PredictedClass string    `json:"predicted_class"`
	Confidence     float64   `json:"confidence"`
	Tier           string    `json:"tier"`
	ProcessingTime float64   `json:"processing_time"`
	PartNumber     string    `json:"part_number,omitempty"`
	Nomenclature   string    `json:"nomenclature,omitempty"`
	Category       string    `json:"category,omitempty"`
	OEM            string    `json:"oem,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
