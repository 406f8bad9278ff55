package inference

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ReadinessState is the tri-state status of the inference backend.
type ReadinessState string

const (
	StateConnecting ReadinessState = "connecting"
	StateReady      ReadinessState = "ready"
	StateError      ReadinessState = "error"
)

// Readiness is the outcome of the startup health probe.
type Readiness struct {
	State   ReadinessState `json:"state"`
	Message string         `json:"message,omitempty"`
}

// Connecting is the readiness before the health probe has answered.
func Connecting() Readiness {
	return Readiness{State: StateConnecting}
}

func (r Readiness) Ready() bool {
	return r.State == StateReady
}

// healthResponse is the subset of GET /health the client relies on.
type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// PredictionResult is the decoded body of a successful POST /predict.
type PredictionResult struct {
	PredictedClass string      `json:"predicted_class"`
	Confidence     float64     `json:"confidence"`
	ProcessingTime float64     `json:"processing_time"`
	PartDetails    *PartDetail `json:"part_details"`
}

// PartDetail is the catalog record matched to the predicted class.
type PartDetail struct {
	Index        int        `json:"index"`
	PartName     string     `json:"part_name"`
	Category     *string    `json:"category,omitempty"`
	PartNumber   PartNumber `json:"Part No"`
	Nomenclature string     `json:"Spare Nomenclature"`
	OEM          string     `json:"OEM"`
}

// PartNumber keeps the textual form of "Part No", which the catalog stores
// either as a number or as a string.
type PartNumber string

func (p *PartNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = PartNumber(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("part number must be a string or number: %w", err)
	}
	*p = PartNumber(n.String())
	return nil
}
