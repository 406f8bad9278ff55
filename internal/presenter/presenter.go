// Package presenter turns a prediction result into display-ready values.
package presenter

import (
	"fmt"

	"partscope/internal/inference"
)

// Tier buckets a confidence score.
type Tier string

const (
	TierHigh    Tier = "high"
	TierMedium  Tier = "medium"
	TierLow     Tier = "low"
	TierVeryLow Tier = "very-low"
	TierNone    Tier = ""
)

const (
	Placeholder          = "No Part Detected Yet"
	NoPartDetailsMessage = "No matching part details found."
	ConfidenceNote       = "Confidence represents the model's certainty. Higher means more reliable prediction."
	missingCategory      = "N/A"
)

// Classify maps confidence in [0, 1] to a tier. Boundaries are inclusive on
// the lower side.
func Classify(confidence float64) Tier {
	switch {
	case confidence >= 0.90:
		return TierHigh
	case confidence >= 0.70:
		return TierMedium
	case confidence >= 0.50:
		return TierLow
	default:
		return TierVeryLow
	}
}

// ChipColor is the badge color used for a tier.
func (t Tier) ChipColor() string {
	switch t {
	case TierHigh:
		return "success"
	case TierMedium:
		return "primary"
	case TierLow:
		return "warning"
	case TierVeryLow:
		return "error"
	default:
		return ""
	}
}

// PartView is a PartDetail with its optional fields filled for display.
type PartView struct {
	Index        int    `json:"index"`
	PartName     string `json:"part_name"`
	PartNumber   string `json:"part_number"`
	Nomenclature string `json:"nomenclature"`
	Category     string `json:"category"`
	OEM          string `json:"oem"`
}

// ViewModel is everything the result panel renders.
type ViewModel struct {
	Empty                bool      `json:"empty"`
	Placeholder          string    `json:"placeholder,omitempty"`
	PredictedClass       string    `json:"predicted_class,omitempty"`
	Confidence           float64   `json:"confidence"`
	ConfidencePercent    float64   `json:"confidence_percent"`
	ConfidenceLabel      string    `json:"confidence_label,omitempty"`
	Tier                 Tier      `json:"tier,omitempty"`
	ChipColor            string    `json:"chip_color,omitempty"`
	ProcessingTime       string    `json:"processing_time,omitempty"`
	Part                 *PartView `json:"part,omitempty"`
	NoPartDetails        bool      `json:"no_part_details"`
	NoPartDetailsMessage string    `json:"no_part_details_message,omitempty"`
	Note                 string    `json:"note,omitempty"`
}

// Render builds the view model for result. A nil result yields the
// placeholder view. Render is pure.
func Render(result *inference.PredictionResult) ViewModel {
	if result == nil {
		return ViewModel{Empty: true, Placeholder: Placeholder}
	}

	tier := Classify(result.Confidence)
	percent := result.Confidence * 100

	vm := ViewModel{
		PredictedClass:    result.PredictedClass,
		Confidence:        result.Confidence,
		ConfidencePercent: percent,
		ConfidenceLabel:   fmt.Sprintf("%.2f%% Confidence", percent),
		Tier:              tier,
		ChipColor:         tier.ChipColor(),
		ProcessingTime:    fmt.Sprintf("%.2fs", result.ProcessingTime),
		Note:              ConfidenceNote,
	}

	if result.PartDetails == nil {
		vm.NoPartDetails = true
		vm.NoPartDetailsMessage = NoPartDetailsMessage
		return vm
	}

	vm.Part = partView(result.PartDetails)
	return vm
}

func partView(d *inference.PartDetail) *PartView {
	category := missingCategory
	if d.Category != nil && *d.Category != "" {
		category = *d.Category
	}
	return &PartView{
		Index:        d.Index,
		PartName:     d.PartName,
		PartNumber:   string(d.PartNumber),
		Nomenclature: d.Nomenclature,
		Category:     category,
		OEM:          d.OEM,
	}
}
