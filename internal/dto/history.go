package dto

import (
	"time"

	"partscope/internal/model"
)

// HistoryFilter narrows the archived prediction list.
type HistoryFilter struct {
	Class      string
	Tier       string
	DateAfter  time.Time
	DateBefore time.Time
	Limit      int
	Offset     int
}

// HistoryPage is one page of archived predictions.
type HistoryPage struct {
	Predictions []model.Prediction `json:"predictions"`
	Total       int                `json:"total"`
	Limit       int                `json:"limit"`
	Offset      int                `json:"offset"`
}

// HistoryStats summarizes the archive.
type HistoryStats struct {
	TotalPredictions  int            `json:"total_predictions"`
	TotalSizeBytes    int64          `json:"total_size_bytes"`
	PerTier           map[string]int `json:"per_tier"`
	TopClasses        map[string]int `json:"top_classes"`
	AverageConfidence float64        `json:"average_confidence"`
}
