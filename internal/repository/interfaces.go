package repository

import (
	"partscope/internal/dto"
	"partscope/internal/model"
)

// PredictionRepository stores archived predictions.
type PredictionRepository interface {
	// Create operations
	Insert(p *model.Prediction) (int64, error)

	// Read operations
	GetByID(id int64) (*model.Prediction, error)
	GetByFilename(filename string) (*model.Prediction, error)
	GetAll(filter *dto.HistoryFilter) ([]model.Prediction, error)
	GetTotalCount(filter *dto.HistoryFilter) (int, error)
	GetStats() (*dto.HistoryStats, error)

	// Delete operations
	DeleteAll() error
}
