package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"partscope/internal/dto"
	"partscope/internal/model"
)

const predictionColumns = `id, image_id, filename, source_name, filepath, filesize, mime_type,
	predicted_class, confidence, tier, processing_time, part_number, nomenclature, category, oem, timestamp`

// PredictionRepository implements repository.PredictionRepository for SQLite.
type PredictionRepository struct {
	db *DB
}

func NewPredictionRepository(db *DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPrediction(row scanner) (*model.Prediction, error) {
	var p model.Prediction
	err := row.Scan(&p.ID, &p.ImageID, &p.Filename, &p.SourceName, &p.FilePath, &p.FileSize, &p.MIMEType,
		&p.PredictedClass, &p.Confidence, &p.Tier, &p.ProcessingTime,
		&p.PartNumber, &p.Nomenclature, &p.Category, &p.OEM, &p.Timestamp)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Insert adds a prediction record and returns its row ID.
func (r *PredictionRepository) Insert(p *model.Prediction) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO predictions (image_id, filename, source_name, filepath, filesize, mime_type,
			predicted_class, confidence, tier, processing_time, part_number, nomenclature, category, oem, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ImageID, p.Filename, p.SourceName, p.FilePath, p.FileSize, p.MIMEType,
		p.PredictedClass, p.Confidence, p.Tier, p.ProcessingTime,
		p.PartNumber, p.Nomenclature, p.Category, p.OEM, p.Timestamp)
	if err != nil {
		return 0, fmt.Errorf("failed to insert prediction: %w", err)
	}

	return result.LastInsertId()
}

// GetByID returns nil, nil when no row matches.
func (r *PredictionRepository) GetByID(id int64) (*model.Prediction, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	p, err := scanPrediction(r.db.Conn().QueryRow(
		`SELECT `+predictionColumns+` FROM predictions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	return p, nil
}

// GetByFilename returns nil, nil when no row matches.
func (r *PredictionRepository) GetByFilename(filename string) (*model.Prediction, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	p, err := scanPrediction(r.db.Conn().QueryRow(
		`SELECT `+predictionColumns+` FROM predictions WHERE filename = ?`, filename))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	return p, nil
}

// whereClause builds the shared filter conditions for list and count queries.
func whereClause(filter *dto.HistoryFilter) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString(" WHERE 1=1")
	args := []interface{}{}

	if filter == nil {
		return sb.String(), args
	}

	if filter.Class != "" {
		sb.WriteString(" AND predicted_class = ?")
		args = append(args, filter.Class)
	}
	if filter.Tier != "" {
		sb.WriteString(" AND tier = ?")
		args = append(args, filter.Tier)
	}
	if !filter.DateAfter.IsZero() {
		sb.WriteString(" AND timestamp >= ?")
		args = append(args, filter.DateAfter)
	}
	if !filter.DateBefore.IsZero() {
		sb.WriteString(" AND timestamp <= ?")
		args = append(args, filter.DateBefore)
	}

	return sb.String(), args
}

// GetAll returns matching predictions, newest first.
func (r *PredictionRepository) GetAll(filter *dto.HistoryFilter) ([]model.Prediction, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)
	query := `SELECT ` + predictionColumns + ` FROM predictions` + where + ` ORDER BY timestamp DESC, id DESC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	predictions := []model.Prediction{}
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		predictions = append(predictions, *p)
	}
	return predictions, rows.Err()
}

// GetTotalCount counts predictions matching filter, ignoring paging.
func (r *PredictionRepository) GetTotalCount(filter *dto.HistoryFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM predictions`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count predictions: %w", err)
	}
	return count, nil
}

// GetStats returns archive totals, per-tier counts and the ten most frequent classes.
func (r *PredictionRepository) GetStats() (*dto.HistoryStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &dto.HistoryStats{
		PerTier:    make(map[string]int),
		TopClasses: make(map[string]int),
	}

	err := r.db.Conn().QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(filesize), 0), COALESCE(AVG(confidence), 0) FROM predictions
	`).Scan(&stats.TotalPredictions, &stats.TotalSizeBytes, &stats.AverageConfidence)
	if err != nil {
		return nil, fmt.Errorf("failed to read totals: %w", err)
	}

	tierRows, err := r.db.Conn().Query(`SELECT tier, COUNT(*) FROM predictions GROUP BY tier`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tiers: %w", err)
	}
	defer tierRows.Close()

	for tierRows.Next() {
		var tier string
		var count int
		if err := tierRows.Scan(&tier, &count); err != nil {
			return nil, err
		}
		stats.PerTier[tier] = count
	}

	classRows, err := r.db.Conn().Query(`
		SELECT predicted_class, COUNT(*) as cnt
		FROM predictions
		GROUP BY predicted_class
		ORDER BY cnt DESC
		LIMIT 10
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query classes: %w", err)
	}
	defer classRows.Close()

	for classRows.Next() {
		var class string
		var count int
		if err := classRows.Scan(&class, &count); err != nil {
			return nil, err
		}
		stats.TopClasses[class] = count
	}

	return stats, nil
}

// DeleteAll removes every archived prediction record.
func (r *PredictionRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM predictions`); err != nil {
		return fmt.Errorf("failed to delete predictions: %w", err)
	}
	return nil
}
