package storage

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sync"
	"time"

	"partscope/internal/acquisition"
	"partscope/internal/config"
	"partscope/internal/dto"
	"partscope/internal/inference"
	"partscope/internal/logger"
	"partscope/internal/model"
	"partscope/internal/presenter"
	"partscope/internal/repository"
)

const (
	timestampLayout      = "2006-01-02_15-04_05.000"
	defaultFlushInterval = 30 * time.Second
)

// ArchiveService buffers applied predictions in memory and periodically
// writes their images to disk and their results to the repository.
type ArchiveService struct {
	imagesDir     string
	limit         int
	flushInterval time.Duration
	buffer        []dto.BufferedPrediction
	dropped       int
	mu            sync.Mutex
	logger        *logger.Logger
	repo          repository.PredictionRepository
}

func NewArchiveService(cfg *config.Config, logger *logger.Logger, repo repository.PredictionRepository) *ArchiveService {
	interval := cfg.FlushInterval()
	if interval <= 0 {
		interval = defaultFlushInterval
	}
	return &ArchiveService{
		imagesDir:     cfg.ImageDirectory,
		limit:         cfg.ArchiveBufferLimit,
		flushInterval: interval,
		buffer:        make([]dto.BufferedPrediction, 0),
		logger:        logger,
		repo:          repo,
	}
}

// Run flushes on every tick and once more when ctx is done.
func (s *ArchiveService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Flush()
		case <-ctx.Done():
			s.Flush()
			return
		}
	}
}

// Record queues an applied prediction. Once the buffer is full further
// records are dropped until the next flush.
func (s *ArchiveService) Record(payload *acquisition.ImagePayload, result *inference.PredictionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.limit > 0 && len(s.buffer) >= s.limit {
		s.dropped++
		s.logger.Warning("Archive buffer full (%d/%d), dropping prediction for %s", len(s.buffer), s.limit, payload.Blob.Name)
		return
	}

	s.buffer = append(s.buffer, dto.BufferedPrediction{
		Timestamp: time.Now().UTC(),
		Payload:   payload,
		Result:    result,
	})
	s.logger.Info("Archive buffer size: %d/%d", len(s.buffer), s.limit)
}

// Pending returns the number of buffered predictions.
func (s *ArchiveService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffer)
}

// Flush writes every buffered prediction and returns how many were saved.
func (s *ArchiveService) Flush() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.buffer) == 0 {
		return 0
	}

	if err := os.MkdirAll(s.imagesDir, 0755); err != nil {
		s.logger.Error("Error creating directory: %v", err)
		return 0
	}

	savedCount := 0
	for _, item := range s.buffer {
		filename := archiveFilename(item)
		fullpath := filepath.Join(s.imagesDir, filename)

		if err := os.WriteFile(fullpath, item.Payload.Blob.Data, 0644); err != nil {
			s.logger.Error("Error saving image %s: %v", filename, err)
			continue
		}

		if s.repo != nil {
			if _, err := s.repo.Insert(toRecord(item, filename, fullpath)); err != nil {
				s.logger.Error("Error saving prediction to database %s: %v", filename, err)
				continue
			}
		}

		savedCount++
	}

	if s.dropped > 0 {
		s.logger.Warning("Dropped %d predictions since last flush", s.dropped)
	}
	s.logger.Info("Flushed %d predictions to archive", savedCount)
	s.buffer = s.buffer[:0]
	s.dropped = 0
	return savedCount
}

// ImagePath resolves an archived filename inside the image directory. Names
// containing path separators are rejected.
func (s *ArchiveService) ImagePath(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || filename == "." || filename == ".." {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	return filepath.Join(s.imagesDir, filename), nil
}

func archiveFilename(item dto.BufferedPrediction) string {
	id := item.Payload.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s_%s%s", item.Timestamp.Format(timestampLayout), id, extensionFor(item.Payload.Blob))
}

func extensionFor(blob acquisition.Blob) string {
	if ext := filepath.Ext(blob.Name); ext != "" {
		return ext
	}
	if exts, err := mime.ExtensionsByType(blob.MIMEType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

func toRecord(item dto.BufferedPrediction, filename, fullpath string) *model.Prediction {
	result := item.Result
	record := &model.Prediction{
		ImageID:        item.Payload.ID,
		Filename:       filename,
		SourceName:     item.Payload.Blob.Name,
		FilePath:       fullpath,
		FileSize:       int64(item.Payload.Size()),
		MIMEType:       item.Payload.Blob.MIMEType,
		PredictedClass: result.PredictedClass,
		Confidence:     result.Confidence,
		Tier:           string(presenter.Classify(result.Confidence)),
		ProcessingTime: result.ProcessingTime,
		Timestamp:      item.Timestamp,
	}

	if d := result.PartDetails; d != nil {
		record.PartNumber = string(d.PartNumber)
		record.Nomenclature = d.Nomenclature
		record.OEM = d.OEM
		if d.Category != nil {
			record.Category = *d.Category
		}
	}
	return record
}
