package handler

import (
	"net/http"
	"os"
	"time"

	"partscope/internal/dto"
	"partscope/internal/logger"
	"partscope/internal/repository"
	"partscope/internal/service/storage"
)

const defaultHistoryLimit = 24

// HistoryHandler lists archived predictions, newest first.
func HistoryHandler(repo repository.PredictionRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}

		q := r.URL.Query()
		limit := atoiDefault(q.Get("limit"), defaultHistoryLimit)
		page := atoiDefault(q.Get("page"), 1)

		filter := &dto.HistoryFilter{
			Class:      q.Get("class"),
			Tier:       q.Get("tier"),
			DateAfter:  parseDate(q.Get("dateAfter")),
			DateBefore: parseDate(q.Get("dateBefore")),
			Limit:      limit,
			Offset:     (page - 1) * limit,
		}
		// dateBefore is inclusive of the whole day
		if !filter.DateBefore.IsZero() {
			filter.DateBefore = filter.DateBefore.Add(24*time.Hour - time.Nanosecond)
		}

		predictions, err := repo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying predictions from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		total, err := repo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting predictions: %v", err)
			total = len(predictions)
		}

		writeJSON(w, logger, http.StatusOK, dto.HistoryPage{
			Predictions: predictions,
			Total:       total,
			Limit:       filter.Limit,
			Offset:      filter.Offset,
		})
	}
}

// HistoryStatsHandler returns archive totals.
func HistoryStatsHandler(repo repository.PredictionRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		stats, err := repo.GetStats()
		if err != nil {
			logger.Error("Error reading archive stats: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, logger, http.StatusOK, stats)
	}
}

// HistoryImageHandler serves an archived image named by the "name" query parameter.
func HistoryImageHandler(archive *storage.ArchiveService, repo repository.PredictionRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}

		name := r.URL.Query().Get("name")
		path, err := archive.ImagePath(name)
		if err != nil {
			http.Error(w, "Invalid image name", http.StatusBadRequest)
			return
		}

		record, err := repo.GetByFilename(name)
		if err != nil {
			logger.Error("Error looking up archived image %s: %v", name, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if record == nil {
			http.NotFound(w, r)
			return
		}

		if record.MIMEType != "" {
			w.Header().Set("Content-Type", record.MIMEType)
		}
		http.ServeFile(w, r, path)
	}
}

// ClearHistoryHandler deletes every archived image and record.
func ClearHistoryHandler(archive *storage.ArchiveService, repo repository.PredictionRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}

		records, err := repo.GetAll(nil)
		if err != nil {
			logger.Error("Error listing archive: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		for _, record := range records {
			path, err := archive.ImagePath(record.Filename)
			if err != nil {
				continue
			}
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				logger.Error("Error deleting file %s: %v", record.Filename, err)
			}
		}

		if err := repo.DeleteAll(); err != nil {
			logger.Error("Error clearing database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.Info("Cleared %d archived predictions", len(records))
		w.WriteHeader(http.StatusNoContent)
	}
}
