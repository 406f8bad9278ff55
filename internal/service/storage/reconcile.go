package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"partscope/internal/repository"
)

// ReconcileReport lists disagreements between the image directory and the repository.
type ReconcileReport struct {
	Records        int
	Files          int
	OrphanFiles    []string // on disk, no record
	MissingFiles   []string // recorded, not on disk
	RemovedOrphans int
}

// Reconcile compares imagesDir with the archived records. When prune is set,
// orphan files are deleted.
func Reconcile(imagesDir string, repo repository.PredictionRepository, prune bool) (*ReconcileReport, error) {
	records, err := repo.GetAll(nil)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(records))
	for _, record := range records {
		known[record.Filename] = true
	}

	report := &ReconcileReport{Records: len(records)}

	entries, err := os.ReadDir(imagesDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read images directory: %w", err)
	}

	onDisk := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		report.Files++
		onDisk[entry.Name()] = true

		if known[entry.Name()] {
			continue
		}
		report.OrphanFiles = append(report.OrphanFiles, entry.Name())
		if prune {
			if err := os.Remove(filepath.Join(imagesDir, entry.Name())); err != nil {
				return report, fmt.Errorf("failed to remove %s: %w", entry.Name(), err)
			}
			report.RemovedOrphans++
		}
	}

	for _, record := range records {
		if !onDisk[record.Filename] {
			report.MissingFiles = append(report.MissingFiles, record.Filename)
		}
	}

	return report, nil
}
