package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"partscope/internal/config"
	"partscope/internal/repository/sqlite"
	"partscope/internal/service/storage"
)

// migrate creates or upgrades the history database and checks the image
// directory against it.
func main() {
	cfg := config.Load()
	imagesDir := flag.String("images", cfg.ImageDirectory, "Directory containing archived images")
	dbPath := flag.String("db", cfg.DatabasePath, "Database path")
	prune := flag.Bool("prune", false, "Delete image files that have no database record")
	flag.Parse()

	fmt.Printf("Checking archive %s against database %s\n", *imagesDir, *dbPath)

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	repo := sqlite.NewPredictionRepository(db)
	report, err := storage.Reconcile(*imagesDir, repo, *prune)
	if err != nil {
		log.Fatalf("Failed to reconcile archive: %v", err)
	}

	fmt.Printf("Records: %d, files: %d\n", report.Records, report.Files)
	for _, name := range report.OrphanFiles {
		fmt.Printf("⚠️  No record for %s\n", name)
	}
	for _, name := range report.MissingFiles {
		fmt.Printf("⚠️  Missing file for record %s\n", name)
	}
	if *prune {
		fmt.Printf("Removed %d orphan files\n", report.RemovedOrphans)
	}
	fmt.Println("✅ Database schema is up to date")
}
