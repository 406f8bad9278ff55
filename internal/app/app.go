package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"partscope/internal/config"
	"partscope/internal/inference"
	"partscope/internal/logger"
	"partscope/internal/repository"
	"partscope/internal/repository/sqlite"
	"partscope/internal/route"
	"partscope/internal/runner"
	"partscope/internal/runner/onnx"
	"partscope/internal/runner/opencv"
	"partscope/internal/service/session"
	"partscope/internal/service/storage"
	"partscope/internal/service/websocket"
)

const (
	pruneInterval   = 10 * time.Minute
	shutdownTimeout = 10 * time.Second
)

type App struct {
	config  *config.Config
	logger  *logger.Logger
	client  *inference.Client
	gate    *session.Gate
	store   *session.Store
	hub     *websocket.HubService
	archive *storage.ArchiveService
	db      *sqlite.DB
	repo    repository.PredictionRepository
}

// APIBaseURL picks the inference service root from the configuration.
func APIBaseURL(cfg *config.Config) string {
	if cfg.APIURL == "" && cfg.APIHostSubstitution {
		return inference.HostSubstitutionURL(cfg.PageURL().Hostname())
	}
	return inference.ResolveBaseURL(cfg.APIURL, cfg.PageURL())
}

// NewApp wires every service. The health probe is not started until Run.
func NewApp(cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{
		config: cfg,
		logger: log,
		client: inference.NewClient(APIBaseURL(cfg), nil, log),
		gate:   session.NewGate(),
		hub:    websocket.NewHubService(log),
	}

	var recorder session.Recorder
	if cfg.HistoryEnabled {
		if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		db, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.repo = sqlite.NewPredictionRepository(db)
		a.archive = storage.NewArchiveService(cfg, log, a.repo)
		recorder = a.archive
	}

	a.store = session.NewStore(session.Dependencies{
		Gate:      a.gate,
		Predictor: a.client,
		Recorder:  recorder,
		Logger:    log,
		Notify:    a.publish,
	})
	a.gate.OnChange(func(inference.Readiness) { a.store.NotifyAll() })
	a.store.OnRemove(a.hub.Forget)

	if cfg.AdminPassword == "" {
		log.Warning("ADMIN_PASSWORD is not set; history and log endpoints are locked")
	}

	return a, nil
}

// publish pushes a session snapshot to that session's viewers.
func (a *App) publish(state session.State) {
	data, err := json.Marshal(state)
	if err != nil {
		a.logger.Error("Failed to encode state for session %s: %v", state.SessionID, err)
		return
	}
	a.hub.Broadcast(state.SessionID, state.Version, data)
}

func (a *App) Handler() http.Handler {
	services := route.Services{
		Logger:        a.logger,
		Store:         a.store,
		Hub:           a.hub,
		AdminPassword: a.config.AdminPassword,
	}
	if a.archive != nil {
		services.Archive = a.archive
		services.Repo = a.repo
	}
	return route.SetupRoutes(services)
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	go a.hub.Run()
	defer a.hub.Stop()

	go a.gate.Probe(ctx, a.client)
	go a.store.RunPruner(ctx, pruneInterval, a.config.SessionIdleTimeout())

	archiveDone := make(chan struct{})
	if a.archive != nil {
		go func() {
			a.archive.Run(ctx)
			close(archiveDone)
		}()
	} else {
		close(archiveDone)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Port),
		Handler: a.Handler(),
	}

	a.logger.Info("Spare part recognition server listening on %s", a.config.PageURL())
	a.logger.Info("Inference API: %s", a.client.BaseURL())
	if a.archive != nil {
		a.logger.Info("History archive: %s (images in %s)", a.config.DatabasePath, a.config.ImageDirectory)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warning("Server shutdown: %v", err)
	}
	<-archiveDone
	return nil
}

func (a *App) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// NewRunner builds the on-device runner with the ONNX and OpenCV backends
// registered. The model in cfg.ModelPath is loaded when set.
func NewRunner(cfg *config.Config, log *logger.Logger) (*runner.Runner, error) {
	labels := runner.DefaultLabels()
	if cfg.LabelsPath != "" {
		loaded, err := runner.LoadLabels(cfg.LabelsPath)
		if err != nil {
			return nil, err
		}
		labels = loaded
	}

	r := runner.New(labels, log)
	r.Register(".onnx", onnx.Loader(cfg.ONNXRuntimeLibrary))
	r.Register(".pb", opencv.Loader(""))

	if cfg.ModelPath != "" {
		if err := r.LoadModel(cfg.ModelPath); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// CloseRunner releases the runner's model and then the shared ONNX
// environment. r may be nil.
func CloseRunner(r *runner.Runner, log *logger.Logger) {
	if r != nil {
		if err := r.Close(); err != nil {
			log.Error("Failed to close on-device model: %v", err)
		}
	}
	if err := onnx.Shutdown(); err != nil {
		log.Error("Failed to shut down ONNX environment: %v", err)
	}
}
