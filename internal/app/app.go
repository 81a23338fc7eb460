package app

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"vistacrop/internal/render"
	"vistacrop/internal/service"
	"vistacrop/internal/storage"
)

// Config controls where the app keeps its data.
type Config struct {
	// DataDir overrides the default data directory
	// (~/.local/share/vistacrop).
	DataDir string
	Log     *slog.Logger
}

// App is the main application struct. It owns the stores, services and
// the renderer, and exposes every operation the HTTP layer serves.
type App struct {
	ctx context.Context
	log *slog.Logger

	dataDir string

	db      *storage.DB
	comps   *storage.CompositionStore
	crops   *storage.CropStore
	exports *storage.ExportStore

	renderer *render.Renderer
	events   *eventHub

	compositions *service.CompositionService
	cropLibrary  *service.CropService
	exporter     *service.ExportService
}

// New creates a new App.
func New(cfg Config) *App {
	log := cfg.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	dataDir := cfg.DataDir
	if dataDir == "" {
		homeDir, _ := os.UserHomeDir()
		dataDir = filepath.Join(homeDir, ".local", "share", "vistacrop")
	}
	return &App{log: log, dataDir: dataDir}
}

// Startup opens the database, wires the services and starts the image
// watcher. Must be called before serving requests.
func (a *App) Startup(ctx context.Context) error {
	a.ctx = ctx

	db, err := storage.New(filepath.Join(a.dataDir, "vistacrop.db"), a.dataDir)
	if err != nil {
		return err
	}
	a.db = db
	a.comps = storage.NewCompositionStore(db)
	a.crops = storage.NewCropStore(db, a.log)
	a.exports = storage.NewExportStore(db)

	a.renderer = render.New(a.crops, a.log)
	a.events = newEventHub(a.log)

	a.compositions = service.NewCompositionService(a.comps, a.events, a.log)
	a.cropLibrary = service.NewCropService(a.crops, a.events, a.renderer.InvalidateOriginal)
	a.exporter = service.NewExportService(a.comps, a.exports, a.renderer, a.events, a.log)

	// Image files replaced on disk invalidate the renderer's pixel cache.
	if err := a.crops.Watch(func(id string) {
		a.renderer.InvalidateOriginal(id)
		a.events.Emit(ctx, "images:changed", id)
	}); err != nil {
		a.log.Warn("image watcher unavailable", "error", err)
	}

	a.log.Info("started", "dataDir", a.dataDir)
	return nil
}

// Shutdown flushes unsaved work and waits for in-flight exports.
func (a *App) Shutdown(ctx context.Context) {
	if a.compositions != nil {
		a.compositions.Flush()
	}
	if a.exporter != nil {
		a.exporter.WaitAll(ctx)
	}
	if a.crops != nil {
		a.crops.Close()
	}
	if a.events != nil {
		a.events.CloseAll()
	}
	if a.db != nil {
		a.db.Close()
	}
}
