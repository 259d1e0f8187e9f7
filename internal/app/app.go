package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/vk/paramcascade/internal/bridgesession"
	"github.com/vk/paramcascade/internal/cascade"
	"github.com/vk/paramcascade/internal/config"
	"github.com/vk/paramcascade/internal/ctxlog"
	"github.com/vk/paramcascade/internal/journal"
	"github.com/vk/paramcascade/internal/memsession"
	"github.com/vk/paramcascade/internal/metrics"
	"github.com/vk/paramcascade/internal/session"
)

// Loader reads product families and simulated worlds.
type Loader interface {
	config.Loader
	config.FixtureLoader
}

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW         io.Writer
	logger       *slog.Logger
	logFile      *os.File
	config       *Config
	family       *config.Family
	orchestrator *cascade.Orchestrator
	journal      *journal.Journal
	world        *memsession.World
	httpServer   *http.Server
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger. Configuration that
// cannot be loaded is a fatal startup error and panics.
func NewApp(outW io.Writer, cfg *Config, loader Loader) *App {
	a := &App{outW: outW, config: cfg}

	logW := outW
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			panic(fmt.Errorf("failed to create log directory: %w", err))
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			panic(fmt.Errorf("failed to open log file: %w", err))
		}
		a.logFile = f
		logW = io.MultiWriter(outW, f)
	}
	a.logger = newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	ctx := ctxlog.WithLogger(context.Background(), a.logger)
	a.logger.Debug("Logger configured successfully.")

	if cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			panic(fmt.Errorf("failed to open run journal: %w", err))
		}
		a.journal = j
		a.logger.Debug("Run journal opened.", "path", cfg.JournalPath)
	}
	if cfg.Command == CommandHistory {
		return a
	}

	var familyPaths []string
	if cfg.FamilyPath != "" {
		familyPaths = append(familyPaths, cfg.FamilyPath)
	}
	family, err := loader.Load(ctx, familyPaths...)
	if err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	a.family = family
	a.logger.Debug("Product family loaded.", "family", family.Name)

	factory, err := a.newFactory(ctx, loader)
	if err != nil {
		panic(err)
	}

	o, err := cascade.New(family, metrics.Instrument(factory))
	if err != nil {
		panic(fmt.Errorf("failed to build orchestrator: %w", err))
	}
	o.SetPacer(&session.Pacer{Delays: o.Pacer.Delays, Scale: cfg.PacerScale})
	if cfg.Attempts > 0 {
		o.Attempts = cfg.Attempts
	}
	o.Journal = a.journal
	o.Metrics = metrics.NewRecorder()
	a.orchestrator = o
	a.logger.Debug("Orchestrator ready.", "cycles", o.Cycles, "attempts", o.Attempts, "pacer_scale", cfg.PacerScale)
	return a
}

// newFactory picks the CAD backend.
func (a *App) newFactory(ctx context.Context, loader Loader) (session.Factory, error) {
	cfg := a.config
	if cfg.FixturePath != "" {
		fx, err := loader.LoadFixture(ctx, cfg.FixturePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load fixture: %w", err)
		}
		w, err := memsession.NewWorld(cfg.ProjectRoot, fx, memsession.Options{})
		if err != nil {
			return nil, fmt.Errorf("failed to build simulated CAD world: %w", err)
		}
		a.world = w
		a.logger.Info("Using simulated CAD application.", "fixture", cfg.FixturePath, "documents", len(fx.Documents))
		return w, nil
	}

	f, err := bridgesession.NewFactory(bridgesession.Config{
		URL:                cfg.BridgeURL,
		Namespace:          cfg.BridgeNamespace,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		CallTimeout:        cfg.CallTimeout,
	})
	if err != nil {
		return nil, err
	}
	a.logger.Info("Using CAD bridge.", "url", cfg.BridgeURL)
	return f, nil
}

// Orchestrator returns the application's orchestrator. This is primarily for testing.
func (a *App) Orchestrator() *cascade.Orchestrator {
	return a.orchestrator
}

// World returns the simulated CAD world, or nil when a bridge is used.
func (a *App) World() *memsession.World {
	return a.world
}

// Close releases the journal and the log file.
func (a *App) Close() error {
	var firstErr error
	if err := a.journal.Close(); err != nil {
		firstErr = err
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
