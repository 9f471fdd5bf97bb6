package app

import (
	"fmt"
	"sync"

	"github.com/pkg/browser"
	"go.uber.org/zap"

	"github.com/ibeckermayer/xpilot/internal/auth"
	xbrowser "github.com/ibeckermayer/xpilot/internal/browser"
	"github.com/ibeckermayer/xpilot/internal/config"
	"github.com/ibeckermayer/xpilot/internal/engine"
	"github.com/ibeckermayer/xpilot/internal/humanize"
	"github.com/ibeckermayer/xpilot/internal/media"
	"github.com/ibeckermayer/xpilot/internal/scheduler"
	"github.com/ibeckermayer/xpilot/internal/store"
)

// App holds the application state.
type App struct {
	mu         sync.RWMutex
	configPath string
	logger     *zap.Logger

	// Immutable after creation; paths are read once at startup.
	store    *store.Store
	sessions *auth.FileStore

	// Mutable fields - use getSnapshot() for concurrent access.
	config *config.Config
	engine *engine.Engine
}

// snapshot holds fields that may be replaced by ReloadConfig.
// Use getSnapshot() to obtain a consistent, point-in-time copy.
type snapshot struct {
	config *config.Config
	engine *engine.Engine
}

// getSnapshot returns a snapshot of mutable fields under read lock.
func (a *App) getSnapshot() snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return snapshot{
		config: a.config,
		engine: a.engine,
	}
}

// New wires the account registry, the session store and the engine.
// configPath is where ReloadConfig reads from; empty means the default
// location.
func New(cfg *config.Config, configPath string, logger *zap.Logger) (*App, error) {
	st, err := store.New(cfg.Paths.Registry)
	if err != nil {
		return nil, fmt.Errorf("failed to open account registry: %w", err)
	}

	a := &App{
		configPath: configPath,
		logger:     logger,
		store:      st,
		sessions:   auth.NewFileStore(cfg.Paths.Sessions, logger).WithRegistry(st),
		config:     cfg,
	}
	a.engine = a.buildEngine(cfg)
	return a, nil
}

func (a *App) buildEngine(cfg *config.Config) *engine.Engine {
	return engine.New(engine.Deps{
		Sessions:  a.sessions,
		Opener:    xbrowser.NewLauncher(cfg.Browser, a.logger),
		Capturer:  xbrowser.NewCapturer(cfg.Paths.Diagnostics, a.logger),
		Humanizer: humanize.New(cfg.Humanize),
		Media:     media.NewResolver(cfg.Paths.Media),
		History:   a.store,
		Timeouts:  cfg.Timeouts,
		Logger:    a.logger,
	})
}

// Engine returns the current engine.
func (a *App) Engine() *engine.Engine { return a.getSnapshot().engine }

// Config returns the current configuration.
func (a *App) Config() *config.Config { return a.getSnapshot().config }

// Store returns the account registry and post history.
func (a *App) Store() *store.Store { return a.store }

// Sessions returns the session store.
func (a *App) Sessions() *auth.FileStore { return a.sessions }

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Sweeper builds a session sweeper using the current warning window.
func (a *App) Sweeper() *scheduler.Sweeper {
	return scheduler.NewSweeper(a.sessions, a.Config().Schedule.WarnWithin, a.logger)
}

// ReloadConfig reloads the configuration from disk and rebuilds the engine.
// Actions already running keep the engine they started with.
func (a *App) ReloadConfig() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.config = cfg
	a.engine = a.buildEngine(cfg)
	a.mu.Unlock()

	a.logger.Info("configuration reloaded")
	return nil
}

// PathFor maps an "open" target to a file or directory.
func (a *App) PathFor(target string) (string, error) {
	cfg := a.Config()
	switch target {
	case "config":
		if a.configPath != "" {
			return a.configPath, nil
		}
		return config.ConfigPath()
	case "diagnostics":
		return cfg.Paths.Diagnostics, nil
	case "sessions":
		return cfg.Paths.Sessions, nil
	case "media":
		return cfg.Paths.Media, nil
	default:
		return "", fmt.Errorf("unknown target %q (want config, diagnostics, sessions or media)", target)
	}
}

// Open shows target in the platform file browser or editor.
func (a *App) Open(target string) error {
	path, err := a.PathFor(target)
	if err != nil {
		return err
	}
	a.logger.Info("opening", zap.String("path", path))
	return browser.OpenFile(path)
}

// Close releases the account registry.
func (a *App) Close() error {
	return a.store.Close()
}
