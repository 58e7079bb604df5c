// Package watcher reloads the preview when project files change on disk.
package watcher

import (
	"context"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/uber-go/tally"
	liveprotocol "github.com/uber/live-preview/src/lpd/controller/live-protocol"
	"github.com/uber/live-preview/src/lpd/internal/fs"
	"github.com/uber/live-preview/src/lpd/repository/document"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	_nameKey   = "watcher"
	_configKey = "watcher"

	_defaultDebounce = 100 * time.Millisecond
)

// Controller watches the project store for changes.
type Controller interface {
	// Watching reports whether changes on disk are being followed.
	Watching() bool
}

// Config is the watcher block of the config files.
type Config struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Params are inbound parameters to initialize a new watcher.
type Params struct {
	fx.In

	Config    config.Provider
	Logger    *zap.SugaredLogger
	Stats     tally.Scope
	Lifecycle fx.Lifecycle
	FS        fs.ProjectFS
	Documents document.Repository
	Protocol  liveprotocol.Controller
}

type controller struct {
	cfg       Config
	root      string
	logger    *zap.SugaredLogger
	stats     tally.Scope
	documents document.Repository
	protocol  liveprotocol.Controller
	watcher   *fsnotify.Watcher
	closer    chan struct{}
	done      chan struct{}

	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer
}

// New creates the project watcher. Nothing is watched when the watcher is disabled or the project is held in memory.
func New(p Params) (Controller, error) {
	cfg := Config{Enabled: true, Debounce: _defaultDebounce}
	if err := p.Config.Get(_configKey).Populate(&cfg); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKey, err)
	}
	if cfg.Debounce < 0 {
		return nil, fmt.Errorf("%s.debounce must not be negative", _configKey)
	}

	c := &controller{
		cfg:            cfg,
		root:           p.FS.Root(),
		logger:         p.Logger.With("plugin", _nameKey),
		stats:          p.Stats.SubScope("watcher"),
		documents:      p.Documents,
		protocol:       p.Protocol,
		debounceTimers: make(map[string]*time.Timer),
	}
	if !cfg.Enabled || c.root == "" {
		c.logger.Infow("not watching project", zap.Bool("enabled", cfg.Enabled), zap.String("root", c.root))
		return c, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fs watcher for project: %w", err)
	}
	c.watcher = watcher
	c.closer = make(chan struct{})
	c.done = make(chan struct{})

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := c.addTree(c.root); err != nil {
				return err
			}
			go c.handleChanges()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(c.closer)
			<-c.done
			return nil
		},
	})
	return c, nil
}

func (c *controller) Watching() bool {
	return c.watcher != nil
}

// addTree watches dir and every directory below it, skipping hidden ones.
func (c *controller) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != c.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := c.watcher.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		return nil
	})
}

func (c *controller) handleChanges() {
	defer close(c.done)
	for {
		select {
		case event := <-c.watcher.Events:
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := c.addTree(event.Name); err != nil {
						c.logger.Warnf("Failed to watch new directory: %v", err)
					}
				}
			}
			c.handleDebounce(event)

		case err := <-c.watcher.Errors:
			c.logger.Warnf("Failure in project watcher: %v", err)

		case <-c.closer:
			c.debounceMu.Lock()
			for _, timer := range c.debounceTimers {
				timer.Stop()
			}
			c.debounceTimers = make(map[string]*time.Timer)
			c.debounceMu.Unlock()

			if err := c.watcher.Close(); err != nil {
				c.logger.Warnf("Failed to close project watcher: %v", err)
			}
			return
		}
	}
}

func (c *controller) handleDebounce(event fsnotify.Event) {
	c.debounceMu.Lock()
	defer c.debounceMu.Unlock()

	if timer, exists := c.debounceTimers[event.Name]; exists {
		timer.Stop()
	}
	c.debounceTimers[event.Name] = time.AfterFunc(c.cfg.Debounce, func() {
		c.debounceMu.Lock()
		delete(c.debounceTimers, event.Name)
		c.debounceMu.Unlock()

		c.changed(context.Background(), event.Name)
	})
}

// changed refreshes the document open for a changed file and reloads every preview.
func (c *controller) changed(ctx context.Context, name string) {
	c.stats.Counter("changes").Inc(1)

	rel, err := filepath.Rel(c.root, name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	urlPath := "/" + filepath.ToSlash(rel)

	refreshed, err := c.documents.Refresh(ctx, urlPath)
	if err != nil {
		c.logger.Warnw("refreshing document failed", zap.String("path", urlPath), zap.Error(err))
	}
	c.logger.Debugw("project file changed", zap.String("path", urlPath), zap.Bool("refreshed", refreshed))

	if err := c.protocol.Reload(ctx, nil); err != nil {
		c.logger.Warnw("reload after change failed", zap.Error(err))
	}
}
