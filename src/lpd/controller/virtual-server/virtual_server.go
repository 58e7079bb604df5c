package virtualserver

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"time"

	"github.com/uber-go/tally"
	"github.com/uber/live-preview/src/lpd/entity"
	"github.com/uber/live-preview/src/lpd/internal/clock"
	lpderrors "github.com/uber/live-preview/src/lpd/internal/errors"
	"github.com/uber/live-preview/src/lpd/internal/formatter"
	"github.com/uber/live-preview/src/lpd/internal/fs"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	_nameKey   = "virtual-server"
	_configKey = "virtualServer"

	_defaultRoute          = "/preview"
	_defaultDirectoryIndex = "index.html"
	_defaultRetryCount     = 5
	_defaultBackoff        = 10 * time.Millisecond
)

// Controller answers preview resource requests from the project store.
type Controller interface {
	// Serve resolves a project path to a response. It never fails: exhausted retries become a 404 or 500 page.
	Serve(ctx context.Context, urlPath string, download bool) entity.Response
	// Route is the URL prefix the preview is mounted under.
	Route() string
}

// Overlay supplies the body of files that are open for live editing, in place of the stored content.
type Overlay interface {
	Render(ctx context.Context, urlPath string) ([]byte, bool)
}

// Config is the virtualServer block of the config files.
type Config struct {
	Route          string        `yaml:"route"`
	DirectoryIndex string        `yaml:"directoryIndex"`
	DisableIndexes bool          `yaml:"disableIndexes"`
	RetryCount     int           `yaml:"retryCount"`
	Backoff        time.Duration `yaml:"backoff"`
}

// Params are inbound parameters to initialize a new virtual server.
type Params struct {
	fx.In

	Config    config.Provider
	Logger    *zap.SugaredLogger
	Stats     tally.Scope
	FS        fs.ProjectFS
	Clock     clock.Clock
	Formatter formatter.Formatter
	Overlay   Overlay `optional:"true"`
}

type controller struct {
	cfg       Config
	logger    *zap.SugaredLogger
	stats     tally.Scope
	fs        fs.ProjectFS
	clock     clock.Clock
	formatter formatter.Formatter
	overlay   Overlay
}

// New creates a virtual server over the project store.
func New(p Params) (Controller, error) {
	cfg := Config{
		Route:          _defaultRoute,
		DirectoryIndex: _defaultDirectoryIndex,
		RetryCount:     _defaultRetryCount,
		Backoff:        _defaultBackoff,
	}
	if err := p.Config.Get(_configKey).Populate(&cfg); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKey, err)
	}
	if cfg.RetryCount < 1 {
		return nil, fmt.Errorf("%s.retryCount must be at least 1, got %d", _configKey, cfg.RetryCount)
	}
	cfg.Route = path.Clean("/" + cfg.Route)

	return &controller{
		cfg:       cfg,
		logger:    p.Logger.With("plugin", _nameKey),
		stats:     p.Stats.SubScope("virtual_server"),
		fs:        p.FS,
		clock:     p.Clock,
		formatter: p.Formatter,
		overlay:   p.Overlay,
	}, nil
}

func (c *controller) Route() string {
	return c.cfg.Route
}

func (c *controller) Serve(ctx context.Context, urlPath string, download bool) entity.Response {
	urlPath = path.Clean("/" + urlPath)
	resp := c.serve(ctx, urlPath, download)

	c.stats.Tagged(map[string]string{"status": statusClass(resp.Status)}).Counter("requests").Inc(1)
	c.logger.Debugw("served", zap.String("path", urlPath), zap.Int("status", resp.Status), zap.Bool("download", download))
	return resp
}

func (c *controller) serve(ctx context.Context, urlPath string, download bool) entity.Response {
	stat, err := withRetry(ctx, c, "stat", func() (entity.StatResult, error) {
		return c.fs.Stat(urlPath)
	})
	if err != nil {
		return c.errorResponse(urlPath, err)
	}

	if stat.IsDir {
		return c.serveDir(ctx, urlPath, download)
	}
	return c.serveFile(ctx, urlPath, stat, download)
}

// serveDir serves the directory index if there is one, and a listing otherwise.
func (c *controller) serveDir(ctx context.Context, dir string, download bool) entity.Response {
	indexPath := path.Join(dir, c.cfg.DirectoryIndex)
	stat, err := withRetry(ctx, c, "stat", func() (entity.StatResult, error) {
		return c.fs.Stat(indexPath)
	})

	switch {
	case err == nil:
		return c.serveFile(ctx, indexPath, stat, download)
	case !lpderrors.IsNotFound(err):
		return c.errorResponse(dir, err)
	case c.cfg.DisableIndexes:
		return c.formatter.NotFound(dir)
	}

	entries, err := c.fs.ReadDir(dir)
	if err != nil {
		return c.errorResponse(dir, err)
	}
	return c.formatter.DirectoryListing(c.cfg.Route, dir, entries)
}

func (c *controller) serveFile(ctx context.Context, urlPath string, stat entity.StatResult, download bool) entity.Response {
	if c.overlay != nil && !download {
		if body, ok := c.overlay.Render(ctx, urlPath); ok {
			return c.formatter.File(urlPath, body)
		}
	}

	body, err := withRetry(ctx, c, "read", func() ([]byte, error) {
		return c.fs.ReadFile(urlPath)
	})
	if err != nil {
		return c.errorResponse(urlPath, err)
	}

	resp := c.formatter.File(urlPath, body)
	if download && resp.Status == http.StatusOK {
		resp.Headers.Set("Content-Disposition", formatter.ContentDisposition(urlPath, stat))
	}
	return resp
}

func (c *controller) errorResponse(urlPath string, err error) entity.Response {
	if lpderrors.IsNotFound(err) {
		return c.formatter.NotFound(urlPath)
	}
	c.logger.Warnw("serving failed", zap.String("path", urlPath), zap.Error(err))
	return c.formatter.InternalError(urlPath, err)
}

// withRetry runs op up to RetryCount times. After failed attempt i it waits i*Backoff,
// except after the last attempt. The final error is returned when every attempt fails.
func withRetry[T any](ctx context.Context, c *controller, op string, fn func() (T, error)) (T, error) {
	var (
		result T
		err    error
	)
	for attempt := 1; attempt <= c.cfg.RetryCount; attempt++ {
		if result, err = fn(); err == nil {
			return result, nil
		}
		if attempt == c.cfg.RetryCount {
			break
		}

		c.stats.Counter(op + "_retries").Inc(1)
		if waitErr := c.clock.Sleep(ctx, time.Duration(attempt)*c.cfg.Backoff); waitErr != nil {
			return result, waitErr
		}
	}
	return result, err
}

func statusClass(status int) string {
	return fmt.Sprintf("%dxx", status/100)
}
