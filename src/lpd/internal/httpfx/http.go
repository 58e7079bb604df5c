// Package httpfx runs the daemon's HTTP inbound.
package httpfx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/uber/live-preview/src/lpd/internal/serverinfofile"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	_configKeyAddress  = "http.address"
	_outputKey         = "preview-address"
	_readHeaderTimeout = 10 * time.Second
)

// Module is an fx module serving HTTP requests.
var Module = fx.Provide(New)

// HTTPModule is the HTTP server shared by the inbound handlers.
type HTTPModule interface {
	// Router is where handlers register their routes, before the application starts.
	Router() *mux.Router
	// Addr is the address being listened on. It is empty until the application has started.
	Addr() string
}

type module struct {
	Address string `json:"address"`

	router         *mux.Router
	server         *http.Server
	logger         *zap.SugaredLogger
	serverInfoFile serverinfofile.ServerInfoFile

	mu   sync.Mutex
	addr string
	done chan struct{}
}

// Params define values to be used by the HTTP module.
type Params struct {
	fx.In

	Config         config.Provider
	Lifecycle      fx.Lifecycle
	Logger         *zap.SugaredLogger
	ServerInfoFile serverinfofile.ServerInfoFile
}

// New creates the HTTP server. It listens when the application starts and shuts down when it stops.
func New(p Params) (HTTPModule, error) {
	if p.Lifecycle == nil || p.Config == nil {
		return nil, errors.New("required parameters are missing")
	}

	m := &module{
		router:         mux.NewRouter(),
		logger:         p.Logger.With("plugin", "http"),
		serverInfoFile: p.ServerInfoFile,
	}
	if err := m.processConfig(p.Config); err != nil {
		return nil, err
	}
	m.server = &http.Server{
		Handler:           m.router,
		ReadHeaderTimeout: _readHeaderTimeout,
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: m.OnStart,
		OnStop:  m.OnStop,
	})
	return m, nil
}

func (m *module) Router() *mux.Router {
	return m.router
}

func (m *module) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addr
}

// OnStart listens on the configured address and serves in the background.
func (m *module) OnStart(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", m.Address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", m.Address, err)
	}

	addr := ln.Addr().String()
	if err := m.serverInfoFile.UpdateField(_outputKey, addr); err != nil {
		ln.Close()
		return fmt.Errorf("outputting %q to info file: %w", _outputKey, err)
	}

	m.mu.Lock()
	m.addr = addr
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	go func() {
		defer close(done)
		if err := m.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Errorw("http inbound stopped", zap.Error(err))
		}
	}()
	m.logger.Infow("started HTTP inbound", zap.String("address", addr))
	return nil
}

// OnStop stops accepting requests and waits for in-flight ones to finish.
func (m *module) OnStop(ctx context.Context) error {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done == nil {
		return nil
	}

	err := m.server.Shutdown(ctx)
	<-done
	return err
}

func (m *module) processConfig(cfg config.Provider) error {
	val := cfg.Get(_configKeyAddress)
	if err := val.Populate(&m.Address); err != nil {
		return fmt.Errorf("getting config field %q: %w", _configKeyAddress, err)
	}

	if m.Address == "" {
		return fmt.Errorf("missing field %q in config", _configKeyAddress)
	}

	return nil
}
