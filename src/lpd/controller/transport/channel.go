// Package transport connects the host and preview peers over a shared duplex channel.
// The channel has no addressing: every subscriber sees every envelope, and receivers filter by the
// addressing carried in the envelope itself.
package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/uber/live-preview/src/lpd/entity"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	_configKey = "transport"

	// BackendBus delivers envelopes in process.
	BackendBus = "bus"
	// BackendRelay delivers envelopes through a websocket relay.
	BackendRelay = "relay"

	_defaultFlushInterval = time.Second
	_defaultBufferSize    = 256
	_defaultDedupTTL      = time.Minute
)

// Module provides the shared channel and the host endpoint.
var Module = fx.Options(
	fx.Provide(NewBus),
	fx.Provide(NewChannel),
	fx.Provide(NewHost),
)

// DuplexChannel is a broadcast channel shared by the host and all peers.
type DuplexChannel interface {
	// Send publishes an envelope to every subscriber, including the sender's own subscription.
	Send(ctx context.Context, env entity.Envelope) error
	// OnReceive subscribes handler. Envelopes are delivered to a handler one at a time, in publish order.
	OnReceive(handler func(entity.Envelope)) (unsubscribe func())
	Close() error
}

// Config is the transport block of the config files.
type Config struct {
	Backend              string        `yaml:"backend"`
	RelayURL             string        `yaml:"relayURL"`
	MetricsFlushInterval time.Duration `yaml:"metricsFlushInterval"`
	BufferSize           int           `yaml:"bufferSize"`
	DedupTTL             time.Duration `yaml:"dedupTTL"`
}

func processConfig(provider config.Provider) (Config, error) {
	cfg := Config{
		Backend:              BackendBus,
		MetricsFlushInterval: _defaultFlushInterval,
		BufferSize:           _defaultBufferSize,
		DedupTTL:             _defaultDedupTTL,
	}
	if err := provider.Get(_configKey).Populate(&cfg); err != nil {
		return Config{}, fmt.Errorf("getting config field %q: %w", _configKey, err)
	}

	switch cfg.Backend {
	case BackendBus:
	case BackendRelay:
		if cfg.RelayURL == "" {
			return Config{}, fmt.Errorf("missing field %q in config", _configKey+".relayURL")
		}
	default:
		return Config{}, fmt.Errorf("unknown %s.backend %q", _configKey, cfg.Backend)
	}
	if cfg.MetricsFlushInterval <= 0 {
		return Config{}, fmt.Errorf("%s.metricsFlushInterval must be positive", _configKey)
	}
	if cfg.BufferSize < 1 {
		return Config{}, fmt.Errorf("%s.bufferSize must be at least 1", _configKey)
	}
	if cfg.DedupTTL <= 0 {
		return Config{}, fmt.Errorf("%s.dedupTTL must be positive", _configKey)
	}
	return cfg, nil
}

// ChannelParams are the dependencies of NewChannel.
type ChannelParams struct {
	fx.In

	Config    config.Provider
	Logger    *zap.SugaredLogger
	Lifecycle fx.Lifecycle
	Bus       *Bus
}

// NewChannel returns the channel the host talks on: the in-process bus, or a relay connection
// that is dialed when the application starts.
func NewChannel(p ChannelParams) (DuplexChannel, error) {
	cfg, err := processConfig(p.Config)
	if err != nil {
		return nil, err
	}
	if cfg.Backend == BackendBus {
		return p.Bus, nil
	}

	relay := NewRelay(cfg.RelayURL, p.Logger)
	p.Lifecycle.Append(fx.Hook{
		OnStart: relay.Dial,
		OnStop: func(ctx context.Context) error {
			return relay.Close()
		},
	})
	return relay, nil
}
