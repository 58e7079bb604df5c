package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/uber-go/tally"
	"github.com/uber/live-preview/src/lpd/entity"
	"github.com/uber/live-preview/src/lpd/factory"
	"github.com/uber/live-preview/src/lpd/internal/clock"
	"github.com/uber/live-preview/src/lpd/internal/errors"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	_hostNameKey   = "transport-host"
	_dedupCapacity = 10000
)

// EventHandler receives the peer events seen by the host.
type EventHandler interface {
	OnConnect(ctx context.Context, clientID, url string)
	OnMessage(ctx context.Context, clientID, message string)
	OnClose(ctx context.Context, clientID string)
}

// Host is the editor side endpoint of the channel.
type Host interface {
	// ID identifies the host's own envelopes.
	ID() string
	// Start subscribes to the channel and delivers peer events to handler.
	Start(ctx context.Context, handler EventHandler) error
	// Send delivers message to the listed peers, or to every peer when clientIDs is empty.
	Send(ctx context.Context, clientIDs []string, message string) error
	// Close tells every peer the host is going away. It is best effort and safe to call more than once.
	Close(ctx context.Context) error
}

// HostParams are the dependencies of NewHost.
type HostParams struct {
	fx.In

	Config  config.Provider
	Logger  *zap.SugaredLogger
	Stats   tally.Scope
	Clock   clock.Clock
	Channel DuplexChannel
}

type host struct {
	id            string
	channel       DuplexChannel
	logger        *zap.SugaredLogger
	stats         tally.Scope
	clock         clock.Clock
	flushInterval time.Duration
	metrics       accumulator
	dedup         *ttlcache.Cache[string, struct{}]

	mu          sync.Mutex
	handler     EventHandler
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	started     bool
	closed      bool
	stop        chan struct{}
	wg          sync.WaitGroup
}

// NewHost creates the host endpoint on the channel.
func NewHost(p HostParams) (Host, error) {
	cfg, err := processConfig(p.Config)
	if err != nil {
		return nil, err
	}
	return newHost(cfg, p.Channel, p.Clock, p.Logger, p.Stats), nil
}

func newHost(cfg Config, channel DuplexChannel, clk clock.Clock, logger *zap.SugaredLogger, stats tally.Scope) *host {
	id := factory.ClientID()
	return &host{
		id:            id,
		channel:       channel,
		logger:        logger.With("plugin", _hostNameKey, "hostID", id),
		stats:         stats.SubScope("transport"),
		clock:         clk,
		flushInterval: cfg.MetricsFlushInterval,
		dedup: ttlcache.New[string, struct{}](
			ttlcache.WithTTL[string, struct{}](cfg.DedupTTL),
			ttlcache.WithCapacity[string, struct{}](_dedupCapacity),
		),
		stop: make(chan struct{}),
	}
}

func (h *host) ID() string {
	return h.id
}

func (h *host) Start(ctx context.Context, handler EventHandler) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return errors.ErrChannelClosed
	}
	if h.started {
		return fmt.Errorf("host %s already started", h.id)
	}
	h.started = true
	h.handler = handler
	h.ctx, h.cancel = context.WithCancel(context.Background())

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		h.dedup.Start()
	}()
	go func() {
		defer h.wg.Done()
		h.flushLoop()
	}()

	h.unsubscribe = h.channel.OnReceive(h.receive)
	h.logger.Infow("host started")
	return nil
}

func (h *host) flushLoop() {
	ticker := h.clock.NewTicker(h.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C():
			h.metrics.flush(h.stats)
		case <-h.stop:
			return
		}
	}
}

func (h *host) receive(env entity.Envelope) {
	if env.Origin == h.id {
		return
	}

	h.mu.Lock()
	handler, ctx, closed := h.handler, h.ctx, h.closed
	h.mu.Unlock()
	if closed {
		return
	}

	switch env.Type {
	case entity.EnvelopeConnect:
		h.metrics.received(env.Size())
		handler.OnConnect(ctx, env.ClientID, env.URL)
	case entity.EnvelopeToHost:
		if env.MessageID != "" {
			if h.dedup.Has(env.MessageID) {
				h.logger.Debugw("dropping duplicate message", zap.String("messageID", env.MessageID))
				return
			}
			h.dedup.Set(env.MessageID, struct{}{}, ttlcache.DefaultTTL)
		}
		h.metrics.received(env.Size())
		handler.OnMessage(ctx, env.ClientID, env.Message)
	case entity.EnvelopeClose:
		h.metrics.received(env.Size())
		handler.OnClose(ctx, env.ClientID)
	}
}

func (h *host) Send(ctx context.Context, clientIDs []string, message string) error {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return errors.ErrChannelClosed
	}

	env := entity.Envelope{
		Type:      entity.EnvelopeToPeer,
		ClientIDs: append([]string(nil), clientIDs...),
		Message:   message,
		MessageID: factory.MessageID(),
		Origin:    h.id,
	}
	if err := h.channel.Send(ctx, env); err != nil {
		return fmt.Errorf("sending to peers: %w", err)
	}
	h.metrics.sent(env.Size())
	return nil
}

func (h *host) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	started, unsubscribe, cancel := h.started, h.unsubscribe, h.cancel
	h.mu.Unlock()

	if err := h.channel.Send(ctx, entity.Envelope{Type: entity.EnvelopeShutdown, MessageID: factory.MessageID(), Origin: h.id}); err != nil {
		h.logger.Warnw("shutdown broadcast failed", zap.Error(err))
	}
	if !started {
		return nil
	}

	unsubscribe()
	cancel()
	close(h.stop)
	h.dedup.Stop()
	h.wg.Wait()
	h.metrics.flush(h.stats)
	h.logger.Infow("host closed")
	return nil
}
