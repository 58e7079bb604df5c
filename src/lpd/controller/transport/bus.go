package transport

import (
	"context"
	"sync"

	"github.com/uber/live-preview/src/lpd/entity"
	"github.com/uber/live-preview/src/lpd/internal/errors"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Bus is an in-process DuplexChannel. Each subscriber has its own bounded queue drained by a single
// goroutine; a subscriber whose queue is full misses the envelope.
type Bus struct {
	mu         sync.RWMutex
	subs       map[int]*subscription
	next       int
	closed     bool
	bufferSize int
	logger     *zap.SugaredLogger
	wg         sync.WaitGroup
}

type subscription struct {
	queue   chan entity.Envelope
	handler func(entity.Envelope)
}

// BusParams are the dependencies of NewBus.
type BusParams struct {
	fx.In

	Config    config.Provider
	Logger    *zap.SugaredLogger
	Lifecycle fx.Lifecycle
}

// NewBus creates the bus and closes it when the application stops.
func NewBus(p BusParams) (*Bus, error) {
	cfg, err := processConfig(p.Config)
	if err != nil {
		return nil, err
	}
	b := newBus(cfg.BufferSize, p.Logger)
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return b.Close()
		},
	})
	return b, nil
}

func newBus(bufferSize int, logger *zap.SugaredLogger) *Bus {
	return &Bus{
		subs:       make(map[int]*subscription),
		bufferSize: bufferSize,
		logger:     logger.With("plugin", "bus"),
	}
}

// Send implements DuplexChannel.
func (b *Bus) Send(ctx context.Context, env entity.Envelope) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return errors.ErrChannelClosed
	}
	for id, s := range b.subs {
		select {
		case s.queue <- env:
		default:
			b.logger.Warnw("subscriber queue full, dropping envelope",
				zap.Int("subscriber", id), zap.String("type", string(env.Type)), zap.String("messageID", env.MessageID))
		}
	}
	return nil
}

// OnReceive implements DuplexChannel. Subscribing to a closed bus returns a no-op unsubscribe.
func (b *Bus) OnReceive(handler func(entity.Envelope)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := b.next
	b.next++
	s := &subscription{
		queue:   make(chan entity.Envelope, b.bufferSize),
		handler: handler,
	}
	b.subs[id] = s

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for env := range s.queue {
			s.handler(env)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(id) })
	}
}

func (b *Bus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(s.queue)
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close stops delivery and waits for every subscriber to drain its queue.
// It must not be called from a handler.
func (b *Bus) Close() error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		for id, s := range b.subs {
			delete(b.subs, id)
			close(s.queue)
		}
	}
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}
