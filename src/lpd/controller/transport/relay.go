package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/uber/live-preview/src/lpd/entity"
	"github.com/uber/live-preview/src/lpd/internal/errors"
	"github.com/uber/live-preview/src/lpd/mapper"
	"go.uber.org/zap"
)

const _writeWait = 10 * time.Second

// Relay is a DuplexChannel backed by a websocket connection to a relay hub, which rebroadcasts every
// frame to all of its sockets. Envelopes travel as msgpack binary frames.
type Relay struct {
	url    string
	logger *zap.SugaredLogger

	writeMu sync.Mutex
	conn    *websocket.Conn

	mu       sync.Mutex
	handlers map[int]func(entity.Envelope)
	next     int
	closed   bool
	done     chan struct{}
}

// NewRelay creates a relay channel. It carries nothing until Dial succeeds.
func NewRelay(url string, logger *zap.SugaredLogger) *Relay {
	return &Relay{
		url:      url,
		logger:   logger.With("plugin", "relay"),
		handlers: make(map[int]func(entity.Envelope)),
	}
}

// Dial connects to the relay hub and starts reading.
func (r *Relay) Dial(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return fmt.Errorf("dialing relay %s: %w", r.url, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.conn != nil {
		conn.Close()
		return fmt.Errorf("relay %s already dialed or closed", r.url)
	}
	r.conn = conn
	r.done = make(chan struct{})
	go r.readLoop(conn, r.done)

	r.logger.Infow("connected to relay", zap.String("url", r.url))
	return nil
}

func (r *Relay) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				r.logger.Warnw("relay read failed", zap.Error(err))
			}
			return
		}
		if messageType != websocket.BinaryMessage {
			r.logger.Warnw("dropping non-binary relay frame", zap.Int("messageType", messageType))
			continue
		}

		env, err := mapper.DecodeEnvelope(data)
		if err != nil {
			r.logger.Warnw("dropping relay frame", zap.Error(err))
			continue
		}
		r.dispatch(env)
	}
}

func (r *Relay) dispatch(env entity.Envelope) {
	r.mu.Lock()
	handlers := make([]func(entity.Envelope), 0, len(r.handlers))
	for i := 0; i < r.next; i++ {
		if h, ok := r.handlers[i]; ok {
			handlers = append(handlers, h)
		}
	}
	r.mu.Unlock()

	for _, h := range handlers {
		h(env)
	}
}

// Send implements DuplexChannel.
func (r *Relay) Send(ctx context.Context, env entity.Envelope) error {
	r.mu.Lock()
	conn, closed := r.conn, r.closed
	r.mu.Unlock()
	if closed {
		return errors.ErrChannelClosed
	}
	if conn == nil {
		return fmt.Errorf("relay %s is not connected", r.url)
	}

	data, err := mapper.EncodeEnvelope(env)
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}

	deadline := time.Now().Add(_writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.BinaryMessage, data)
}

// OnReceive implements DuplexChannel. Handlers run on the read goroutine, in frame order.
func (r *Relay) OnReceive(handler func(entity.Envelope)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.next
	r.next++
	r.handlers[id] = handler

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.handlers, id)
	}
}

// Close sends a close frame and waits for the read loop to finish. It must not be called from a handler.
func (r *Relay) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	conn, done := r.conn, r.done
	r.mu.Unlock()

	if conn == nil {
		return nil
	}

	r.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(_writeWait))
	r.writeMu.Unlock()

	err := conn.Close()
	<-done
	return err
}
