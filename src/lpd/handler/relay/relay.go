// Package relay serves the websocket relay hub: every socket is bridged onto the in-process bus, so
// peers outside the daemon share the channel with the host.
package relay

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/uber-go/tally"
	"github.com/uber/live-preview/src/lpd/controller/transport"
	"github.com/uber/live-preview/src/lpd/entity"
	"github.com/uber/live-preview/src/lpd/internal/httpfx"
	"github.com/uber/live-preview/src/lpd/internal/serverinfofile"
	"github.com/uber/live-preview/src/lpd/mapper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	// Path is where the relay hub is mounted.
	Path = "/__lp_relay"

	_outputKey = "relay-url"

	_writeWait      = 10 * time.Second
	_pongWait       = 60 * time.Second
	_pingPeriod     = (_pongWait * 9) / 10
	_maxMessageSize = 1 << 20
	_sendBuffer     = 256
)

// Handler is the relay hub.
type Handler interface {
	http.Handler
	// Sockets returns the number of connected sockets.
	Sockets() int
}

// Params are the dependencies of the relay hub.
type Params struct {
	fx.In

	Lifecycle      fx.Lifecycle
	Logger         *zap.SugaredLogger
	Stats          tally.Scope
	HTTP           httpfx.HTTPModule
	Bus            *transport.Bus
	Channel        transport.DuplexChannel
	ServerInfoFile serverinfofile.ServerInfoFile
}

type hub struct {
	bus      *transport.Bus
	logger   *zap.SugaredLogger
	stats    tally.Scope
	upgrader websocket.Upgrader

	mu      sync.Mutex
	sockets map[*socket]struct{}
	closed  bool
	wg      sync.WaitGroup
}

type socket struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

// New mounts the relay hub and publishes its url once the server is listening.
// The hub is only mounted when the host talks on the in-process bus; a host that is itself a relay
// client leaves hosting to the hub it dialed.
func New(p Params) Handler {
	h := newHub(p.Bus, p.Logger, p.Stats)
	if bus, ok := p.Channel.(*transport.Bus); !ok || bus != p.Bus {
		h.logger.Infow("host uses a remote relay, not serving the relay hub")
		return h
	}
	p.HTTP.Router().Handle(Path, h)

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return p.ServerInfoFile.UpdateField(_outputKey, "ws://"+p.HTTP.Addr()+Path)
		},
		OnStop: func(ctx context.Context) error {
			h.closeAll()
			return nil
		},
	})
	return h
}

func newHub(bus *transport.Bus, logger *zap.SugaredLogger, stats tally.Scope) *hub {
	return &hub{
		bus:     bus,
		logger:  logger.With("plugin", "relay-hub"),
		stats:   stats.SubScope("relay"),
		sockets: make(map[*socket]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

func (h *hub) Sockets() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sockets)
}

func (h *hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade failed", zap.Error(err))
		return
	}

	s := &socket{
		conn: conn,
		send: make(chan []byte, _sendBuffer),
		done: make(chan struct{}),
	}
	if !h.register(s) {
		conn.Close()
		return
	}
	defer h.wg.Done()

	unsubscribe := h.bus.OnReceive(func(env entity.Envelope) { h.forward(s, env) })
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writePump(s)
	}()

	h.readPump(r.Context(), s)

	unsubscribe()
	h.unregister(s)
	close(s.done)
	<-writerDone
	conn.Close()
}

func (h *hub) register(s *socket) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.sockets[s] = struct{}{}
	h.wg.Add(1)
	h.stats.Gauge("sockets").Update(float64(len(h.sockets)))
	return true
}

func (h *hub) unregister(s *socket) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sockets, s)
	h.stats.Gauge("sockets").Update(float64(len(h.sockets)))
}

// forward queues an envelope from the bus for the socket. A socket that falls behind misses it.
func (h *hub) forward(s *socket, env entity.Envelope) {
	data, err := mapper.EncodeEnvelope(env)
	if err != nil {
		h.logger.Warnw("encoding envelope failed", zap.Error(err))
		return
	}
	select {
	case s.send <- data:
	case <-s.done:
	default:
		h.stats.Counter("dropped_frames").Inc(1)
		h.logger.Warnw("socket send queue full, dropping envelope", zap.String("messageID", env.MessageID))
	}
}

// readPump publishes the socket's frames on the bus until the socket fails or closes.
func (h *hub) readPump(ctx context.Context, s *socket) {
	s.conn.SetReadLimit(_maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(_pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(_pongWait))
	})

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warnw("relay socket read failed", zap.Error(err))
			}
			return
		}
		if messageType != websocket.BinaryMessage {
			h.stats.Counter("malformed_frames").Inc(1)
			continue
		}

		env, err := mapper.DecodeEnvelope(data)
		if err != nil {
			h.stats.Counter("malformed_frames").Inc(1)
			h.logger.Warnw("dropping relay frame", zap.Error(err))
			continue
		}
		if err := h.bus.Send(ctx, env); err != nil {
			h.logger.Warnw("publishing relay frame failed", zap.Error(err))
			return
		}
	}
}

// writePump writes queued envelopes and keeps the socket alive with pings.
func (h *hub) writePump(s *socket) {
	ticker := time.NewTicker(_pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(_writeWait))
			if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				s.conn.Close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(_writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.conn.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

// closeAll disconnects every socket and waits for their handlers to return.
func (h *hub) closeAll() {
	h.mu.Lock()
	h.closed = true
	sockets := make([]*socket, 0, len(h.sockets))
	for s := range h.sockets {
		sockets = append(sockets, s)
	}
	h.mu.Unlock()

	for _, s := range sockets {
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(_writeWait))
		s.conn.Close()
	}
	h.wg.Wait()
}
