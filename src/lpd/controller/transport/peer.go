package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/uber/live-preview/src/lpd/entity"
	"github.com/uber/live-preview/src/lpd/factory"
	"github.com/uber/live-preview/src/lpd/internal/errors"
	"go.uber.org/zap"
)

// PeerState is the connection state of a peer.
type PeerState int

const (
	// PeerDisconnected is the state before Connect and after Close or a host shutdown.
	PeerDisconnected PeerState = iota
	// PeerConnected is the state between a CONNECT announcement and its CLOSE.
	PeerConnected
)

func (s PeerState) String() string {
	if s == PeerConnected {
		return "Connected"
	}
	return "Disconnected"
}

// PeerCallbacks are invoked on the peer side. Any of them may be nil.
type PeerCallbacks struct {
	// OnConnect runs once per Connect, after the announcement has been sent.
	OnConnect func(clientID, url string)
	// OnMessage receives host messages addressed to this peer.
	OnMessage func(message string)
	// OnClose runs when the host shuts down while the peer is connected.
	OnClose func()
}

// Peer is a preview surface's endpoint of the channel.
type Peer interface {
	ClientID() string
	State() PeerState
	// Connect announces the peer and its page url to the host.
	Connect(ctx context.Context, url string) error
	// Send delivers message to the host.
	Send(ctx context.Context, message string) error
	// Close announces that the peer is going away. It does nothing unless the peer is connected.
	Close(ctx context.Context) error
}

type peer struct {
	id        string
	channel   DuplexChannel
	callbacks PeerCallbacks
	logger    *zap.SugaredLogger

	mu          sync.Mutex
	state       PeerState
	url         string
	unsubscribe func()
}

// NewPeer creates a disconnected peer with a random client id.
func NewPeer(channel DuplexChannel, callbacks PeerCallbacks, logger *zap.SugaredLogger) Peer {
	id := factory.ClientID()
	return &peer{
		id:        id,
		channel:   channel,
		callbacks: callbacks,
		logger:    logger.With("plugin", "transport-peer", "clientID", id),
	}
}

func (p *peer) ClientID() string {
	return p.id
}

func (p *peer) State() PeerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *peer) Connect(ctx context.Context, url string) error {
	p.mu.Lock()
	if p.state == PeerConnected {
		p.mu.Unlock()
		return fmt.Errorf("peer %s already connected", p.id)
	}
	if p.unsubscribe == nil {
		p.unsubscribe = p.channel.OnReceive(p.receive)
	}
	p.state = PeerConnected
	p.url = url
	p.mu.Unlock()

	err := p.channel.Send(ctx, entity.Envelope{
		Type:      entity.EnvelopeConnect,
		ClientID:  p.id,
		URL:       url,
		MessageID: factory.MessageID(),
		Origin:    p.id,
	})
	if err != nil {
		p.mu.Lock()
		p.state = PeerDisconnected
		p.mu.Unlock()
		return fmt.Errorf("announcing peer: %w", err)
	}

	p.logger.Debugw("peer connected", zap.String("url", url))
	if p.callbacks.OnConnect != nil {
		p.callbacks.OnConnect(p.id, url)
	}
	return nil
}

func (p *peer) Send(ctx context.Context, message string) error {
	if p.State() != PeerConnected {
		return errors.ErrChannelClosed
	}
	if err := p.channel.Send(ctx, factory.Envelope(p.id, message)); err != nil {
		return fmt.Errorf("sending to host: %w", err)
	}
	return nil
}

func (p *peer) Close(ctx context.Context) error {
	p.mu.Lock()
	connected := p.state == PeerConnected
	p.state = PeerDisconnected
	unsubscribe := p.unsubscribe
	p.unsubscribe = nil
	p.mu.Unlock()

	var err error
	if connected {
		err = p.channel.Send(ctx, entity.Envelope{
			Type:      entity.EnvelopeClose,
			ClientID:  p.id,
			MessageID: factory.MessageID(),
			Origin:    p.id,
		})
	}
	if unsubscribe != nil {
		unsubscribe()
	}
	if err != nil {
		return fmt.Errorf("announcing close: %w", err)
	}
	return nil
}

func (p *peer) receive(env entity.Envelope) {
	switch env.Type {
	case entity.EnvelopeToPeer:
		if !env.Addressed(p.id) || p.State() != PeerConnected {
			return
		}
		if p.callbacks.OnMessage != nil {
			p.callbacks.OnMessage(env.Message)
		}
	case entity.EnvelopeShutdown:
		p.mu.Lock()
		connected := p.state == PeerConnected
		p.state = PeerDisconnected
		p.mu.Unlock()
		if !connected {
			return
		}
		p.logger.Debugw("host shut down")
		if p.callbacks.OnClose != nil {
			p.callbacks.OnClose()
		}
	}
}
