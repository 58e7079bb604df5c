package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"
	"github.com/uber/live-preview/src/lpd/internal/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// inbox gathers the callbacks of one peer.
type inbox struct {
	mu       sync.Mutex
	messages []string
	connects atomic.Int32
	closes   atomic.Int32
}

func (i *inbox) callbacks() PeerCallbacks {
	return PeerCallbacks{
		OnConnect: func(clientID, url string) { i.connects.Inc() },
		OnMessage: func(message string) {
			i.mu.Lock()
			defer i.mu.Unlock()
			i.messages = append(i.messages, message)
		},
		OnClose: func() { i.closes.Inc() },
	}
}

func (i *inbox) list() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.messages...)
}

func TestPeer_Addressing(t *testing.T) {
	ctx := context.Background()
	bus := newBus(64, zap.NewNop().Sugar())
	defer bus.Close()
	h, events := startHost(t, testConfig(), bus, tally.NoopScope)
	defer h.Close(ctx)

	var inboxA, inboxB inbox
	a := NewPeer(bus, inboxA.callbacks(), zap.NewNop().Sugar())
	b := NewPeer(bus, inboxB.callbacks(), zap.NewNop().Sugar())
	require.NoError(t, a.Connect(ctx, "/preview/a.html"))
	require.NoError(t, b.Connect(ctx, "/preview/b.html"))
	assert.Eventually(t, func() bool { return len(events.list()) == 2 }, _waitFor, time.Millisecond)

	require.NoError(t, h.Send(ctx, []string{a.ClientID()}, "only a"))
	require.NoError(t, h.Send(ctx, nil, "everyone"))

	assert.Eventually(t, func() bool { return len(inboxA.list()) == 2 }, _waitFor, time.Millisecond)
	assert.Eventually(t, func() bool { return len(inboxB.list()) == 1 }, _waitFor, time.Millisecond)
	assert.Equal(t, []string{"only a", "everyone"}, inboxA.list())
	assert.Equal(t, []string{"everyone"}, inboxB.list())

	require.NoError(t, a.Close(ctx))
	require.NoError(t, b.Close(ctx))
}

func TestPeer_ConnectFiresOnce(t *testing.T) {
	ctx := context.Background()
	bus := newBus(64, zap.NewNop().Sugar())
	defer bus.Close()
	h, events := startHost(t, testConfig(), bus, tally.NoopScope)
	defer h.Close(ctx)

	var box inbox
	p := NewPeer(bus, box.callbacks(), zap.NewNop().Sugar())
	require.NoError(t, p.Connect(ctx, "/preview/index.html"))
	assert.Equal(t, PeerConnected, p.State())
	assert.Error(t, p.Connect(ctx, "/preview/index.html"))

	assert.Eventually(t, func() bool { return len(events.list()) == 1 }, _waitFor, time.Millisecond)
	assert.Equal(t, []string{"connect " + p.ClientID() + " /preview/index.html"}, events.list())

	// The echo of CONNECT is queued ahead of this message.
	require.NoError(t, h.Send(ctx, nil, "ping"))
	assert.Eventually(t, func() bool { return len(box.list()) == 1 }, _waitFor, time.Millisecond)
	assert.Equal(t, int32(1), box.connects.Load())

	require.NoError(t, p.Close(ctx))
}

func TestPeer_MessagesToHost(t *testing.T) {
	ctx := context.Background()
	bus := newBus(64, zap.NewNop().Sugar())
	defer bus.Close()
	h, events := startHost(t, testConfig(), bus, tally.NoopScope)
	defer h.Close(ctx)

	var box inbox
	p := NewPeer(bus, box.callbacks(), zap.NewNop().Sugar())
	assert.True(t, errors.Is(p.Send(ctx, "early"), errors.ErrChannelClosed))

	require.NoError(t, p.Connect(ctx, "/preview/index.html"))
	require.NoError(t, p.Send(ctx, "first"))
	require.NoError(t, p.Send(ctx, "second"))
	require.NoError(t, p.Close(ctx))
	require.NoError(t, p.Close(ctx))
	assert.Equal(t, PeerDisconnected, p.State())

	id := p.ClientID()
	want := []string{
		"connect " + id + " /preview/index.html",
		"message " + id + " first",
		"message " + id + " second",
		"close " + id,
	}
	assert.Eventually(t, func() bool { return len(events.list()) == len(want) }, _waitFor, time.Millisecond)
	assert.Equal(t, want, events.list())
	assert.Empty(t, box.list(), "peers ignore messages bound for the host")
}

func TestPeer_HostShutdown(t *testing.T) {
	ctx := context.Background()
	bus := newBus(64, zap.NewNop().Sugar())
	defer bus.Close()
	h, _ := startHost(t, testConfig(), bus, tally.NoopScope)

	var connected, idle inbox
	p := NewPeer(bus, connected.callbacks(), zap.NewNop().Sugar())
	require.NoError(t, p.Connect(ctx, "/preview/index.html"))

	q := NewPeer(bus, idle.callbacks(), zap.NewNop().Sugar())
	require.NoError(t, q.Connect(ctx, "/preview/other.html"))
	require.NoError(t, q.Close(ctx))

	require.NoError(t, h.Close(ctx))
	assert.Eventually(t, func() bool { return connected.closes.Load() == 1 }, _waitFor, time.Millisecond)
	assert.Equal(t, PeerDisconnected, p.State())
	assert.Zero(t, idle.closes.Load())

	// Already disconnected, so no CLOSE is announced.
	require.NoError(t, p.Close(ctx))
}

func TestPeerState_String(t *testing.T) {
	assert.Equal(t, "Connected", PeerConnected.String())
	assert.Equal(t, "Disconnected", PeerDisconnected.String())
}
