package transport

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"
	"github.com/uber/live-preview/src/lpd/entity"
	"github.com/uber/live-preview/src/lpd/factory"
	"github.com/uber/live-preview/src/lpd/internal/clock"
	"github.com/uber/live-preview/src/lpd/internal/clock/clockmock"
	"github.com/uber/live-preview/src/lpd/internal/errors"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

// recorder is an EventHandler that keeps every event as a line of text.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) OnConnect(ctx context.Context, clientID, url string) {
	r.add(fmt.Sprintf("connect %s %s", clientID, url))
}

func (r *recorder) OnMessage(ctx context.Context, clientID, message string) {
	r.add(fmt.Sprintf("message %s %s", clientID, message))
}

func (r *recorder) OnClose(ctx context.Context, clientID string) {
	r.add("close " + clientID)
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func testConfig() Config {
	return Config{
		Backend:              BackendBus,
		MetricsFlushInterval: time.Hour,
		BufferSize:           64,
		DedupTTL:             time.Minute,
	}
}

func startHost(t *testing.T, cfg Config, bus *Bus, scope tally.Scope) (*host, *recorder) {
	h := newHost(cfg, bus, clock.New(), zap.NewNop().Sugar(), scope)
	events := &recorder{}
	require.NoError(t, h.Start(context.Background(), events))
	return h, events
}

func TestHost_Events(t *testing.T) {
	ctx := context.Background()
	bus := newBus(64, zap.NewNop().Sugar())
	defer bus.Close()
	h, events := startHost(t, testConfig(), bus, tally.NoopScope)
	defer h.Close(ctx)

	require.NoError(t, bus.Send(ctx, entity.Envelope{Type: entity.EnvelopeConnect, ClientID: "p1", URL: "/preview/index.html", Origin: "p1"}))
	require.NoError(t, bus.Send(ctx, factory.Envelope("p1", "hello")))
	require.NoError(t, bus.Send(ctx, entity.Envelope{Type: entity.EnvelopeToPeer, Message: "not for the host"}))
	require.NoError(t, bus.Send(ctx, entity.Envelope{Type: entity.EnvelopeShutdown}))
	require.NoError(t, bus.Send(ctx, entity.Envelope{Type: entity.EnvelopeClose, ClientID: "p1", Origin: "p1"}))

	want := []string{"connect p1 /preview/index.html", "message p1 hello", "close p1"}
	assert.Eventually(t, func() bool { return len(events.list()) == len(want) }, _waitFor, time.Millisecond)
	assert.Equal(t, want, events.list())
}

func TestHost_IgnoresOwnEnvelopes(t *testing.T) {
	ctx := context.Background()
	bus := newBus(64, zap.NewNop().Sugar())
	defer bus.Close()
	h, events := startHost(t, testConfig(), bus, tally.NoopScope)
	defer h.Close(ctx)

	require.NoError(t, bus.Send(ctx, entity.Envelope{Type: entity.EnvelopeConnect, ClientID: "echo", Origin: h.ID()}))
	require.NoError(t, bus.Send(ctx, entity.Envelope{Type: entity.EnvelopeToHost, ClientID: "echo", Message: "m", Origin: h.ID()}))
	require.NoError(t, bus.Send(ctx, entity.Envelope{Type: entity.EnvelopeConnect, ClientID: "p1", Origin: "p1"}))

	assert.Eventually(t, func() bool { return len(events.list()) == 1 }, _waitFor, time.Millisecond)
	assert.Equal(t, []string{"connect p1 "}, events.list())
}

func TestHost_DropsDuplicateMessages(t *testing.T) {
	ctx := context.Background()
	bus := newBus(64, zap.NewNop().Sugar())
	defer bus.Close()
	h, events := startHost(t, testConfig(), bus, tally.NoopScope)
	defer h.Close(ctx)

	first := factory.Envelope("p1", "one")
	require.NoError(t, bus.Send(ctx, first))
	require.NoError(t, bus.Send(ctx, first))
	require.NoError(t, bus.Send(ctx, entity.Envelope{Type: entity.EnvelopeToHost, ClientID: "p1", Message: "no id"}))
	require.NoError(t, bus.Send(ctx, entity.Envelope{Type: entity.EnvelopeToHost, ClientID: "p1", Message: "no id"}))
	require.NoError(t, bus.Send(ctx, factory.Envelope("p1", "two")))

	want := []string{"message p1 one", "message p1 no id", "message p1 no id", "message p1 two"}
	assert.Eventually(t, func() bool { return len(events.list()) == len(want) }, _waitFor, time.Millisecond)
	assert.Equal(t, want, events.list())
}

func TestHost_MetricsFlush(t *testing.T) {
	ctx := context.Background()
	scope := tally.NewTestScope("", nil)
	cfg := testConfig()
	cfg.MetricsFlushInterval = time.Second

	ctrl := gomock.NewController(t)
	ticks := make(chan time.Time)
	ticker := clockmock.NewMockTicker(ctrl)
	ticker.EXPECT().C().Return((<-chan time.Time)(ticks)).AnyTimes()
	ticker.EXPECT().Stop()
	clk := clockmock.NewMockClock(ctrl)
	clk.EXPECT().NewTicker(time.Second).Return(ticker)

	bus := newBus(64, zap.NewNop().Sugar())
	defer bus.Close()
	h := newHost(cfg, bus, clk, zap.NewNop().Sugar(), scope)
	events := &recorder{}
	require.NoError(t, h.Start(ctx, events))

	require.NoError(t, h.Send(ctx, nil, "reload"))
	require.NoError(t, bus.Send(ctx, factory.Envelope("p1", "edit")))
	assert.Eventually(t, func() bool { return len(events.list()) == 1 }, _waitFor, time.Millisecond)

	_, ok := scope.Snapshot().Counters()["transport.send_count+"]
	assert.False(t, ok, "nothing is reported before the first tick")

	// ticks is unbuffered, so each send returns once the previous flush is done
	ticks <- time.Time{}
	ticks <- time.Time{}
	counters := scope.Snapshot().Counters()
	assert.Equal(t, int64(1), counters["transport.send_count+"].Value())
	assert.Equal(t, int64(1), counters["transport.recv_count+"].Value())
	assert.Equal(t, int64(len("reload")), counters["transport.sent_bytes+"].Value())
	assert.Equal(t, int64(len("edit")), counters["transport.recv_bytes+"].Value())

	// Idle intervals add nothing.
	ticks <- time.Time{}
	require.NoError(t, h.Close(ctx))
	counters = scope.Snapshot().Counters()
	assert.Equal(t, int64(1), counters["transport.send_count+"].Value())
	assert.Equal(t, int64(1), counters["transport.recv_count+"].Value())
}

func TestHost_Send(t *testing.T) {
	ctx := context.Background()
	bus := newBus(64, zap.NewNop().Sugar())
	defer bus.Close()

	var seen collector
	bus.OnReceive(seen.receive)

	h, _ := startHost(t, testConfig(), bus, tally.NoopScope)
	require.NoError(t, h.Send(ctx, []string{"a", "b"}, "payload"))
	require.NoError(t, h.Close(ctx))

	assert.Eventually(t, func() bool { return len(seen.messages()) == 2 }, _waitFor, time.Millisecond)
	seen.mu.Lock()
	defer seen.mu.Unlock()

	sent := seen.envelopes[0]
	assert.Equal(t, entity.EnvelopeToPeer, sent.Type)
	assert.Equal(t, []string{"a", "b"}, sent.ClientIDs)
	assert.Equal(t, "payload", sent.Message)
	assert.Equal(t, h.ID(), sent.Origin)
	assert.NotEmpty(t, sent.MessageID)

	shutdown := seen.envelopes[1]
	assert.Equal(t, entity.EnvelopeShutdown, shutdown.Type)
	assert.Empty(t, shutdown.ClientIDs)
}

func TestHost_Lifecycle(t *testing.T) {
	ctx := context.Background()
	bus := newBus(64, zap.NewNop().Sugar())
	defer bus.Close()

	t.Run("start twice", func(t *testing.T) {
		h, _ := startHost(t, testConfig(), bus, tally.NoopScope)
		assert.Error(t, h.Start(ctx, &recorder{}))
		require.NoError(t, h.Close(ctx))
	})

	t.Run("close is idempotent", func(t *testing.T) {
		h, _ := startHost(t, testConfig(), bus, tally.NoopScope)
		require.NoError(t, h.Close(ctx))
		require.NoError(t, h.Close(ctx))

		assert.True(t, errors.Is(h.Send(ctx, nil, "late"), errors.ErrChannelClosed))
		assert.True(t, errors.Is(h.Start(ctx, &recorder{}), errors.ErrChannelClosed))
	})

	t.Run("close without start", func(t *testing.T) {
		h := newHost(testConfig(), bus, clock.New(), zap.NewNop().Sugar(), tally.NoopScope)
		require.NoError(t, h.Close(ctx))
	})

	t.Run("shutdown on a closed channel is best effort", func(t *testing.T) {
		closed := newBus(4, zap.NewNop().Sugar())
		h, _ := startHost(t, testConfig(), closed, tally.NoopScope)
		require.NoError(t, closed.Close())
		assert.NoError(t, h.Close(ctx))
	})
}
