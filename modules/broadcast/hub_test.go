package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/helpdesk-chat-relay/events"
	"github.com/example/helpdesk-chat-relay/modules/presence"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nopLogger implements types.Logger for testing
type nopLogger struct{}

func (l *nopLogger) Debug(msg string, args ...any)         {}
func (l *nopLogger) Info(msg string, args ...any)          {}
func (l *nopLogger) Warn(msg string, args ...any)          {}
func (l *nopLogger) Error(msg string, args ...any)         {}
func (l *nopLogger) With(args ...any) types.Logger         { return l }
func (l *nopLogger) WithError(err error) types.Logger      { return l }
func (l *nopLogger) WithModule(module string) types.Logger { return l }

// fakeConn records written frames.
type fakeConn struct {
	mu       sync.Mutex
	frames   [][]byte
	closed   bool
	writeErr error
	block    chan struct{}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.frames = append(c.frames, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) decoded(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(f, &m))
		out = append(out, m)
	}
	return out
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func waitFrames(t *testing.T, c *fakeConn, n int) {
	t.Helper()
	assert.Eventually(t, func() bool { return c.count() >= n }, time.Second, 5*time.Millisecond)
}

func TestHub_SendTo(t *testing.T) {
	hub := NewHub(&nopLogger{}, 8)
	a, b := &fakeConn{}, &fakeConn{}
	hub.Register("a", a)
	hub.Register("b", b)

	require.NoError(t, hub.SendTo("a", "message", map[string]string{"text": "hi"}))
	waitFrames(t, a, 1)

	frames := a.decoded(t)
	assert.Equal(t, "message", frames[0]["type"])
	assert.Equal(t, map[string]any{"text": "hi"}, frames[0]["payload"])
	assert.Zero(t, b.count())
}

func TestHub_SendTo_UnknownClient(t *testing.T) {
	hub := NewHub(&nopLogger{}, 8)

	err := hub.SendTo("ghost", "message", nil)
	assert.ErrorIs(t, err, ErrClientNotFound)
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub(&nopLogger{}, 8)
	conns := []*fakeConn{{}, {}, {}}
	for i, c := range conns {
		hub.Register(connID(i), c)
	}
	assert.Equal(t, 3, hub.ClientCount())

	hub.Broadcast("presence", map[string][]string{"users": {"alice"}})

	for _, c := range conns {
		waitFrames(t, c, 1)
		assert.Equal(t, "presence", c.decoded(t)[0]["type"])
	}
}

func TestHub_FramesKeepOrderPerClient(t *testing.T) {
	hub := NewHub(&nopLogger{}, 64)
	c := &fakeConn{}
	hub.Register("a", c)

	for i := 0; i < 20; i++ {
		require.NoError(t, hub.SendTo("a", "message", i))
	}
	waitFrames(t, c, 20)

	for i, f := range c.decoded(t) {
		assert.EqualValues(t, i, f["payload"])
	}
}

func TestHub_UnregisterFlushesQueuedFrames(t *testing.T) {
	hub := NewHub(&nopLogger{}, 8)
	c := &fakeConn{}
	client := hub.Register("a", c)

	require.NoError(t, hub.SendTo("a", "message", "bye"))
	hub.Unregister("a")

	select {
	case <-client.Done():
	case <-time.After(time.Second):
		t.Fatal("writer did not exit after unregister")
	}
	assert.Equal(t, 1, c.count())
	assert.False(t, c.isClosed(), "unregister leaves closing to the owner")
	assert.ErrorIs(t, hub.SendTo("a", "message", nil), ErrClientNotFound)

	// A second unregister is a no-op.
	hub.Unregister("a")
}

func TestHub_QueueFullDropsFrame(t *testing.T) {
	hub := NewHub(&nopLogger{}, 1)
	c := &fakeConn{block: make(chan struct{})}
	hub.Register("a", c)

	// The writer takes the first frame and blocks; the second fills the queue.
	require.NoError(t, hub.SendTo("a", "message", 1))
	assert.Eventually(t, func() bool {
		return hub.SendTo("a", "message", 2) == nil
	}, time.Second, time.Millisecond)

	assert.ErrorIs(t, hub.SendTo("a", "message", 3), ErrQueueFull)
	close(c.block)
	waitFrames(t, c, 2)
}

func TestHub_WriteErrorDoesNotStopWriter(t *testing.T) {
	hub := NewHub(&nopLogger{}, 8)
	c := &fakeConn{writeErr: errors.New("broken pipe")}
	client := hub.Register("a", c)

	require.NoError(t, hub.SendTo("a", "message", 1))
	require.NoError(t, hub.SendTo("a", "message", 2))
	hub.Unregister("a")

	select {
	case <-client.Done():
	case <-time.After(time.Second):
		t.Fatal("writer did not exit")
	}
}

func TestHub_RunClosesClientsOnShutdown(t *testing.T) {
	hub := NewHub(&nopLogger{}, 8)
	a, b := &fakeConn{}, &fakeConn{}
	hub.Register("a", a)
	hub.Register("b", b)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	cancel()
	hub.Wait()

	assert.True(t, a.isClosed())
	assert.True(t, b.isClosed())
	assert.Zero(t, hub.ClientCount())
}

func TestBroadcastModule_CountsRelayEvents(t *testing.T) {
	m := NewModule(&nopLogger{})
	ctx := context.Background()

	require.NoError(t, m.handleMessageRelayed(ctx, events.MessageRelayedEvent{Delivered: true}, nil))
	require.NoError(t, m.handleMessageRelayed(ctx, events.MessageRelayedEvent{Delivered: false}, nil))
	require.NoError(t, m.handlePresenceChanged(ctx, events.PresenceChangedEvent{Username: "alice"}, nil))

	stats := m.Stats()
	assert.Equal(t, uint64(2), stats["messages_relayed"])
	assert.Equal(t, uint64(1), stats["messages_delivered"])
	assert.Equal(t, uint64(1), stats["presence_changes"])
	assert.Equal(t, 0, stats["connected_clients"])
}

func TestBroadcastModule_StartStop(t *testing.T) {
	m := NewModule(&nopLogger{})
	c := &fakeConn{}
	m.GetHub().Register("a", c)

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Stop(context.Background()))

	assert.True(t, c.isClosed())
	assert.True(t, m.Health(context.Background()).Healthy)
}

func connID(i int) presence.ConnID {
	return presence.ConnID(string(rune('a' + i)))
}
