package ws

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Wyydra/huddle/internal/core/domain"
	"github.com/Wyydra/huddle/internal/core/port"
	"github.com/Wyydra/huddle/internal/protocol"
)

type stubClient struct {
	id     domain.ConnID
	mu     sync.Mutex
	queue  []protocol.Message
	limit  int
	closed bool
}

func newStubClient(limit int) *stubClient {
	return &stubClient{id: domain.NewConnID(), limit: limit}
}

func (c *stubClient) ID() domain.ConnID { return c.id }

func (c *stubClient) Enqueue(msg protocol.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || len(c.queue) >= c.limit {
		return false
	}
	c.queue = append(c.queue, msg)
	return true
}

func (c *stubClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *stubClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type call struct {
	kind  string
	conn  domain.ConnID
	event string
}

// echoDispatcher records calls and answers every message back to its sender.
type echoDispatcher struct {
	hub   *Hub
	mu    sync.Mutex
	calls []call
	sent  []error
	seen  chan struct{}
}

func (d *echoDispatcher) HandleMessage(ctx context.Context, connID domain.ConnID, msg protocol.Message) {
	err := d.hub.Send(ctx, connID, msg)
	d.mu.Lock()
	d.calls = append(d.calls, call{"message", connID, msg.Event})
	d.sent = append(d.sent, err)
	d.mu.Unlock()
	d.seen <- struct{}{}
}

func (d *echoDispatcher) Disconnect(ctx context.Context, connID domain.ConnID) {
	d.mu.Lock()
	d.calls = append(d.calls, call{kind: "disconnect", conn: connID})
	d.mu.Unlock()
	d.seen <- struct{}{}
}

func startHub(t *testing.T) (*Hub, *echoDispatcher) {
	t.Helper()
	hub := NewHub()
	d := &echoDispatcher{hub: hub, seen: make(chan struct{}, 64)}
	hub.SetDispatcher(d)
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub, d
}

func waitCalls(t *testing.T, d *echoDispatcher, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-d.seen:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for dispatcher call %d", i+1)
		}
	}
}

func TestHubPreservesPerConnectionOrder(t *testing.T) {
	hub, d := startHub(t)
	c := newStubClient(16)

	hub.Register(c)
	hub.Dispatch(c, protocol.Message{Event: "first"})
	hub.Dispatch(c, protocol.Message{Event: "second"})
	hub.Unregister(c)
	waitCalls(t, d, 3)

	d.mu.Lock()
	defer d.mu.Unlock()
	want := []call{
		{"message", c.id, "first"},
		{"message", c.id, "second"},
		{kind: "disconnect", conn: c.id},
	}
	if len(d.calls) != len(want) {
		t.Fatalf("unexpected calls %+v", d.calls)
	}
	for i := range want {
		if d.calls[i] != want[i] {
			t.Errorf("call %d: got %+v want %+v", i, d.calls[i], want[i])
		}
	}
	if !c.isClosed() {
		t.Errorf("unregistered client not closed")
	}
}

func TestHubDropsMessagesFromUnknownClients(t *testing.T) {
	hub, d := startHub(t)
	ghost := newStubClient(1)
	c := newStubClient(1)

	hub.Dispatch(ghost, protocol.Message{Event: "boo"})
	hub.Unregister(ghost)
	hub.Register(c)
	hub.Dispatch(c, protocol.Message{Event: "hello"})
	waitCalls(t, d, 1)

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.calls) != 1 || d.calls[0].event != "hello" {
		t.Errorf("unexpected calls %+v", d.calls)
	}
}

func TestHubClosesSlowConsumer(t *testing.T) {
	hub, d := startHub(t)
	c := newStubClient(1)

	hub.Register(c)
	hub.Dispatch(c, protocol.Message{Event: "one"})
	hub.Dispatch(c, protocol.Message{Event: "two"})
	waitCalls(t, d, 2)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sent[0] != nil {
		t.Errorf("first send failed: %v", d.sent[0])
	}
	if !errors.Is(d.sent[1], ErrSlowConsumer) {
		t.Errorf("expected ErrSlowConsumer, got %v", d.sent[1])
	}
	if !c.isClosed() {
		t.Errorf("slow client left open")
	}
}

func TestHubSendToUnknownConnection(t *testing.T) {
	hub := NewHub()
	err := hub.Send(context.Background(), domain.NewConnID(), protocol.Message{Event: "x"})
	if !errors.Is(err, port.ErrUnknownConnection) {
		t.Errorf("expected ErrUnknownConnection, got %v", err)
	}
}
