package web

import (
	"context"
	"testing"
	"time"
)

// Clients built here have a nil conn; the hub only touches conn when it is set.
func newTestClient(hub *Hub, name string, buf int) *client {
	return &client{hub: hub, send: make(chan []byte, buf), remoteAddr: name}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func registered(hub *Hub, c *client) func() bool {
	return func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		_, ok := hub.clients[c]
		return ok
	}
}

func runHub(t *testing.T, hub *Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestHubBroadcastDeliveredToAllClients(t *testing.T) {
	hub := NewHub(4, 8)
	runHub(t, hub)

	c1 := newTestClient(hub, "c1", 4)
	c2 := newTestClient(hub, "c2", 4)
	hub.register <- c1
	waitFor(t, registered(hub, c1))
	hub.register <- c2
	waitFor(t, registered(hub, c2))

	msg := []byte(`{"type":"key_event"}`)
	hub.broadcast <- msg

	for _, c := range []*client{c1, c2} {
		select {
		case got := <-c.send:
			if string(got) != string(msg) {
				t.Errorf("%s got %q, want %q", c.remoteAddr, got, msg)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %s", c.remoteAddr)
		}
	}
}

func TestHubDisconnectsSlowClient(t *testing.T) {
	hub := NewHub(1, 8)
	runHub(t, hub)

	slow := newTestClient(hub, "slow", 1)
	fast := newTestClient(hub, "fast", 8)
	hub.register <- slow
	waitFor(t, registered(hub, slow))
	hub.register <- fast
	waitFor(t, registered(hub, fast))

	slow.send <- []byte("stuck")
	msg := []byte(`{"type":"key_event"}`)
	hub.broadcast <- msg

	select {
	case got := <-fast.send:
		if string(got) != string(msg) {
			t.Errorf("fast got %q, want %q", got, msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for fast client")
	}

	waitFor(t, func() bool { return hub.Clients() == 1 })

	<-slow.send
	if _, ok := <-slow.send; ok {
		t.Error("expected slow client's send queue to be closed")
	}
}

func TestHubUnregister(t *testing.T) {
	hub := NewHub(4, 8)
	runHub(t, hub)

	c := newTestClient(hub, "c", 4)
	hub.register <- c
	waitFor(t, registered(hub, c))

	hub.leave(c)
	hub.leave(c)
	waitFor(t, func() bool { return hub.Clients() == 0 })

	if _, ok := <-c.send; ok {
		t.Error("expected send queue to be closed")
	}
}

func TestHubBroadcastDropsWhenQueueFull(t *testing.T) {
	hub := NewHub(1, 1)

	hub.Broadcast([]byte("a"))
	hub.Broadcast([]byte("b"))
	hub.Broadcast([]byte("c"))

	if got := hub.Dropped(); got != 2 {
		t.Errorf("Dropped: got %d, want 2", got)
	}
}

func TestHubLeaveAfterStopDoesNotBlock(t *testing.T) {
	hub := NewHub(1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hub.Run(ctx)

	c := newTestClient(hub, "late", 1)
	for i := 0; i < 100; i++ {
		hub.leave(c)
	}
}

func TestNewHubDefaults(t *testing.T) {
	hub := NewHub(0, 0)
	if hub.sendBuf != defaultSendBuf {
		t.Errorf("sendBuf: got %d, want %d", hub.sendBuf, defaultSendBuf)
	}
	if cap(hub.broadcast) != defaultBroadcastBuf {
		t.Errorf("broadcast cap: got %d, want %d", cap(hub.broadcast), defaultBroadcastBuf)
	}
}
