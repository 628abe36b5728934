package web

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/keypad-sensor/internal/keypad"
	"github.com/sweeney/keypad-sensor/internal/status"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second

	defaultSendBuf      = 32
	defaultBroadcastBuf = 128
)

// Message types sent on /ws.
const (
	TypeStatusInit = "status_init"
	TypeKeyEvent   = "key_event"
)

// Envelope is the wire format of every /ws text frame.
type Envelope struct {
	Type string          `json:"type"`
	Ts   time.Time       `json:"ts"`
	Data json.RawMessage `json:"data"`
}

// KeyEventData is the data of a key_event frame.
type KeyEventData struct {
	Event  string `json:"event"`
	Key    int    `json:"key"`
	Name   string `json:"name,omitempty"`
	Code   int    `json:"code"`
	Action string `json:"action,omitempty"`
}

// FormatKeyEvent returns the key_event frame for ev.
func FormatKeyEvent(ev status.LastEvent) ([]byte, error) {
	data, err := json.Marshal(KeyEventData{
		Event:  ev.Kind.String(),
		Key:    int(ev.Key),
		Name:   ev.Name,
		Code:   int(keypad.Pack(ev.Kind, ev.Key)),
		Action: ev.Action,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: TypeKeyEvent, Ts: ev.At.UTC(), Data: data})
}

func formatStatusInit(snap status.Snapshot) ([]byte, error) {
	return json.Marshal(Envelope{Type: TypeStatusInit, Ts: snap.Now.UTC(), Data: status.FormatJSON(snap)})
}

// Hub fans out pre-serialized frames to connected websocket clients.
// A client whose send queue is full is disconnected.
type Hub struct {
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}

	mu      sync.Mutex
	clients map[*client]struct{}

	sendBuf int
	dropped int
}

// NewHub creates a hub. Zero sizes select defaults. Call Run to start it.
func NewHub(sendBuf, broadcastBuf int) *Hub {
	if sendBuf <= 0 {
		sendBuf = defaultSendBuf
	}
	if broadcastBuf <= 0 {
		broadcastBuf = defaultBroadcastBuf
	}
	return &Hub{
		broadcast:  make(chan []byte, broadcastBuf),
		register:   make(chan *client, 64),
		unregister: make(chan *client, 64),
		done:       make(chan struct{}),
		clients:    make(map[*client]struct{}),
		sendBuf:    sendBuf,
	}
}

// Run processes registrations and broadcasts until ctx is canceled,
// then disconnects all clients.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("ws: client %s connected (%d clients)", c.remoteAddr, n)

		case c := <-h.unregister:
			h.remove(c, "closed")

		case msg := <-h.broadcast:
			var slow []*client
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()

			for _, c := range slow {
				h.remove(c, "slow client")
			}
		}
	}
}

// Broadcast queues msg for all clients. It never blocks; if the hub queue
// is full the message is dropped.
func (h *Hub) Broadcast(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.mu.Lock()
		h.dropped++
		h.mu.Unlock()
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped returns the number of broadcasts dropped because the hub queue was full.
func (h *Hub) Dropped() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// remove and closeAll run only on the Run goroutine, so send is closed once.
func (h *Hub) remove(c *client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	if c.conn != nil {
		c.conn.Close()
	}
	close(c.send)
	log.Printf("ws: client %s disconnected: %s (%d clients)", c.remoteAddr, reason, n)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.conn != nil {
			c.conn.Close()
		}
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) leave(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

type client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.hub.leave(c)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.leave(c)
				return
			}
		}
	}
}

// readPump discards incoming frames. It exists to process control frames
// and to notice when the peer goes away.
func (c *client) readPump() {
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			var ce *websocket.CloseError
			if !errors.As(err, &ce) && !errors.Is(err, websocket.ErrCloseSent) {
				log.Printf("ws: read from %s: %v", c.remoteAddr, err)
			}
			c.hub.leave(c)
			return
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS upgrades the request, queues the current status as the first
// frame and registers the client with the hub.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}

	c := &client{
		hub:        s.hub,
		conn:       conn,
		send:       make(chan []byte, s.hub.sendBuf),
		remoteAddr: r.RemoteAddr,
	}
	if msg, err := formatStatusInit(s.tracker.Snapshot()); err == nil {
		c.send <- msg
	}

	select {
	case s.hub.register <- c:
	case <-s.hub.done:
		conn.Close()
		return
	}

	// The pumps outlive the request; the hub owns their lifetime.
	go c.writePump()
	go c.readPump()
}
