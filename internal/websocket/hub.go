package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/raidwatch/raidwatch/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	writeTimeout = 10 * time.Second
	readTimeout  = 60 * time.Second
	pingPeriod   = 54 * time.Second
	sendBuffer   = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Single-server dashboards typically sit behind a reverse proxy;
		// origin enforcement belongs there.
		return true
	},
}

// Message is the envelope for every frame sent to clients.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Client is one connected dashboard.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string
}

// Hub fans published snapshots out to connected WebSocket clients. Each new
// client receives the current snapshot on connect; after that it only sees
// whole snapshots as cycles publish them.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	getSnapshot func() *models.Snapshot
}

// NewHub creates a hub. getSnapshot supplies the current cached snapshot for
// newly connected clients.
func NewHub(getSnapshot func() *models.Snapshot) *Hub {
	return &Hub{
		clients:     make(map[*Client]struct{}),
		broadcast:   make(chan []byte, 64),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		getSnapshot: getSnapshot,
	}
}

// Run processes registration and broadcast events until the process exits.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			log.Info().Str("client", client.id).Msg("WebSocket client connected")
			h.sendInitial(client)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			log.Info().Str("client", client.id).Msg("WebSocket client disconnected")

		case frame := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- frame:
				default:
					// Slow consumer; drop it rather than stall the hub.
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// HandleWebSocket upgrades the request and attaches the client to the hub.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		id:   uuid.NewString(),
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// BroadcastSnapshot pushes a freshly published snapshot to every client.
func (h *Hub) BroadcastSnapshot(snapshot *models.Snapshot) {
	h.enqueue(Message{Type: "snapshot", Data: snapshot})
}

// ClientCount reports connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) enqueue(msg Message) {
	frame, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal WebSocket message")
		return
	}
	select {
	case h.broadcast <- frame:
	default:
		log.Warn().Msg("WebSocket broadcast queue full, dropping frame")
	}
}

// sendInitial delivers the current snapshot directly to one new client.
func (h *Hub) sendInitial(client *Client) {
	if h.getSnapshot == nil {
		return
	}
	frame, err := json.Marshal(Message{Type: "snapshot", Data: h.getSnapshot()})
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal initial snapshot")
		return
	}
	select {
	case client.send <- frame:
	default:
		log.Warn().Str("client", client.id).Msg("Client buffer full on initial snapshot")
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("client", c.id).Msg("WebSocket read error")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			log.Debug().Err(err).Str("client", c.id).Msg("Ignoring malformed WebSocket message")
			continue
		}

		switch msg.Type {
		case "ping":
			if frame, err := json.Marshal(Message{Type: "pong"}); err == nil {
				select {
				case c.send <- frame:
				default:
				}
			}
		case "requestSnapshot":
			c.hub.sendInitial(c)
		default:
			log.Debug().Str("client", c.id).Str("type", msg.Type).Msg("Unhandled WebSocket message")
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
