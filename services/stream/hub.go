// Package stream pushes freshly written quotes to websocket clients.
package stream

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"newsdesk_backend/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	DefaultMaxClients = 100
	writeTimeout      = 10 * time.Second
	pongTimeout       = 60 * time.Second
	pingInterval      = 30 * time.Second
	sendBuffer        = 64
)

// Message is the envelope written to every client
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	Time string      `json:"time"`
}

type outbound struct {
	category models.AssetCategory
	payload  []byte
}

type direct struct {
	client  *client
	payload []byte
}

type client struct {
	conn *websocket.Conn
	send chan []byte

	mu         sync.RWMutex
	categories map[models.AssetCategory]bool
}

// wants reports whether the client receives quotes of category. No subscription means everything.
func (c *client) wants(category models.AssetCategory) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.categories) == 0 || c.categories[category]
}

// Hub fans quotes out to connected clients. Slow clients are dropped.
type Hub struct {
	clients    map[*client]struct{}
	broadcast  chan outbound
	register   chan *client
	unregister chan *client
	direct     chan direct
	done       chan struct{}
	closeOnce  sync.Once
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	maxClients int
}

// NewHub creates a hub and starts its loop
func NewHub(maxClients int) *Hub {
	if maxClients <= 0 {
		maxClients = DefaultMaxClients
	}
	h := &Hub{
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		direct:     make(chan direct),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		maxClients: maxClients,
	}
	go h.run()
	return h
}

// PublishQuote queues a quote for broadcast without blocking the writer
func (h *Hub) PublishQuote(quote models.MarketQuote) {
	data, err := json.Marshal(Message{Type: "quote", Data: quote, Time: time.Now().UTC().Format(time.RFC3339)})
	if err != nil {
		log.Error().Err(err).Str("symbol", quote.Symbol).Msg("failed to encode quote for stream")
		return
	}
	select {
	case h.broadcast <- outbound{category: quote.Category, payload: data}:
	case <-h.done:
	default:
		log.Warn().Str("symbol", quote.Symbol).Msg("stream backlog full, dropping quote")
	}
}

// Shutdown disconnects every client and stops the loop
func (h *Hub) Shutdown() {
	h.closeOnce.Do(func() { close(h.done) })
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
			}
			h.clients = make(map[*client]struct{})
			h.mu.Unlock()
			log.Info().Msg("quote stream shut down")
			return

		case c := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= h.maxClients {
				h.mu.Unlock()
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server at capacity"))
				close(c.send)
				log.Warn().Int("max_clients", h.maxClients).Msg("stream client rejected")
				continue
			}
			h.clients[c] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()
			log.Debug().Int("clients", count).Msg("stream client connected")

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Debug().Int("clients", count).Msg("stream client disconnected")

		case d := <-h.direct:
			h.mu.Lock()
			if _, ok := h.clients[d.client]; ok {
				select {
				case d.client.send <- d.payload:
				default:
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				if !c.wants(msg.category) {
					continue
				}
				select {
				case c.send <- msg.payload:
				default:
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ServeWS upgrades the request and registers the connection
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if h.ClientCount() >= h.maxClients {
		http.Error(w, "server at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		categories: make(map[models.AssetCategory]bool),
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump(h)
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// readPump handles subscription commands:
// {"action":"subscribe","categories":["crypto"]} and "unsubscribe"
func (c *client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Msg("stream read error")
			}
			return
		}

		var cmd struct {
			Action     string   `json:"action"`
			Categories []string `json:"categories"`
		}
		if err := json.Unmarshal(message, &cmd); err != nil {
			continue
		}

		switch cmd.Action {
		case "subscribe", "unsubscribe":
			c.mu.Lock()
			for _, raw := range cmd.Categories {
				category, err := models.ParseCategory(raw)
				if err != nil {
					continue
				}
				if cmd.Action == "subscribe" {
					c.categories[category] = true
				} else {
					delete(c.categories, category)
				}
			}
			current := make([]models.AssetCategory, 0, len(c.categories))
			for _, category := range models.AllCategories {
				if c.categories[category] {
					current = append(current, category)
				}
			}
			c.mu.Unlock()
			c.ack(h, current)
		}
	}
}

// ack confirms the active subscription through the hub loop, which owns c.send
func (c *client) ack(h *Hub, categories []models.AssetCategory) {
	data, err := json.Marshal(Message{Type: "subscribed", Data: categories, Time: time.Now().UTC().Format(time.RFC3339)})
	if err != nil {
		return
	}
	select {
	case h.direct <- direct{client: c, payload: data}:
	case <-h.done:
	}
}
