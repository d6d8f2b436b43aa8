package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Publisher is the fire-and-forget realtime notification seam. Events are
// scoped to the owning team. Implementations must never fail the operation
// that triggered the event.
type Publisher interface {
	Publish(teamID, eventType string, data interface{})
}

// Event types published by the dispatch subsystem
const (
	EventMessageSent      = "message.sent"
	EventChatUpdated      = "chat.updated"
	EventCampaignProgress = "campaign.progress"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// Client represents a connected WebSocket client
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	teamID string
	send   chan []byte
}

// Hub maintains the set of active clients and fans events out to the clients
// of the owning team
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	mu         sync.Mutex
}

type envelope struct {
	teamID  string
	payload []byte
}

func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan envelope, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Println("WebSocket client registered")
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			log.Println("WebSocket client unregistered")
		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if msg.teamID != "" && client.teamID != msg.teamID {
					continue
				}
				select {
				case client.send <- msg.payload:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

type WSEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Publish fans an event out to the team's clients. An empty team id reaches
// every client. Delivery is best-effort: a full or closed hub drops the
// event rather than blocking the sender.
func (h *Hub) Publish(teamID, eventType string, data interface{}) {
	event := WSEvent{Type: eventType, Data: data}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling WS event: %v", err)
		return
	}
	select {
	case h.broadcast <- envelope{teamID: teamID, payload: payload}:
	default:
		log.Printf("WS hub backlogged, dropping %s event", eventType)
	}
}

func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request, teamID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	client := &Client{hub: h, conn: conn, teamID: teamID, send: make(chan []byte, 256)}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		// We don't expect messages FROM the client, just heartbeats or nothing.
	}
}

func (c *Client) writePump() {
	defer func() {
		c.conn.Close()
	}()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// NopPublisher discards events. Used where no hub is wired, e.g. tests.
type NopPublisher struct{}

func (NopPublisher) Publish(string, string, interface{}) {}

var _ Publisher = (*Hub)(nil)
var _ Publisher = NopPublisher{}
