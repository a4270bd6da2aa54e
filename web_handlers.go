package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/elijahnyp/roomsense/state"
	. "github.com/elijahnyp/roomsense/util"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketMessage is one event on the /ws feed.
type WebSocketMessage struct {
	Data interface{} `json:"data"`
	Type string      `json:"type"`
	At   int64       `json:"at"`
}

type WSClient struct {
	conn *websocket.Conn
	send chan WebSocketMessage
	hub  *WSHub
}

// WSHub maintains the set of active clients and broadcasts session events.
type WSHub struct {
	clients    map[*WSClient]bool
	broadcast  chan WebSocketMessage
	register   chan *WSClient
	unregister chan *WSClient
}

func NewHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan WebSocketMessage, 64),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
}

func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			Logger.Info().Msg("Client connected to WebSocket")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				Logger.Info().Msg("Client disconnected from WebSocket")
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// BroadcastUpdate never blocks a session loop. A nil hub drops the update.
func (h *WSHub) BroadcastUpdate(messageType string, data interface{}) {
	if h == nil {
		return
	}
	select {
	case h.broadcast <- WebSocketMessage{Type: messageType, Data: data, At: time.Now().Unix()}:
	default:
	}
}

func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		if err := c.conn.Close(); err != nil {
			Logger.Debug().Err(err).Msg("Error closing WebSocket connection")
		}
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *WSClient) writePump() {
	defer func() {
		if err := c.conn.Close(); err != nil {
			Logger.Debug().Err(err).Msg("Error closing WebSocket connection")
		}
	}()

	for message := range c.send {
		if err := c.conn.WriteJSON(message); err != nil {
			return
		}
	}
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		Logger.Debug().Err(err).Msg("Error writing close message")
	}
}

// ServeWebSocket returns the /ws handler bound to hub.
func ServeWebSocket(hub *WSHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			Logger.Error().Err(err).Msg("WebSocket upgrade failed")
			return
		}

		client := &WSClient{
			conn: conn,
			send: make(chan WebSocketMessage, 256),
			hub:  hub,
		}
		hub.register <- client

		go client.writePump()
		go client.readPump()
	}
}

// SystemStatus is the /api/status document.
type SystemStatus struct {
	state.Snapshot
	TotalZones    int `json:"total_zones"`
	OccupiedZones int `json:"occupied_zones"`
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger.Error().Err(err).Msg("Error encoding response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// APISystemStatus serves a snapshot of every session.
func APISystemStatus(store *state.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Bad Request Method", http.StatusBadRequest)
			return
		}
		snap := store.Snapshot()
		status := SystemStatus{Snapshot: snap, TotalZones: len(snap.Zones)}
		for _, z := range snap.Zones {
			if z.State == "present" {
				status.OccupiedZones++
			}
		}
		writeJSON(w, status)
	}
}

// APIZoneDetail serves one zone by ?room=, 404 when the room is not
// configured. current returns the live model, which a reload may swap.
func APIZoneDetail(store *state.Store, current func() *Model) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Bad Request Method", http.StatusBadRequest)
			return
		}
		room := r.URL.Query().Get("room")
		if room == "" {
			http.Error(w, "Room name required", http.StatusBadRequest)
			return
		}
		if _, ok := current().FindZone(room); !ok {
			http.Error(w, "Room not found", http.StatusNotFound)
			return
		}
		z, ok := store.Zone(room)
		if !ok {
			z = state.ZoneStatus{Room: room, State: "unknown"}
		}
		writeJSON(w, z)
	}
}
