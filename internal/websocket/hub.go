package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/edutalk/api/internal/model"
	"github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog/log"
)

const (
	sendBufferSize = 64
	pingInterval   = 30 * time.Second
)

// Client is one WebSocket subscriber of a job
type Client struct {
	JobID string
	Conn  *websocket.Conn
	Send  chan []byte
}

// BroadcastMessage is a frame addressed to the subscribers of one job, or to a
// single subscriber when Client is set
type BroadcastMessage struct {
	JobID   string
	Client  *Client
	Message []byte
}

// Hub fans job events out to WebSocket subscribers
type Hub struct {
	// Clients grouped by job ID
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	done       chan struct{}

	mu sync.RWMutex
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
		done:       make(chan struct{}),
	}
}

// Run dispatches registrations and broadcasts until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.JobID] == nil {
				h.clients[client.JobID] = make(map[*Client]bool)
			}
			h.clients[client.JobID][client] = true
			h.mu.Unlock()
			log.Debug().Str("job_id", client.JobID).Msg("websocket client registered")

		case client := <-h.unregister:
			h.remove(client)
			log.Debug().Str("job_id", client.JobID).Msg("websocket client unregistered")

		case msg := <-h.broadcast:
			h.mu.Lock()
			if msg.Client != nil {
				if h.clients[msg.JobID][msg.Client] {
					h.deliverLocked(msg.Client, msg.Message)
				}
			} else {
				for client := range h.clients[msg.JobID] {
					h.deliverLocked(client, msg.Message)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Subscribers returns the number of clients watching a job
func (h *Hub) Subscribers(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[jobID])
}

// deliverLocked drops a slow subscriber rather than stall the hub.
func (h *Hub) deliverLocked(client *Client, message []byte) {
	select {
	case client.Send <- message:
	default:
		h.dropLocked(client)
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(client)
}

func (h *Hub) dropLocked(client *Client) {
	clients, ok := h.clients[client.JobID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.clients, client.JobID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.clients {
		for client := range clients {
			h.dropLocked(client)
		}
	}
}

// BroadcastProgress sends a status/message update to all job subscribers
func (h *Hub) BroadcastProgress(jobID string, status model.JobStatus, message string) {
	h.send(jobID, model.WSProgressMessage{
		Type:    model.WSMessageTypeProgress,
		JobID:   jobID,
		Status:  status,
		Message: message,
	})
}

// BroadcastComplete sends the final job view to all job subscribers
func (h *Hub) BroadcastComplete(jobID string, result *model.JobStatusResponse) {
	h.send(jobID, model.WSCompleteMessage{
		Type:   model.WSMessageTypeComplete,
		JobID:  jobID,
		Result: result,
	})
}

// BroadcastError sends an error message to all job subscribers
func (h *Hub) BroadcastError(jobID string, code, message string) {
	h.send(jobID, model.WSErrorMessage{
		Type:  model.WSMessageTypeError,
		JobID: jobID,
		Error: model.WSError{
			Code:    code,
			Message: message,
		},
	})
}

func (h *Hub) send(jobID string, msg interface{}) {
	h.sendTo(jobID, nil, msg)
}

// sendTo never blocks the pipeline; events are dropped when the hub falls behind.
func (h *Hub) sendTo(jobID string, client *Client, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("failed to marshal websocket message")
		return
	}

	select {
	case h.broadcast <- &BroadcastMessage{JobID: jobID, Client: client, Message: data}:
	default:
		log.Warn().Str("job_id", jobID).Msg("websocket broadcast queue full, dropping event")
	}
}

// HandleConnection serves one subscriber until it disconnects. The current job
// state, when known, is sent first.
func (h *Hub) HandleConnection(c *websocket.Conn, jobID string, initial []byte) {
	client := &Client{
		JobID: jobID,
		Conn:  c,
		Send:  make(chan []byte, sendBufferSize),
	}
	if initial != nil {
		client.Send <- initial
	}

	select {
	case h.register <- client:
	case <-h.done:
		return
	}
	defer func() {
		select {
		case h.unregister <- client:
		case <-h.done:
		}
	}()

	go writePump(client)

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("job_id", jobID).Msg("websocket read error")
			}
			return
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == model.WSMessageTypePing {
			h.sendTo(jobID, client, model.WSMessage{Type: model.WSMessageTypePong})
		}
	}
}

func writePump(client *Client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.Send:
			if !ok {
				_ = client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
