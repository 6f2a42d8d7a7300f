package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"

	"github.com/iudofia2026/youtubedubber.com-sub004/internal/model"
)

// Client represents a WebSocket client subscribed to one job.
type Client struct {
	JobID string
	Conn  *websocket.Conn
	Send  chan []byte

	mu     sync.Mutex
	closed bool
}

// trySend queues a message unless the client is already closed. It
// reports whether the client is keeping up; a full buffer means it is
// not.
func (c *Client) trySend(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.Send <- message:
		return true
	default:
		return false
	}
}

// close makes further sends no-ops and wakes the writer. Safe to call
// more than once.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

// Hub maintains active WebSocket connections grouped by job id and
// broadcasts task/job state transitions to them. Delivery is
// best-effort: slow clients are dropped, and the state store stays the
// source of truth for polling.
type Hub struct {
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	log *zap.Logger
	mu  sync.RWMutex
}

// BroadcastMessage represents a message to broadcast.
type BroadcastMessage struct {
	JobID   string
	Message []byte
}

// NewHub creates a new Hub.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
		log:        log,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.JobID] == nil {
				h.clients[client.JobID] = make(map[*Client]bool)
			}
			h.clients[client.JobID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.JobID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					client.close()
					if len(clients) == 0 {
						delete(h.clients, client.JobID)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// deliver fans a message out to the job's subscribers, dropping clients
// that cannot keep up.
func (h *Hub) deliver(msg *BroadcastMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.clients[msg.JobID]; ok {
		for client := range clients {
			if !client.trySend(msg.Message) {
				client.close()
				delete(clients, client)
			}
		}
		if len(clients) == 0 {
			delete(h.clients, msg.JobID)
		}
	}
}

// NotifyTaskState sends a stage transition to the job's subscribers.
func (h *Hub) NotifyTaskState(jobID, language string, state model.TaskState, resultRef string) {
	h.send(jobID, model.WSStageMessage{
		Type:      model.WSMessageTypeStage,
		JobID:     jobID,
		Language:  language,
		State:     state,
		ResultRef: resultRef,
	})
}

// NotifyTaskError sends a per-language failure to the job's subscribers.
func (h *Hub) NotifyTaskError(jobID, language string, reason model.FailureReason, message string) {
	h.send(jobID, model.WSErrorMessage{
		Type:     model.WSMessageTypeError,
		JobID:    jobID,
		Language: language,
		Reason:   reason,
		Message:  message,
	})
}

// NotifyJobState sends an aggregate state change to the job's subscribers.
func (h *Hub) NotifyJobState(jobID string, state model.JobState) {
	h.send(jobID, model.WSJobStateMessage{
		Type:  model.WSMessageTypeJobState,
		JobID: jobID,
		State: state,
	})
}

func (h *Hub) send(jobID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to marshal ws message", zap.Error(err))
		return
	}
	h.broadcast <- &BroadcastMessage{JobID: jobID, Message: data}
}

// HandleConnection services one WebSocket connection until it closes.
func (h *Hub) HandleConnection(c *websocket.Conn, jobID string) {
	client := &Client{
		JobID: jobID,
		Conn:  c,
		Send:  make(chan []byte, 256),
	}

	h.register <- client
	defer func() { h.unregister <- client }()

	// Writer goroutine with keep-alive pings.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop.
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debug("websocket closed unexpectedly", zap.Error(err))
			}
			break
		}

		var msg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == model.WSMessageTypePing {
			data, _ := json.Marshal(map[string]string{"type": model.WSMessageTypePong})
			client.trySend(data)
		}
	}
}
