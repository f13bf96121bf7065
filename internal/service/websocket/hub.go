package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"objectvision/internal/logger"
)

// PongWait is the read deadline viewers must refresh by answering pings.
const PongWait = 60 * time.Second

const (
	writeWait  = 10 * time.Second
	pingPeriod = PongWait * 9 / 10
	sendBuffer = 16
)

// Event is broadcast to viewers after every successful prediction.
type Event struct {
	RequestID       string    `json:"request_id"`
	Source          string    `json:"source"`
	DetectedObjects []string  `json:"detected_objects"`
	NumDetected     int       `json:"num_detected"`
	Threshold       float64   `json:"threshold"`
	InferenceTime   float64   `json:"inference_time"`
	Timestamp       time.Time `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// HubService fans prediction events out to connected viewers. A viewer that
// cannot keep up is disconnected.
type HubService struct {
	clients    map[*websocket.Conn]*client
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	count      chan chan int
	done       chan struct{}
	logger     *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]*client),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		count:      make(chan chan int),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves hub operations until ctx is cancelled, then closes every viewer.
func (h *HubService) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for conn := range h.clients {
				h.remove(conn)
			}
			h.logger.Info("Event hub stopped")
			return

		case conn := <-h.register:
			c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
			h.clients[conn] = c
			go h.writePump(c)
			h.logger.Info("Viewer connected. Total: %d", len(h.clients))

		case conn := <-h.unregister:
			if _, ok := h.clients[conn]; ok {
				h.remove(conn)
				h.logger.Info("Viewer disconnected. Total: %d", len(h.clients))
			}

		case message := <-h.broadcast:
			for conn, c := range h.clients {
				select {
				case c.send <- message:
				default:
					h.logger.Warning("Dropping slow viewer %s", conn.RemoteAddr())
					h.remove(conn)
				}
			}

		case reply := <-h.count:
			reply <- len(h.clients)
		}
	}
}

// remove must only be called from Run.
func (h *HubService) remove(conn *websocket.Conn) {
	c := h.clients[conn]
	delete(h.clients, conn)
	close(c.send)
}

func (h *HubService) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Error("Error sending message: %v", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Register adds a viewer. The hub owns writes to conn from now on.
func (h *HubService) Register(conn *websocket.Conn) {
	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
	}
}

func (h *HubService) Unregister(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Broadcast queues an event for every viewer. It never blocks on viewers;
// when the queue is full the event is dropped.
func (h *HubService) Broadcast(event Event) {
	message, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Error encoding event: %v", err)
		return
	}

	select {
	case h.broadcast <- message:
	case <-h.done:
	default:
		h.logger.Warning("Event queue full, dropping event %s", event.RequestID)
	}
}

// GetClientCount returns the number of connected viewers.
func (h *HubService) GetClientCount() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}
