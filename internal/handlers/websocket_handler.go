package handlers

import (
	"net/http"
	"sync"
	"time"

	"settlement-backend/internal/events"
	"settlement-backend/internal/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WebSocketHandler streams settlement lifecycle events to connected
// clients. Every client receives every event; filtering happens client
// side. Slow clients are dropped rather than allowed to back up the hub.
type WebSocketHandler struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]chan events.Event
}

func NewWebSocketHandler() *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[string]chan events.Event),
	}
}

// Run consumes the event channel and fans events out to every client.
// Blocks; run it in its own goroutine.
func (h *WebSocketHandler) Run(source *events.ChanPublisher) {
	for event := range source.C {
		h.mu.Lock()
		for id, ch := range h.clients {
			select {
			case ch <- event:
			default:
				logrus.WithField("client_id", id).Warn("websocket client too slow, dropping event")
			}
		}
		h.mu.Unlock()
	}
}

// HandleWebSocket upgrades the connection and streams events until the
// client disconnects.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	clientID := uuid.New().String()
	eventChan := make(chan events.Event, 64)

	h.mu.Lock()
	h.clients[clientID] = eventChan
	h.mu.Unlock()
	metrics.WebsocketClients.Inc()
	defer func() {
		h.mu.Lock()
		delete(h.clients, clientID)
		h.mu.Unlock()
		metrics.WebsocketClients.Dec()
	}()

	logrus.WithField("client_id", clientID).Info("websocket client connected")
	_ = conn.WriteJSON(map[string]interface{}{
		"type":      "connected",
		"client_id": clientID,
		"timestamp": time.Now(),
	})

	// Read loop only answers pings and detects disconnects.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		}
	}()

	pingTicker := time.NewTicker(54 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case event := <-eventChan:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(event); err != nil {
				logrus.WithError(err).WithField("client_id", clientID).Debug("websocket write failed")
				return
			}
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readDone:
			logrus.WithField("client_id", clientID).Info("websocket client disconnected")
			return
		}
	}
}
