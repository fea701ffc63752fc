package live

import (
	"context"
	"log"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/mikrogrup/itbot/backend/internal/middleware"
	chatService "github.com/mikrogrup/itbot/backend/internal/service/chat"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// WebSocketHandler carries the conversation over a single WebSocket per browser tab.
type WebSocketHandler struct {
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates the handler. Cross-origin upgrades are accepted only from
// allowedOrigins; same-origin requests always pass.
func NewWebSocketHandler(allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host {
					return true
				}
				return slices.Contains(allowedOrigins, origin)
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the WebSocket endpoint.
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/conversation/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	coord, err := session.Coordinator()
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[websocket] new connection for session: %s", session.ID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, unsubscribe := coord.Subscribe(32)
	defer unsubscribe()

	out := make(chan outgoingMessage, 32)
	var writers sync.WaitGroup
	writers.Add(1)
	go func() {
		defer writers.Done()
		h.writeLoop(ctx, conn, out)
	}()
	defer writers.Wait()

	out <- frame("connected", map[string]any{
		"sessionId": session.ID,
		"snapshot":  coord.Snapshot(),
	})

	go h.forwardEvents(ctx, cancel, events, out)

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Stops the writer before writers.Wait runs.
	defer cancel()

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		switch msg.Type {
		case "message":
			// A turn outlives the socket so its reply still lands in the transcript. The
			// reply reaches this client through the event subscription.
			go coord.SubmitUserTurn(context.WithoutCancel(ctx), msg.Text)
		case "ping":
			h.enqueue(ctx, out, frame("pong", nil))
		default:
			h.enqueue(ctx, out, frame("error", map[string]string{"message": "unsupported message type: " + msg.Type}))
		}
	}
}

// forwardEvents relays coordinator events until the transcript is closed by sign-out.
func (h *WebSocketHandler) forwardEvents(ctx context.Context, cancel context.CancelFunc, events <-chan chatService.Event, out chan<- outgoingMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, open := <-events:
			if !open {
				cancel()
				return
			}
			switch evt.Type {
			case chatService.EventMessage:
				h.enqueue(ctx, out, frame("message", evt.Message))
			case chatService.EventComposing:
				h.enqueue(ctx, out, frame("composing", map[string]bool{"composing": evt.Composing}))
			}
		}
	}
}

// writeLoop owns every write to conn, pings included.
func (h *WebSocketHandler) writeLoop(ctx context.Context, conn *websocket.Conn, out <-chan outgoingMessage) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			_ = conn.Close()
			return
		case msg := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("[websocket] write failed: %v", err)
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

func (h *WebSocketHandler) enqueue(ctx context.Context, out chan<- outgoingMessage, msg outgoingMessage) {
	select {
	case out <- msg:
	case <-ctx.Done():
	}
}

func frame(kind string, data interface{}) outgoingMessage {
	return outgoingMessage{Type: kind, Data: data, Timestamp: time.Now().Unix()}
}
