package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
)

// wsSubscriber adapts a gorilla/websocket connection to EventSubscriber.
type wsSubscriber struct {
	baseSubscriber
	conn   *websocket.Conn
	cancel context.CancelFunc
}

func newWSSubscriber(conn *websocket.Conn, logger *slog.Logger) *wsSubscriber {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New().String()
	return &wsSubscriber{
		baseSubscriber: baseSubscriber{id: id, ctx: ctx},
		conn:           conn,
		cancel:         cancel,
	}
}

// Send writes one event to the underlying websocket connection.
func (s *wsSubscriber) Send(event Event) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(event)
}

// Close tears down the connection and cancels the subscriber's context.
func (s *wsSubscriber) Close() error {
	s.cancel()
	return s.conn.Close()
}

// Handler upgrades an HTTP connection to a websocket and streams ops-feed
// events to it for the life of the connection.
type Handler struct {
	bus    EventBus
	logger *slog.Logger
}

// NewHandler builds the ops-feed websocket handler.
func NewHandler(bus EventBus, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{bus: bus, logger: logger.With("component", "realtime_handler")}
}

// ServeWS handles GET /ws/ops: one subscriber per connection, unsubscribed
// automatically once the read pump detects the client is gone.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade websocket connection", "error", err, "remote_addr", r.RemoteAddr)
		return
	}

	sub := newWSSubscriber(conn, h.logger)
	if err := h.bus.Subscribe(sub); err != nil {
		h.logger.Error("failed to subscribe ops-feed client", "error", err)
		conn.Close()
		return
	}
	h.logger.Info("ops-feed client connected", "subscriber_id", sub.ID(), "remote_addr", conn.RemoteAddr().String())

	go h.readPump(sub)
}

// readPump keeps the connection alive with ping/pong and detects client
// disconnects, unsubscribing once the read loop exits.
func (h *Handler) readPump(sub *wsSubscriber) {
	defer func() {
		h.bus.Unsubscribe(sub)
		h.logger.Info("ops-feed client disconnected", "subscriber_id", sub.ID())
	}()

	conn := sub.conn
	conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-sub.Context().Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
