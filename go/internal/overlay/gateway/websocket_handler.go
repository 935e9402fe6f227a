package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	"github.com/jaymepena/debatelords/go/internal/overlay/events"
)

// EventHandler owns the overlay state that sessions observe and mutate.
type EventHandler interface {
	// Join delivers the current snapshot to a newly registered session.
	Join(deliver func(*events.Event))
	HandleEvent(ctx context.Context, event *events.Event) error
}

// WebSocketHandler handles WebSocket upgrade requests for overlay sessions
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	handler           EventHandler
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager, handler EventHandler) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		handler:           handler,
	}
}

// HandleConnection upgrades the request, sends the session its snapshot and
// then feeds every client frame to the event handler until the socket closes.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := h.connectionManager.UpgradeConnection(w, r)
	if err != nil {
		// The upgrader has already replied to the client.
		log.Error().Err(err).Str("remote_addr", r.RemoteAddr).Msg("failed to upgrade WebSocket connection")
		return
	}

	// Registered before joining, so every broadcast queued after the
	// snapshot reaches this session.
	h.handler.Join(func(ev *events.Event) {
		h.connectionManager.SendTo(conn.ID, ev)
	})

	ctx := r.Context()
	conn.readPump(func(frame []byte) {
		h.handleClientMessage(ctx, conn, frame)
	})
}

func (h *WebSocketHandler) handleClientMessage(ctx context.Context, conn *Connection, frame []byte) {
	event, err := events.Decode(frame)
	if err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", conn.ID).
			Msg("dropping malformed client message")
		return
	}

	if err := h.handler.HandleEvent(ctx, event); err != nil {
		logEvent := log.Warn()
		if errors.Is(err, context.Canceled) {
			logEvent = log.Debug()
		}
		logEvent.
			Err(err).
			Str("connection_id", conn.ID).
			Str("event_type", string(event.Type)).
			Msg("client event rejected")
		return
	}

	log.Debug().
		Str("connection_id", conn.ID).
		Str("event_type", string(event.Type)).
		Msg("client event applied")
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/ws", h.HandleConnection)
}
