package server

import (
	"encoding/json"
	"net/http"

	"github.com/2389-research/cc-log-viewer/internal/watch"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSHandler upgrades viewer connections and streams broadcast events to them.
type WSHandler struct {
	manager  *watch.Manager
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWSHandler creates a websocket handler over the watch manager.
func NewWSHandler(manager *watch.Manager, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The viewer is served from the same host; no cross-origin policy.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Serve handles GET /ws/watch.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	h.stream(conn)
}

// stream runs one connection: an inbound pump draining control frames and an
// outbound pump forwarding events, racing to completion. Whichever finishes
// first tears the connection down, which promptly unblocks the other; the
// subscription is released when both are done.
func (h *WSHandler) stream(conn *websocket.Conn) {
	connID := uuid.NewString()
	logger := h.logger.With(zap.String("conn_id", connID))

	sub := h.manager.Subscribe()
	defer sub.Close()
	defer conn.Close()

	logger.Info("Viewer connected", zap.String("remote_addr", conn.RemoteAddr().String()))

	// Inbound: the viewer only ever sends control/close frames today, but the
	// read loop is what notices a dropped transport.
	inboundDone := make(chan struct{})
	go func() {
		defer close(inboundDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Outbound: forward every event until the viewer goes away.
	for {
		select {
		case <-inboundDone:
			logger.Info("Viewer disconnected")
			return

		case ev := <-sub.Events():
			msg, err := json.Marshal(ev)
			if err != nil {
				// One bad event must not end the stream.
				logger.Warn("Failed to serialize watch event", zap.Error(err))
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Info("Viewer send failed, closing", zap.Error(err))
				return
			}
		}
	}
}
