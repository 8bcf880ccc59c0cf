// Package server exposes HTTP handlers, including the WebSocket upgrade and
// health check endpoints.
package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

// NewWebSocketHandler returns the handler for WebSocket upgrade requests.
// It enforces GET, applies the configured origin policy, upgrades the
// connection, and registers the resulting client with the hub, which then
// launches the pump goroutines.
func NewWebSocketHandler(hub *Hub, cfg Config) http.HandlerFunc {
	policy := newOriginPolicy(cfg.AllowedOrigins)
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     policy.checkOrigin,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed: %v", err)
			return
		}

		client := NewClient(conn, hub, r.RemoteAddr, cfg)
		select {
		case hub.register <- client:
		case <-hub.ctx.Done():
			// The event loop is gone; nobody will accept this registration.
			log.Printf("Hub is shutting down; dropping new connection from %s", r.RemoteAddr)
			_ = conn.Close()
		}
	}
}

// HealthHandler provides a simple health check endpoint that returns server
// status as plain text.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "chatwire relay is running!")
}
