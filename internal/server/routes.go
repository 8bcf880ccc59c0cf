// Package server wires HTTP handlers into a ServeMux for the chatwire
// relay.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application
// routes: health check, WebSocket endpoint, and the built-in test page.
func SetupRoutes(hub *Hub, cfg Config) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", NewWebSocketHandler(hub, cfg))
	mux.HandleFunc("/test", TestPageHandler)
	return mux
}
