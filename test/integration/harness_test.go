// Package integration contains integration tests that exercise the relay
// over live WebSocket connections.
//
// Each test starts its own hub and HTTP server so tests remain independent
// and can run in parallel packages without shared state.
package integration

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chatwire/relay/internal/server"
	"github.com/chatwire/relay/test/testhelpers"
)

// relay bundles everything a test needs to talk to a running instance.
type relay struct {
	hub     *server.Hub
	httpURL string
	wsURL   string
}

// startRelay boots a hub and HTTP server with permissive defaults, applying
// mutate (if non-nil) to the config first. Everything is torn down via
// t.Cleanup.
func startRelay(t *testing.T, mutate func(*server.Config)) relay {
	t.Helper()

	cfg := *server.NewConfig()
	// Generous flood budget so rapid-fire tests never trip the limiter.
	cfg.RateLimit.Burst = 200
	if mutate != nil {
		mutate(&cfg)
	}

	hub := server.NewHub(server.NewRegistry())
	go hub.Run()

	testServer := httptest.NewServer(server.SetupRoutes(hub, cfg))
	t.Cleanup(func() {
		testServer.Close()
		if err := hub.Shutdown(2 * time.Second); err != nil {
			t.Logf("Hub shutdown: %v", err)
		}
	})

	return relay{
		hub:     hub,
		httpURL: testServer.URL,
		wsURL:   "ws" + strings.TrimPrefix(testServer.URL, "http") + "/ws",
	}
}

// newUnmanagedServer starts an httptest server whose hub lifecycle the test
// drives itself, for shutdown scenarios.
func newUnmanagedServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()

	testServer := httptest.NewServer(handler)
	t.Cleanup(testServer.Close)
	return testServer
}

// dial opens a WebSocket connection against an unmanaged server.
func dial(t *testing.T, testServer *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(testServer.URL, "http") + "/ws"
	conn, err := testhelpers.ConnectWebSocket(wsURL)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// connect dials the relay and registers cleanup for the connection.
func connect(t *testing.T, r relay) *websocket.Conn {
	t.Helper()

	conn, err := testhelpers.ConnectWebSocket(r.wsURL)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// joinAs connects and joins in one step, consuming the resulting userList
// broadcast so the caller starts from a quiet connection.
func joinAs(t *testing.T, r relay, username string) *websocket.Conn {
	t.Helper()

	conn := connect(t, r)
	if err := testhelpers.Join(conn, username); err != nil {
		t.Fatalf("Failed to send join: %v", err)
	}
	env := testhelpers.ExpectEvent(t, conn, server.EventUserList)
	users := testhelpers.DecodeUserList(t, env)
	found := false
	for _, u := range users {
		if u.Username == username {
			found = true
		}
	}
	if !found {
		t.Fatalf("Join as %q did not appear in user list %v", username, testhelpers.Usernames(users))
	}
	return conn
}
