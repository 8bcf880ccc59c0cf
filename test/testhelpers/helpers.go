// Package testhelpers provides common utilities for testing the chatwire
// relay.
//
// It contains reusable helpers shared across unit and integration tests:
// dialing WebSocket connections, speaking the event protocol, and asserting
// on received frames, to reduce duplication in test files.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chatwire/relay/internal/server"
)

// DefaultWait is how long helpers wait for an expected frame before failing.
const DefaultWait = 2 * time.Second

// MakeRequest creates and executes an HTTP request, returning the response.
// It includes a 5-second timeout and fails the test if the request cannot be
// created or executed.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{Timeout: 5 * time.Second}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	return resp
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected
// Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// ConnectWebSocket dials the relay's WebSocket endpoint with a localhost
// Origin header and returns the connection.
func ConnectWebSocket(url string) (*websocket.Conn, error) {
	return ConnectWebSocketWithOrigin(url, "http://localhost:3000")
}

// ConnectWebSocketWithOrigin dials with an explicit Origin header, for
// exercising the origin policy.
func ConnectWebSocketWithOrigin(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	headers := http.Header{}
	headers.Set("Origin", origin)

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// SendEvent marshals a payload into an envelope and sends it as one frame.
func SendEvent(conn *websocket.Conn, event string, payload any) error {
	data, err := server.EncodeEvent(event, payload)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Join sends a join request for the given username.
func Join(conn *websocket.Conn, username string) error {
	return SendEvent(conn, server.EventJoin, server.JoinRequest{Username: username})
}

// ReceiveEvent reads the next frame within the timeout and decodes its
// envelope.
func ReceiveEvent(conn *websocket.Conn, timeout time.Duration) (server.Envelope, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return server.Envelope{}, err
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return server.Envelope{}, err
	}
	return server.DecodeEnvelope(raw)
}

// ExpectEvent reads the next frame and fails the test unless it carries the
// wanted event name.
func ExpectEvent(t *testing.T, conn *websocket.Conn, want string) server.Envelope {
	t.Helper()

	env, err := ReceiveEvent(conn, DefaultWait)
	if err != nil {
		t.Fatalf("Expected %q event, got read error: %v", want, err)
	}
	if env.Event != want {
		t.Fatalf("Expected %q event, got %q (data: %s)", want, env.Event, env.Data)
	}
	return env
}

// ExpectNoEvent fails the test if any frame arrives within the given window.
// The read deadline it relies on permanently fails the connection's read
// side, so only call this on connections the test will not read from again.
func ExpectNoEvent(t *testing.T, conn *websocket.Conn, window time.Duration) {
	t.Helper()

	env, err := ReceiveEvent(conn, window)
	if err == nil {
		t.Fatalf("Expected no event, got %q (data: %s)", env.Event, env.Data)
	}
}

// DecodeUserList extracts the presence snapshot from a userList envelope.
func DecodeUserList(t *testing.T, env server.Envelope) []server.Session {
	t.Helper()

	var list server.UserList
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatalf("Failed to decode user list payload: %v", err)
	}
	return list.Users
}

// Usernames projects a snapshot down to display names, in order.
func Usernames(sessions []server.Session) []string {
	names := make([]string, 0, len(sessions))
	for _, s := range sessions {
		names = append(names, s.Username)
	}
	return names
}

// ExpectUserList reads a userList event and asserts its usernames in order.
func ExpectUserList(t *testing.T, conn *websocket.Conn, want ...string) []server.Session {
	t.Helper()

	env := ExpectEvent(t, conn, server.EventUserList)
	users := DecodeUserList(t, env)
	got := Usernames(users)
	if len(got) != len(want) {
		t.Fatalf("Expected user list %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected user list %v, got %v", want, got)
		}
	}
	return users
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
