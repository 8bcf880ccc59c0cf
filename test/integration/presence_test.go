package integration

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/chatwire/relay/internal/server"
	"github.com/chatwire/relay/test/testhelpers"
)

// TestJoinBroadcastsPresenceSnapshot verifies that every successful join
// pushes the full, ordered user list to all connected clients, the newcomer
// included.
func TestJoinBroadcastsPresenceSnapshot(t *testing.T) {
	r := startRelay(t, nil)

	connA := connect(t, r)
	if err := testhelpers.Join(connA, "alice"); err != nil {
		t.Fatalf("Failed to send join: %v", err)
	}
	testhelpers.ExpectUserList(t, connA, "alice")

	connB := connect(t, r)
	if err := testhelpers.Join(connB, "bob"); err != nil {
		t.Fatalf("Failed to send join: %v", err)
	}
	testhelpers.ExpectUserList(t, connB, "alice", "bob")
	testhelpers.ExpectUserList(t, connA, "alice", "bob")
}

// TestDuplicateUsernameRejected verifies the uniqueness invariant: a second
// join for an active name receives usernameTaken, the registry is unchanged,
// and the rejected connection may retry with a different name.
func TestDuplicateUsernameRejected(t *testing.T) {
	r := startRelay(t, nil)

	connA := joinAs(t, r, "alice")

	connB := connect(t, r)
	if err := testhelpers.Join(connB, "alice"); err != nil {
		t.Fatalf("Failed to send join: %v", err)
	}
	env := testhelpers.ExpectEvent(t, connB, server.EventUsernameTaken)

	var rejection server.Rejection
	if err := json.Unmarshal(env.Data, &rejection); err != nil {
		t.Fatalf("Failed to decode rejection: %v", err)
	}
	if rejection.Reason == "" {
		t.Error("Rejection carries no reason")
	}

	if got := r.hub.Registry().Len(); got != 1 {
		t.Errorf("Expected 1 session after rejected join, got %d", got)
	}

	// The connection stays open and un-joined; a retry succeeds.
	if err := testhelpers.Join(connB, "bob"); err != nil {
		t.Fatalf("Failed to send retry join: %v", err)
	}
	testhelpers.ExpectUserList(t, connB, "alice", "bob")

	// The rejection was unicast: the very next thing the existing user sees
	// is the retry's presence snapshot, nothing in between.
	testhelpers.ExpectUserList(t, connA, "alice", "bob")
}

// TestInvalidJoinRejected verifies that a join without a usable username is
// answered with invalidUsername and never creates a session.
func TestInvalidJoinRejected(t *testing.T) {
	r := startRelay(t, nil)

	conn := connect(t, r)

	for _, data := range []string{`{"username":""}`, `{}`, `{"username":7}`} {
		if err := testhelpers.SendEvent(conn, server.EventJoin, json.RawMessage(data)); err != nil {
			t.Fatalf("Failed to send join %s: %v", data, err)
		}
		testhelpers.ExpectEvent(t, conn, server.EventInvalidUsername)
	}

	if got := r.hub.Registry().Len(); got != 0 {
		t.Errorf("Expected empty registry, got %d sessions", got)
	}
}

// TestDisconnectUpdatesPresence verifies that closing a joined connection
// removes its session and rebroadcasts the shrunken list to the remainder.
func TestDisconnectUpdatesPresence(t *testing.T) {
	r := startRelay(t, nil)

	connA := joinAs(t, r, "alice")
	connB := joinAs(t, r, "bob")
	testhelpers.ExpectUserList(t, connA, "alice", "bob")

	if err := testhelpers.CloseWebSocket(connA); err != nil {
		t.Fatalf("Failed to close connection: %v", err)
	}

	testhelpers.ExpectUserList(t, connB, "bob")
}

// TestNeverJoinedDisconnectIsSilent verifies idempotent cleanup: a
// connection that never joined can disconnect without disturbing anyone's
// presence view.
func TestNeverJoinedDisconnectIsSilent(t *testing.T) {
	r := startRelay(t, nil)

	connA := joinAs(t, r, "alice")

	lurker := connect(t, r)
	time.Sleep(50 * time.Millisecond)
	if err := testhelpers.CloseWebSocket(lurker); err != nil {
		t.Fatalf("Failed to close connection: %v", err)
	}

	testhelpers.ExpectNoEvent(t, connA, 300*time.Millisecond)
	if got := r.hub.Registry().Len(); got != 1 {
		t.Errorf("Expected 1 session, got %d", got)
	}
}

// TestRepeatJoinIgnored verifies that a joined connection cannot change its
// name by joining again.
func TestRepeatJoinIgnored(t *testing.T) {
	r := startRelay(t, nil)

	conn := joinAs(t, r, "alice")

	if err := testhelpers.Join(conn, "alice2"); err != nil {
		t.Fatalf("Failed to send repeat join: %v", err)
	}

	// A marker message sent afterwards must be the next frame: the repeat
	// join produced no response and no presence broadcast.
	if err := testhelpers.SendEvent(conn, server.EventChatMessage, json.RawMessage(`{"text":"marker"}`)); err != nil {
		t.Fatalf("Failed to send marker: %v", err)
	}
	testhelpers.ExpectEvent(t, conn, server.EventChatMessage)

	users := r.hub.Registry().Snapshot()
	if len(users) != 1 || users[0].Username != "alice" {
		t.Errorf("Expected registry [alice], got %v", testhelpers.Usernames(users))
	}
}

// TestEndToEndScenario walks the full join / collision / chat / disconnect
// sequence across two clients.
func TestEndToEndScenario(t *testing.T) {
	r := startRelay(t, nil)

	// Connect A, join "alice" -> A receives userList=[alice].
	connA := connect(t, r)
	if err := testhelpers.Join(connA, "alice"); err != nil {
		t.Fatalf("Failed to send join: %v", err)
	}
	testhelpers.ExpectUserList(t, connA, "alice")

	// Connect B, join "alice" -> B receives usernameTaken, registry unchanged.
	connB := connect(t, r)
	if err := testhelpers.Join(connB, "alice"); err != nil {
		t.Fatalf("Failed to send join: %v", err)
	}
	testhelpers.ExpectEvent(t, connB, server.EventUsernameTaken)
	if got := r.hub.Registry().Len(); got != 1 {
		t.Fatalf("Expected 1 session, got %d", got)
	}

	// B joins "bob" -> both receive userList=[alice, bob].
	if err := testhelpers.Join(connB, "bob"); err != nil {
		t.Fatalf("Failed to send join: %v", err)
	}
	testhelpers.ExpectUserList(t, connA, "alice", "bob")
	testhelpers.ExpectUserList(t, connB, "alice", "bob")

	// A sends a chat message -> both A and B receive it.
	payload := json.RawMessage(`{"author":"alice","text":"hi"}`)
	if err := testhelpers.SendEvent(connA, server.EventChatMessage, payload); err != nil {
		t.Fatalf("Failed to send chat message: %v", err)
	}
	envA := testhelpers.ExpectEvent(t, connA, server.EventChatMessage)
	envB := testhelpers.ExpectEvent(t, connB, server.EventChatMessage)
	for _, env := range []struct {
		who string
		raw json.RawMessage
	}{{"A", envA.Data}, {"B", envB.Data}} {
		var msg struct {
			Author string `json:"author"`
			Text   string `json:"text"`
		}
		if err := json.Unmarshal(env.raw, &msg); err != nil {
			t.Fatalf("Client %s: failed to decode relayed message: %v", env.who, err)
		}
		if msg.Author != "alice" || msg.Text != "hi" {
			t.Errorf("Client %s: expected alice/hi, got %+v", env.who, msg)
		}
	}

	// A disconnects -> B receives userList=[bob].
	if err := testhelpers.CloseWebSocket(connA); err != nil {
		t.Fatalf("Failed to close connection: %v", err)
	}
	testhelpers.ExpectUserList(t, connB, "bob")
}
