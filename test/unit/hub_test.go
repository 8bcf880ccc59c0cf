package unit

import (
	"testing"
	"time"

	"github.com/chatwire/relay/internal/server"
)

// TestNewHub verifies that NewHub returns a properly initialized Hub wired
// to the registry it was given.
func TestNewHub(t *testing.T) {
	registry := server.NewRegistry()
	hub := server.NewHub(registry)

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.Registry() != registry {
		t.Error("Hub does not expose the registry it was constructed with")
	}
}

// TestHubChannels verifies that the register and unregister channels are
// accessible through their getter methods.
func TestHubChannels(t *testing.T) {
	hub := server.NewHub(server.NewRegistry())

	if hub.GetRegisterChan() == nil {
		t.Error("Register channel is nil")
	}
	if hub.GetUnregisterChan() == nil {
		t.Error("Unregister channel is nil")
	}
}

// TestHubIgnoresNilRegistration verifies that a nil client registration is
// skipped without panicking the event loop.
func TestHubIgnoresNilRegistration(t *testing.T) {
	hub := server.NewHub(server.NewRegistry())
	go hub.Run()

	select {
	case hub.GetRegisterChan() <- nil:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Hub did not accept registration")
	}

	if err := hub.Shutdown(time.Second); err != nil {
		t.Errorf("Hub shutdown failed: %v", err)
	}
}

// TestHubIgnoresUnknownUnregistration verifies that unregistering a client
// the hub never saw does not disturb the registry or the event loop.
func TestHubIgnoresUnknownUnregistration(t *testing.T) {
	registry := server.NewRegistry()
	hub := server.NewHub(registry)
	go hub.Run()

	stranger := server.NewClient(nil, hub, "127.0.0.1:12345", *server.NewConfig())

	select {
	case hub.GetUnregisterChan() <- stranger:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Hub did not accept unregistration")
	}

	time.Sleep(10 * time.Millisecond)
	if registry.Len() != 0 {
		t.Errorf("Expected empty registry, got %d sessions", registry.Len())
	}

	if err := hub.Shutdown(time.Second); err != nil {
		t.Errorf("Hub shutdown failed: %v", err)
	}
}

// TestHubShutdownCompletes verifies that Shutdown returns promptly when no
// clients are connected.
func TestHubShutdownCompletes(t *testing.T) {
	hub := server.NewHub(server.NewRegistry())
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	if err := hub.Shutdown(time.Second); err != nil {
		t.Errorf("Hub shutdown failed: %v", err)
	}
}
