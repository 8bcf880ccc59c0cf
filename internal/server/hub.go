// Package server coordinates client registration, event routing, and
// connection cleanup for the chatwire relay via the Hub type.
package server

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// frame is one raw inbound message together with the connection it arrived
// on.
type frame struct {
	sender *Client
	raw    []byte
}

// Hub owns the Registry and routes every inbound event. All registration,
// unregistration, and fanout decisions run on the single Run goroutine, so
// events are processed one at a time in arrival order and the Registry's
// check-then-mutate sequences are never interleaved.
type Hub struct {
	registry   *Registry
	clients    map[*Client]bool
	inbound    chan frame
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a Hub around the given Registry. The Registry instance is
// owned by the hub from this point on; no other component mutates it.
func NewHub(registry *Registry) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		registry:   registry,
		clients:    make(map[*Client]bool),
		inbound:    make(chan frame),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Registry exposes the hub's registry for inspection. Callers must treat it
// as read-only; all mutation goes through the event loop.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// GetRegisterChan returns the channel used for registering new clients.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for unregistering clients.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// Run starts the hub's event loop. It should be called in its own goroutine
// as it blocks until Shutdown is invoked.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				log.Printf("Received nil client registration; skipping")
				continue
			}
			h.addClient(client)

		case client := <-h.unregister:
			h.dropClient(client)

		case f := <-h.inbound:
			h.route(f)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mutex.Lock()
	client.closed = false
	h.clients[client] = true
	clientCount := len(h.clients)
	h.mutex.Unlock()
	log.Printf("Connection %s established from %s. Total connections: %d", client.id, client.addr, clientCount)

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

// dropClient removes a connection and, if it had joined, its session. The
// updated presence snapshot goes to everyone left. A connection that never
// joined leaves the Registry untouched, so no snapshot is rebroadcast.
func (h *Hub) dropClient(client *Client) {
	h.mutex.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		client.closed = true
	}
	clientCount := len(h.clients)
	h.mutex.Unlock()

	if !ok {
		return
	}
	close(client.send)
	log.Printf("Connection %s from %s closed. Total connections: %d", client.id, client.addr, clientCount)

	snapshot, removed := h.registry.Remove(client.id)
	if removed {
		h.broadcastUserList(snapshot)
	}
}

// route decodes one inbound frame and dispatches on its event name.
// Malformed frames and unknown events are dropped with a log line; the
// sender's connection is never terminated over them.
func (h *Hub) route(f frame) {
	env, err := DecodeEnvelope(f.raw)
	if err != nil {
		log.Printf("Dropping frame from %s: %v", f.sender.addr, err)
		return
	}

	switch env.Event {
	case EventJoin:
		h.handleJoin(f.sender, env)
	case EventChatMessage:
		h.handleChatMessage(f.sender, env)
	case EventTyping, EventStopTyping:
		h.handleTyping(f.sender, env)
	default:
		log.Printf("Dropping unknown event %q from %s", env.Event, f.sender.addr)
	}
}

// handleJoin admits a connection into the Registry. The rejection paths
// answer the requesting connection only; a successful join broadcasts the
// fresh presence snapshot to every connection, the new one included.
func (h *Hub) handleJoin(sender *Client, env Envelope) {
	if sender.username != "" {
		log.Printf("Ignoring repeat join from %s (already joined as %q)", sender.addr, sender.username)
		return
	}

	req, err := DecodeJoin(env.Data)
	if err != nil {
		log.Printf("Rejecting join from %s: %v", sender.addr, err)
		h.unicast(sender, EventInvalidUsername, Rejection{Reason: "Username must be a non-empty string"})
		return
	}

	snapshot, err := h.registry.Join(sender.id, req.Username)
	if errors.Is(err, ErrUsernameTaken) {
		log.Printf("Rejecting join from %s: username %q already taken", sender.addr, req.Username)
		h.unicast(sender, EventUsernameTaken, Rejection{Reason: "Username already taken"})
		return
	}

	sender.username = req.Username
	log.Printf("Connection %s joined as %q. Users online: %d", sender.id, req.Username, len(snapshot))
	h.broadcastUserList(snapshot)
}

// handleChatMessage relays the payload verbatim to every connection,
// including the sender. The payload is never inspected; author, text, and
// timestamp fields are whatever the client put there.
func (h *Hub) handleChatMessage(sender *Client, env Envelope) {
	payload, err := EncodeEvent(EventChatMessage, env.Data)
	if err != nil {
		log.Printf("Dropping chat message from %s: %v", sender.addr, err)
		return
	}
	h.broadcast(payload, nil)
}

// handleTyping relays an ephemeral typing or stopTyping signal to everyone
// except the sender. No state is kept and the claimed username is not
// verified.
func (h *Hub) handleTyping(sender *Client, env Envelope) {
	sig, err := DecodeTyping(env.Data)
	if err != nil {
		log.Printf("Dropping %s signal from %s: %v", env.Event, sender.addr, err)
		return
	}
	payload, err := EncodeEvent(env.Event, sig)
	if err != nil {
		log.Printf("Dropping %s signal from %s: %v", env.Event, sender.addr, err)
		return
	}
	h.broadcast(payload, sender)
}

func (h *Hub) broadcastUserList(snapshot []Session) {
	payload, err := EncodeEvent(EventUserList, UserList{Users: snapshot})
	if err != nil {
		log.Printf("Failed to encode user list: %v", err)
		return
	}
	h.broadcast(payload, nil)
}

// unicast sends one event to a single connection. A failed send evicts that
// connection, same as a failed broadcast delivery.
func (h *Hub) unicast(client *Client, event string, payload any) {
	data, err := EncodeEvent(event, payload)
	if err != nil {
		log.Printf("Failed to encode %s event: %v", event, err)
		return
	}
	if !h.safeSend(client, data) {
		h.removeFailedClients([]*Client{client})
	}
}

// broadcast delivers a payload to every registered connection, skipping
// except when non-nil. A full send buffer evicts that one recipient; it does
// not affect delivery to the rest and nothing is rolled back.
func (h *Hub) broadcast(payload []byte, except *Client) {
	clients := h.getClientSnapshot()

	var failed []*Client
	for _, client := range clients {
		if except != nil && client == except {
			continue
		}
		if !h.safeSend(client, payload) {
			failed = append(failed, client)
		}
	}
	h.removeFailedClients(failed)
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in safeSend: %v", r)
		}
	}()

	// Hold the lock during the entire send so the channel cannot be closed
	// out from under us.
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	_, exists := h.clients[client]
	if !exists || client.closed {
		return false
	}

	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// getClientSnapshot returns a thread-safe snapshot of all current clients.
func (h *Hub) getClientSnapshot() []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

// removeFailedClients drops clients whose deliveries failed. Their sessions
// leave the Registry and the remaining clients get a fresh snapshot, exactly
// as if the connection had closed on its own.
func (h *Hub) removeFailedClients(failed []*Client) {
	if len(failed) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	var dropped []*Client
	for _, client := range failed {
		if _, exists := h.clients[client]; exists {
			delete(h.clients, client)
			client.closed = true
			channelsToClose = append(channelsToClose, client.send)
			dropped = append(dropped, client)
			log.Printf("Connection %s from %s removed due to full send buffer", client.id, client.addr)
		}
	}
	h.mutex.Unlock()

	// Close channels after releasing the lock.
	for _, ch := range channelsToClose {
		close(ch)
	}

	for _, client := range dropped {
		snapshot, removed := h.registry.Remove(client.id)
		if removed {
			h.broadcastUserList(snapshot)
		}
	}
}

// shutdownClients gracefully closes all active client connections.
func (h *Hub) shutdownClients() {
	log.Println("Shutting down all client connections...")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error closing client connection from %s: %v", client.addr, err)
				}
			}
		}
	}

	log.Printf("Closed %d client connections", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all client
// goroutines to complete, or until the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	h.cancel()

	// Wait for Run() to complete.
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
