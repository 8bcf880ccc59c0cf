// Package server defines the tagged wire contract spoken over each WebSocket
// connection and the minimal shape validation applied to inbound frames.
package server

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Event names carried in the envelope's "event" field.
const (
	EventJoin            = "join"
	EventChatMessage     = "chatMessage"
	EventTyping          = "typing"
	EventStopTyping      = "stopTyping"
	EventUserList        = "userList"
	EventUsernameTaken   = "usernameTaken"
	EventInvalidUsername = "invalidUsername"
)

var validate = validator.New()

// Envelope is the frame every message travels in, both directions. Data holds
// the event-specific payload and is left opaque for chatMessage relays.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinRequest is the payload of an inbound join event.
type JoinRequest struct {
	Username string `json:"username" validate:"required"`
}

// TypingSignal is the payload of typing and stopTyping events. The username
// is relayed as claimed by the sender; it is not checked against the
// Registry.
type TypingSignal struct {
	Username string `json:"username"`
}

// Rejection is the payload of usernameTaken and invalidUsername events,
// carrying a human-readable reason for the requesting client.
type Rejection struct {
	Reason string `json:"reason"`
}

// UserList is the payload of a userList presence snapshot, in join order.
type UserList struct {
	Users []Session `json:"users"`
}

// DecodeEnvelope parses a raw frame into its envelope. Frames without an
// event name are rejected so the router never dispatches on an empty tag.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("malformed frame: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("frame missing event name")
	}
	return env, nil
}

// DecodeJoin parses and validates a join payload. An absent or empty
// username fails validation; the router surfaces that as invalidUsername
// rather than silently creating a nameless session.
func DecodeJoin(data json.RawMessage) (JoinRequest, error) {
	var req JoinRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return JoinRequest{}, fmt.Errorf("malformed join payload: %w", err)
	}
	if err := validate.Struct(req); err != nil {
		return JoinRequest{}, fmt.Errorf("invalid join payload: %w", err)
	}
	return req, nil
}

// DecodeTyping parses a typing or stopTyping payload.
func DecodeTyping(data json.RawMessage) (TypingSignal, error) {
	var sig TypingSignal
	if err := json.Unmarshal(data, &sig); err != nil {
		return TypingSignal{}, fmt.Errorf("malformed typing payload: %w", err)
	}
	return sig, nil
}

// EncodeEvent wraps a payload in an envelope and serializes it. Payloads that
// are already raw JSON (chatMessage relays) pass through byte for byte.
func EncodeEvent(event string, payload any) ([]byte, error) {
	var (
		data json.RawMessage
		err  error
	)
	switch p := payload.(type) {
	case nil:
	case json.RawMessage:
		data = p
	default:
		data, err = json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", event, err)
		}
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}
