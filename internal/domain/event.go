package domain

import (
	"encoding/json"
	"fmt"
	"slices"
)

// WireEvent is a server-originated notification pushed to every event-stream
// subscriber. Name carries the full topic, e.g. "project://42/git/head".
type WireEvent struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

// NewWireEvent encodes payload and returns the event.
func NewWireEvent(name string, payload any) (WireEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return WireEvent{}, fmt.Errorf("encode payload for %s: %w", name, err)
	}
	return WireEvent{Name: name, Payload: data}, nil
}

// Clone returns a copy that shares no memory with e.
func (e WireEvent) Clone() WireEvent {
	return WireEvent{Name: e.Name, Payload: slices.Clone(e.Payload)}
}

// Broadcaster delivers an event to every current subscriber.
type Broadcaster interface {
	Send(event WireEvent)
}
