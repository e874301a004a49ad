// Package events defines the domain event envelope and the bus contract
// shared by every transport.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope published for every committed write. It is
// immutable once published.
type Event struct {
	ID         string          `json:"id"`
	EventName  string          `json:"eventName"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// New wraps payload in an envelope with a fresh id.
func New(name string, payload any) (*Event, error) {
	if name == "" {
		return nil, errors.New("event name is required")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", name, err)
	}
	return &Event{
		ID:         uuid.NewString(),
		EventName:  name,
		Payload:    raw,
		OccurredAt: time.Now().UTC(),
	}, nil
}

// Marshal returns the wire form of the envelope.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// DecodePayload unmarshals the payload into dst.
func (e *Event) DecodePayload(dst any) error {
	if len(e.Payload) == 0 {
		return errors.New("event payload is empty")
	}
	return json.Unmarshal(e.Payload, dst)
}

// Parse decodes a wire envelope.
func Parse(raw []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("failed to parse event envelope: %w", err)
	}
	if e.EventName == "" {
		return nil, errors.New("event envelope has no eventName")
	}
	return &e, nil
}
