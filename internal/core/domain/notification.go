package domain

import (
	"encoding/json"
	"fmt"
)

// MessageKind distinguishes channel bookkeeping from document deliveries.
type MessageKind string

const (
	// MessageKindControl covers subscribe and unsubscribe acknowledgements.
	MessageKindControl MessageKind = "control"
	// MessageKindData carries a serialized DocumentMetadata.
	MessageKindData MessageKind = "data"
)

// NotificationMessage is one event received from the notification channel.
// Delivery is at-most-once: nothing is replayed to late subscribers.
type NotificationMessage struct {
	Kind    MessageKind `json:"kind"`
	Channel string      `json:"channel"`
	Payload []byte      `json:"payload,omitempty"`
}

// IsData reports whether the message carries a document payload.
func (m *NotificationMessage) IsData() bool {
	return m.Kind == MessageKindData && len(m.Payload) > 0
}

// EncodeMetadata serializes metadata for publishing.
func EncodeMetadata(meta *DocumentMetadata) ([]byte, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(meta)
}

// DecodeMetadata parses a data payload. Any decoding or validation
// failure is reported as ErrMalformedMessage.
func DecodeMetadata(payload []byte) (*DocumentMetadata, error) {
	var meta DocumentMetadata
	if err := json.Unmarshal(payload, &meta); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if err := meta.Validate(); err != nil {
		return nil, fmt.Errorf("%w: missing id or storage key", ErrMalformedMessage)
	}
	return &meta, nil
}
