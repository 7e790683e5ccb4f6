package domain

import (
	"encoding/json"
	"sync"
)

// OutboundMessage is one server-to-client event. A single message may be
// handed to many connections; it is encoded once on first use.
type OutboundMessage struct {
	Event string
	Data  interface{}

	once    sync.Once
	encoded []byte
	err     error
}

func NewOutboundMessage(event string, data interface{}) *OutboundMessage {
	return &OutboundMessage{Event: event, Data: data}
}

type envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Bytes returns the JSON frame {"event": ..., "data": ...}.
func (m *OutboundMessage) Bytes() ([]byte, error) {
	m.once.Do(func() {
		m.encoded, m.err = json.Marshal(envelope{Event: m.Event, Data: m.Data})
	})
	return m.encoded, m.err
}
