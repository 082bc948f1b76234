// Package hub provides a thread-safe websocket broadcast hub
// using the channel-based fan-out pattern.
package hub

import "encoding/json"

// MessageType indicates the websocket message format
type MessageType int

const (
	// JSONMessage is a JSON-encoded message
	JSONMessage MessageType = iota
	// BinaryMessage is raw binary data
	BinaryMessage
)

// Message is one broadcast payload. Kind groups messages of the same shape
// ("frame", "scroll", "status"); the hub remembers the latest message of
// each kind and replays it to newly connected clients. Event messages are
// delivered once and never replayed.
type Message struct {
	Kind  string
	Type  MessageType
	Data  []byte
	Event bool
}

// NewJSONMessage creates a JSON message from pre-encoded bytes
func NewJSONMessage(kind string, data []byte) Message {
	return Message{Kind: kind, Type: JSONMessage, Data: data}
}

// NewJSONEvent creates a JSON message that is not replayed to clients that
// connect later, such as a scroll displacement
func NewJSONEvent(kind string, data []byte) Message {
	return Message{Kind: kind, Type: JSONMessage, Data: data, Event: true}
}

// NewBinaryMessage creates a binary message
func NewBinaryMessage(kind string, data []byte) Message {
	return Message{Kind: kind, Type: BinaryMessage, Data: data}
}

// Envelope is the JSON shape sent to browser clients.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Encode wraps v in an Envelope of the given kind.
func Encode(kind string, v any) (Message, error) {
	data, err := json.Marshal(Envelope{Type: kind, Data: v})
	if err != nil {
		return Message{}, err
	}
	return NewJSONMessage(kind, data), nil
}
