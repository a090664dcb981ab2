// Package hub fans status updates out to dashboard websocket clients
// using a channel-based broadcast loop.
package hub

import "encoding/json"

// Message is one update broadcast to clients.
// Messages with a Key are retained, and the latest one per key is replayed
// to clients that connect later. A keyed Message with nil Data forgets the key.
type Message struct {
	Key  string
	Data []byte
}

// NewMessage encodes v as JSON.
func NewMessage(key string, v any) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, err
	}
	return Message{Key: key, Data: data}, nil
}
