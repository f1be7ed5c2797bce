// Package hub fans JSON messages out to websocket subscribers.
package hub

import "encoding/json"

// Message is one frame queued for subscribers.
type Message struct {
	Topic string
	Data  []byte
}

// NewMessage encodes v as JSON for topic.
func NewMessage(topic string, v any) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, err
	}
	return Message{Topic: topic, Data: data}, nil
}
