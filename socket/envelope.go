package socket

import "encoding/json"

// Envelope types sent by the server.
const (
	ConnectedType = "connected"
	AckType       = "ack"
)

// request is a client frame: {"id": <any>, "type": <intent>, "data": {...}}.
type request struct {
	ID   json.RawMessage `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// envelope is a server frame. ID echoes the request id on acks.
type envelope struct {
	Type string          `json:"type"`
	ID   json.RawMessage `json:"id,omitempty"`
	Data any             `json:"data"`
}

type connected struct {
	ConnectionID string `json:"connectionId"`
}
