package domain

import "encoding/json"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one visible message in a conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RawTurn is a caller-supplied turn as the relay forwards it upstream. Role and
// content keep whatever JSON value the caller sent; absent fields stay absent.
type RawTurn struct {
	Role    json.RawMessage `json:"role,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}
