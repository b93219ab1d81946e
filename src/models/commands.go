package models

// Client command actions
const (
	ActionSubscribe   = "subscribe"
	ActionAdd         = "add"
	ActionUnsubscribe = "unsubscribe"
)

// MSubscribeCommand is the inbound client message.
// Symbols is nil when the field is missing or not a list.
type MSubscribeCommand struct {
	Action  string   `json:"action"`
	Symbols []string `json:"symbols"`
}
