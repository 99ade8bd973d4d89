package models

// Message types exchanged with clients
const (
	MessageSkipWaiting     = "SKIP_WAITING"
	MessageUpdateAvailable = "UPDATE_AVAILABLE"
)

// ClientMessage is the payload of the generic message channel in both directions
type ClientMessage struct {
	Type    string `json:"type"`
	Version string `json:"version,omitempty"`
}
