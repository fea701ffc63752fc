package chat

import "time"

// Transcript is the snapshot served to the view layer.
type Transcript struct {
	Messages  []Message `json:"messages"`
	Composing bool      `json:"composing"`
}

// SessionInfo describes a browser session without exposing its state.
type SessionInfo struct {
	ID        string    `json:"id"`
	SignedIn  bool      `json:"signedIn"`
	CreatedAt time.Time `json:"createdAt"`
}
