package chat

import "time"

// Sender identifies who authored a transcript entry.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Role labels a context entry sent to the completion endpoint.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one immutable turn of the visible transcript.
type Message struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// ContextEntry is one element of the bounded history replayed on every turn.
type ContextEntry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// RoleFor maps a transcript sender to its completion role.
func RoleFor(sender Sender) Role {
	if sender == SenderUser {
		return RoleUser
	}
	return RoleAssistant
}
