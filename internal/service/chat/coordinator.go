package chat

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mikrogrup/itbot/backend/internal/model/chat"
)

// DefaultHistoryLimit is the number of prior transcript entries replayed on each turn.
const DefaultHistoryLimit = 5

// EmptyReplyNotice is appended when the completion endpoint answers without text.
const EmptyReplyNotice = "Sorry, I could not generate a response."

// Completer maps a role-tagged context to generated text.
type Completer interface {
	Complete(ctx context.Context, entries []chat.ContextEntry) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, entries []chat.ContextEntry) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, entries []chat.ContextEntry) (string, error) {
	return f(ctx, entries)
}

// CoordinatorConfig tunes a Coordinator.
type CoordinatorConfig struct {
	HistoryLimit int
	// FailureNotice replaces the reply when the completion call fails.
	FailureNotice string
	// Greeting seeds the transcript with an assistant message when non-empty.
	Greeting string
	Now      func() time.Time
}

// EventType names a transcript change.
type EventType string

const (
	EventMessage   EventType = "message"
	EventComposing EventType = "composing"
)

// Event is delivered to subscribers after every transcript change.
type Event struct {
	Type      EventType     `json:"type"`
	Message   *chat.Message `json:"message,omitempty"`
	Composing bool          `json:"composing"`
}

// Turn pairs an accepted user message with the assistant entry answering it.
type Turn struct {
	User  chat.Message `json:"user"`
	Reply chat.Message `json:"reply"`
}

// Coordinator owns one transcript: it appends turns, builds the bounded context for each
// request and guarantees exactly one assistant entry per accepted user turn.
type Coordinator struct {
	mu          sync.RWMutex
	transcript  []chat.Message
	inFlight    int
	seq         int64
	completer   Completer
	cfg         CoordinatorConfig
	subscribers map[int]chan Event
	nextSubID   int
}

// NewCoordinator creates a Coordinator backed by completer.
func NewCoordinator(completer Completer, cfg CoordinatorConfig) *Coordinator {
	if cfg.HistoryLimit < 0 {
		cfg.HistoryLimit = 0
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}

	c := &Coordinator{
		transcript:  make([]chat.Message, 0, 16),
		completer:   completer,
		cfg:         cfg,
		subscribers: make(map[int]chan Event),
	}
	if greeting := strings.TrimSpace(cfg.Greeting); greeting != "" {
		c.transcript = append(c.transcript, c.newMessageLocked(chat.SenderAssistant, greeting))
	}
	return c
}

// SubmitUserTurn appends text as a user message, asks the completer for a reply built from
// the preceding history and appends the reply or a notice. It returns false without side
// effects when text is blank. Completion errors never escape.
func (c *Coordinator) SubmitUserTurn(ctx context.Context, text string) (Turn, bool) {
	if strings.TrimSpace(text) == "" {
		return Turn{}, false
	}

	c.mu.Lock()
	history := c.transcript
	userMsg := c.newMessageLocked(chat.SenderUser, text)
	entries := BuildContext(history, text, c.cfg.HistoryLimit)
	c.transcript = append(c.transcript, userMsg)
	c.inFlight++
	c.mu.Unlock()

	c.publish(Event{Type: EventMessage, Message: &userMsg, Composing: true})
	c.publish(Event{Type: EventComposing, Composing: true})

	replyText := c.complete(ctx, entries)

	c.mu.Lock()
	reply := c.newMessageLocked(chat.SenderAssistant, replyText)
	c.transcript = append(c.transcript, reply)
	c.inFlight--
	composing := c.inFlight > 0
	c.mu.Unlock()

	c.publish(Event{Type: EventMessage, Message: &reply, Composing: composing})
	c.publish(Event{Type: EventComposing, Composing: composing})

	return Turn{User: userMsg, Reply: reply}, true
}

func (c *Coordinator) complete(ctx context.Context, entries []chat.ContextEntry) (text string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[chat] completion panicked: %v", r)
			text = c.cfg.FailureNotice
		}
	}()

	if c.completer == nil {
		log.Printf("[chat] no completion endpoint configured")
		return c.cfg.FailureNotice
	}

	result, err := c.completer.Complete(ctx, entries)
	if err != nil {
		log.Printf("[chat] completion failed: %v", err)
		return c.cfg.FailureNotice
	}
	if strings.TrimSpace(result) == "" {
		return EmptyReplyNotice
	}
	return result
}

// BuildContext returns the last limit entries of history mapped to roles, followed by the
// new user turn. The result never exceeds limit+1 entries.
func BuildContext(history []chat.Message, text string, limit int) []chat.ContextEntry {
	if limit < 0 {
		limit = 0
	}
	start := 0
	if len(history) > limit {
		start = len(history) - limit
	}

	entries := make([]chat.ContextEntry, 0, len(history)-start+1)
	for _, msg := range history[start:] {
		entries = append(entries, chat.ContextEntry{Role: chat.RoleFor(msg.Sender), Content: msg.Text})
	}
	return append(entries, chat.ContextEntry{Role: chat.RoleUser, Content: text})
}

// Transcript returns a copy of the transcript in insertion order.
func (c *Coordinator) Transcript() []chat.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	copied := make([]chat.Message, len(c.transcript))
	copy(copied, c.transcript)
	return copied
}

// Snapshot returns the transcript together with the composing flag.
func (c *Coordinator) Snapshot() chat.Transcript {
	c.mu.RLock()
	defer c.mu.RUnlock()

	copied := make([]chat.Message, len(c.transcript))
	copy(copied, c.transcript)
	return chat.Transcript{Messages: copied, Composing: c.inFlight > 0}
}

// Composing reports whether a reply is being generated.
func (c *Coordinator) Composing() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inFlight > 0
}

// Subscribe registers a reader of transcript events. Slow readers drop events rather than
// block the coordinator. The returned func unsubscribes and closes the channel.
func (c *Coordinator) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = ch
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subscribers[id]; ok {
			delete(c.subscribers, id)
			close(ch)
		}
	}
}

// Close detaches every subscriber.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.subscribers {
		delete(c.subscribers, id)
		close(ch)
	}
}

func (c *Coordinator) publish(evt Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ch := range c.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

// newMessageLocked must be called with c.mu held.
func (c *Coordinator) newMessageLocked(sender chat.Sender, text string) chat.Message {
	c.seq++
	return chat.Message{
		ID:        newMessageID(c.seq),
		Seq:       c.seq,
		Text:      text,
		Sender:    sender,
		Timestamp: c.cfg.Now(),
	}
}

func newMessageID(seq int64) string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("msg-%d-%s", seq, uuid.NewString())
	}
	return id.String()
}
