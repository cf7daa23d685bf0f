package domain

import "time"

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "ai"
)

// DeliveryStatus tracks a user-authored message through its send lifecycle.
// It only ever moves pending -> confirmed or pending -> failed.
type DeliveryStatus string

const (
	StatusPending   DeliveryStatus = "pending"
	StatusConfirmed DeliveryStatus = "confirmed"
	StatusFailed    DeliveryStatus = "failed"
)

// Topic is an externally owned knowledge point the user converses about.
// The engine never mutates it.
type Topic struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Message is a single entry in a conversation. Status is set only for
// user-authored messages.
type Message struct {
	ID        string         `json:"id"`
	Sender    Sender         `json:"sender"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Status    DeliveryStatus `json:"status,omitempty"`
}

// Conversation is the ordered, append-only message history for one topic.
type Conversation struct {
	TopicID   string    `json:"topicId"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy so callers can hold a snapshot without observing
// later store mutations.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Messages = make([]Message, len(c.Messages))
	copy(cp.Messages, c.Messages)
	return &cp
}

// FindMessage returns the index of the message with the given id, or -1.
func (c *Conversation) FindMessage(messageID string) int {
	for i := range c.Messages {
		if c.Messages[i].ID == messageID {
			return i
		}
	}
	return -1
}

// Reply is the validated result of a remote dialogue call.
type Reply struct {
	Message   string
	Timestamp time.Time
}
