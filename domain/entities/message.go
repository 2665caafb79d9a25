package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sender identifies who a message in the conversation log belongs to
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is a single entry of the conversation log.
// Messages are never mutated after creation.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a message stamped with a fresh ID and the current time
func NewMessage(text string, sender Sender) Message {
	return Message{
		ID:        uuid.NewString(),
		Text:      text,
		Sender:    sender,
		Timestamp: time.Now(),
	}
}

// Validate validates the message data
func (m Message) Validate() error {
	if m.Sender != SenderUser && m.Sender != SenderBot {
		return errors.New("invalid message sender")
	}
	return nil
}
