package usecase

import (
	"sync"

	"github.com/satriahrh/suara/domain/entities"
)

// ConversationLog is the ordered, append-only list of messages shown to the user
type ConversationLog struct {
	mu       sync.RWMutex
	messages []entities.Message
	onAppend func(entities.Message)
}

// NewConversationLog creates an empty log. onAppend, if set, is called after
// every append so the view can re-render and scroll to the newest entry.
func NewConversationLog(onAppend func(entities.Message)) *ConversationLog {
	return &ConversationLog{
		messages: make([]entities.Message, 0),
		onAppend: onAppend,
	}
}

// Append adds a message to the end of the log. Invalid messages are rejected
// and the log is left unchanged.
func (l *ConversationLog) Append(text string, sender entities.Sender) (entities.Message, error) {
	msg := entities.NewMessage(text, sender)
	if err := msg.Validate(); err != nil {
		return entities.Message{}, err
	}

	l.mu.Lock()
	l.messages = append(l.messages, msg)
	l.mu.Unlock()

	if l.onAppend != nil {
		l.onAppend(msg)
	}
	return msg, nil
}

// Messages returns a copy of the log in append order
func (l *ConversationLog) Messages() []entities.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	messages := make([]entities.Message, len(l.messages))
	copy(messages, l.messages)
	return messages
}

func (l *ConversationLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}
