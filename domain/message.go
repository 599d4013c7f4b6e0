// Package domain contains core concepts of the presence and messaging system.
// This file defines Message records and their state transitions.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is one paired message between two users.
// ReadAt is nil until the recipient has seen the message; the transition
// Unread -> Read is one-way. The deleted flags are per-side soft deletes:
// a message is eligible for physical removal only once both are set.
type Message struct {
	ID                uuid.UUID  `json:"id"`
	SenderUsername    string     `json:"senderUsername"`
	RecipientUsername string     `json:"recipientUsername"`
	Content           string     `json:"content"`
	CreatedAt         time.Time  `json:"createdAt"`
	ReadAt            *time.Time `json:"readAt,omitempty"`
	SenderDeleted     bool       `json:"-"`
	RecipientDeleted  bool       `json:"-"`
}

func NewMessage(sender, recipient, content string, at time.Time) Message {
	return Message{
		ID:                uuid.New(),
		SenderUsername:    sender,
		RecipientUsername: recipient,
		Content:           content,
		CreatedAt:         at,
	}
}

// Read reports whether the message has been seen by its recipient.
func (m Message) Read() bool {
	return m.ReadAt != nil
}

// MarkRead sets the read timestamp. The transition happens at most once:
// an already-read message keeps its original timestamp.
func (m *Message) MarkRead(at time.Time) bool {
	if m.ReadAt != nil {
		return false
	}
	m.ReadAt = &at
	return true
}

// VisibleTo reports whether username still sees the message,
// i.e. has not soft-deleted it on their side.
func (m Message) VisibleTo(username string) bool {
	switch username {
	case m.SenderUsername:
		return !m.SenderDeleted
	case m.RecipientUsername:
		return !m.RecipientDeleted
	}
	return false
}

// DeleteFor flags the message deleted on the side owned by username.
// It reports whether both sides have now deleted the message, which makes
// the record eligible for physical removal.
func (m *Message) DeleteFor(username string) bool {
	switch username {
	case m.SenderUsername:
		m.SenderDeleted = true
	case m.RecipientUsername:
		m.RecipientDeleted = true
	}
	return m.SenderDeleted && m.RecipientDeleted
}
