// Package event defines the closed set of notifications pushed to live
// sessions. One variant exists per named server-to-client event; payload
// shapes are fixed schemas, never free-form maps.
package event

import "pairlink/domain"

// Event is implemented by every push notification variant.
// EventName returns the wire-level event name.
type Event interface {
	EventName() string
}

const (
	NameUserIsOnline    = "userIsOnline"
	NameUserIsOffline   = "userIsOffline"
	NameOnlineUsers     = "onlineUsers"
	NameGroupUpdated    = "groupUpdated"
	NameMessageThread   = "messageThread"
	NameNewMessage      = "newMessage"
	NameNewMessageAlert = "newMessageAlert"
)

// UserIsOnline fires only on a user's offline -> online transition.
type UserIsOnline struct {
	Username string `json:"username"`
}

func (UserIsOnline) EventName() string { return NameUserIsOnline }

// UserIsOffline fires only on a user's online -> offline transition.
type UserIsOffline struct {
	Username string `json:"username"`
}

func (UserIsOffline) EventName() string { return NameUserIsOffline }

// OnlineUsers is the full presence snapshot sent to a session right after
// it connects.
type OnlineUsers struct {
	Usernames []string `json:"usernames"`
}

func (OnlineUsers) EventName() string { return NameOnlineUsers }

// GroupUpdated is broadcast to a group whenever its joined-session set
// changes.
type GroupUpdated struct {
	Group domain.Group `json:"group"`
}

func (GroupUpdated) EventName() string { return NameGroupUpdated }

// MessageThread carries the ordered history to the joining session only.
type MessageThread struct {
	Messages []domain.Message `json:"messages"`
}

func (MessageThread) EventName() string { return NameMessageThread }

// NewMessage is broadcast to the group once a send is durably committed.
type NewMessage struct {
	Message domain.Message `json:"message"`
}

func (NewMessage) EventName() string { return NameNewMessage }

// NewMessageAlert is the lightweight ping pushed to a recipient's other
// live sessions when they are not viewing the thread. It carries the
// sender's identity summary only, never the content.
type NewMessageAlert struct {
	SenderUsername    string `json:"senderUsername"`
	SenderDisplayName string `json:"senderDisplayName"`
}

func (NewMessageAlert) EventName() string { return NameNewMessageAlert }
