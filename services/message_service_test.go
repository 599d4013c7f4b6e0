package services

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"pairlink/domain"
	"pairlink/domain/event"
	"pairlink/errors"
	"pairlink/repositories"
	"pairlink/runtime"
)

type fixture struct {
	users    repositories.UserRepository
	groups   repositories.GroupRepository
	messages repositories.MessageRepository
	presence *runtime.Presence
	router   *runtime.Router
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := fixture{
		users:    repositories.NewUserRepository(db),
		groups:   repositories.NewGroupRepository(db, slog.Default()),
		messages: repositories.NewMessageRepository(db, slog.Default()),
		presence: runtime.NewPresence(),
		router:   runtime.NewRouter(slog.Default(), 64),
	}
	require.NoError(t, f.users.CreateUser("alice", "Alice"))
	require.NoError(t, f.users.CreateUser("bob", "Bob"))
	return f
}

func (f fixture) messageService() *MessageService {
	return NewMessageService(slog.Default(), f.users, f.groups, f.messages, f.presence, f.router)
}

func (f fixture) drain() []runtime.Envelope {
	var envelopes []runtime.Envelope
	for {
		select {
		case env := <-f.router.Outbound():
			envelopes = append(envelopes, env)
		default:
			return envelopes
		}
	}
}

func eventNames(envelopes []runtime.Envelope) []string {
	names := make([]string, 0, len(envelopes))
	for _, env := range envelopes {
		names = append(names, env.Event.EventName())
	}
	return names
}

func Test_Send_Recipient_Joined_Is_Read_Immediately(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	// Given bob has a session joined to the pair's group
	f.presence.Connect("bob", "s2")
	_, err := f.groups.AddConnection("alice-bob", domain.Connection{SessionID: "s2", Username: "bob"})
	req.NoError(err)

	message, err := f.messageService().Send("alice", "bob", "hello")
	req.NoError(err)

	// Then the message is born read
	req.True(message.Read())

	// And exactly one newMessage broadcast fires to the group, no alert
	envelopes := f.drain()
	req.Equal([]string{event.NameNewMessage}, eventNames(envelopes))
	req.Equal([]string{"s2"}, envelopes[0].SessionIDs)
}

func Test_Send_Recipient_Elsewhere_Gets_Alert(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	// Given bob is online but not viewing the thread
	f.presence.Connect("bob", "s9")

	message, err := f.messageService().Send("alice", "bob", "hello")
	req.NoError(err)

	// Then the message stays unread
	req.False(message.Read())

	// And exactly one alert reaches bob's other session; the group is
	// empty so no newMessage envelope is queued
	envelopes := f.drain()
	req.Equal([]string{event.NameNewMessageAlert}, eventNames(envelopes))
	req.Equal([]string{"s9"}, envelopes[0].SessionIDs)

	alert := envelopes[0].Event.(event.NewMessageAlert)
	req.Equal("alice", alert.SenderUsername)
	req.Equal("Alice", alert.SenderDisplayName)
}

func Test_Send_Recipient_Offline_No_Alert(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	message, err := f.messageService().Send("alice", "bob", "hello")
	req.NoError(err)
	req.False(message.Read())
	req.Empty(f.drain())

	// The message is still durably persisted
	thread, err := f.messages.Thread("bob", "alice")
	req.NoError(err)
	req.Len(thread, 1)
}

func Test_Send_To_Self_Is_Rejected_Case_Insensitively(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	_, err := f.messageService().Send("Alice", "alice", "hello me")
	req.ErrorIs(err, errors.ErrSelfMessage)

	// No persisted message and no broadcast
	req.Empty(f.drain())
	thread, err := f.messages.Thread("alice", "alice")
	req.NoError(err)
	req.Empty(thread)
}

func Test_Send_Unknown_Recipient(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	_, err := f.messageService().Send("alice", "ghost", "anyone there?")
	req.ErrorIs(err, errors.ErrRecipientNotFound)
	req.Empty(f.drain())
}

func Test_Send_Empty_Content(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	_, err := f.messageService().Send("alice", "bob", "")
	req.ErrorIs(err, errors.ErrEmptyContent)
	req.Empty(f.drain())
}

// failingMessages simulates a store whose commit reports no effect.
type failingMessages struct{}

func (failingMessages) StoreMessage(domain.Message) error {
	return fmt.Errorf("commit failed")
}

func (failingMessages) Thread(string, string) ([]domain.Message, error) {
	return nil, nil
}

func (failingMessages) MarkThreadRead(string, string, time.Time) ([]domain.Message, error) {
	return nil, nil
}

func (failingMessages) DeleteFor(uuid.UUID, string) (domain.Message, error) {
	return domain.Message{}, errors.ErrMessageNotFound
}

func Test_Send_Persistence_Failure_Has_No_Side_Effects(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	// Given bob is joined AND reachable elsewhere: both broadcast paths
	// would fire on success
	f.presence.Connect("bob", "s9")
	_, err := f.groups.AddConnection("alice-bob", domain.Connection{SessionID: "s2", Username: "bob"})
	req.NoError(err)

	service := NewMessageService(slog.Default(), f.users, f.groups,
		failingMessages{}, f.presence, f.router)

	_, err = service.Send("alice", "bob", "hello")
	req.Error(err)

	// Then nothing observable happened: zero broadcasts, zero alerts
	req.Empty(f.drain())
}

func Test_Delete_Flows_Through_Repository(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	message, err := f.messageService().Send("alice", "bob", "hello")
	req.NoError(err)
	f.drain()

	deleted, err := f.messageService().Delete(message.ID, "Alice")
	req.NoError(err)
	req.True(deleted.SenderDeleted)
}
