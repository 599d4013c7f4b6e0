//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"pairlink/domain"
	"pairlink/domain/event"
	"reflect"
	"time"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// initialization or lifecycle events, avoiding the need for manual naming
// in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives push notifications addressed to one live session.
// Consume must never block the caller indefinitely: delivery is
// fire-and-forget and a full sink simply drops.
type EventSink interface {
	Consume(ctx context.Context, e event.Event) error
}

// IPresence is the process-wide registry of live sessions per user.
type IPresence interface {
	Connect(username, sessionID string) bool
	Disconnect(username, sessionID string) bool
	OnlineUsers() []string
	SessionsFor(username string) []string
}

// IRouter fans out events to live sessions. Delivery is best-effort: a
// session that already disconnected receives nothing and no error is
// surfaced to the emitter.
type IRouter interface {
	Register(sessionID string, sink EventSink)
	Unregister(sessionID string)
	ToSession(sessionID string, e event.Event)
	ToSessions(sessionIDs []string, e event.Event)
	ToGroup(group domain.Group, e event.Event)
	ToAllExcept(callerSessionID string, e event.Event)
}

// UserDirectory resolves usernames to member identities.
// It is an external collaborator of this core.
type UserDirectory interface {
	GetUserByUsername(username string) (domain.User, error)
}

// IGroupRepository owns the durable Group records and their joined-session
// sets. Connection mutations are collection append/remove inside one
// transaction, never a blind whole-record overwrite.
type IGroupRepository interface {
	GetGroup(name string) (domain.Group, error)
	AddConnection(name string, conn domain.Connection) (domain.Group, error)
	RemoveConnection(sessionID string) (domain.Group, error)
	WipeConnections() error
}

// IMessageRepository owns the durable Message records.
// MarkThreadRead fetches the viewer's thread and transitions every unread
// message addressed to the viewer in the same transaction: the batch either
// commits as one unit or not at all.
type IMessageRepository interface {
	StoreMessage(message domain.Message) error
	Thread(viewer, other string) ([]domain.Message, error)
	MarkThreadRead(viewer, other string, at time.Time) ([]domain.Message, error)
	DeleteFor(messageID uuid.UUID, username string) (domain.Message, error)
}
