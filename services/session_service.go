//go:generate go run go.uber.org/mock/mockgen -source=session_service.go -destination=../mocks/mock_session_service.go -package=mocks
package services

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pairlink/contract"
	"pairlink/domain"
	"pairlink/domain/event"
)

type ISessionService interface {
	Connect(sessionID, username, otherUsername string) error
	Disconnect(sessionID, username string)
}

// SessionService drives the session lifecycle: presence bookkeeping, group
// join/leave, the read-receipt batch on thread join, and the surrounding
// notifications.
type SessionService struct {
	log      *slog.Logger
	presence contract.IPresence
	groups   contract.IGroupRepository
	messages contract.IMessageRepository
	router   contract.IRouter
}

func NewSessionService(log *slog.Logger, presence contract.IPresence,
	groups contract.IGroupRepository, messages contract.IMessageRepository,
	router contract.IRouter) *SessionService {
	return &SessionService{
		log:      log,
		presence: presence,
		groups:   groups,
		messages: messages,
		router:   router,
	}
}

// Connect joins a new live session to the conversation with otherUsername.
// The caller's sink must already be registered on the router so that the
// snapshot and thread events reach it.
func (s *SessionService) Connect(sessionID, username, otherUsername string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	otherUsername = strings.ToLower(strings.TrimSpace(otherUsername))

	if first := s.presence.Connect(username, sessionID); first {
		s.router.ToAllExcept(sessionID, event.UserIsOnline{Username: username})
	}
	s.router.ToSession(sessionID, event.OnlineUsers{Usernames: s.presence.OnlineUsers()})

	name := domain.CanonicalName(username, otherUsername)
	group, err := s.groups.AddConnection(name, domain.Connection{SessionID: sessionID, Username: username})
	if err != nil {
		return fmt.Errorf("joining group %s: %w", name, err)
	}
	s.router.ToGroup(group, event.GroupUpdated{Group: group})

	// One batch, one commit: every unread message addressed to the joining
	// user transitions to read before the history is returned.
	messages, err := s.messages.MarkThreadRead(username, otherUsername, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("fetching thread %s: %w", name, err)
	}
	s.router.ToSession(sessionID, event.MessageThread{Messages: messages})
	return nil
}

// Disconnect runs the best-effort cleanup sequence on transport-level
// disconnect. It is not retried: a session that vanishes without a clean
// disconnect leaves its presence entry until external reconciliation.
func (s *SessionService) Disconnect(sessionID, username string) {
	username = strings.ToLower(strings.TrimSpace(username))

	group, err := s.groups.RemoveConnection(sessionID)
	if err != nil {
		// A leave for a session that was never joined is a state
		// inconsistency: surfaced loudly, never swallowed.
		s.log.Error("Failed to leave group",
			"session_id", sessionID,
			"username", username,
			"error", err)
	} else {
		s.router.ToGroup(group, event.GroupUpdated{Group: group})
	}

	if last := s.presence.Disconnect(username, sessionID); last {
		s.router.ToAllExcept(sessionID, event.UserIsOffline{Username: username})
	}
}
