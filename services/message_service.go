//go:generate go run go.uber.org/mock/mockgen -source=message_service.go -destination=../mocks/mock_message_service.go -package=mocks
package services

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"pairlink/contract"
	"pairlink/domain"
	"pairlink/domain/event"
	"pairlink/errors"
)

var validate = validator.New()

type IMessageService interface {
	Send(sender, recipient, content string) (domain.Message, error)
	Delete(messageID uuid.UUID, username string) (domain.Message, error)
}

// MessageService validates and persists new messages, decides their initial
// read state from live group membership, and triggers the post-commit
// broadcasts. Nothing observable ever precedes the durable commit: a failed
// store means zero broadcasts and zero alerts.
type MessageService struct {
	log      *slog.Logger
	users    contract.UserDirectory
	groups   contract.IGroupRepository
	messages contract.IMessageRepository
	presence contract.IPresence
	router   contract.IRouter
}

func NewMessageService(log *slog.Logger, users contract.UserDirectory,
	groups contract.IGroupRepository, messages contract.IMessageRepository,
	presence contract.IPresence, router contract.IRouter) *MessageService {
	return &MessageService{
		log:      log,
		users:    users,
		groups:   groups,
		messages: messages,
		presence: presence,
		router:   router,
	}
}

type sendRequest struct {
	Recipient string `validate:"required"`
	Content   string `validate:"required,max=4000"`
}

// Send runs the whole dispatch flow for one message.
// The message is considered read immediately when any of the recipient's
// sessions is currently joined to the pair's group; otherwise the
// recipient's other live sessions get a lightweight alert once the commit
// went through.
func (s *MessageService) Send(sender, recipient, content string) (domain.Message, error) {
	sender = strings.ToLower(strings.TrimSpace(sender))
	recipient = strings.ToLower(strings.TrimSpace(recipient))
	content = strings.TrimSpace(content)

	if err := validate.Struct(sendRequest{Recipient: recipient, Content: content}); err != nil {
		if content == "" {
			return domain.Message{}, errors.ErrEmptyContent
		}
		return domain.Message{}, fmt.Errorf("invalid message: %w", err)
	}
	if sender == recipient {
		return domain.Message{}, errors.ErrSelfMessage
	}

	senderUser, err := s.users.GetUserByUsername(sender)
	if err != nil {
		return domain.Message{}, fmt.Errorf("resolving sender %q: %w", sender, err)
	}
	recipientUser, err := s.users.GetUserByUsername(recipient)
	if err != nil {
		if stderrors.Is(err, errors.ErrUserNotFound) {
			return domain.Message{}, errors.ErrRecipientNotFound
		}
		return domain.Message{}, fmt.Errorf("resolving recipient %q: %w", recipient, err)
	}

	now := time.Now().UTC()
	message := domain.NewMessage(senderUser.Username, recipientUser.Username, content, now)

	group, err := s.groups.GetGroup(domain.CanonicalName(senderUser.Username, recipientUser.Username))
	if err != nil {
		return domain.Message{}, fmt.Errorf("fetching group: %w", err)
	}

	recipientJoined := group.IsJoined(recipientUser.Username)
	if recipientJoined {
		// Actively viewing the thread: seen immediately
		message.MarkRead(now)
	}

	if err = s.messages.StoreMessage(message); err != nil {
		return domain.Message{}, fmt.Errorf("storing message: %w", err)
	}

	s.router.ToGroup(group, event.NewMessage{Message: message})

	if !recipientJoined {
		if sessions := s.presence.SessionsFor(recipientUser.Username); len(sessions) > 0 {
			s.router.ToSessions(sessions, event.NewMessageAlert{
				SenderUsername:    senderUser.Username,
				SenderDisplayName: senderUser.KnownAs,
			})
		}
	}
	return message, nil
}

// Delete soft-deletes the message on username's side. The repository
// removes the record for good once both sides have deleted it.
func (s *MessageService) Delete(messageID uuid.UUID, username string) (domain.Message, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	return s.messages.DeleteFor(messageID, username)
}
