//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"pairlink/domain"
	"pairlink/errors"
)

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

// diskMessage is the stored shape of a domain.Message.
type diskMessage struct {
	ID               string `json:"id"`
	Sender           string `json:"sender"`
	Recipient        string `json:"recipient"`
	Content          string `json:"content"`
	CreatedAt        int64  `json:"created_at"`
	ReadAt           *int64 `json:"read_at,omitempty"`
	SenderDeleted    bool   `json:"sender_deleted,omitempty"`
	RecipientDeleted bool   `json:"recipient_deleted,omitempty"`
}

// messageKey builds the primary key "msg:{group}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order equals thread order).
//  2. Prevent data loss by using the message UUID as a collision
//     disconnector if two messages arrive at the same nanosecond.
func messageKey(groupName string, at time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", groupName, at.UnixNano(), id))
}

func threadPrefix(viewer, other string) []byte {
	return []byte(fmt.Sprintf("msg:%s:", domain.CanonicalName(viewer, other)))
}

// indexKey maps a message id back to its primary key, so that per-message
// operations don't need the creation timestamp.
func indexKey(id uuid.UUID) []byte {
	return []byte("msgid:" + id.String())
}

// StoreMessage persists the message and its id index in one transaction.
// The caller must not observe any side effect when the commit fails.
func (m MessageRepository) StoreMessage(message domain.Message) error {
	groupName := domain.CanonicalName(message.SenderUsername, message.RecipientUsername)
	key := messageKey(groupName, message.CreatedAt, message.ID)
	bytes, err := json.Marshal(fromMessage(message))
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, bytes); err != nil {
			return err
		}
		return txn.Set(indexKey(message.ID), key)
	})
}

// Thread returns the full conversation between viewer and other, oldest
// first, excluding messages the viewer soft-deleted.
func (m MessageRepository) Thread(viewer, other string) ([]domain.Message, error) {
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		var err error
		messages, err = readThread(txn, viewer, other)
		return err
	})
	return messages, err
}

// MarkThreadRead returns the viewer's thread after transitioning every
// unread message addressed to the viewer to read. Fetch and transition run
// in a single transaction: either the whole batch commits or none of it
// does. Already-read messages are untouched, so a second call is a no-op.
func (m MessageRepository) MarkThreadRead(viewer, other string, at time.Time) ([]domain.Message, error) {
	var messages []domain.Message
	err := m.db.Update(func(txn *badger.Txn) error {
		var err error
		messages, err = readThread(txn, viewer, other)
		if err != nil {
			return err
		}
		for i := range messages {
			if messages[i].RecipientUsername != viewer || messages[i].Read() {
				continue
			}
			messages[i].MarkRead(at.UTC())
			if err = writeMessage(txn, messages[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// DeleteFor flags the message deleted on username's side. Once both sides
// have deleted it, the record and its index are removed for good.
func (m MessageRepository) DeleteFor(messageID uuid.UUID, username string) (domain.Message, error) {
	var message domain.Message
	err := m.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(indexKey(messageID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return errors.ErrMessageNotFound
			}
			return err
		}
		var primary []byte
		if err = item.Value(func(val []byte) error {
			primary = append([]byte(nil), val...)
			return nil
		}); err != nil {
			return err
		}

		message, err = getMessage(txn, primary)
		if err != nil {
			return err
		}
		if username != message.SenderUsername && username != message.RecipientUsername {
			return errors.ErrNotMessageSide
		}

		if bothDeleted := message.DeleteFor(username); bothDeleted {
			if err = txn.Delete(primary); err != nil {
				return err
			}
			return txn.Delete(indexKey(messageID))
		}
		return writeMessage(txn, message)
	})
	return message, err
}

func readThread(txn *badger.Txn, viewer, other string) ([]domain.Message, error) {
	var messages []domain.Message
	prefix := threadPrefix(viewer, other)
	options := badger.DefaultIteratorOptions
	options.Prefix = prefix
	it := txn.NewIterator(options)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var dm diskMessage
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &dm)
		})
		if err != nil {
			return nil, err
		}
		message, err := toMessage(dm)
		if err != nil {
			return nil, err
		}
		if message.VisibleTo(viewer) {
			messages = append(messages, message)
		}
	}
	return messages, nil
}

func getMessage(txn *badger.Txn, key []byte) (domain.Message, error) {
	item, err := txn.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return domain.Message{}, errors.ErrMessageNotFound
		}
		return domain.Message{}, err
	}
	var dm diskMessage
	if err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &dm)
	}); err != nil {
		return domain.Message{}, err
	}
	return toMessage(dm)
}

func writeMessage(txn *badger.Txn, message domain.Message) error {
	groupName := domain.CanonicalName(message.SenderUsername, message.RecipientUsername)
	bytes, err := json.Marshal(fromMessage(message))
	if err != nil {
		return err
	}
	return txn.Set(messageKey(groupName, message.CreatedAt, message.ID), bytes)
}

func fromMessage(message domain.Message) diskMessage {
	dm := diskMessage{
		ID:               message.ID.String(),
		Sender:           message.SenderUsername,
		Recipient:        message.RecipientUsername,
		Content:          message.Content,
		CreatedAt:        message.CreatedAt.UnixNano(),
		SenderDeleted:    message.SenderDeleted,
		RecipientDeleted: message.RecipientDeleted,
	}
	if message.ReadAt != nil {
		readAt := message.ReadAt.UnixNano()
		dm.ReadAt = &readAt
	}
	return dm
}

func toMessage(dm diskMessage) (domain.Message, error) {
	parsedID, err := uuid.Parse(dm.ID)
	if err != nil {
		return domain.Message{}, err
	}
	message := domain.Message{
		ID:                parsedID,
		SenderUsername:    dm.Sender,
		RecipientUsername: dm.Recipient,
		Content:           dm.Content,
		CreatedAt:         time.Unix(0, dm.CreatedAt).UTC(),
		SenderDeleted:     dm.SenderDeleted,
		RecipientDeleted:  dm.RecipientDeleted,
	}
	if dm.ReadAt != nil {
		readAt := time.Unix(0, *dm.ReadAt).UTC()
		message.ReadAt = &readAt
	}
	return message, nil
}
