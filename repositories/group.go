//go:generate go run go.uber.org/mock/mockgen -source=group.go -destination=../mocks/mock_group_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"

	"pairlink/domain"
	"pairlink/errors"
)

// GroupRepository owns the durable Group records keyed by canonical name,
// plus a reverse index from session id to group name so that a leave only
// needs the session id. Connection mutations happen inside one transaction
// as collection append/remove; two racing writers never silently lose an
// update because conflicting transactions abort instead of overwriting.
type GroupRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewGroupRepository(db *badger.DB, log *slog.Logger) GroupRepository {
	return GroupRepository{db: db, log: log}
}

type diskGroup struct {
	Name        string           `json:"name"`
	Connections []diskConnection `json:"connections"`
}

type diskConnection struct {
	SessionID string `json:"session_id"`
	Username  string `json:"username"`
}

func groupKey(name string) []byte {
	return []byte("group:" + name)
}

func connKey(sessionID string) []byte {
	return []byte("conn:" + sessionID)
}

// GetGroup fetches the group record. A group that was never created yet is
// returned empty under its canonical name: absence of members, not an error.
func (g GroupRepository) GetGroup(name string) (domain.Group, error) {
	group := domain.NewGroup(name)
	err := g.db.View(func(txn *badger.Txn) error {
		found, err := getGroup(txn, name)
		if err != nil {
			return err
		}
		group = found
		return nil
	})
	return group, err
}

// AddConnection finds-or-creates the group and joins the connection to it,
// recording the reverse index in the same transaction. Adding a session id
// that is already joined is a no-op (join is idempotent per session).
func (g GroupRepository) AddConnection(name string, conn domain.Connection) (domain.Group, error) {
	var group domain.Group
	err := g.db.Update(func(txn *badger.Txn) error {
		found, err := getGroup(txn, name)
		if err != nil {
			return err
		}
		group = found
		group.Add(conn)

		if err = txn.Set(connKey(conn.SessionID), []byte(name)); err != nil {
			return err
		}
		return writeGroup(txn, group)
	})
	return group, err
}

// RemoveConnection resolves the group currently holding sessionID and drops
// the connection. A session that was never joined is a state inconsistency
// surfaced as ErrSessionNotJoined, never silently ignored.
func (g GroupRepository) RemoveConnection(sessionID string) (domain.Group, error) {
	var group domain.Group
	err := g.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(connKey(sessionID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return errors.ErrSessionNotJoined
			}
			return err
		}
		var name string
		if err = item.Value(func(val []byte) error {
			name = string(val)
			return nil
		}); err != nil {
			return err
		}

		group, err = getGroup(txn, name)
		if err != nil {
			return err
		}
		group.Remove(sessionID)

		if err = txn.Delete(connKey(sessionID)); err != nil {
			return err
		}
		return writeGroup(txn, group)
	})
	return group, err
}

// WipeConnections clears every joined-session record. The surrounding
// system calls this at process start: membership only means something
// within the current process lifetime.
func (g GroupRepository) WipeConnections() error {
	return g.db.Update(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		it := txn.NewIterator(options)

		var connKeys [][]byte
		var groups []domain.Group

		connPrefix := []byte("conn:")
		for it.Seek(connPrefix); it.ValidForPrefix(connPrefix); it.Next() {
			connKeys = append(connKeys, it.Item().KeyCopy(nil))
		}

		groupPrefix := []byte("group:")
		for it.Seek(groupPrefix); it.ValidForPrefix(groupPrefix); it.Next() {
			var dg diskGroup
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &dg)
			})
			if err != nil {
				it.Close()
				return err
			}
			if len(dg.Connections) > 0 {
				groups = append(groups, domain.Group{Name: dg.Name})
			}
		}
		it.Close()

		for _, key := range connKeys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		for _, group := range groups {
			if err := writeGroup(txn, group); err != nil {
				return err
			}
		}
		return nil
	})
}

func getGroup(txn *badger.Txn, name string) (domain.Group, error) {
	item, err := txn.Get(groupKey(name))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return domain.NewGroup(name), nil
		}
		return domain.Group{}, err
	}
	var dg diskGroup
	if err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &dg)
	}); err != nil {
		return domain.Group{}, err
	}
	return toGroup(dg), nil
}

func writeGroup(txn *badger.Txn, group domain.Group) error {
	bytes, err := json.Marshal(fromGroup(group))
	if err != nil {
		return err
	}
	return txn.Set(groupKey(group.Name), bytes)
}

func fromGroup(group domain.Group) diskGroup {
	return diskGroup{
		Name: group.Name,
		Connections: lo.Map(group.Connections, func(c domain.Connection, _ int) diskConnection {
			return diskConnection{SessionID: c.SessionID, Username: c.Username}
		}),
	}
}

func toGroup(dg diskGroup) domain.Group {
	return domain.Group{
		Name: dg.Name,
		Connections: lo.Map(dg.Connections, func(c diskConnection, _ int) domain.Connection {
			return domain.Connection{SessionID: c.SessionID, Username: c.Username}
		}),
	}
}
