//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"pairlink/domain"
	"pairlink/errors"
)

// UserRepository is the local implementation of the user-directory
// collaborator. The dispatcher only depends on contract.UserDirectory, so
// the surrounding system can swap this for a remote directory.
type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) UserRepository {
	return UserRepository{db: db}
}

type diskUser struct {
	Username string `json:"username"`
	KnownAs  string `json:"known_as"`
}

func userKey(username string) []byte {
	return []byte("user:" + strings.ToLower(username))
}

// CreateUser registers a member in the directory.
func (u UserRepository) CreateUser(username, knownAs string) error {
	data, err := json.Marshal(diskUser{Username: strings.ToLower(username), KnownAs: knownAs})
	if err != nil {
		return err
	}
	return u.db.Update(func(txn *badger.Txn) error {
		key := userKey(username)
		if _, err := txn.Get(key); err == nil {
			return errors.ErrUserAlreadyExists
		}
		return txn.Set(key, data)
	})
}

// GetUserByUsername resolves a member, case-insensitively.
func (u UserRepository) GetUserByUsername(username string) (domain.User, error) {
	var du diskUser
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(username))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return errors.ErrUserNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &du)
		})
	})
	if err != nil {
		return domain.User{}, err
	}
	return domain.User{Username: du.Username, KnownAs: du.KnownAs}, nil
}
