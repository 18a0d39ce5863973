package postdb

import (
	"encoding/binary"
	"encoding/json"
	"errors"

	goerrors "github.com/go-errors/errors"
	"go.etcd.io/bbolt"
)

// ErrUserExists is returned when registering a name that is already taken.
var ErrUserExists = errors.New("a user with this name already exists")

type User struct {
	ID           uint64 `json:"id"`
	Name         string `json:"name"`
	Blog         string `json:"blog"`
	PasswordHash string `json:"passwordHash"`
	NodeToken    string `json:"nodeToken"`
}

// CreateUser assigns the user a fresh id and persists it. Names are unique.
func (db *DB) CreateUser(user *User) error {
	return db.Update(func(tx *bbolt.Tx) error {
		users, err := tx.CreateBucketIfNotExists(usersBucket)
		if err != nil {
			return err
		}

		names, err := tx.CreateBucketIfNotExists(userNamesBucket)
		if err != nil {
			return err
		}

		if names.Get([]byte(user.Name)) != nil {
			return ErrUserExists
		}

		id, err := users.NextSequence()
		if err != nil {
			return err
		}

		user.ID = id

		payload, err := json.Marshal(user)
		if err != nil {
			return err
		}

		if err := users.Put(itob(id), payload); err != nil {
			return err
		}

		return names.Put([]byte(user.Name), itob(id))
	})
}

// GetUser returns nil without an error when no user exists with the id.
func (db *DB) GetUser(id uint64) (*User, error) {
	user := &User{}

	found, err := db.getJSON(usersBucket, itob(id), user)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}

	return user, nil
}

// GetUserByName resolves a user through the name index. Returns nil without
// an error when the name is unknown.
func (db *DB) GetUserByName(name string) (*User, error) {
	var user *User

	err := db.View(func(tx *bbolt.Tx) error {
		names := tx.Bucket(userNamesBucket)
		if names == nil {
			return nil
		}

		id := names.Get([]byte(name))
		if id == nil {
			return nil
		}

		users := tx.Bucket(usersBucket)
		if users == nil {
			return nil
		}

		payload := users.Get(id)
		if payload == nil {
			return nil
		}

		user = &User{}

		return json.Unmarshal(payload, user)
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// SetUserNodeToken links the user to the node session minted for them.
func (db *DB) SetUserNodeToken(id uint64, token string) error {
	return db.Update(func(tx *bbolt.Tx) error {
		users := tx.Bucket(usersBucket)
		if users == nil {
			return goerrors.Errorf("No user with id %v", id)
		}

		payload := users.Get(itob(id))
		if payload == nil {
			return goerrors.Errorf("No user with id %v", id)
		}

		user := &User{}
		if err := json.Unmarshal(payload, user); err != nil {
			return err
		}

		user.NodeToken = token

		payload, err := json.Marshal(user)
		if err != nil {
			return err
		}

		return users.Put(itob(id), payload)
	})
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
