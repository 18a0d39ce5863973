package postdb

import (
	"path/filepath"
	"time"

	"github.com/go-errors/errors"
	"go.etcd.io/bbolt"
)

const dbFilename = "post.db"

var (
	nodesBucket     = []byte("nodes")
	usersBucket     = []byte("users")
	userNamesBucket = []byte("usernames")
	postsBucket     = []byte("posts")
	actionsBucket   = []byte("actions")
)

// DB persistently stores node credentials, users, posts and gated actions.
type DB struct {
	*bbolt.DB
}

func Open(dataDir string) (*DB, error) {
	path := filepath.Join(dataDir, dbFilename)

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Errorf("Could not open %v: %v", path, err)
	}

	return &DB{db}, nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}
