package postdb

import (
	"github.com/the-lightning-land/postd/gate"
)

// Compile time check for protocol compatibility
var _ gate.Store = (*DB)(nil)

func (db *DB) SaveAction(action *gate.Action) error {
	return db.setJSON(actionsBucket, []byte(action.ID), action)
}

// GetAction returns nil without an error when no action exists with the id.
func (db *DB) GetAction(id string) (*gate.Action, error) {
	action := &gate.Action{}

	found, err := db.getJSON(actionsBucket, []byte(id), action)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}

	return action, nil
}
