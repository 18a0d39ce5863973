package postdb

import (
	"github.com/the-lightning-land/postd/node"
)

// Compile time check for protocol compatibility
var _ node.CredentialStore = (*DB)(nil)

func (db *DB) SaveNodeCredential(credential *node.Credential) error {
	return db.setJSON(nodesBucket, []byte(credential.Token), credential)
}

// GetNodeCredential returns nil without an error when no credential is
// stored for the token.
func (db *DB) GetNodeCredential(token string) (*node.Credential, error) {
	credential := &node.Credential{}

	found, err := db.getJSON(nodesBucket, []byte(token), credential)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}

	return credential, nil
}
