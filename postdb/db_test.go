package postdb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/the-lightning-land/postd/gate"
	"github.com/the-lightning-land/postd/node"
)

func openTestDB(t *testing.T) *DB {
	db, err := Open(t.TempDir())
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	return db
}

func TestNodeCredentialRoundTrip(t *testing.T) {
	db := openTestDB(t)

	credential := &node.Credential{
		Host:     "1.2.3.4:10009",
		Cert:     []byte("cert"),
		Macaroon: []byte("macaroon"),
		Token:    "abcdef",
		Pubkey:   "02aaaa",
		Created:  time.Now().UTC(),
	}

	require.NoError(t, db.SaveNodeCredential(credential))

	loaded, err := db.GetNodeCredential("abcdef")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, credential.Host, loaded.Host)
	assert.Equal(t, credential.Macaroon, loaded.Macaroon)
	assert.Equal(t, credential.Pubkey, loaded.Pubkey)

	missing, err := db.GetNodeCredential("ffffff")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUsers(t *testing.T) {
	db := openTestDB(t)

	user := &User{
		Name:         "alice",
		Blog:         "https://alice.example",
		PasswordHash: "$2a$10$x",
	}

	require.NoError(t, db.CreateUser(user))
	assert.NotZero(t, user.ID)

	err := db.CreateUser(&User{Name: "alice"})
	assert.ErrorIs(t, err, ErrUserExists)

	byName, err := db.GetUserByName("alice")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, user.ID, byName.ID)

	require.NoError(t, db.SetUserNodeToken(user.ID, "abcdef"))

	byID, err := db.GetUser(user.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "abcdef", byID.NodeToken)

	missing, err := db.GetUserByName("bob")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPosts(t *testing.T) {
	db := openTestDB(t)

	post := &Post{
		UserID:  1,
		Title:   "Hello",
		Content: "First post",
	}

	require.NoError(t, db.CreatePost(post))
	assert.NotZero(t, post.ID)

	require.NoError(t, db.UpvotePost(post.ID))
	require.NoError(t, db.UpvotePost(post.ID))

	loaded, err := db.GetPost(post.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 2, loaded.Upvotes)

	posts, err := db.GetPosts()
	require.NoError(t, err)
	assert.Len(t, posts, 1)

	err = db.UpvotePost(999)
	assert.Error(t, err)
}

func TestActions(t *testing.T) {
	db := openTestDB(t)

	hash := make([]byte, 32)
	hash[0] = 0x01

	action := &gate.Action{
		ID:        "post-42",
		PostID:    42,
		NodeToken: "abcdef",
		Hash:      hash,
		AmountSat: 100,
		State:     gate.StatePriced,
	}

	require.NoError(t, db.SaveAction(action))

	loaded, err := db.GetAction("post-42")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, hash, loaded.Hash)
	assert.Equal(t, gate.StatePriced, loaded.State)

	missing, err := db.GetAction("post-13")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
