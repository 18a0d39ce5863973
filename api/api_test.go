package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/the-lightning-land/postd/auth"
	"github.com/the-lightning-land/postd/gate"
	"github.com/the-lightning-land/postd/node"
	"github.com/the-lightning-land/postd/postdb"
)

type upvoteApplier struct {
	db *postdb.DB
}

func (a *upvoteApplier) Apply(ctx context.Context, action *gate.Action) error {
	return a.db.UpvotePost(action.PostID)
}

type testEnv struct {
	server *httptest.Server
	remote *node.MockNode
	db     *postdb.DB
}

func newTestEnv(t *testing.T) *testEnv {
	db, err := postdb.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	remote := node.NewMockNode("alice-node", "02aaaa")

	dialer := node.NewMockDialer()
	dialer.AddNode("1.2.3.4:10009", remote)

	pool := node.NewPool(&node.PoolConfig{
		Store: db,
		Dial:  dialer.Dial,
	})

	g := gate.New(&gate.Config{
		Pool:    pool,
		Store:   db,
		Applier: &upvoteApplier{db: db},
	})

	a := New(&Config{
		DB:       db,
		Pool:     pool,
		Gate:     g,
		Auth:     auth.New(&auth.Config{Secret: []byte("test")}),
		PriceSat: 100,
	})

	server := httptest.NewServer(a.Router())
	t.Cleanup(server.Close)

	return &testEnv{
		server: server,
		remote: remote,
		db:     db,
	}
}

func (e *testEnv) request(t *testing.T, method string, path string, body interface{}, token string, out interface{}) int {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}

	return res.StatusCode
}

// register a user, connect their node and publish a post, returning the
// user's auth token and the post id.
func (e *testEnv) setupPost(t *testing.T) (string, uint64) {
	var user struct {
		Token string `json:"token"`
	}
	code := e.request(t, http.MethodPost, "/api/v1/users", map[string]string{
		"name":     "alice",
		"blog":     "https://alice.example",
		"password": "hunter2",
	}, "", &user)
	require.Equal(t, http.StatusCreated, code)

	var connected struct {
		Token  string `json:"token"`
		Pubkey string `json:"pubkey"`
	}
	code = e.request(t, http.MethodPost, "/api/v1/connect", map[string]string{
		"host":     "1.2.3.4:10009",
		"cert":     "certbody",
		"macaroon": "deadbeef",
	}, user.Token, &connected)
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, "02aaaa", connected.Pubkey)
	require.NotEmpty(t, connected.Token)

	var post struct {
		Id uint64 `json:"id"`
	}
	code = e.request(t, http.MethodPost, "/api/v1/posts", map[string]string{
		"title":   "Hello",
		"content": "First post",
	}, user.Token, &post)
	require.Equal(t, http.StatusCreated, code)

	return user.Token, post.Id
}

func TestRegisterRequiresAllInputs(t *testing.T) {
	e := newTestEnv(t)

	code := e.request(t, http.MethodPost, "/api/v1/users", map[string]string{
		"name": "alice",
	}, "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRegisterConflict(t *testing.T) {
	e := newTestEnv(t)

	body := map[string]string{
		"name":     "alice",
		"blog":     "https://alice.example",
		"password": "hunter2",
	}

	code := e.request(t, http.MethodPost, "/api/v1/users", body, "", nil)
	require.Equal(t, http.StatusCreated, code)

	code = e.request(t, http.MethodPost, "/api/v1/users", body, "", nil)
	assert.Equal(t, http.StatusConflict, code)
}

func TestLogin(t *testing.T) {
	e := newTestEnv(t)

	code := e.request(t, http.MethodPost, "/api/v1/users", map[string]string{
		"name":     "alice",
		"blog":     "https://alice.example",
		"password": "hunter2",
	}, "", nil)
	require.Equal(t, http.StatusCreated, code)

	var login struct {
		Token string `json:"token"`
	}
	code = e.request(t, http.MethodPost, "/api/v1/login", map[string]string{
		"name":     "alice",
		"password": "hunter2",
	}, "", &login)
	assert.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, login.Token)

	code = e.request(t, http.MethodPost, "/api/v1/login", map[string]string{
		"name":     "alice",
		"password": "wrong",
	}, "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestConnectRequiresAuth(t *testing.T) {
	e := newTestEnv(t)

	code := e.request(t, http.MethodPost, "/api/v1/connect", map[string]string{
		"host":     "1.2.3.4:10009",
		"cert":     "certbody",
		"macaroon": "deadbeef",
	}, "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestGetInfo(t *testing.T) {
	e := newTestEnv(t)
	_, _ = e.setupPost(t)

	user, err := e.db.GetUserByName("alice")
	require.NoError(t, err)

	var info struct {
		Alias   string `json:"alias"`
		Balance int64  `json:"balance"`
		Pubkey  string `json:"pubkey"`
	}
	code := e.request(t, http.MethodGet, "/api/v1/info", map[string]string{
		"token": user.NodeToken,
	}, "", &info)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alice-node", info.Alias)
	assert.Equal(t, "02aaaa", info.Pubkey)
	assert.Equal(t, int64(100000), info.Balance)
}

func TestGetInfoUnknownToken(t *testing.T) {
	e := newTestEnv(t)

	code := e.request(t, http.MethodGet, "/api/v1/info", map[string]string{
		"token": "ffffffff",
	}, "", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestUpvoteLifecycle(t *testing.T) {
	e := newTestEnv(t)
	_, postID := e.setupPost(t)

	postPath := fmt.Sprintf("/api/v1/posts/%d", postID)

	var invoice struct {
		Payreq string `json:"payreq"`
		Hash   string `json:"hash"`
		Amount int64  `json:"amount"`
	}
	code := e.request(t, http.MethodPost, postPath+"/invoice", nil, "", &invoice)
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, invoice.Payreq)
	assert.Equal(t, int64(100), invoice.Amount)

	rHash, err := base64.StdEncoding.DecodeString(invoice.Hash)
	require.NoError(t, err)
	require.Len(t, rHash, 32)

	// Redeeming before payment is rejected but retryable.
	code = e.request(t, http.MethodPost, postPath+"/upvote", map[string]string{
		"hash": invoice.Hash,
	}, "", nil)
	assert.Equal(t, http.StatusPaymentRequired, code)

	require.NoError(t, e.remote.Settle(rHash))

	var post struct {
		Upvotes int `json:"upvotes"`
	}
	code = e.request(t, http.MethodPost, postPath+"/upvote", map[string]string{
		"hash": invoice.Hash,
	}, "", &post)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, post.Upvotes)

	// Redeeming the same hash again succeeds without another increment.
	code = e.request(t, http.MethodPost, postPath+"/upvote", map[string]string{
		"hash": invoice.Hash,
	}, "", &post)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, post.Upvotes)
}

func TestUpvoteMissingHash(t *testing.T) {
	e := newTestEnv(t)
	_, postID := e.setupPost(t)

	code := e.request(t, http.MethodPost, fmt.Sprintf("/api/v1/posts/%d/upvote", postID), map[string]string{}, "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUpvoteUnknownPost(t *testing.T) {
	e := newTestEnv(t)

	code := e.request(t, http.MethodPost, "/api/v1/posts/999/upvote", map[string]string{
		"hash": base64.StdEncoding.EncodeToString(make([]byte, 32)),
	}, "", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestInvoiceWithoutConnectedNode(t *testing.T) {
	e := newTestEnv(t)

	var user struct {
		Token string `json:"token"`
	}
	code := e.request(t, http.MethodPost, "/api/v1/users", map[string]string{
		"name":     "bob",
		"blog":     "https://bob.example",
		"password": "hunter2",
	}, "", &user)
	require.Equal(t, http.StatusCreated, code)

	var post struct {
		Id uint64 `json:"id"`
	}
	code = e.request(t, http.MethodPost, "/api/v1/posts", map[string]string{
		"title": "No node",
	}, user.Token, &post)
	require.Equal(t, http.StatusCreated, code)

	code = e.request(t, http.MethodPost, fmt.Sprintf("/api/v1/posts/%d/invoice", post.Id), nil, "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}
