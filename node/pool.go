package node

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-errors/errors"
	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultRPCTimeout  = 30 * time.Second
	defaultIdleTimeout = 10 * time.Minute
	defaultMaxSessions = 25
)

// NodeStatus is the composed result of the identity and balance queries.
type NodeStatus struct {
	Alias      string
	Pubkey     string
	BalanceSat int64
}

type PoolConfig struct {
	// Store persists credentials so evicted sessions can be rebuilt.
	Store CredentialStore
	// Dial establishes a session. Defaults to dialing lnd over gRPC.
	Dial        DialFunc
	RPCTimeout  time.Duration
	IdleTimeout time.Duration
	MaxSessions int
	Logger      Logger
}

// session binds a live node handle to its token.
type session struct {
	node     Node
	lastUsed time.Time
}

// Pool maps opaque session tokens to authenticated node sessions. Callers
// only ever hold tokens; the pool resolves them to live handles, lazily
// re-establishing sessions from stored credentials when needed.
type Pool struct {
	store       CredentialStore
	dial        DialFunc
	rpcTimeout  time.Duration
	idleTimeout time.Duration
	maxSessions int
	log         Logger

	mtx        sync.Mutex
	sessions   map[string]*session
	done       chan struct{}
	reconnects singleflight.Group
}

func NewPool(config *PoolConfig) *Pool {
	pool := &Pool{
		store:       config.Store,
		dial:        config.Dial,
		rpcTimeout:  config.RPCTimeout,
		idleTimeout: config.IdleTimeout,
		maxSessions: config.MaxSessions,
		sessions:    make(map[string]*session),
		done:        make(chan struct{}),
	}

	if pool.dial == nil {
		pool.dial = func(host string, cert []byte, macaroon []byte) (Node, error) {
			return NewLndNode(&LndNodeConfig{
				Uri:           host,
				CertBytes:     cert,
				MacaroonBytes: macaroon,
				Logger:        config.Logger,
			})
		}
	}

	if pool.rpcTimeout == 0 {
		pool.rpcTimeout = defaultRPCTimeout
	}

	if pool.idleTimeout == 0 {
		pool.idleTimeout = defaultIdleTimeout
	}

	if pool.maxSessions == 0 {
		pool.maxSessions = defaultMaxSessions
	}

	if config.Logger != nil {
		pool.log = config.Logger
	} else {
		pool.log = noopLogger{}
	}

	return pool
}

// Start launches the sweeper that evicts sessions idle for longer than the
// configured idle timeout. Evicted sessions are rebuilt from stored
// credentials on their next use.
func (p *Pool) Start() {
	go func() {
		ticker := time.NewTicker(p.idleTimeout / 2)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				p.evictIdle()
			case <-p.done:
				return
			}
		}
	}()
}

// Stop tears down all live sessions. Tokens stay valid; sessions are
// re-established from stored credentials after a restart.
func (p *Pool) Stop() {
	close(p.done)

	p.mtx.Lock()
	defer p.mtx.Unlock()

	for token, sess := range p.sessions {
		err := sess.node.Stop()
		if err != nil {
			p.log.Warnf("Could not properly stop session: %v", err)
		}

		delete(p.sessions, token)
	}
}

// Connect performs a fresh handshake against the given node, mints a new
// session token and registers the session. A failed handshake registers
// nothing and leaves no trace in the pool.
func (p *Pool) Connect(ctx context.Context, host string, cert []byte, macaroon []byte) (string, string, error) {
	remote, info, err := p.establish(ctx, host, cert, macaroon)
	if err != nil {
		return "", "", err
	}

	token, err := newToken()
	if err != nil {
		p.stopQuietly(remote)
		return "", "", err
	}

	err = p.store.SaveNodeCredential(&Credential{
		Host:     host,
		Cert:     cert,
		Macaroon: macaroon,
		Token:    token,
		Pubkey:   info.Pubkey,
		Created:  time.Now(),
	})
	if err != nil {
		p.stopQuietly(remote)
		return "", "", errors.Errorf("Could not save node credential: %v", err)
	}

	p.register(token, remote)

	p.log.Infof("Connected to lightning node %v (%v)", host, info.Pubkey)

	return token, info.Pubkey, nil
}

// Info composes the identity and channel balance queries over the session
// resolved for the token. Both queries must succeed; no partial result is
// ever returned.
func (p *Pool) Info(ctx context.Context, token string) (*NodeStatus, error) {
	remote, err := p.resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, p.rpcTimeout)
	defer cancel()

	info, err := remote.GetInfo(callCtx)
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}

	balance, err := remote.GetBalance(callCtx)
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}

	return &NodeStatus{
		Alias:      info.Alias,
		Pubkey:     info.Pubkey,
		BalanceSat: balance,
	}, nil
}

// AddInvoice mints a fresh invoice on the node behind the token.
func (p *Pool) AddInvoice(ctx context.Context, token string, amountSat int64) (*Invoice, error) {
	if amountSat <= 0 {
		return nil, ErrInvalidAmount
	}

	remote, err := p.resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, p.rpcTimeout)
	defer cancel()

	invoice, err := remote.AddInvoice(callCtx, amountSat)
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}

	return invoice, nil
}

// LookupInvoice reports whether the invoice identified by rHash has been
// settled on the node behind the token. The call is idempotent and safe to
// poll; nothing is persisted locally.
func (p *Pool) LookupInvoice(ctx context.Context, token string, rHash []byte) (bool, error) {
	if len(rHash) != 32 {
		return false, ErrInvalidHash
	}

	remote, err := p.resolve(ctx, token)
	if err != nil {
		return false, err
	}

	callCtx, cancel := context.WithTimeout(ctx, p.rpcTimeout)
	defer cancel()

	invoice, err := remote.LookupInvoice(callCtx, rHash)
	if err != nil {
		return false, &UpstreamError{Err: err}
	}

	return invoice.Settled, nil
}

// resolve returns the live session for a token, transparently rebuilding it
// from stored credentials if it was evicted or the process restarted. At
// most one re-establishment is in flight per token.
func (p *Pool) resolve(ctx context.Context, token string) (Node, error) {
	p.mtx.Lock()
	if sess, ok := p.sessions[token]; ok {
		sess.lastUsed = time.Now()
		p.mtx.Unlock()
		return sess.node, nil
	}
	p.mtx.Unlock()

	remote, err, _ := p.reconnects.Do(token, func() (interface{}, error) {
		// A concurrent caller may have re-established the session while
		// this one was waiting its turn.
		p.mtx.Lock()
		if sess, ok := p.sessions[token]; ok {
			sess.lastUsed = time.Now()
			p.mtx.Unlock()
			return sess.node, nil
		}
		p.mtx.Unlock()

		credential, err := p.store.GetNodeCredential(token)
		if err != nil {
			return nil, errors.Errorf("Could not read node credential: %v", err)
		}

		if credential == nil {
			return nil, ErrSessionNotFound
		}

		p.log.Infof("Re-establishing session for node %v", credential.Host)

		remote, _, err := p.establish(ctx, credential.Host, credential.Cert, credential.Macaroon)
		if err != nil {
			return nil, err
		}

		p.register(token, remote)

		return remote, nil
	})
	if err != nil {
		return nil, err
	}

	return remote.(Node), nil
}

// establish dials a node and verifies the credentials with an identity
// query. On any failure the half-open session is torn down again.
func (p *Pool) establish(ctx context.Context, host string, cert []byte, macaroon []byte) (Node, *Info, error) {
	remote, err := p.dial(host, cert, macaroon)
	if err != nil {
		return nil, nil, &ConnectionError{Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, p.rpcTimeout)
	defer cancel()

	err = remote.Start(callCtx)
	if err != nil {
		return nil, nil, &ConnectionError{Err: err}
	}

	info, err := remote.GetInfo(callCtx)
	if err != nil {
		p.stopQuietly(remote)
		return nil, nil, classifyHandshakeError(err)
	}

	return remote, info, nil
}

func (p *Pool) register(token string, remote Node) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if len(p.sessions) >= p.maxSessions {
		p.evictOldestLocked()
	}

	p.sessions[token] = &session{
		node:     remote,
		lastUsed: time.Now(),
	}
}

// evictOldestLocked drops the least recently used session. The pool mutex
// must be held.
func (p *Pool) evictOldestLocked() {
	var oldestToken string
	var oldest time.Time

	for token, sess := range p.sessions {
		if oldestToken == "" || sess.lastUsed.Before(oldest) {
			oldestToken = token
			oldest = sess.lastUsed
		}
	}

	if oldestToken == "" {
		return
	}

	sess := p.sessions[oldestToken]
	delete(p.sessions, oldestToken)
	p.stopQuietly(sess.node)

	p.log.Debugf("Evicted least recently used session")
}

func (p *Pool) evictIdle() {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	deadline := time.Now().Add(-p.idleTimeout)

	for token, sess := range p.sessions {
		if sess.lastUsed.Before(deadline) {
			delete(p.sessions, token)
			p.stopQuietly(sess.node)

			p.log.Debugf("Evicted idle session")
		}
	}
}

func (p *Pool) stopQuietly(remote Node) {
	err := remote.Stop()
	if err != nil {
		p.log.Warnf("Could not properly stop session: %v", err)
	}
}

// classifyHandshakeError tells a rejected macaroon apart from a transport
// fault during the initial identity query.
func classifyHandshakeError(err error) error {
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.Unauthenticated, codes.PermissionDenied:
			return &AuthError{Err: err}
		}
	}

	if strings.Contains(err.Error(), "macaroon") {
		return &AuthError{Err: err}
	}

	return &ConnectionError{Err: err}
}
