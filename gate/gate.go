package gate

import (
	"bytes"
	"context"
	"sync"

	"github.com/go-errors/errors"
	"github.com/the-lightning-land/postd/node"
)

// Action is a single pay-to-read gate: an effect that may only be applied
// once the invoice identified by Hash has settled on the owning node.
type Action struct {
	ID        string `json:"id"`
	PostID    uint64 `json:"postId"`
	NodeToken string `json:"nodeToken"`
	Hash      []byte `json:"hash"`
	AmountSat int64  `json:"amountSat"`
	State     State  `json:"state"`
}

// Store durably maps action ids to their invoice hash and state.
// GetAction returns nil without an error when no action exists.
type Store interface {
	SaveAction(action *Action) error
	GetAction(id string) (*Action, error)
}

// InvoiceSource is the slice of the session pool the gate needs.
type InvoiceSource interface {
	AddInvoice(ctx context.Context, token string, amountSat int64) (*node.Invoice, error)
	LookupInvoice(ctx context.Context, token string, rHash []byte) (bool, error)
}

// Applier applies the gated effect. It runs at most once per action, inside
// the gate's per-action critical section.
type Applier interface {
	Apply(ctx context.Context, action *Action) error
}

// Grant is emitted to subscribers whenever a gated effect is applied.
type Grant struct {
	ActionID  string
	PostID    uint64
	AmountSat int64
}

type Config struct {
	Pool    InvoiceSource
	Store   Store
	Applier Applier
	Logger  Logger
}

// Gate prices actions against a node and redeems them once the payment
// settles, applying each action's effect exactly once.
type Gate struct {
	pool    InvoiceSource
	store   Store
	applier Applier
	log     Logger

	mtx   sync.Mutex
	locks map[string]*sync.Mutex

	grantClientMtx    sync.Mutex
	grantClients      map[uint32]*GrantClient
	nextGrantClientID uint32
}

type GrantClient struct {
	Grants     chan *Grant
	Id         uint32
	cancelChan chan struct{}
	gate       *Gate
}

func New(config *Config) *Gate {
	gate := &Gate{
		pool:         config.Pool,
		store:        config.Store,
		applier:      config.Applier,
		locks:        make(map[string]*sync.Mutex),
		grantClients: make(map[uint32]*GrantClient),
	}

	if config.Logger != nil {
		gate.log = config.Logger
	} else {
		gate.log = noopLogger{}
	}

	return gate
}

// PriceAction mints an invoice for the action on the owning node and
// persists the action in its initial priced state.
func (g *Gate) PriceAction(ctx context.Context, actionID string, postID uint64, token string, amountSat int64) (*node.Invoice, error) {
	lock := g.lockFor(actionID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := g.store.GetAction(actionID)
	if err != nil {
		return nil, errors.Errorf("Could not read action: %v", err)
	}

	if existing != nil && existing.State == StateGranted {
		return nil, ErrAlreadyGranted
	}

	invoice, err := g.pool.AddInvoice(ctx, token, amountSat)
	if err != nil {
		return nil, err
	}

	err = g.store.SaveAction(&Action{
		ID:        actionID,
		PostID:    postID,
		NodeToken: token,
		Hash:      invoice.RHash,
		AmountSat: amountSat,
		State:     StatePriced,
	})
	if err != nil {
		return nil, errors.Errorf("Could not save action: %v", err)
	}

	g.log.Infof("Priced action %v at %v sat", actionID, amountSat)

	return invoice, nil
}

// Redeem verifies the claimed payment against the action's owning node and
// applies the gated effect. Redeeming an already granted action is a no-op
// that still reports success, so callers can safely retry. An unsettled
// payment leaves the action redeemable and is reported as
// ErrPaymentNotSettled.
func (g *Gate) Redeem(ctx context.Context, actionID string, claimedHash []byte) (*Action, error) {
	if len(claimedHash) == 0 {
		return nil, ErrMissingProof
	}

	// The whole check-settle-apply sequence is a critical section per
	// action, so two concurrent redeems can never both apply the effect.
	lock := g.lockFor(actionID)
	lock.Lock()
	defer lock.Unlock()

	action, err := g.store.GetAction(actionID)
	if err != nil {
		return nil, errors.Errorf("Could not read action: %v", err)
	}

	if action == nil {
		return nil, ErrActionNotFound
	}

	if action.State == StateGranted {
		return action, nil
	}

	if !bytes.Equal(claimedHash, action.Hash) {
		return nil, ErrInvoiceMismatch
	}

	previous := action.State
	action.State = StatePendingProof

	settled, err := g.pool.LookupInvoice(ctx, action.NodeToken, claimedHash)
	if err != nil {
		// A failed lookup doesn't poison the action.
		action.State = previous

		if errors.Is(err, node.ErrSessionNotFound) {
			return nil, ErrNodeUnavailable
		}

		return nil, err
	}

	if !settled {
		action.State = StateRejected
		if err := g.store.SaveAction(action); err != nil {
			g.log.Errorf("Could not save rejected action: %v", err)
		}

		return nil, ErrPaymentNotSettled
	}

	action.State = StateSettled
	if err := g.store.SaveAction(action); err != nil {
		return nil, errors.Errorf("Could not save settled action: %v", err)
	}

	err = g.applier.Apply(ctx, action)
	if err != nil {
		// The settlement sticks; only the effect is retried on the
		// next redeem.
		return nil, errors.Errorf("Could not apply action effect: %v", err)
	}

	action.State = StateGranted
	if err := g.store.SaveAction(action); err != nil {
		return nil, errors.Errorf("Could not save granted action: %v", err)
	}

	g.log.Infof("Granted action %v after settled payment of %v sat", actionID, action.AmountSat)

	g.notifyGrant(action)

	return action, nil
}

func (g *Gate) notifyGrant(action *Action) {
	grant := &Grant{
		ActionID:  action.ID,
		PostID:    action.PostID,
		AmountSat: action.AmountSat,
	}

	g.grantClientMtx.Lock()
	defer g.grantClientMtx.Unlock()

	for _, client := range g.grantClients {
		select {
		case client.Grants <- grant:
		default:
			g.log.Warnf("Dropping grant notification for slow client %v", client.Id)
		}
	}
}

// SubscribeGrants registers a client that receives a notification for
// every applied effect.
func (g *Gate) SubscribeGrants() *GrantClient {
	client := &GrantClient{
		Grants:     make(chan *Grant, 8),
		cancelChan: make(chan struct{}),
		gate:       g,
	}

	g.grantClientMtx.Lock()
	defer g.grantClientMtx.Unlock()

	client.Id = g.nextGrantClientID
	g.nextGrantClientID++

	g.grantClients[client.Id] = client

	return client
}

func (c *GrantClient) Cancel() {
	c.gate.grantClientMtx.Lock()
	defer c.gate.grantClientMtx.Unlock()

	delete(c.gate.grantClients, c.Id)

	close(c.cancelChan)
}

func (g *Gate) lockFor(actionID string) *sync.Mutex {
	g.mtx.Lock()
	defer g.mtx.Unlock()

	lock, ok := g.locks[actionID]
	if !ok {
		lock = &sync.Mutex{}
		g.locks[actionID] = lock
	}

	return lock
}
