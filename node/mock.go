package node

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/go-errors/errors"
)

// MockNode simulates a remote lightning node for tests and local
// development. Invoices are kept in memory and can be marked settled
// through the self-test fixture.
type MockNode struct {
	alias  string
	pubkey string

	mtx      sync.Mutex
	invoices map[string]*Invoice
	balance  int64
	failure  error
	started  bool
}

// Compile time check for protocol compatibility
var _ Node = (*MockNode)(nil)

func NewMockNode(alias string, pubkey string) *MockNode {
	return &MockNode{
		alias:    alias,
		pubkey:   pubkey,
		invoices: make(map[string]*Invoice),
		balance:  100000,
	}
}

// Fail makes every subsequent call return err. Passing nil heals the node.
func (m *MockNode) Fail(err error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.failure = err
}

// Settle marks the invoice with the given hash as paid. Settlement never
// reverts, mirroring a real node's invoice ledger.
func (m *MockNode) Settle(rHash []byte) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	invoice, ok := m.invoices[hex.EncodeToString(rHash)]
	if !ok {
		return errors.Errorf("No invoice with hash %x", rHash)
	}

	invoice.Settled = true

	return nil
}

func (m *MockNode) Start(ctx context.Context) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.failure != nil {
		return m.failure
	}

	m.started = true

	return nil
}

func (m *MockNode) Stop() error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.started = false

	return nil
}

func (m *MockNode) GetInfo(ctx context.Context) (*Info, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.failure != nil {
		return nil, m.failure
	}

	return &Info{
		Alias:  m.alias,
		Pubkey: m.pubkey,
	}, nil
}

func (m *MockNode) GetBalance(ctx context.Context) (int64, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.failure != nil {
		return 0, m.failure
	}

	return m.balance, nil
}

func (m *MockNode) AddInvoice(ctx context.Context, amountSat int64) (*Invoice, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.failure != nil {
		return nil, m.failure
	}

	var rHash [32]byte
	_, err := rand.Read(rHash[:])
	if err != nil {
		return nil, err
	}

	invoice := &Invoice{
		PaymentRequest: fmt.Sprintf("lnmock%d1%x", amountSat, rHash[:8]),
		RHash:          rHash[:],
		AmountSat:      amountSat,
	}

	m.invoices[hex.EncodeToString(rHash[:])] = invoice

	return invoice, nil
}

func (m *MockNode) LookupInvoice(ctx context.Context, rHash []byte) (*Invoice, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.failure != nil {
		return nil, m.failure
	}

	invoice, ok := m.invoices[hex.EncodeToString(rHash)]
	if !ok {
		return nil, errors.Errorf("No invoice with hash %x", rHash)
	}

	copied := *invoice

	return &copied, nil
}

// MockDialer hands out a fixed set of mock nodes by host and counts how
// often each one was dialed.
type MockDialer struct {
	mtx   sync.Mutex
	nodes map[string]*MockNode
	dials map[string]int
	err   error
}

func NewMockDialer() *MockDialer {
	return &MockDialer{
		nodes: make(map[string]*MockNode),
		dials: make(map[string]int),
	}
}

func (d *MockDialer) AddNode(host string, node *MockNode) {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	d.nodes[host] = node
}

// FailNext makes every subsequent dial fail with err until healed with nil.
func (d *MockDialer) FailNext(err error) {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	d.err = err
}

func (d *MockDialer) Dials(host string) int {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	return d.dials[host]
}

func (d *MockDialer) Dial(host string, cert []byte, macaroon []byte) (Node, error) {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	d.dials[host]++

	if d.err != nil {
		return nil, d.err
	}

	node, ok := d.nodes[host]
	if !ok {
		return nil, errors.Errorf("No node reachable at %v", host)
	}

	return node, nil
}
