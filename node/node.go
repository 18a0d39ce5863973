package node

import (
	"context"
	"time"
)

// Invoice is a priced claim against a specific node. RHash uniquely
// identifies the invoice on the node that issued it.
type Invoice struct {
	PaymentRequest string
	RHash          []byte
	AmountSat      int64
	Settled        bool
}

// Info describes the identity of a remote node.
type Info struct {
	Alias  string
	Pubkey string
}

// Credential holds the connection material for one registered node.
// It is created on a successful connect and never mutated afterwards,
// except for attaching the pubkey learned during the handshake.
type Credential struct {
	Host     string    `json:"host"`
	Cert     []byte    `json:"cert"`
	Macaroon []byte    `json:"macaroon"`
	Token    string    `json:"token"`
	Pubkey   string    `json:"pubkey"`
	Created  time.Time `json:"created"`
}

// CredentialStore persists node credentials so that sessions can be
// re-established after an eviction or a restart.
type CredentialStore interface {
	SaveNodeCredential(credential *Credential) error
	GetNodeCredential(token string) (*Credential, error)
}

// Node is a live, authenticated RPC session against a remote lightning node.
// Handles are owned exclusively by the pool and never escape it.
type Node interface {
	Start(ctx context.Context) error
	Stop() error
	GetInfo(ctx context.Context) (*Info, error)
	GetBalance(ctx context.Context) (int64, error)
	AddInvoice(ctx context.Context, amountSat int64) (*Invoice, error)
	LookupInvoice(ctx context.Context, rHash []byte) (*Invoice, error)
}

// DialFunc establishes a session from raw connection material.
type DialFunc func(host string, cert []byte, macaroon []byte) (Node, error)
