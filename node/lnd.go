package node

import (
	"context"
	"crypto/x509"
	"encoding/hex"

	"github.com/go-errors/errors"
	"github.com/lightningnetwork/lnd/lnrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
)

var (
	beginCertificateBlock = []byte("-----BEGIN CERTIFICATE-----\n")
	endCertificateBlock   = []byte("\n-----END CERTIFICATE-----")
)

type LndNodeConfig struct {
	Uri           string
	CertBytes     []byte
	MacaroonBytes []byte
	Logger        Logger
}

// LndNode is a single authenticated gRPC session against a remote lnd node.
type LndNode struct {
	uri              string
	tlsCredentials   credentials.TransportCredentials
	macaroonMetadata metadata.MD
	conn             *grpc.ClientConn
	client           lnrpc.LightningClient
	logger           Logger
}

// Compile time check for protocol compatibility
var _ Node = (*LndNode)(nil)

func NewLndNode(config *LndNodeConfig) (*LndNode, error) {
	cert := x509.NewCertPool()
	fullCertBytes := append(beginCertificateBlock, config.CertBytes...)
	fullCertBytes = append(fullCertBytes, endCertificateBlock...)

	if ok := cert.AppendCertsFromPEM(fullCertBytes); !ok {
		return nil, errors.New("could not parse tls cert")
	}

	tlsCredentials := credentials.NewClientTLSFromCert(cert, "")

	hexMacaroon := hex.EncodeToString(config.MacaroonBytes)
	macaroonMetadata := metadata.Pairs("macaroon", hexMacaroon)

	node := &LndNode{
		uri:              config.Uri,
		tlsCredentials:   tlsCredentials,
		macaroonMetadata: macaroonMetadata,
	}

	if config.Logger != nil {
		node.logger = config.Logger
	} else {
		node.logger = noopLogger{}
	}

	return node, nil
}

func (r *LndNode) Start(ctx context.Context) error {
	var err error
	r.conn, err = grpc.DialContext(ctx, r.uri, grpc.WithTransportCredentials(r.tlsCredentials))
	if err != nil {
		return errors.Errorf("Could not connect to lightning node: %v", err)
	}

	r.client = lnrpc.NewLightningClient(r.conn)

	return nil
}

func (r *LndNode) Stop() error {
	err := r.conn.Close()
	if err != nil {
		return errors.Errorf("Could not close connection: %v", err)
	}

	return nil
}

func (r *LndNode) GetInfo(ctx context.Context) (*Info, error) {
	res, err := r.client.GetInfo(r.withMacaroon(ctx), &lnrpc.GetInfoRequest{})
	if err != nil {
		return nil, err
	}

	return &Info{
		Alias:  res.Alias,
		Pubkey: res.IdentityPubkey,
	}, nil
}

func (r *LndNode) GetBalance(ctx context.Context) (int64, error) {
	res, err := r.client.ChannelBalance(r.withMacaroon(ctx), &lnrpc.ChannelBalanceRequest{})
	if err != nil {
		return 0, err
	}

	return res.Balance, nil
}

func (r *LndNode) AddInvoice(ctx context.Context, amountSat int64) (*Invoice, error) {
	res, err := r.client.AddInvoice(r.withMacaroon(ctx), &lnrpc.Invoice{
		Value: amountSat,
	})
	if err != nil {
		return nil, err
	}

	r.logger.Debugf("Generated invoice of %v sat", amountSat)

	return &Invoice{
		PaymentRequest: res.PaymentRequest,
		RHash:          res.RHash,
		AmountSat:      amountSat,
		Settled:        false,
	}, nil
}

func (r *LndNode) LookupInvoice(ctx context.Context, rHash []byte) (*Invoice, error) {
	res, err := r.client.LookupInvoice(r.withMacaroon(ctx), &lnrpc.PaymentHash{
		RHash: rHash,
	})
	if err != nil {
		return nil, err
	}

	return &Invoice{
		PaymentRequest: res.PaymentRequest,
		RHash:          rHash,
		AmountSat:      res.Value,
		Settled:        res.Settled,
	}, nil
}

// withMacaroon attaches the bearer macaroon to the outgoing call metadata.
func (r *LndNode) withMacaroon(ctx context.Context) context.Context {
	return metadata.NewOutgoingContext(ctx, r.macaroonMetadata)
}
