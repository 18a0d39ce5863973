package node

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when a token was never issued or its
	// credentials are unavailable, so no session can be resolved for it.
	ErrSessionNotFound = errors.New("no session found for this token")

	// ErrInvalidAmount is returned for invoice amounts that aren't positive.
	ErrInvalidAmount = errors.New("invoice amount must be positive")

	// ErrInvalidHash is returned when a payment hash is not 32 raw bytes.
	ErrInvalidHash = errors.New("payment hash must be 32 bytes")
)

// ConnectionError indicates the node transport could not be reached,
// including TLS failures during the handshake.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("could not connect to lightning node: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// AuthError indicates the node rejected the supplied macaroon.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("lightning node rejected credentials: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// UpstreamError indicates a remote call failed or timed out after the
// session was already established.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream node call failed: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
