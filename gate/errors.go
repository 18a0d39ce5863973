package gate

import "errors"

var (
	// ErrMissingProof is returned when a redeem carries no payment hash.
	ErrMissingProof = errors.New("a payment hash is required")

	// ErrActionNotFound is returned when no invoice was ever priced for
	// the given action.
	ErrActionNotFound = errors.New("no such gated action")

	// ErrPaymentNotSettled is the expected outcome of redeeming before the
	// invoice is paid. The caller may simply try again later.
	ErrPaymentNotSettled = errors.New("the payment has not settled yet")

	// ErrNodeUnavailable is returned when the action's owning node cannot
	// be resolved to a session.
	ErrNodeUnavailable = errors.New("the node for this action is not available")

	// ErrInvoiceMismatch is returned when the claimed hash is well-formed
	// but does not belong to the action's invoice.
	ErrInvoiceMismatch = errors.New("the payment hash does not match this action's invoice")

	// ErrAlreadyGranted is returned when pricing is attempted for an
	// action whose effect has already been applied.
	ErrAlreadyGranted = errors.New("the action has already been granted")
)
