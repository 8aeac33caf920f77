package network

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionFailed indicates the node could not be reached or
	// answered with a non-RPC HTTP failure.
	ErrConnectionFailed = errors.New("network: node connection failed")

	// ErrAuthFailed indicates the node refused the RPC credentials.
	ErrAuthFailed = errors.New("network: node rejected rpc credentials")

	// ErrInvalidResponse indicates a reply that is not the JSON-RPC result
	// the call expects.
	ErrInvalidResponse = errors.New("network: invalid node response")

	// ErrSpent indicates an outpoint the node no longer holds in its UTXO
	// set, mempool spends included.
	ErrSpent = errors.New("network: output spent or unknown")

	// ErrTxNotFound indicates the node knows no transaction with that id.
	ErrTxNotFound = errors.New("network: transaction not found")

	// ErrBroadcastRejected indicates the node refused a signed
	// transaction. The concrete error is a *RejectError.
	ErrBroadcastRejected = errors.New("network: broadcast rejected")
)

// Node RPC error codes the client maps onto typed errors.
const (
	codeInvalidAddressOrKey = -5
	codeVerifyError         = -25
	codeVerifyRejected      = -26
	codeVerifyAlreadyInTx   = -27
)

// RPCError is an error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("network: rpc error %d: %s", e.Code, e.Message)
}

// RejectError is a refused broadcast. Reason is the node's reject text,
// e.g. "txn-mempool-conflict" or "Missing inputs".
type RejectError struct {
	TxID   string
	Code   int
	Reason string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("network: broadcast of %s rejected (%d): %s", e.TxID, e.Code, e.Reason)
}

// Is matches ErrBroadcastRejected.
func (e *RejectError) Is(target error) bool {
	return target == ErrBroadcastRejected
}

// MissingInputs reports whether an input was already spent or never
// existed, which usually means a competing spend won.
func (e *RejectError) MissingInputs() bool {
	return e.Code == codeVerifyError
}
