package flow

import (
	"errors"
	"fmt"

	"github.com/bitfsorg/libmarket-go/signer"
)

var (
	// ErrInvalidRequest indicates a malformed flow request.
	ErrInvalidRequest = errors.New("flow: invalid request")

	// ErrBroadcastRejected indicates the network refused the signed
	// transaction. It is the only failure worth retrying, and only after
	// fresh utxo selection.
	ErrBroadcastRejected = errors.New("flow: broadcast rejected")

	// ErrNotConfigured indicates the pipeline lacks a collaborator the flow
	// needs (resolver, locker, co-signer).
	ErrNotConfigured = errors.New("flow: pipeline not configured")

	// ErrOrderMismatch indicates the co-signer's requests do not describe
	// the inputs of its own transaction.
	ErrOrderMismatch = errors.New("flow: co-signer order mismatch")

	// ErrCancelled is returned when the context ends before broadcast.
	ErrCancelled = signer.ErrCancelled
)

// Error reports the state a flow was in when it failed.
type Error struct {
	Kind  Kind
	State State
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("flow: %s failed while %s: %v", e.Kind, e.State, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
