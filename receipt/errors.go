package receipt

import "errors"

var (
	// ErrNilParam indicates a nil receipt was passed.
	ErrNilParam = errors.New("receipt: nil parameter")

	// ErrInvalidTxID indicates a txid that is not 64 hex characters.
	ErrInvalidTxID = errors.New("receipt: invalid txid")

	// ErrNotFound indicates no receipt is stored for the txid.
	ErrNotFound = errors.New("receipt: not found")

	// ErrDuplicate indicates a receipt for the txid already exists.
	ErrDuplicate = errors.New("receipt: duplicate txid")
)
