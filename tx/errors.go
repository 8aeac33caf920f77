package tx

import (
	"errors"
	"fmt"
)

var (
	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("tx: required parameter is nil")

	// ErrInsufficientFunds indicates the candidate UTXOs cannot cover the target plus fee.
	ErrInsufficientFunds = errors.New("tx: insufficient funds")

	// ErrValueTooLarge indicates a value does not fit the supported varint range.
	ErrValueTooLarge = errors.New("tx: value too large for varint")

	// ErrTruncatedInput indicates a read ran past the end of the buffer.
	ErrTruncatedInput = errors.New("tx: truncated input")

	// ErrMalformedScript indicates a script field or its length prefix is invalid.
	ErrMalformedScript = errors.New("tx: malformed script")

	// ErrMissingSignature indicates an input has no unlocking script at serialization time.
	ErrMissingSignature = errors.New("tx: missing signature")

	// ErrScriptBuild indicates script construction failed.
	ErrScriptBuild = errors.New("tx: script build failed")

	// ErrInvalidTxID indicates a transaction id is not 32 bytes of hex.
	ErrInvalidTxID = errors.New("tx: invalid transaction id")

	// ErrInvalidParams indicates invalid parameters were provided.
	ErrInvalidParams = errors.New("tx: invalid parameters")
)

// MissingSignatureError reports the first input that lacks an unlocking script.
type MissingSignatureError struct {
	InputIndex int
}

func (e *MissingSignatureError) Error() string {
	return fmt.Sprintf("%s: input %d", ErrMissingSignature, e.InputIndex)
}

// Is reports whether target is ErrMissingSignature.
func (e *MissingSignatureError) Is(target error) bool {
	return target == ErrMissingSignature
}
