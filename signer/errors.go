package signer

import "errors"

var (
	// ErrSigningDeclined indicates the signer refused, timed out or failed to sign.
	ErrSigningDeclined = errors.New("signer: signing declined")

	// ErrInvalidSignatureResponse indicates the response set does not match the requests.
	ErrInvalidSignatureResponse = errors.New("signer: invalid signature response")

	// ErrCancelled indicates the caller cancelled before signatures were returned.
	ErrCancelled = errors.New("signer: cancelled")
)
