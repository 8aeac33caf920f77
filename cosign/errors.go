package cosign

import "errors"

var (
	// ErrInvalidRequest indicates a malformed mint request.
	ErrInvalidRequest = errors.New("cosign: invalid mint request")

	// ErrNoAuthority indicates the platform has no free authority utxo.
	ErrNoAuthority = errors.New("cosign: no platform authority utxo available")

	// ErrUnavailable indicates the co-signer could not be reached.
	ErrUnavailable = errors.New("cosign: co-signer unavailable")

	// ErrRejected indicates the co-signer refused the request.
	ErrRejected = errors.New("cosign: request rejected")

	// ErrMalformedOrder indicates the co-signer returned an unusable order.
	ErrMalformedOrder = errors.New("cosign: malformed mint order")
)
