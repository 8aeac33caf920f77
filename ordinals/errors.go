package ordinals

import "errors"

var (
	// ErrNoTemplate indicates the price-lock template bytecode is not configured.
	ErrNoTemplate = errors.New("ordinals: price-lock template not configured")

	// ErrInvalidAddress indicates an address could not be decoded.
	ErrInvalidAddress = errors.New("ordinals: invalid address")

	// ErrNotPriceLock indicates a script does not match the configured template.
	ErrNotPriceLock = errors.New("ordinals: not a price-lock script")

	// ErrNotInscription indicates a script carries no inscription envelope.
	ErrNotInscription = errors.New("ordinals: not an inscription")

	// ErrInvalidContent indicates the inscription content type or body is invalid.
	ErrInvalidContent = errors.New("ordinals: invalid inscription content")
)
