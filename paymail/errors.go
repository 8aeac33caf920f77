package paymail

import "errors"

var (
	// ErrInvalidAddress indicates the string is not an alias@domain paymail.
	ErrInvalidAddress = errors.New("paymail: invalid paymail address")

	// ErrDNSLookupFailed indicates a DNS SRV lookup failed.
	ErrDNSLookupFailed = errors.New("paymail: DNS lookup failed")

	// ErrDNSSECValidationFailed indicates the upstream resolver did not
	// authenticate the answer.
	ErrDNSSECValidationFailed = errors.New("paymail: DNSSEC validation failed")

	// ErrNoEndpoints indicates no SRV records were found for the domain.
	ErrNoEndpoints = errors.New("paymail: no endpoints found")

	// ErrPaymailDiscovery indicates .well-known/bsvalias fetch failed.
	ErrPaymailDiscovery = errors.New("paymail: capability discovery failed")

	// ErrCapabilityHost indicates a capability URL points outside the paymail domain.
	ErrCapabilityHost = errors.New("paymail: capability host not allowed")

	// ErrAddressResolution indicates the payment destination resolution failed.
	ErrAddressResolution = errors.New("paymail: address resolution failed")
)
