// Package paymail resolves alias@domain recipients to locking scripts.
//
// Resolution follows the bsvalias flow: an SRV lookup of
// _bsvalias._tcp.{domain} (falling back to {domain}:443), capability
// discovery via .well-known/bsvalias, then a payment destination request.
// P2P payment destinations are preferred over the basic capability.
package paymail

import (
	"fmt"
	"strings"
)

// Address is a parsed alias@domain paymail.
type Address struct {
	Alias  string
	Domain string
}

// String returns the alias@domain form.
func (a Address) String() string {
	return a.Alias + "@" + a.Domain
}

// IsPaymail reports whether s has the alias@domain shape. It does not
// validate the domain.
func IsPaymail(s string) bool {
	_, err := ParseAddress(s)
	return err == nil
}

// ParseAddress splits a paymail into alias and domain. The alias is
// lowercased and the domain is lowercased with any trailing dot removed.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	alias := strings.ToLower(s[:at])
	domain := strings.TrimSuffix(strings.ToLower(s[at+1:]), ".")
	if strings.ContainsAny(alias, " /@") {
		return Address{}, fmt.Errorf("%w: bad alias %q", ErrInvalidAddress, alias)
	}
	if domain == "" || !strings.Contains(domain, ".") || strings.ContainsAny(domain, " /@") {
		return Address{}, fmt.Errorf("%w: bad domain %q", ErrInvalidAddress, domain)
	}
	return Address{Alias: alias, Domain: domain}, nil
}
