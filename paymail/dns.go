package paymail

import (
	"cmp"
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
)

// DNSResolver looks up SRV records. The signature matches net.LookupSRV.
type DNSResolver interface {
	LookupSRV(service, proto, name string) (cname string, addrs []*net.SRV, err error)
}

type systemResolver struct{}

func (systemResolver) LookupSRV(service, proto, name string) (string, []*net.SRV, error) {
	return net.LookupSRV(service, proto, name)
}

// DefaultDNSResolver uses the operating system's resolver.
var DefaultDNSResolver DNSResolver = systemResolver{}

const (
	// SRVPaymail is the service label of _bsvalias._tcp.{domain}.
	SRVPaymail = "bsvalias"

	// defaultPort is used when a domain publishes no SRV record.
	defaultPort = 443
)

// ResolveEndpointsWithResolver returns host:port for every bsvalias SRV
// record of domain, lowest priority first and heaviest weight first within
// a priority.
func ResolveEndpointsWithResolver(domain string, resolver DNSResolver) ([]string, error) {
	if domain == "" {
		return nil, fmt.Errorf("%w: empty domain", ErrDNSLookupFailed)
	}
	qname := "_" + SRVPaymail + "._tcp." + domain

	_, records, err := resolver.LookupSRV(SRVPaymail, "tcp", domain)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDNSLookupFailed, qname, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoEndpoints, qname)
	}

	records = slices.Clone(records)
	slices.SortStableFunc(records, func(a, b *net.SRV) int {
		if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
			return c
		}
		return cmp.Compare(b.Weight, a.Weight)
	})

	endpoints := make([]string, 0, len(records))
	for _, r := range records {
		endpoints = append(endpoints, net.JoinHostPort(strings.TrimSuffix(r.Target, "."), strconv.Itoa(int(r.Port))))
	}
	return endpoints, nil
}

// discoveryHost returns the host:port serving .well-known/bsvalias for
// domain, falling back to the domain itself on port 443.
func discoveryHost(domain string, resolver DNSResolver) string {
	endpoints, err := ResolveEndpointsWithResolver(domain, resolver)
	if err != nil {
		return net.JoinHostPort(domain, strconv.Itoa(defaultPort))
	}
	return endpoints[0]
}
