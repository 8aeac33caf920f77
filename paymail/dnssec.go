package paymail

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const (
	// DefaultDNSSECUpstream is the validating recursive resolver used when
	// none is configured.
	DefaultDNSSECUpstream = "8.8.8.8:53"

	// DefaultDNSSECTimeout bounds one lookup, TCP retry included.
	DefaultDNSSECTimeout = 10 * time.Second

	ednsBufSize = 4096
	maxCNAMEs   = 8
)

// DNSSECResolver resolves SRV records through a recursive resolver that
// validates DNSSEC. Only answers carrying the AD bit are accepted; the
// resolver itself does no chain validation.
type DNSSECResolver struct {
	// Upstream is host:port of the validating resolver.
	Upstream string
	Timeout  time.Duration
}

var _ DNSResolver = (*DNSSECResolver)(nil)

// NewDNSSECResolver returns a resolver for upstream. An empty upstream
// means DefaultDNSSECUpstream and a bare host gets port 53.
func NewDNSSECResolver(upstream string) *DNSSECResolver {
	switch {
	case upstream == "":
		upstream = DefaultDNSSECUpstream
	case !hasPort(upstream):
		upstream = net.JoinHostPort(strings.Trim(upstream, "[]"), "53")
	}
	return &DNSSECResolver{Upstream: upstream, Timeout: DefaultDNSSECTimeout}
}

func hasPort(hostport string) bool {
	_, port, err := net.SplitHostPort(hostport)
	return err == nil && port != ""
}

// LookupSRV implements DNSResolver with the resolver's timeout.
func (r *DNSSECResolver) LookupSRV(service, proto, name string) (string, []*net.SRV, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultDNSSECTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return r.LookupSRVContext(ctx, service, proto, name)
}

// LookupSRVContext queries _service._proto.name. Like net.LookupSRV it
// follows CNAMEs in the answer and returns the canonical name, and it only
// keeps SRV records owned by that name.
func (r *DNSSECResolver) LookupSRVContext(ctx context.Context, service, proto, name string) (string, []*net.SRV, error) {
	qname := dns.Fqdn(fmt.Sprintf("_%s._%s.%s", service, proto, name))
	resp, err := r.exchange(ctx, qname, dns.TypeSRV)
	if err != nil {
		return "", nil, err
	}
	if resp.Rcode == dns.RcodeNameError {
		return "", nil, fmt.Errorf("%w: %s does not exist", ErrDNSLookupFailed, qname)
	}

	owner := canonicalName(resp.Answer, qname)
	var srvs []*net.SRV
	for _, rr := range resp.Answer {
		srv, ok := rr.(*dns.SRV)
		if !ok || !strings.EqualFold(srv.Hdr.Name, owner) {
			continue
		}
		srvs = append(srvs, &net.SRV{
			Target:   srv.Target,
			Port:     srv.Port,
			Priority: srv.Priority,
			Weight:   srv.Weight,
		})
	}
	if len(srvs) == 0 {
		return "", nil, fmt.Errorf("%w: no SRV records for %s", ErrDNSLookupFailed, qname)
	}
	return owner, srvs, nil
}

// canonicalName walks the CNAME chain for name inside answer.
func canonicalName(answer []dns.RR, name string) string {
	for hops := 0; hops < maxCNAMEs; hops++ {
		next := ""
		for _, rr := range answer {
			if c, ok := rr.(*dns.CNAME); ok && strings.EqualFold(c.Hdr.Name, name) {
				next = c.Target
				break
			}
		}
		if next == "" {
			break
		}
		name = next
	}
	return name
}

// exchange asks upstream over UDP with the DO bit set and repeats the
// query over TCP when the answer is truncated.
func (r *DNSSECResolver) exchange(ctx context.Context, name string, qtype uint16) (*dns.Msg, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(name, qtype)
	msg.RecursionDesired = true
	msg.SetEdns0(ednsBufSize, true)

	what := name + " " + dns.TypeToString[qtype]
	resp, _, err := (&dns.Client{Net: "udp", UDPSize: ednsBufSize}).ExchangeContext(ctx, msg, r.Upstream)
	if err == nil && resp.Truncated {
		resp, _, err = (&dns.Client{Net: "tcp"}).ExchangeContext(ctx, msg, r.Upstream)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s via %s: %w", ErrDNSLookupFailed, what, r.Upstream, err)
	}

	if resp.Rcode != dns.RcodeSuccess && resp.Rcode != dns.RcodeNameError {
		return nil, fmt.Errorf("%w: %s: %s", ErrDNSLookupFailed, what, dns.RcodeToString[resp.Rcode])
	}
	if !resp.AuthenticatedData {
		return nil, fmt.Errorf("%w: %s answered without AD bit", ErrDNSSECValidationFailed, what)
	}
	return resp, nil
}
