package paymail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// MaxResponseSize caps the bytes read from any paymail endpoint.
const MaxResponseSize = 1 << 20

// Capability keys from the bsvalias registry. Servers advertise either the
// BRFC id or the legacy name.
const (
	capPaymentDestination     = "paymentDestination"
	capPaymentDestinationBRFC = "759684b1a19a"
	capP2PDestinationBRFC     = "2a40af698840"
	capPKI                    = "pki"
	capPKIBRFC                = "0c4339ef99c2"
)

// Capabilities holds the capability URL templates a paymail host
// advertises. Empty fields are not supported by the host.
type Capabilities struct {
	BSVAlias              string
	PaymentDestination    string
	P2PPaymentDestination string
	PKI                   string
}

type wellKnownResponse struct {
	BSVAlias     string                 `json:"bsvalias"`
	Capabilities map[string]interface{} `json:"capabilities"`
}

// HTTPClient is the subset of *http.Client used by the resolver.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// discoverCapabilities fetches https://{host}/.well-known/bsvalias. Every
// capability URL must be https and point at host, the paymail domain, or
// one of its subdomains.
func discoverCapabilities(ctx context.Context, client HTTPClient, host, domain string) (*Capabilities, error) {
	wellKnown := "https://" + host + "/.well-known/bsvalias"
	body, err := fetch(ctx, client, http.MethodGet, wellKnown, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPaymailDiscovery, err)
	}

	var wk wellKnownResponse
	if err := json.Unmarshal(body, &wk); err != nil {
		return nil, fmt.Errorf("%w: parsing JSON: %w", ErrPaymailDiscovery, err)
	}

	caps := &Capabilities{BSVAlias: wk.BSVAlias}
	for key, val := range wk.Capabilities {
		urlStr, ok := val.(string)
		if !ok {
			continue
		}
		var dst *string
		switch key {
		case capPaymentDestination, capPaymentDestinationBRFC:
			dst = &caps.PaymentDestination
		case capP2PDestinationBRFC:
			dst = &caps.P2PPaymentDestination
		case capPKI, capPKIBRFC:
			dst = &caps.PKI
		default:
			continue
		}
		if err := validateCapabilityHost(urlStr, host, domain); err != nil {
			return nil, err
		}
		*dst = urlStr
	}

	return caps, nil
}

// validateCapabilityHost rejects capability URLs that would send the
// request somewhere other than the paymail provider.
func validateCapabilityHost(rawURL, discoveryHost, domain string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrCapabilityHost, rawURL, err)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("%w: %q is not https", ErrCapabilityHost, rawURL)
	}

	// Templates keep {alias} and {domain.tld} in the path, so the host
	// parses cleanly.
	if strings.EqualFold(u.Host, discoveryHost) {
		return nil
	}
	host := strings.ToLower(u.Hostname())
	if dh, _, err := net.SplitHostPort(discoveryHost); err == nil && host == strings.ToLower(dh) {
		return nil
	}
	if host == domain || strings.HasSuffix(host, "."+domain) {
		return nil
	}
	return fmt.Errorf("%w: %s not under %s", ErrCapabilityHost, host, domain)
}

// expandTemplate fills the {alias} and {domain.tld} placeholders,
// escaping both to keep them inside their path segments.
func expandTemplate(tmpl string, addr Address) string {
	out := strings.ReplaceAll(tmpl, "{alias}", url.PathEscape(addr.Alias))
	return strings.ReplaceAll(out, "{domain.tld}", url.PathEscape(addr.Domain))
}

func fetch(ctx context.Context, client HTTPClient, method, target string, body []byte) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s %s returned status %d", method, target, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if len(data) > MaxResponseSize {
		return nil, fmt.Errorf("response from %s exceeds %d bytes", target, MaxResponseSize)
	}
	return data, nil
}
