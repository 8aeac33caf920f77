package paymail

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/decred/slog"
)

// DefaultTimeout bounds each HTTP request made by a Resolver built with
// NewResolver.
const DefaultTimeout = 30 * time.Second

// Output is one destination returned by a paymail host.
type Output struct {
	Script   []byte
	Satoshis uint64
}

// Destination is the resolved payment target for one paymail.
type Destination struct {
	Address   Address
	Outputs   []Output
	Reference string // P2P reference, empty for the basic capability
}

type p2pRequest struct {
	Satoshis uint64 `json:"satoshis"`
}

type p2pOutput struct {
	Script   string `json:"script"`
	Satoshis uint64 `json:"satoshis"`
}

type p2pResponse struct {
	Outputs   []p2pOutput `json:"outputs"`
	Reference string      `json:"reference"`
}

type basicRequest struct {
	SenderName   string `json:"senderName,omitempty"`
	SenderHandle string `json:"senderHandle,omitempty"`
	DT           string `json:"dt"`
	Amount       uint64 `json:"amount,omitempty"`
	Purpose      string `json:"purpose,omitempty"`
}

type basicResponse struct {
	Output string `json:"output"`
}

// Resolver turns paymail addresses into payment destinations.
type Resolver struct {
	HTTP       HTTPClient
	DNS        DNSResolver
	SenderName string

	// Now stamps basic payment destination requests. Defaults to time.Now.
	Now func() time.Time

	log slog.Logger
}

// NewResolver returns a Resolver using the system resolver, or a DNSSEC
// validating one against upstream when dnssec is set.
func NewResolver(dnssec bool, upstream string, log slog.Logger) *Resolver {
	var dns DNSResolver = DefaultDNSResolver
	if dnssec {
		dns = NewDNSSECResolver(upstream)
	}
	r := &Resolver{
		HTTP:       &http.Client{Timeout: DefaultTimeout},
		DNS:        dns,
		SenderName: "market",
	}
	r.SetLogger(log)
	return r
}

// SetLogger replaces the resolver's logger. A nil logger disables logging.
func (r *Resolver) SetLogger(log slog.Logger) {
	if log == nil {
		log = slog.Disabled
	}
	r.log = log
}

func (r *Resolver) logger() slog.Logger {
	if r.log == nil {
		return slog.Disabled
	}
	return r.log
}

// Resolve discovers the paymail host of addr and asks it where to send
// amount satoshis.
func (r *Resolver) Resolve(ctx context.Context, addr string, amount uint64) (*Destination, error) {
	pm, err := ParseAddress(addr)
	if err != nil {
		return nil, err
	}
	if r.HTTP == nil || r.DNS == nil {
		return nil, fmt.Errorf("%w: resolver not configured", ErrAddressResolution)
	}

	host := discoveryHost(pm.Domain, r.DNS)
	r.logger().Debugf("paymail %s: discovery host %s", pm, host)

	caps, err := discoverCapabilities(ctx, r.HTTP, host, pm.Domain)
	if err != nil {
		return nil, err
	}

	switch {
	case caps.P2PPaymentDestination != "":
		return r.resolveP2P(ctx, caps.P2PPaymentDestination, pm, amount)
	case caps.PaymentDestination != "":
		return r.resolveBasic(ctx, caps.PaymentDestination, pm, amount)
	default:
		return nil, fmt.Errorf("%w: no payment destination capability for %s", ErrAddressResolution, pm.Domain)
	}
}

// LockingScript resolves addr and returns the script of its first output.
func (r *Resolver) LockingScript(ctx context.Context, addr string, amount uint64) ([]byte, error) {
	dest, err := r.Resolve(ctx, addr, amount)
	if err != nil {
		return nil, err
	}
	return dest.Outputs[0].Script, nil
}

func (r *Resolver) resolveP2P(ctx context.Context, tmpl string, pm Address, amount uint64) (*Destination, error) {
	body, err := json.Marshal(p2pRequest{Satoshis: amount})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAddressResolution, err)
	}

	data, err := fetch(ctx, r.HTTP, http.MethodPost, expandTemplate(tmpl, pm), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAddressResolution, err)
	}

	var resp p2pResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: parsing response: %w", ErrAddressResolution, err)
	}
	if len(resp.Outputs) == 0 {
		return nil, fmt.Errorf("%w: no outputs in response", ErrAddressResolution)
	}

	dest := &Destination{Address: pm, Reference: resp.Reference}
	for i, o := range resp.Outputs {
		script, err := decodeScript(o.Script)
		if err != nil {
			return nil, fmt.Errorf("%w: output %d: %w", ErrAddressResolution, i, err)
		}
		dest.Outputs = append(dest.Outputs, Output{Script: script, Satoshis: o.Satoshis})
	}

	r.logger().Debugf("paymail %s: %d p2p outputs, reference %q", pm, len(dest.Outputs), dest.Reference)
	return dest, nil
}

func (r *Resolver) resolveBasic(ctx context.Context, tmpl string, pm Address, amount uint64) (*Destination, error) {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	body, err := json.Marshal(basicRequest{
		SenderName: r.SenderName,
		DT:         now().UTC().Format(time.RFC3339),
		Amount:     amount,
		Purpose:    "payment",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAddressResolution, err)
	}

	data, err := fetch(ctx, r.HTTP, http.MethodPost, expandTemplate(tmpl, pm), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAddressResolution, err)
	}

	var resp basicResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: parsing response: %w", ErrAddressResolution, err)
	}
	script, err := decodeScript(resp.Output)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAddressResolution, err)
	}

	r.logger().Debugf("paymail %s: basic destination", pm)
	return &Destination{Address: pm, Outputs: []Output{{Script: script, Satoshis: amount}}}, nil
}

func decodeScript(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("empty script")
	}
	script, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid script hex: %w", err)
	}
	return script, nil
}
