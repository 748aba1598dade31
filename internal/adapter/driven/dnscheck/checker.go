// Package dnscheck implements the DelegationChecker port with plain DNS
// queries, so the CNAME guidance printed at registration time can be
// verified once the operator has updated their zone.
package dnscheck

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/joohoi/acme-dns-certbot-joohoi/internal/domain/model"
	"github.com/joohoi/acme-dns-certbot-joohoi/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.DelegationChecker = (*Checker)(nil)

// Checker resolves CNAME records against a single resolver.
type Checker struct {
	resolver string
	client   *dns.Client
}

// NewChecker creates a Checker. resolver is a host or host:port; an empty
// resolver falls back to the first server in /etc/resolv.conf. Port 53 is
// assumed when none is given.
func NewChecker(resolver string, timeout time.Duration) (*Checker, error) {
	addr, err := resolverAddr(resolver)
	if err != nil {
		return nil, err
	}

	return &Checker{
		resolver: addr,
		client:   &dns.Client{Timeout: timeout},
	}, nil
}

// VerifyDelegation checks that _acme-challenge.<domain> is a CNAME pointing
// at target, the acme-dns account's fulldomain.
func (c *Checker) VerifyDelegation(ctx context.Context, domain, target string) error {
	name := dns.Fqdn(model.ChallengeDomain(domain))
	want := dns.Fqdn(target)

	msg := new(dns.Msg)
	msg.SetQuestion(name, dns.TypeCNAME)
	msg.RecursionDesired = true

	resp, _, err := c.client.ExchangeContext(ctx, msg, c.resolver)
	if err != nil {
		return fmt.Errorf("querying %s for %s: %w", c.resolver, name, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return fmt.Errorf("query for %s returned %s", name, dns.RcodeToString[resp.Rcode])
	}

	for _, rr := range resp.Answer {
		cname, ok := rr.(*dns.CNAME)
		if !ok {
			continue
		}
		if strings.EqualFold(cname.Target, want) {
			return nil
		}
		return fmt.Errorf("%s is a CNAME to %s, want %s", name, cname.Target, want)
	}

	return fmt.Errorf("no CNAME found for %s, want %s", name, want)
}

// resolverAddr turns the configured resolver into a dialable host:port,
// consulting /etc/resolv.conf when none is configured.
func resolverAddr(resolver string) (string, error) {
	if resolver == "" {
		conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
		if err != nil {
			return "", fmt.Errorf("reading system resolver config: %w", err)
		}
		if len(conf.Servers) == 0 {
			return "", fmt.Errorf("no nameservers in system resolver config")
		}
		return net.JoinHostPort(conf.Servers[0], conf.Port), nil
	}

	if _, _, err := net.SplitHostPort(resolver); err == nil {
		return resolver, nil
	}
	return net.JoinHostPort(resolver, "53"), nil
}
