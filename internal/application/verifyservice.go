package application

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/joohoi/acme-dns-certbot-joohoi/internal/domain/model"
	"github.com/joohoi/acme-dns-certbot-joohoi/internal/domain/port/driven"
)

// VerifyService checks that the CNAME delegations for stored acme-dns
// accounts are actually in place.
type VerifyService struct {
	store   driven.CredentialStore
	checker driven.DelegationChecker
}

// NewVerifyService creates a VerifyService with all required dependencies.
func NewVerifyService(store driven.CredentialStore, checker driven.DelegationChecker) *VerifyService {
	return &VerifyService{store: store, checker: checker}
}

// VerifyResult is the outcome of one domain's delegation check. Err is nil
// when the delegation is in place.
type VerifyResult struct {
	Domain     string
	FullDomain string
	Err        error
}

// Verify checks the delegation of each given domain. With no domains
// given, every stored domain is checked. Results come back in a stable
// order; per-domain failures land in the result, not the returned error.
func (s *VerifyService) Verify(ctx context.Context, domains []string) ([]VerifyResult, error) {
	if len(domains) == 0 {
		all, err := s.store.All(ctx)
		if err != nil {
			return nil, err
		}
		for domain := range all {
			domains = append(domains, domain)
		}
		sort.Strings(domains)
	}

	results := make([]VerifyResult, 0, len(domains))
	for _, domain := range domains {
		rec, err := s.store.Fetch(ctx, domain)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			results = append(results, VerifyResult{
				Domain: model.NormalizeDomain(domain),
				Err:    errors.New("no stored credentials"),
			})
			continue
		}

		slog.Debug("checking delegation", "domain", rec.Domain, "fulldomain", rec.FullDomain)
		results = append(results, VerifyResult{
			Domain:     rec.Domain,
			FullDomain: rec.FullDomain,
			Err:        s.checker.VerifyDelegation(ctx, domain, rec.FullDomain),
		})
	}

	return results, nil
}
