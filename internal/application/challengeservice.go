// Package application contains use-case orchestration services.
package application

import (
	"context"
	"log/slog"

	"github.com/joohoi/acme-dns-certbot-joohoi/internal/domain/model"
	"github.com/joohoi/acme-dns-certbot-joohoi/internal/domain/port/driven"
)

// ChallengeService orchestrates the DNS-01 authentication flow: resolve or
// register acme-dns credentials for a domain, then publish the challenge
// token.
type ChallengeService struct {
	client        driven.AcmeDNSClient
	store         driven.CredentialStore
	allowFrom     []string
	forceRegister bool
}

// NewChallengeService creates a ChallengeService with all required
// dependencies.
func NewChallengeService(
	client driven.AcmeDNSClient,
	store driven.CredentialStore,
	allowFrom []string,
	forceRegister bool,
) *ChallengeService {
	return &ChallengeService{
		client:        client,
		store:         store,
		allowFrom:     allowFrom,
		forceRegister: forceRegister,
	}
}

// EnsureRecord returns the credential record for domain, registering a new
// acme-dns account when none is stored or re-registration is forced. The
// returned bool reports whether a registration happened. A new record is
// persisted before it is returned; a failed registration is never
// persisted.
func (s *ChallengeService) EnsureRecord(ctx context.Context, domain string) (model.CredentialRecord, bool, error) {
	existing, err := s.store.Fetch(ctx, domain)
	if err != nil {
		return model.CredentialRecord{}, false, err
	}
	if existing != nil && !s.forceRegister {
		slog.Debug("using stored credentials", "domain", existing.Domain, "fulldomain", existing.FullDomain)
		return *existing, false, nil
	}
	if existing != nil {
		slog.Info("re-registering on request", "domain", existing.Domain)
	}

	rec, err := s.client.Register(ctx, s.allowFrom)
	if err != nil {
		return model.CredentialRecord{}, false, err
	}
	rec.Domain = model.NormalizeDomain(domain)

	if err := s.store.Put(ctx, rec); err != nil {
		return model.CredentialRecord{}, false, err
	}
	if err := s.store.Save(ctx); err != nil {
		return model.CredentialRecord{}, false, err
	}

	slog.Info("registered new acme-dns account",
		"domain", rec.Domain,
		"fulldomain", rec.FullDomain,
	)
	return rec, true, nil
}

// SubmitChallenge publishes the validation token as the TXT value of the
// record's acme-dns subdomain.
func (s *ChallengeService) SubmitChallenge(ctx context.Context, rec model.CredentialRecord, token string) error {
	if err := s.client.UpdateTXT(ctx, rec, token); err != nil {
		return err
	}

	slog.Info("challenge token published", "domain", rec.Domain, "subdomain", rec.SubDomain)
	return nil
}

// FirstRunGuidance renders the CNAME instruction shown after a new
// registration. Certbot invokes the hook non-interactively, so this text on
// stdout is the only way the operator learns the delegation they must add.
func FirstRunGuidance(domain string, rec model.CredentialRecord) string {
	return "Please add the following CNAME record to your main DNS zone:\n" +
		rec.CNAME(domain) + "\n" +
		"Once the record has propagated, validation can proceed; check it with -verify.\n"
}
