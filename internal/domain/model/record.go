package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// CredentialRecord holds the acme-dns account issued for one apex domain.
// The JSON shape matches both the acme-dns registration response and the
// value format of the on-disk credential store, so existing store files
// load unchanged.
type CredentialRecord struct {
	Domain     string   `json:"-"` // store key; set by the store/registration flow, never serialized
	Username   string   `json:"username"`
	Password   string   `json:"password"`
	FullDomain string   `json:"fulldomain"`
	SubDomain  string   `json:"subdomain"`
	AllowFrom  []string `json:"allowfrom,omitempty"`
}

// Validate reports whether the record could have come from a real acme-dns
// registration response: all fields present and the username a UUID, which is
// how the acme-dns server issues them.
func (r CredentialRecord) Validate() error {
	switch {
	case r.Username == "":
		return errors.New("missing username")
	case r.Password == "":
		return errors.New("missing password")
	case r.FullDomain == "":
		return errors.New("missing fulldomain")
	case r.SubDomain == "":
		return errors.New("missing subdomain")
	}
	if _, err := uuid.Parse(r.Username); err != nil {
		return fmt.Errorf("username %q is not a UUID", r.Username)
	}
	return nil
}

// NormalizeDomain strips a leading wildcard label. A wildcard certificate
// domain uses the same validation record name as its base domain, so both
// share one store entry.
func NormalizeDomain(domain string) string {
	return strings.TrimPrefix(domain, "*.")
}

// ChallengeDomain returns the DNS name Certbot validates for the given
// domain, i.e. where the CNAME toward the record's fulldomain must live.
func ChallengeDomain(domain string) string {
	return "_acme-challenge." + NormalizeDomain(domain)
}

// CNAME returns the zone-file line the user must publish for domain before
// validation can succeed.
func (r CredentialRecord) CNAME(domain string) string {
	return ChallengeDomain(domain) + " CNAME " + r.FullDomain + "."
}
