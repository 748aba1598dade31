package driven

import (
	"context"

	"github.com/joohoi/acme-dns-certbot-joohoi/internal/domain/model"
)

// AcmeDNSClient defines the driven port for the acme-dns REST API.
type AcmeDNSClient interface {
	// Register creates a new acme-dns account, optionally restricted to the
	// given CIDR allow-list. The returned record has no Domain set; the
	// caller decides which domain it serves. Failures are RegistrationErrors.
	Register(ctx context.Context, allowFrom []string) (model.CredentialRecord, error)

	// UpdateTXT publishes the challenge token as the TXT value of the
	// record's subdomain, authenticated with the record's credentials.
	// Failures, including a malformed token, are UpdateErrors.
	UpdateTXT(ctx context.Context, rec model.CredentialRecord, token string) error

	// Health probes the acme-dns health endpoint.
	Health(ctx context.Context) error
}
