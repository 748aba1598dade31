package driven

import (
	"context"

	"github.com/joohoi/acme-dns-certbot-joohoi/internal/domain/model"
)

// CredentialStore defines the driven port for acme-dns credential
// persistence, keyed by apex domain. Implementations are not safe for
// concurrent process invocations: two renewals racing on one store is an
// accepted, unhandled hazard.
type CredentialStore interface {
	// Fetch returns the record for the given domain, or (nil, nil) when
	// none exists. Wildcard domains resolve to their base domain's record.
	Fetch(ctx context.Context, domain string) (*model.CredentialRecord, error)

	// Put stages a record under its domain, replacing any staged or stored
	// record for that domain. Nothing is persisted until Save.
	Put(ctx context.Context, rec model.CredentialRecord) error

	// Save persists all staged records. Returns a StorageError on failure,
	// leaving previously persisted state intact.
	Save(ctx context.Context) error

	// All returns every record keyed by domain, staged ones included.
	All(ctx context.Context) (map[string]model.CredentialRecord, error)
}
