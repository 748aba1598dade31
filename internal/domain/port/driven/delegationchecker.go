package driven

import "context"

// DelegationChecker defines the driven port for verifying that a domain's
// challenge name is delegated to its acme-dns fulldomain via CNAME.
type DelegationChecker interface {
	// VerifyDelegation returns nil when _acme-challenge.<domain> is a CNAME
	// pointing at target, and a descriptive error otherwise.
	VerifyDelegation(ctx context.Context, domain, target string) error
}
