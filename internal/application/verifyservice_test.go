package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joohoi/acme-dns-certbot-joohoi/internal/application"
)

type verifyCall struct {
	Domain string
	Target string
}

type mockDelegationChecker struct {
	calls []verifyCall
	errs  map[string]error
}

func (m *mockDelegationChecker) VerifyDelegation(_ context.Context, domain, target string) error {
	m.calls = append(m.calls, verifyCall{Domain: domain, Target: target})
	return m.errs[domain]
}

func TestVerifyNamedDomain(t *testing.T) {
	store := newMockStore(storedRecord("example.org"))
	checker := &mockDelegationChecker{}
	svc := application.NewVerifyService(store, checker)

	results, err := svc.Verify(context.Background(), []string{"example.org"})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "example.org", results[0].Domain)
	assert.Equal(t, storedRecord("example.org").FullDomain, results[0].FullDomain)
	assert.NoError(t, results[0].Err)

	require.Len(t, checker.calls, 1)
	assert.Equal(t, verifyCall{Domain: "example.org", Target: storedRecord("example.org").FullDomain}, checker.calls[0])
}

func TestVerifyUnknownDomain(t *testing.T) {
	svc := application.NewVerifyService(newMockStore(), &mockDelegationChecker{})

	results, err := svc.Verify(context.Background(), []string{"missing.example.net"})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.ErrorContains(t, results[0].Err, "no stored credentials")
}

func TestVerifyAllStoredDomains(t *testing.T) {
	store := newMockStore(storedRecord("b.example.org"), storedRecord("a.example.org"))
	checker := &mockDelegationChecker{}
	svc := application.NewVerifyService(store, checker)

	results, err := svc.Verify(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "a.example.org", results[0].Domain, "results are sorted by domain")
	assert.Equal(t, "b.example.org", results[1].Domain)
}

func TestVerifyReportsMismatchPerDomain(t *testing.T) {
	store := newMockStore(storedRecord("good.example.org"), storedRecord("bad.example.org"))
	checker := &mockDelegationChecker{
		errs: map[string]error{"bad.example.org": errors.New("no CNAME found")},
	}
	svc := application.NewVerifyService(store, checker)

	results, err := svc.Verify(context.Background(), nil)
	require.NoError(t, err, "per-domain failures must not abort the run")

	require.Len(t, results, 2)
	assert.ErrorContains(t, results[0].Err, "no CNAME found")
	assert.NoError(t, results[1].Err)
}

func TestVerifyWildcardChecksBaseDomain(t *testing.T) {
	store := newMockStore(storedRecord("example.org"))
	checker := &mockDelegationChecker{}
	svc := application.NewVerifyService(store, checker)

	results, err := svc.Verify(context.Background(), []string{"*.example.org"})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "example.org", results[0].Domain)
	assert.NoError(t, results[0].Err)
}
