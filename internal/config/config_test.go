package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joohoi/acme-dns-certbot-joohoi/internal/config"
	"github.com/joohoi/acme-dns-certbot-joohoi/internal/domain/model"
)

// allConfigKeys lists every environment variable the package reads, so tests
// can start from a clean slate regardless of the invoking shell.
var allConfigKeys = []string{
	"ACMEDNSAUTH_URL",
	"ACMEDNSAUTH_ENV_VERSION",
	"ACMEDNSAUTH_STORAGE_PATH",
	"ACMEDNSAUTH_STORAGE_ENGINE",
	"ACMEDNSAUTH_ALLOW_FROM",
	"ACMEDNSAUTH_FORCE_REGISTER",
	"ACMEDNSAUTH_HTTP_TIMEOUT",
	"ACMEDNSAUTH_DNS_RESOLVER",
	"CERTBOT_DOMAIN",
	"CERTBOT_VALIDATION",
}

// isolateConfigEnv unsets every config variable for the duration of the
// test. t.Setenv registers the restore, os.Unsetenv makes it truly absent.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ACMEDNSAUTH_URL", "https://auth.example.org")
	t.Setenv("ACMEDNSAUTH_ENV_VERSION", "1")
}

func TestLoadDefaults(t *testing.T) {
	isolateConfigEnv(t)
	setRequiredEnv(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "https://auth.example.org", cfg.BaseURL)
	assert.Equal(t, config.DefaultStoragePath, cfg.StoragePath)
	assert.Equal(t, config.EngineJSON, cfg.StorageEngine)
	assert.Empty(t, cfg.AllowFrom)
	assert.False(t, cfg.ForceRegister)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Empty(t, cfg.DNSResolver)
}

func TestLoadAllSet(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("ACMEDNSAUTH_URL", "http://localhost:8011/")
	t.Setenv("ACMEDNSAUTH_ENV_VERSION", "1")
	t.Setenv("ACMEDNSAUTH_STORAGE_PATH", "/var/lib/acmedns/creds.db")
	t.Setenv("ACMEDNSAUTH_STORAGE_ENGINE", "sqlite")
	t.Setenv("ACMEDNSAUTH_ALLOW_FROM", `["192.168.10.0/24", "::1/128"]`)
	t.Setenv("ACMEDNSAUTH_FORCE_REGISTER", "true")
	t.Setenv("ACMEDNSAUTH_HTTP_TIMEOUT", "5s")
	t.Setenv("ACMEDNSAUTH_DNS_RESOLVER", "127.0.0.1:5353")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8011", cfg.BaseURL, "trailing slash is trimmed")
	assert.Equal(t, "/var/lib/acmedns/creds.db", cfg.StoragePath)
	assert.Equal(t, config.EngineSQLite, cfg.StorageEngine)
	assert.Equal(t, []string{"192.168.10.0/24", "::1/128"}, cfg.AllowFrom)
	assert.True(t, cfg.ForceRegister)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "127.0.0.1:5353", cfg.DNSResolver)
}

func TestLoadMissingURL(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("ACMEDNSAUTH_ENV_VERSION", "1")

	_, err := config.Load()
	var cfgErr *model.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "ACMEDNSAUTH_URL", cfgErr.Var)
}

func TestLoadRejectsRelativeURL(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("ACMEDNSAUTH_ENV_VERSION", "1")

	for _, raw := range []string{"auth.example.org", "ftp://auth.example.org", "https://"} {
		t.Setenv("ACMEDNSAUTH_URL", raw)
		_, err := config.Load()
		var cfgErr *model.ConfigError
		require.ErrorAs(t, err, &cfgErr, "URL %q should be rejected", raw)
		assert.Equal(t, "ACMEDNSAUTH_URL", cfgErr.Var)
	}
}

func TestLoadEnvVersionGate(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("ACMEDNSAUTH_URL", "https://auth.example.org")

	_, err := config.Load()
	var cfgErr *model.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "ACMEDNSAUTH_ENV_VERSION", cfgErr.Var)
	assert.Contains(t, cfgErr.Reason, "must be set")

	t.Setenv("ACMEDNSAUTH_ENV_VERSION", "one")
	_, err = config.Load()
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "not an integer")

	t.Setenv("ACMEDNSAUTH_ENV_VERSION", "2")
	_, err = config.Load()
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "outside the supported range")
}

func TestLoadRejectsUnknownEngine(t *testing.T) {
	isolateConfigEnv(t)
	setRequiredEnv(t)
	t.Setenv("ACMEDNSAUTH_STORAGE_ENGINE", "postgres")

	_, err := config.Load()
	var cfgErr *model.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "ACMEDNSAUTH_STORAGE_ENGINE", cfgErr.Var)
}

func TestLoadRejectsMalformedAllowFrom(t *testing.T) {
	isolateConfigEnv(t)
	setRequiredEnv(t)

	t.Setenv("ACMEDNSAUTH_ALLOW_FROM", "192.168.10.0/24")
	_, err := config.Load()
	var cfgErr *model.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "ACMEDNSAUTH_ALLOW_FROM", cfgErr.Var)
	assert.Contains(t, cfgErr.Reason, "not a JSON list")

	t.Setenv("ACMEDNSAUTH_ALLOW_FROM", `["192.168.10.1"]`)
	_, err = config.Load()
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "not a CIDR range")
}

func TestLoadForceRegisterSpellings(t *testing.T) {
	isolateConfigEnv(t)
	setRequiredEnv(t)

	for raw, want := range map[string]bool{"true": true, "TRUE": true, "1": true, "false": false, "0": false, "yes": false} {
		t.Setenv("ACMEDNSAUTH_FORCE_REGISTER", raw)
		cfg, err := config.Load()
		require.NoError(t, err)
		assert.Equal(t, want, cfg.ForceRegister, "value %q", raw)
	}
}

func TestLoadRejectsBadTimeout(t *testing.T) {
	isolateConfigEnv(t)
	setRequiredEnv(t)

	for _, raw := range []string{"30", "fast", "-5s", "0s"} {
		t.Setenv("ACMEDNSAUTH_HTTP_TIMEOUT", raw)
		_, err := config.Load()
		var cfgErr *model.ConfigError
		require.ErrorAs(t, err, &cfgErr, "timeout %q should be rejected", raw)
		assert.Equal(t, "ACMEDNSAUTH_HTTP_TIMEOUT", cfgErr.Var)
	}
}

func TestLoadRequestSingleDomain(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("CERTBOT_DOMAIN", "example.org")
	t.Setenv("CERTBOT_VALIDATION", "token-value")

	req, err := config.LoadRequest()
	require.NoError(t, err)
	assert.Equal(t, []string{"example.org"}, req.Domains)
	assert.Equal(t, "token-value", req.Token)
}

func TestLoadRequestSplitsDomainList(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("CERTBOT_VALIDATION", "token-value")

	cases := map[string][]string{
		"a.example.org b.example.org":   {"a.example.org", "b.example.org"},
		"a.example.org,b.example.org":   {"a.example.org", "b.example.org"},
		"a.example.org, b.example.org":  {"a.example.org", "b.example.org"},
		"*.example.org":                 {"*.example.org"},
		" a.example.org  b.example.org": {"a.example.org", "b.example.org"},
	}
	for raw, want := range cases {
		t.Setenv("CERTBOT_DOMAIN", raw)
		req, err := config.LoadRequest()
		require.NoError(t, err, "domain list %q", raw)
		assert.Equal(t, want, req.Domains, "domain list %q", raw)
	}
}

func TestLoadRequestMissingInputs(t *testing.T) {
	isolateConfigEnv(t)

	_, err := config.LoadRequest()
	var cfgErr *model.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "CERTBOT_DOMAIN", cfgErr.Var)

	t.Setenv("CERTBOT_DOMAIN", "example.org")
	_, err = config.LoadRequest()
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "CERTBOT_VALIDATION", cfgErr.Var)
}

func TestLoadEnvFile(t *testing.T) {
	isolateConfigEnv(t)

	path := filepath.Join(t.TempDir(), "acmedns.env")
	content := "export ACMEDNSAUTH_URL=\"https://auth.example.org\"\nexport ACMEDNSAUTH_ENV_VERSION=\"1\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	require.NoError(t, config.LoadEnvFile(path))

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "https://auth.example.org", cfg.BaseURL)
}

func TestLoadEnvFileDoesNotOverrideEnvironment(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("ACMEDNSAUTH_URL", "https://from-env.example.org")

	path := filepath.Join(t.TempDir(), "acmedns.env")
	content := "ACMEDNSAUTH_URL=https://from-file.example.org\nACMEDNSAUTH_ENV_VERSION=1\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	require.NoError(t, config.LoadEnvFile(path))
	assert.Equal(t, "https://from-env.example.org", os.Getenv("ACMEDNSAUTH_URL"))
}

func TestLoadEnvFileMissing(t *testing.T) {
	isolateConfigEnv(t)

	err := config.LoadEnvFile(filepath.Join(t.TempDir(), "absent.env"))
	var cfgErr *model.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

// The emitted template must itself be a loadable, valid configuration.
func TestSetupTemplateRoundTrip(t *testing.T) {
	isolateConfigEnv(t)

	path := filepath.Join(t.TempDir(), "acmedns.env")
	require.NoError(t, os.WriteFile(path, []byte(config.SetupTemplate()), 0o600))

	require.NoError(t, config.LoadEnvFile(path))

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "https://acme-dns.example.com", cfg.BaseURL)
	assert.Equal(t, config.DefaultStoragePath, cfg.StoragePath)
	assert.Equal(t, config.EngineJSON, cfg.StorageEngine)
}
