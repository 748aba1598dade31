// Package config loads hook configuration from environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/joohoi/acme-dns-certbot-joohoi/internal/domain/model"
)

// EnvVersion is the configuration layout version this build expects.
// EnvVersionMin/Max bound the versions it accepts, so an old env file is
// rejected instead of silently misread.
const (
	EnvVersion    = 1
	EnvVersionMin = 1
	EnvVersionMax = 1
)

// DefaultStoragePath is where credentials live when ACMEDNSAUTH_STORAGE_PATH
// is unset, next to Certbot's own state.
const DefaultStoragePath = "/etc/letsencrypt/acmedns.json"

// Storage engine names accepted by ACMEDNSAUTH_STORAGE_ENGINE.
const (
	EngineJSON   = "json"
	EngineSQLite = "sqlite"
)

// Config holds the hook configuration loaded from environment variables.
type Config struct {
	BaseURL       string
	StoragePath   string
	StorageEngine string
	AllowFrom     []string
	ForceRegister bool
	HTTPTimeout   time.Duration
	DNSResolver   string
}

// Load reads configuration from ACMEDNSAUTH_* environment variables and
// returns a validated Config. ACMEDNSAUTH_URL and ACMEDNSAUTH_ENV_VERSION
// are required; everything else has a default. Any malformed variable
// yields a ConfigError naming it.
func Load() (*Config, error) {
	rawURL := os.Getenv("ACMEDNSAUTH_URL")
	if rawURL == "" {
		return nil, &model.ConfigError{Var: "ACMEDNSAUTH_URL", Reason: "must be set to the acme-dns instance URL"}
	}
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, &model.ConfigError{Var: "ACMEDNSAUTH_URL", Reason: fmt.Sprintf("%q is not an absolute http(s) URL", rawURL)}
	}

	if err := checkEnvVersion(); err != nil {
		return nil, err
	}

	storagePath := DefaultStoragePath
	if v, ok := os.LookupEnv("ACMEDNSAUTH_STORAGE_PATH"); ok {
		storagePath = v
	}

	engine := EngineJSON
	if v, ok := os.LookupEnv("ACMEDNSAUTH_STORAGE_ENGINE"); ok {
		switch v {
		case EngineJSON, EngineSQLite:
			engine = v
		default:
			return nil, &model.ConfigError{Var: "ACMEDNSAUTH_STORAGE_ENGINE", Reason: fmt.Sprintf("unknown engine %q, want %q or %q", v, EngineJSON, EngineSQLite)}
		}
	}

	allowFrom := []string{}
	if v, ok := os.LookupEnv("ACMEDNSAUTH_ALLOW_FROM"); ok && v != "" {
		if err := json.Unmarshal([]byte(v), &allowFrom); err != nil {
			return nil, &model.ConfigError{Var: "ACMEDNSAUTH_ALLOW_FROM", Reason: fmt.Sprintf("%q is not a JSON list of strings", v)}
		}
		for _, cidr := range allowFrom {
			if _, _, err := net.ParseCIDR(cidr); err != nil {
				return nil, &model.ConfigError{Var: "ACMEDNSAUTH_ALLOW_FROM", Reason: fmt.Sprintf("%q is not a CIDR range", cidr)}
			}
		}
	}

	force := false
	if v, ok := os.LookupEnv("ACMEDNSAUTH_FORCE_REGISTER"); ok {
		switch strings.ToLower(v) {
		case "true", "1":
			force = true
		}
	}

	httpTimeout := 30 * time.Second
	if v, ok := os.LookupEnv("ACMEDNSAUTH_HTTP_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed <= 0 {
			return nil, &model.ConfigError{Var: "ACMEDNSAUTH_HTTP_TIMEOUT", Reason: fmt.Sprintf("%q is not a positive duration", v)}
		}
		httpTimeout = parsed
	}

	return &Config{
		BaseURL:       strings.TrimRight(rawURL, "/"),
		StoragePath:   storagePath,
		StorageEngine: engine,
		AllowFrom:     allowFrom,
		ForceRegister: force,
		HTTPTimeout:   httpTimeout,
		DNSResolver:   os.Getenv("ACMEDNSAUTH_DNS_RESOLVER"),
	}, nil
}

// checkEnvVersion enforces the ACMEDNSAUTH_ENV_VERSION compatibility gate.
func checkEnvVersion() error {
	raw := os.Getenv("ACMEDNSAUTH_ENV_VERSION")
	if raw == "" {
		return &model.ConfigError{
			Var:    "ACMEDNSAUTH_ENV_VERSION",
			Reason: fmt.Sprintf("must be set; the current version is %d", EnvVersion),
		}
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return &model.ConfigError{Var: "ACMEDNSAUTH_ENV_VERSION", Reason: fmt.Sprintf("%q is not an integer", raw)}
	}
	if v < EnvVersionMin || v > EnvVersionMax {
		return &model.ConfigError{
			Var:    "ACMEDNSAUTH_ENV_VERSION",
			Reason: fmt.Sprintf("version %d is outside the supported range %d-%d", v, EnvVersionMin, EnvVersionMax),
		}
	}
	return nil
}

// Request holds the per-invocation inputs Certbot passes through the
// environment. Domains keeps any wildcard prefix; normalization happens at
// the store boundary.
type Request struct {
	Domains []string
	Token   string
}

// LoadRequest reads CERTBOT_DOMAIN and CERTBOT_VALIDATION. CERTBOT_DOMAIN
// may list several domains, space- or comma-delimited.
func LoadRequest() (*Request, error) {
	rawDomains := os.Getenv("CERTBOT_DOMAIN")
	domains := strings.FieldsFunc(rawDomains, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t'
	})
	if len(domains) == 0 {
		return nil, &model.ConfigError{Var: "CERTBOT_DOMAIN", Reason: "must name the domain being validated"}
	}

	token := os.Getenv("CERTBOT_VALIDATION")
	if token == "" {
		return nil, &model.ConfigError{Var: "CERTBOT_VALIDATION", Reason: "must carry the challenge token"}
	}

	return &Request{Domains: domains, Token: token}, nil
}

// LoadEnvFile loads an env file (the format SetupTemplate emits, "export"
// prefixes included) into the process environment. Variables already set in
// the environment win over the file.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return &model.ConfigError{Var: "-env-file", Reason: fmt.Sprintf("loading %s: %v", path, err)}
	}
	return nil
}

// SetupTemplate returns an env file skeleton for a new installation,
// suitable for -env-file or for sourcing from a shell.
func SetupTemplate() string {
	return fmt.Sprintf(`# ---------- CUSTOMIZE THE BELOW ----------

# required settings
#
# URL to acme-dns instance
export ACMEDNSAUTH_URL="https://acme-dns.example.com"
# used to maintain compatibility across future versions
export ACMEDNSAUTH_ENV_VERSION="%d"

# optional settings
#
# Path for acme-dns credential storage
export ACMEDNSAUTH_STORAGE_PATH="%s"
# Credential storage engine: %q (a user-editable file) or %q
export ACMEDNSAUTH_STORAGE_ENGINE="%s"
# Whitelist for address ranges to allow the updates from,
# as a JSON list of CIDR ranges
# Example: export ACMEDNSAUTH_ALLOW_FROM='["192.168.10.0/24", "::1/128"]'
export ACMEDNSAUTH_ALLOW_FROM='[]'
# Force re-registration. Overwrites the already existing acme-dns accounts.
export ACMEDNSAUTH_FORCE_REGISTER="false"
# Timeout for acme-dns API calls, as a Go duration
export ACMEDNSAUTH_HTTP_TIMEOUT="30s"
# Resolver (host:port) used by -verify; empty means the system resolver
export ACMEDNSAUTH_DNS_RESOLVER=""

# ----------                     ----------
`, EnvVersion, DefaultStoragePath, EngineJSON, EngineSQLite, EngineJSON)
}
