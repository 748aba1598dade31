// Command acme-dns-auth is a Certbot authentication hook that fulfills
// DNS-01 challenges through an acme-dns instance. Certbot passes the domain
// and validation token in CERTBOT_DOMAIN and CERTBOT_VALIDATION; everything
// else comes from ACMEDNSAUTH_* environment variables.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for static binaries

	"github.com/joohoi/acme-dns-certbot-joohoi/internal/adapter/driven/acmedns"
	"github.com/joohoi/acme-dns-certbot-joohoi/internal/adapter/driven/dnscheck"
	"github.com/joohoi/acme-dns-certbot-joohoi/internal/adapter/driven/jsonfile"
	"github.com/joohoi/acme-dns-certbot-joohoi/internal/adapter/driven/sqlite"
	"github.com/joohoi/acme-dns-certbot-joohoi/internal/application"
	"github.com/joohoi/acme-dns-certbot-joohoi/internal/config"
	"github.com/joohoi/acme-dns-certbot-joohoi/internal/domain/model"
	"github.com/joohoi/acme-dns-certbot-joohoi/internal/domain/port/driven"
)

// Exit codes per failure class, so Certbot logs show at a glance which
// stage failed.
const (
	exitOther        = 1
	exitConfig       = 2
	exitStorage      = 3
	exitRegistration = 4
	exitUpdate       = 5
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(exitCode(err))
	}
}

func run() error {
	// 1. Parse flags.
	setupMode := flag.Bool("setup", false, "print a configuration template on stdout and exit")
	versionMode := flag.Bool("version", false, "print the supported environment version range and exit")
	verifyMode := flag.Bool("verify", false, "verify CNAME delegations for the named domains (all stored domains when none are named)")
	envFile := flag.String("env-file", "", "load environment variables from this file before reading configuration")
	flag.Parse()

	// 2. Modes that need no configuration.
	if *setupMode {
		fmt.Print(config.SetupTemplate())
		return nil
	}
	if *versionMode {
		fmt.Printf("environment version %d (supported: %d-%d)\n",
			config.EnvVersion, config.EnvVersionMin, config.EnvVersionMax)
		return nil
	}

	// 3. Load configuration (fail fast on missing required env vars).
	if *envFile != "" {
		if err := config.LoadEnvFile(*envFile); err != nil {
			return err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"url", cfg.BaseURL,
		"storage_path", cfg.StoragePath,
		"storage_engine", cfg.StorageEngine,
		"force_register", cfg.ForceRegister,
	)

	// 4. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Open the credential store.
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeStore(); closeErr != nil {
			slog.Error("error closing store", "error", closeErr)
		}
	}()

	// 6. Dispatch.
	if *verifyMode {
		return runVerify(ctx, cfg, store, flag.Args())
	}
	return runHook(ctx, cfg, store)
}

// runHook performs the authentication flow Certbot invokes this binary for:
// ensure an acme-dns account exists for each domain, then publish the
// validation token.
func runHook(ctx context.Context, cfg *config.Config, store driven.CredentialStore) error {
	req, err := config.LoadRequest()
	if err != nil {
		return err
	}

	client := acmedns.NewClient(cfg.BaseURL, cfg.HTTPTimeout)
	svc := application.NewChallengeService(client, store, cfg.AllowFrom, cfg.ForceRegister)

	for _, domain := range req.Domains {
		rec, registered, err := svc.EnsureRecord(ctx, domain)
		if err != nil {
			return err
		}
		if registered {
			// Stdout reaches the operator through Certbot's output; this is
			// their only prompt to set up the delegation.
			fmt.Print(application.FirstRunGuidance(domain, rec))
		}
		if err := svc.SubmitChallenge(ctx, rec, req.Token); err != nil {
			return err
		}
	}

	slog.Info("authentication hook complete", "domains", len(req.Domains))
	return nil
}

// runVerify checks CNAME delegations and reports one line per domain.
func runVerify(ctx context.Context, cfg *config.Config, store driven.CredentialStore, domains []string) error {
	checker, err := dnscheck.NewChecker(cfg.DNSResolver, cfg.HTTPTimeout)
	if err != nil {
		return err
	}

	results, err := application.NewVerifyService(store, checker).Verify(ctx, domains)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("no stored domains to verify")
		return nil
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Printf("FAIL %s: %v\n", res.Domain, res.Err)
			continue
		}
		fmt.Printf("OK   %s is delegated to %s\n", res.Domain, res.FullDomain)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d delegations failed verification", failed, len(results))
	}
	return nil
}

// openStore opens the configured storage engine. The returned close func
// is a no-op for the file store.
func openStore(cfg *config.Config) (driven.CredentialStore, func() error, error) {
	switch cfg.StorageEngine {
	case config.EngineSQLite:
		db, err := sqlite.OpenDB(cfg.StoragePath)
		if err != nil {
			return nil, nil, &model.StorageError{Path: cfg.StoragePath, Op: "open", Err: err}
		}
		if err := sqlite.RunMigrations(db.Conn); err != nil {
			_ = db.Close()
			return nil, nil, &model.StorageError{Path: cfg.StoragePath, Op: "migrate", Err: err}
		}
		return sqlite.NewRecordRepo(db), db.Close, nil
	default:
		store, err := jsonfile.Open(cfg.StoragePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() error { return nil }, nil
	}
}

// exitCode maps an error to its failure-class exit code.
func exitCode(err error) int {
	var (
		cfgErr   *model.ConfigError
		storeErr *model.StorageError
		regErr   *model.RegistrationError
		updErr   *model.UpdateError
	)
	switch {
	case errors.As(err, &cfgErr):
		return exitConfig
	case errors.As(err, &storeErr):
		return exitStorage
	case errors.As(err, &regErr):
		return exitRegistration
	case errors.As(err, &updErr):
		return exitUpdate
	}
	return exitOther
}
