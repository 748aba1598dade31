// Command healthcheck probes the configured acme-dns instance's health
// endpoint. It exits 0 when the instance is reachable and healthy, 1
// otherwise, so it can back cron alerts or container health checks.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for static binaries

	"github.com/joohoi/acme-dns-certbot-joohoi/internal/adapter/driven/acmedns"
)

func main() {
	os.Exit(check())
}

func check() int {
	url := os.Getenv("ACMEDNSAUTH_URL")
	if url == "" {
		fmt.Fprintln(os.Stderr, "ACMEDNSAUTH_URL is not set")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := acmedns.NewClient(url, 2*time.Second).Health(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	return 0
}
