// Package main is the entry point for the acme-distributor CLI.
//
// acme-distributor takes certificates that an ACME client (usually Traefik)
// has already issued, extracts the certificate and key for one domain from
// the certificate store and pushes them to a fleet of hosts over SSH/SFTP.
//
// Commands: distribute, resolve, export, list.
//
// For detailed usage information, run:
//
//	acme-distributor --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chronicc/acme-distributor/cmd/acme-distributor/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Root().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
