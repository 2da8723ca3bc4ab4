package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chronicc/acme-distributor/internal/store"
)

// List handles the list command.
func List(ctx context.Context, opts Options, jsonOutput bool) error {
	cfg, err := loadBaseConfig(opts)
	if err != nil {
		return err
	}
	if cfg.Store == "" {
		return fmt.Errorf("store is required")
	}

	bundle, err := loadBundle(ctx, cfg)
	if err != nil {
		return err
	}

	entries := bundle.Entries()
	if cfg.Resolver != "" {
		if err := checkResolver(bundle, cfg.Resolver); err != nil {
			return err
		}
		filtered := entries[:0:0]
		for _, e := range entries {
			if e.Resolver == cfg.Resolver {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	if jsonOutput {
		b, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		fmt.Println(string(b))
		return nil
	}

	fmt.Print(renderEntries(entries))
	return nil
}

func renderEntries(entries []store.Entry) string {
	if len(entries) == 0 {
		return "No certificates found.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-14s %-32s %-12s %s\n", "RESOLVER", "DOMAIN", "EXPIRES", "SANS")
	for _, e := range entries {
		resolver := e.Resolver
		if resolver == "" {
			resolver = "-"
		}
		expires := "-"
		if !e.NotAfter.IsZero() {
			expires = e.NotAfter.UTC().Format(time.DateOnly)
		}
		fmt.Fprintf(&b, "%-14s %-32s %-12s %s\n", resolver, e.Domain, expires, strings.Join(e.SANs, ","))
	}
	return b.String()
}
