package handlers

import (
	"context"
	"fmt"

	"github.com/chronicc/acme-distributor/internal/store"
)

// Export handles the export command. It stages the certificate and key of
// the configured domain into the certificate directory.
func Export(ctx context.Context, opts Options) error {
	log, err := setupLogger(opts.LogLevel)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	material, err := resolveMaterial(ctx, cfg, log)
	if err != nil {
		return err
	}

	staged, err := store.Stage(material, cfg.CertDir)
	if err != nil {
		return fmt.Errorf("failed to stage certificate: %w", err)
	}

	fmt.Println(staged.Certificate)
	fmt.Println(staged.Key)
	return nil
}
