package handlers

import (
	"bytes"
	"context"
	"fmt"
	"os"
)

// Resolve handles the resolve command. It prints the certificate followed
// by the key, decoded to PEM unless raw is set.
func Resolve(ctx context.Context, opts Options, raw bool) error {
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

	cert, key := material.Certificate, material.Key
	if !raw {
		cert, key = material.PEM()
	}

	for _, part := range [][]byte{cert, key} {
		if _, err := os.Stdout.Write(withNewline(part)); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func withNewline(b []byte) []byte {
	if len(b) == 0 || bytes.HasSuffix(b, []byte("\n")) {
		return b
	}
	return append(append([]byte(nil), b...), '\n')
}
