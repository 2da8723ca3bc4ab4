package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/chronicc/acme-distributor/internal/fleet"
)

// maxListedTargets caps the hosts shown in the confirmation prompt.
const maxListedTargets = 10

func confirmPrompt(ctx context.Context, domain, remoteDir string, targets []fleet.Target) (bool, error) {
	var confirmed bool

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Distribute %s to %d hosts?", domain, len(targets))).
				Description(describeTargets(remoteDir, targets)).
				Affirmative("Distribute").
				Negative("Cancel").
				Value(&confirmed),
		),
	)

	if err := form.RunWithContext(ctx); err != nil {
		return false, err
	}
	return confirmed, nil
}

func describeTargets(remoteDir string, targets []fleet.Target) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Files are written to %s on:\n", remoteDir)
	for i, t := range targets {
		if i == maxListedTargets {
			fmt.Fprintf(&b, "  ... and %d more", len(targets)-maxListedTargets)
			break
		}
		fmt.Fprintf(&b, "  %s\n", t)
	}
	return strings.TrimRight(b.String(), "\n")
}
