package handlers

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/chronicc/acme-distributor/internal/fleet"
)

// progressOutput receives the per-host progress lines of interactive runs.
var progressOutput io.Writer = os.Stderr

// progressPrinter returns a state hook that prints a line as each host
// finishes.
func progressPrinter(w io.Writer, total int) func(fleet.Target, fleet.State) {
	var mu sync.Mutex
	done := 0
	return func(target fleet.Target, state fleet.State) {
		var mark string
		switch state {
		case fleet.StateSucceeded:
			mark = greenStyle.Render("✓")
		case fleet.StateFailed:
			mark = redStyle.Render("✗")
		default:
			return
		}

		mu.Lock()
		defer mu.Unlock()
		done++
		_, _ = fmt.Fprintf(w, "  [%d/%d] %s %s\n", done, total, mark, target)
	}
}
