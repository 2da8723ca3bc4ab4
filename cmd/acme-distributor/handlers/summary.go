package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chronicc/acme-distributor/internal/fleet"
)

type hostReport struct {
	Host       string   `json:"host"`
	State      string   `json:"state"`
	Phase      string   `json:"phase,omitempty"`
	Error      string   `json:"error,omitempty"`
	Files      []string `json:"files,omitempty"`
	Bytes      int64    `json:"bytes"`
	DurationMS int64    `json:"duration_ms"`
}

type distributionReport struct {
	Domain     string       `json:"domain"`
	Succeeded  int          `json:"succeeded"`
	Failed     int          `json:"failed"`
	DurationMS int64        `json:"duration_ms"`
	Hosts      []hostReport `json:"hosts"`
}

func newReport(domain string, results []fleet.Result, elapsed time.Duration) *distributionReport {
	report := &distributionReport{
		Domain:     domain,
		DurationMS: elapsed.Milliseconds(),
		Hosts:      make([]hostReport, 0, len(results)),
	}

	for _, r := range results {
		h := hostReport{
			Host:       r.Target.String(),
			State:      string(r.State),
			Files:      r.Files,
			Bytes:      r.Bytes,
			DurationMS: r.Duration.Milliseconds(),
		}
		if r.Succeeded() {
			report.Succeeded++
		} else {
			report.Failed++
			h.Error = r.Reason()
			var hostErr *fleet.HostError
			if errors.As(r.Err, &hostErr) {
				h.Phase = string(hostErr.Phase)
				h.Error = hostErr.Err.Error()
			}
		}
		report.Hosts = append(report.Hosts, h)
	}

	return report
}

func printReport(report *distributionReport, jsonOutput bool) error {
	if jsonOutput {
		b, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		fmt.Println(string(b))
		return nil
	}

	if interactive() {
		fmt.Print(renderReport(report))
		return nil
	}
	fmt.Print(plainReport(report))
	return nil
}

// plainReport is the unstyled summary for pipes and logs, one line per host.
func plainReport(report *distributionReport) string {
	var b strings.Builder
	for _, h := range report.Hosts {
		if h.State == string(fleet.StateSucceeded) {
			fmt.Fprintf(&b, "ok      %s (%d files, %d bytes)\n", h.Host, len(h.Files), h.Bytes)
			continue
		}
		fmt.Fprintf(&b, "failed  %s: %s: %s\n", h.Host, h.Phase, h.Error)
	}
	fmt.Fprintf(&b, "%s: %d succeeded, %d failed\n", report.Domain, report.Succeeded, report.Failed)
	return b.String()
}
