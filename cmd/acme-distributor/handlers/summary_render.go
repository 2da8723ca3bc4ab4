package handlers

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/chronicc/acme-distributor/internal/fleet"
)

var (
	colorGreen = lipgloss.Color("#22c55e")
	colorRed   = lipgloss.Color("#ef4444")
	colorBlue  = lipgloss.Color("#3b82f6")
	colorDim   = lipgloss.Color("#6b7280")
	colorWhite = lipgloss.Color("#f9fafb")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	greenStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	redStyle = lipgloss.NewStyle().
			Foreground(colorRed)
)

// renderReport produces a lipgloss-styled distribution summary.
func renderReport(report *distributionReport) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(titleStyle.Render(fmt.Sprintf("  acme-distributor: %s", report.Domain)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  " + strings.Repeat("═", 30)))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render("  Hosts"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  " + strings.Repeat("─", 50)))
	b.WriteString("\n")

	for _, h := range report.Hosts {
		if h.State == string(fleet.StateSucceeded) {
			b.WriteString("  ")
			b.WriteString(greenStyle.Render("✓"))
			fmt.Fprintf(&b, " %-30s %2d files %8s\n", h.Host, len(h.Files), formatBytes(h.Bytes))
			continue
		}
		b.WriteString("  ")
		b.WriteString(redStyle.Render("✗"))
		fmt.Fprintf(&b, " %-30s %s\n", h.Host, redStyle.Render(h.Phase))
		b.WriteString(dimStyle.Render("      " + h.Error))
		b.WriteString("\n")
	}

	b.WriteString(dimStyle.Render("  " + strings.Repeat("─", 50)))
	b.WriteString("\n")

	b.WriteString("  ")
	b.WriteString(greenStyle.Render(fmt.Sprintf("%d succeeded", report.Succeeded)))
	b.WriteString(dimStyle.Render(", "))
	if report.Failed > 0 {
		b.WriteString(redStyle.Render(fmt.Sprintf("%d failed", report.Failed)))
	} else {
		b.WriteString(dimStyle.Render("0 failed"))
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf(" in %.1fs", float64(report.DurationMS)/1000)))
	b.WriteString("\n")

	return b.String()
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
