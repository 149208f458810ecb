package report

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/mcp-tool-shop/code-covered/internal/gaps"
)

// Styles defines the visual theme for terminal report output.
// Lipgloss automatically degrades to no-color when output is not a TTY.
type Styles struct {
	// Header is used for section headers (e.g. "=== path/to/file.py ===").
	Header lipgloss.Style

	// SubHeader is used for secondary information lines.
	SubHeader lipgloss.Style

	// Critical through Low color-code priority tiers.
	Critical lipgloss.Style
	High     lipgloss.Style
	Medium   lipgloss.Style
	Low      lipgloss.Style

	// TableHeader styles the header row of tables.
	TableHeader lipgloss.Style

	// TableCell styles regular table cells.
	TableCell lipgloss.Style

	// SummaryLabel styles summary line labels.
	SummaryLabel lipgloss.Style

	// SummaryValue styles summary line values.
	SummaryValue lipgloss.Style

	// Warning styles warning lines.
	Warning lipgloss.Style

	// Border is used for table borders.
	Border lipgloss.Style

	// Muted is used for de-emphasized text.
	Muted lipgloss.Style
}

// DefaultStyles returns the default color scheme for terminal reports.
func DefaultStyles() Styles {
	return Styles{
		Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		SubHeader: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),

		Critical: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		High:     lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		Medium:   lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		Low:      lipgloss.NewStyle().Foreground(lipgloss.Color("245")),

		TableHeader: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		TableCell:   lipgloss.NewStyle().PaddingRight(1),

		SummaryLabel: lipgloss.NewStyle().Bold(true).Width(20),
		SummaryValue: lipgloss.NewStyle(),

		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("208")),

		Border: lipgloss.NewStyle().Foreground(lipgloss.Color("63")),

		Muted: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// TierStyle returns the appropriate style for a priority tier.
func (s Styles) TierStyle(tier gaps.Tier) lipgloss.Style {
	switch tier {
	case gaps.TierCritical:
		return s.Critical
	case gaps.TierHigh:
		return s.High
	case gaps.TierMedium:
		return s.Medium
	case gaps.TierLow:
		return s.Low
	default:
		return s.Muted
	}
}
