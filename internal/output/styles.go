package output

import "github.com/charmbracelet/lipgloss"

// Palette uses one lime accent on grays.
const (
	ColorLime     = "154"
	ColorLimeDim  = "106"
	ColorWhite    = "255"
	ColorGray     = "245"
	ColorDarkGray = "238"
	ColorRed      = "196"
	ColorYellow   = "220"
)

// Styles holds the text styles used for CLI output.
type Styles struct {
	Header  lipgloss.Style
	Title   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Label   lipgloss.Style
	Dim     lipgloss.Style
	Accent  lipgloss.Style
}

// DefaultStyles returns the colored styles for terminals.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorLime)),
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorWhite)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Accent:  lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLimeDim)),
	}
}

// NoColorStyles returns unstyled components for pipes and NO_COLOR.
func NoColorStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Header:  plain,
		Title:   plain,
		Success: plain,
		Warning: plain,
		Error:   plain,
		Label:   plain,
		Dim:     plain,
		Accent:  plain,
	}
}
