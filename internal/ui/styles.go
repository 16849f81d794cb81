package ui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors - all colors meet WCAG AA contrast (4.5:1) on dark terminals
	PrimaryColor   = lipgloss.Color("#A78BFA") // Purple (violet-400)
	SuccessColor   = lipgloss.Color("#10B981") // Green
	WarningColor   = lipgloss.Color("#F59E0B") // Amber
	ErrorColor     = lipgloss.Color("#F87171") // Red (red-400)
	InfoColor      = lipgloss.Color("#60A5FA") // Blue
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray
	HighlightColor = lipgloss.Color("#22D3EE") // Cyan, used for banners and prompts
)

// HeaderWidth is the width of banner rules and centered titles.
const HeaderWidth = 60

// Styles holds the lipgloss styles for one output renderer.
type Styles struct {
	Header  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style
	Muted   lipgloss.Style
	Prompt  lipgloss.Style
	Command lipgloss.Style
	Label   lipgloss.Style
}

// NewStyles builds styles bound to r so color output follows the capabilities
// of the writer r was created for.
func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Header:  r.NewStyle().Bold(true).Foreground(HighlightColor),
		Success: r.NewStyle().Foreground(SuccessColor),
		Warning: r.NewStyle().Foreground(WarningColor),
		Error:   r.NewStyle().Foreground(ErrorColor),
		Info:    r.NewStyle().Foreground(InfoColor),
		Muted:   r.NewStyle().Foreground(MutedColor),
		Prompt:  r.NewStyle().Foreground(HighlightColor),
		Command: r.NewStyle().Foreground(PrimaryColor),
		Label:   r.NewStyle().Bold(true).Foreground(WarningColor),
	}
}
