package ui

import "github.com/charmbracelet/lipgloss"

// Color Palette
var (
	salmonPink  = lipgloss.Color("#FFB3BA") // accent
	mintGreen   = lipgloss.Color("#A8E6CF") // accept
	mutedGray   = lipgloss.Color("#6B7280") // secondary text
	brightWhite = lipgloss.Color("#F9FAFB") // primary text
)

var (
	// TitleStyle is used for prompt titles
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(salmonPink)

	// SubtitleStyle is used for the line under a title
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(brightWhite)

	// HelpStyle is used for key hints
	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedGray).
			Italic(true)

	// BannerStyle colors the startup banner
	BannerStyle = lipgloss.NewStyle().
			Foreground(salmonPink)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(salmonPink).
			Padding(0, 2)

	buttonStyle = lipgloss.NewStyle().
			Foreground(mutedGray).
			Padding(0, 1)

	acceptSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#1F2937")).
				Background(mintGreen).
				Bold(true).
				Padding(0, 1)

	rejectSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#1F2937")).
				Background(salmonPink).
				Bold(true).
				Padding(0, 1)
)

// Banner renders text in the block font with the banner color.
func Banner(text string) string {
	return BannerStyle.Render(GenerateASCIIArt(text))
}
