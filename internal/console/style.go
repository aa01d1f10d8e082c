package console

import "github.com/charmbracelet/lipgloss"

var (
	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("52")).
			Foreground(lipgloss.Color("252")).
			Bold(true)

	styleInputPrompt = lipgloss.NewStyle().
				Foreground(lipgloss.Color("160"))

	stylePlayerInput = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleNarrative = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	styleEvent = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")).
			Italic(true)

	styleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

// lineKind selects the style of an output line.
type lineKind int

const (
	kindNarrative lineKind = iota
	kindInput
	kindEvent
	kindError
)

func render(text string, kind lineKind) string {
	switch kind {
	case kindInput:
		return stylePlayerInput.Render(text)
	case kindEvent:
		return styleEvent.Render(text)
	case kindError:
		return styleError.Render(text)
	}
	return styleNarrative.Render(text)
}
