package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/rcliao/nova/internal/model"
)

var (
	novaLabel   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#b48ead"))
	userLabel   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#88c0d0"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))
	statusStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#ebcb8b"))
	essential   = lipgloss.NewStyle().Foreground(lipgloss.Color("#a3be8c")).Render("★")
)

// label returns the display label for a speaker. The label is derived from
// the speaker enum, never from message text.
func label(s model.Speaker) string {
	if s == model.SpeakerAssistant {
		return novaLabel.Render("Nova:")
	}
	return userLabel.Render("You:")
}

func formatMessage(m model.Message, replayed bool) string {
	line := fmt.Sprintf("%s %s", label(m.Speaker), m.Content)
	if replayed {
		return dimStyle.Render(fmt.Sprintf("%s %s", m.CreatedAt.Local().Format("Jan 2 15:04"), line))
	}
	return line
}

func formatFact(i int, f model.Fact) string {
	mark := " "
	if f.Essential {
		mark = essential
	}
	return fmt.Sprintf("%3d %s %s", i+1, mark, f.Text)
}
