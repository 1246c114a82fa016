package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Shared styles for the TUI and the command line output.

const (
	IconTask   = "📚"
	IconReward = "🎁"
	IconCoin   = "🪙"
	IconDone   = "✅"
	IconWarn   = "⚠️"
	IconError  = "🧨"
	IconScroll = "📜"
	IconChart  = "📈"
	IconTimer  = "⏱"
)

var (
	cPrimary = lipgloss.Color("63")  // blue
	cAccent  = lipgloss.Color("205") // magenta
	cGood    = lipgloss.Color("42")  // green
	cWarn    = lipgloss.Color("214") // orange
	cBad     = lipgloss.Color("196") // red
	cMuted   = lipgloss.Color("244") // gray
	cGold    = lipgloss.Color("220") // gold
)

var (
	Title = lipgloss.NewStyle().Bold(true).Foreground(cAccent)
	H2    = lipgloss.NewStyle().Bold(true).Foreground(cPrimary)
	Muted = lipgloss.NewStyle().Foreground(cMuted)
	Key   = lipgloss.NewStyle().Bold(true).Foreground(cPrimary)
	Good  = lipgloss.NewStyle().Bold(true).Foreground(cGood)
	Warn  = lipgloss.NewStyle().Bold(true).Foreground(cWarn)
	Bad   = lipgloss.NewStyle().Bold(true).Foreground(cBad)
	Gold  = lipgloss.NewStyle().Bold(true).Foreground(cGold)

	Panel       = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(cMuted).Padding(0, 1)
	SelectedRow = lipgloss.NewStyle().Bold(true).Foreground(cGold)
	ActiveTab   = lipgloss.NewStyle().Bold(true).Foreground(cGold).Underline(true)
	Tab         = lipgloss.NewStyle().Foreground(cMuted)
)

func Heading(icon, title string) string {
	icon = strings.TrimSpace(icon)
	if icon != "" {
		icon += " "
	}
	return Title.Render(icon + title)
}

// Balance renders "<points> <currency>" in gold.
func Balance(points int, currency string) string {
	return Gold.Render(fmt.Sprintf("%s %d %s", IconCoin, points, currency))
}

// Signed renders a history delta, green for credits and red for debits.
func Signed(delta int) string {
	if delta < 0 {
		return Bad.Render(fmt.Sprintf("%d", delta))
	}
	return Good.Render(fmt.Sprintf("+%d", delta))
}
