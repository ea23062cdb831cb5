package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/stride-app/stride/internal/models"
	"github.com/stride-app/stride/internal/reconcile"
	"github.com/stride-app/stride/internal/storage"
	"github.com/stride-app/stride/internal/streak"
)

type Context struct {
	Store  storage.Provider
	Engine *streak.Engine
	Recon  *reconcile.Service
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	valueStyle  = lipgloss.NewStyle().Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	missStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	shieldStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

// FormatDayStatus renders a one-character marker for a day's outcome.
func FormatDayStatus(record models.DailyRecord) string {
	switch {
	case record.GoalMet:
		return okStyle.Render("●")
	case record.ShieldUsed:
		return shieldStyle.Render("◆")
	default:
		return missStyle.Render("○")
	}
}

// FormatStreak renders a streak count with a flame for active streaks.
func FormatStreak(current int) string {
	if current == 0 {
		return missStyle.Render("no active streak")
	}
	return valueStyle.Render(fmt.Sprintf("🔥 %d day streak", current))
}
