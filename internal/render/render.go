// Package render draws workflow progress and command feedback for the
// terminal.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"approval-tracker/backend/internal/workflow"
	"approval-tracker/backend/pkg/models"
)

const (
	colorPrimary   = "#7C3AED"
	colorSuccess   = "#10B981"
	colorInfo      = "#3B82F6"
	colorError     = "#EF4444"
	colorWarning   = "#F59E0B"
	colorGray      = "#6B7280"
	colorLightGray = "#9CA3AF"

	progressBarWidth = 10
)

const (
	SymbolDone    = "✓"
	SymbolCurrent = "⏳"
	SymbolPending = "⚪"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorPrimary))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(colorSuccess))
	currentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorWarning)).Bold(true)
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray))
	auditStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(colorLightGray)).Italic(true)
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorLightGray))

	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorSuccess)).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(colorError)).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(colorInfo))
)

// ViewState carries per-call presentation options.
type ViewState struct {
	// ShowAudit adds the editor and timestamp under each completed step.
	ShowAudit bool
}

// Progress draws the linear step indicator of a resolved workflow instance.
func Progress(p workflow.Progress, vs ViewState) string {
	done := 0
	for _, s := range p.Steps {
		if s.Done {
			done++
		}
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(string(p.Kind)))
	b.WriteString("  ")
	b.WriteString(fmt.Sprintf("[%s %d/%d]", progressBar(done, len(p.Steps), progressBarWidth), done, len(p.Steps)))
	b.WriteString("\n")

	for i, s := range p.Steps {
		b.WriteString(stepLine(i, s))
		b.WriteString("\n")
		if vs.ShowAudit && s.Done && (s.User != "" || s.Timestamp != "") {
			b.WriteString("     ")
			b.WriteString(auditStyle.Render(auditText(s)))
			b.WriteString("\n")
		}
	}

	if p.Complete {
		b.WriteString(successStyle.Render("all steps complete"))
		b.WriteString("\n")
	}
	return b.String()
}

func stepLine(i int, s workflow.StepView) string {
	n := fmt.Sprintf("%2d. ", i+1)
	switch s.Status {
	case workflow.StatusDone:
		return doneStyle.Render(SymbolDone + " " + n + s.Label)
	case workflow.StatusCurrent:
		return currentStyle.Render(SymbolCurrent + " " + n + s.Label)
	default:
		return pendingStyle.Render(SymbolPending + " " + n + s.Label)
	}
}

func auditText(s workflow.StepView) string {
	switch {
	case s.User != "" && s.Timestamp != "":
		return fmt.Sprintf("by %s at %s", s.User, s.Timestamp)
	case s.User != "":
		return "by " + s.User
	default:
		return "at " + s.Timestamp
	}
}

// progressBar creates a text-based progress bar
func progressBar(completed, total, width int) string {
	if total == 0 {
		return strings.Repeat("░", width)
	}

	filledCount := (completed * width) / total
	if filledCount > width {
		filledCount = width
	}
	return strings.Repeat("█", filledCount) + strings.Repeat("░", width-filledCount)
}

// Activities lists activities one per line.
func Activities(activities []models.Activity) string {
	if len(activities) == 0 {
		return Info("no activities")
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-16s %-12s %s", "ID", "AREA", "NAME")))
	b.WriteString("\n")
	for _, a := range activities {
		b.WriteString(fmt.Sprintf("%-16s %-12s %s\n", a.ID, a.Area, a.Name))
	}
	return b.String()
}

// Commissions lists commissions one per line with their state.
func Commissions(commissions []models.Commission) string {
	if len(commissions) == 0 {
		return Info("no commissions")
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-16s %-6s %-10s %-10s %s", "ID", "YEAR", "START", "END", "STATE")))
	b.WriteString("\n")
	for _, c := range commissions {
		b.WriteString(fmt.Sprintf("%-16s %-6d %-10s %-10s %s\n", c.ID, c.Year, c.StartDate, c.EndDate, c.State))
	}
	return b.String()
}

// Success renders a confirmation line.
func Success(msg string) string {
	return successStyle.Render(SymbolDone+" "+msg) + "\n"
}

// Error renders a failure line.
func Error(err error) string {
	return errorStyle.Render("✗ "+err.Error()) + "\n"
}

// Info renders a neutral feedback line.
func Info(msg string) string {
	return infoStyle.Render(msg) + "\n"
}
