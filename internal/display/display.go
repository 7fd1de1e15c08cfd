// Package display renders pipeline results for the terminal.
package display

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/quantcortex/tradepilot/internal/trading"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981")).
		Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)
)

// RenderResult formats one pipeline run for the operator.
func RenderResult(result *trading.Result) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Analysis for %s (%s)",
		result.Symbol, result.Date.Format("2006-01-02"))))
	b.WriteString("\n\n")

	renderData(&b, result)
	renderRisk(&b, result)
	renderDecision(&b, result)
	renderGate(&b, result)
	renderSubmission(&b, result)

	return b.String()
}

func renderData(b *strings.Builder, result *trading.Result) {
	b.WriteString(sectionStyle.Render("Market data"))
	b.WriteString("\n")
	if !result.Prices.OK() {
		b.WriteString(errorStyle.Render("  unavailable: " + result.Prices.Meta.Error))
	} else {
		fmt.Fprintf(b, "  %d bars from %s", result.Prices.Meta.RecordCount, result.Prices.Source)
	}
	b.WriteString("\n")

	if result.News.OK() && !result.News.Empty() {
		fmt.Fprintf(b, "  %d articles from %s\n", result.News.Meta.RecordCount, result.News.Source)
	} else {
		b.WriteString(warnStyle.Render("  no usable news coverage"))
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func renderRisk(b *strings.Builder, result *trading.Result) {
	b.WriteString(sectionStyle.Render("Risk"))
	b.WriteString("\n")
	switch {
	case result.RiskSkipped != "":
		b.WriteString(warnStyle.Render("  skipped: " + result.RiskSkipped))
		b.WriteString("\n")
	case result.RiskReport != nil:
		r := result.RiskReport
		fmt.Fprintf(b, "  annualized volatility  %8.2f%%\n", r.AnnualizedVolatility*100)
		fmt.Fprintf(b, "  VaR (%.0f%%)              %8.2f%%\n", r.Confidence*100, r.ValueAtRisk*100)
		fmt.Fprintf(b, "  expected shortfall     %8.2f%%\n", r.ExpectedShortfall*100)
		fmt.Fprintf(b, "  observations           %8d\n", r.Observations)
	}
	b.WriteString("\n")
}

func renderDecision(b *strings.Builder, result *trading.Result) {
	b.WriteString(sectionStyle.Render("Decision"))
	b.WriteString("\n")
	if result.Signal != nil {
		fmt.Fprintf(b, "  action %s (confidence %.0f%%)\n", result.Signal.Action, result.Signal.Confidence*100)
	}
	if result.DecisionText != "" {
		b.WriteString("  " + result.DecisionText + "\n")
	}
	b.WriteString("\n")
}

func renderGate(b *strings.Builder, result *trading.Result) {
	if result.Instruction == nil {
		return
	}
	b.WriteString(sectionStyle.Render("Order safety gate"))
	b.WriteString("\n")
	if result.GateDecision != nil && result.GateDecision.Approved {
		b.WriteString(okStyle.Render("  approved"))
		b.WriteString("\n")
	} else if result.GateDecision != nil {
		b.WriteString(errorStyle.Render("  rejected"))
		b.WriteString("\n")
		// Reasons are shown verbatim, one per line.
		for _, reason := range result.GateDecision.Reasons {
			b.WriteString("  - " + reason + "\n")
		}
	}
	b.WriteString("\n")
}

func renderSubmission(b *strings.Builder, result *trading.Result) {
	if result.Instruction == nil {
		return
	}
	b.WriteString(sectionStyle.Render("Submission"))
	b.WriteString("\n")
	switch {
	case result.SubmitErr != nil:
		b.WriteString(errorStyle.Render("  " + result.SubmitErr.Error()))
		b.WriteString("\n")
	case result.Confirmation != nil:
		fmt.Fprintf(b, "  order %s %s\n", result.Confirmation.OrderID, result.Confirmation.Status)
	default:
		fmt.Fprintf(b, "  instruction %s (%s), not submitted\n",
			result.Instruction.ClientOrderID, result.Instruction.Status)
	}
}
