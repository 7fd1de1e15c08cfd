package cli

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"

	"github.com/quantcortex/tradepilot/internal/orders"
)

// PromptForTicker prompts for a stock ticker symbol.
func PromptForTicker() (string, error) {
	var ticker string
	prompt := &survey.Input{
		Message: "Enter the stock ticker symbol (e.g., AAPL, MSFT, GOOGL):",
		Help:    "Please enter a valid stock ticker symbol for analysis",
	}

	err := survey.AskOne(prompt, &ticker, survey.WithValidator(func(val interface{}) error {
		str := strings.TrimSpace(strings.ToUpper(val.(string)))
		if len(str) == 0 {
			return fmt.Errorf("ticker symbol cannot be empty")
		}
		if len(str) > 10 {
			return fmt.Errorf("ticker symbol too long (max 10 characters)")
		}
		matched, _ := regexp.MatchString(`^[A-Z0-9.-]+$`, str)
		if !matched {
			return fmt.Errorf("invalid ticker format (use letters, numbers, dots, and hyphens only)")
		}
		return nil
	}))
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(strings.ToUpper(ticker)), nil
}

// PromptForAnalysisDate prompts for the analysis date, defaulting to today.
func PromptForAnalysisDate() (time.Time, error) {
	var dateStr string
	prompt := &survey.Input{
		Message: "Enter the analysis date (YYYY-MM-DD) or press Enter for today:",
		Help:    "Format: YYYY-MM-DD (e.g., 2024-01-15). Leave empty for today's date.",
		Default: time.Now().Format("2006-01-02"),
	}

	err := survey.AskOne(prompt, &dateStr, survey.WithValidator(func(val interface{}) error {
		str := strings.TrimSpace(val.(string))
		if str == "" {
			return nil
		}
		if _, err := time.Parse("2006-01-02", str); err != nil {
			return fmt.Errorf("invalid date format, expected YYYY-MM-DD")
		}
		return nil
	}))
	if err != nil {
		return time.Time{}, err
	}

	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return time.Now(), nil
	}
	return time.Parse("2006-01-02", dateStr)
}

// SurveyApprover resolves the trade-approval suspension point through an
// interactive confirm prompt. The default is false: walking away from the
// terminal never places an order.
type SurveyApprover struct{}

// Approve asks the operator to confirm the proposed trade.
func (SurveyApprover) Approve(instr *orders.TradeInstruction, decisionText string) (bool, error) {
	fmt.Println()
	fmt.Println(decisionText)
	fmt.Println()

	qty := "n/a"
	if instr.Qty != nil {
		qty = instr.Qty.String()
	}

	confirmed := false
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("Submit %s %s order for %s (qty %s)?",
			instr.Side, instr.Type, instr.Symbol, qty),
		Default: false,
	}
	if err := survey.AskOne(prompt, &confirmed); err != nil {
		return false, err
	}
	return confirmed, nil
}
