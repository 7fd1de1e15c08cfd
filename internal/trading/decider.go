package trading

import (
	"context"
	"fmt"
	"strings"
)

// RuleBasedDecider is the offline decision provider: a deterministic
// stand-in for the multi-agent analysis subsystem that reasons only from
// the routed data. It states data unavailability explicitly instead of
// fabricating analysis.
type RuleBasedDecider struct{}

func (RuleBasedDecider) Decide(_ context.Context, input DecisionInput) (string, error) {
	var b strings.Builder

	if !input.Prices.OK() || input.Prices.Empty() {
		fmt.Fprintf(&b, "Price data for %s is unavailable (%s). ",
			input.Symbol, unavailableReason(input.Prices.Meta.Error))
		b.WriteString("Without market data no position can be justified. Recommendation: HOLD and wait.")
		return b.String(), nil
	}

	first := input.Prices.Records[0].Close
	last := input.Prices.Records[len(input.Prices.Records)-1].Close
	change := last.Sub(first)

	fmt.Fprintf(&b, "Over %d sessions %s moved from %s to %s. ",
		input.Prices.Meta.RecordCount, input.Symbol, first.StringFixed(2), last.StringFixed(2))

	if input.RiskReport == nil || input.RiskReport.NoData {
		b.WriteString("Quantitative risk measures are unavailable, so sizing stays conservative. ")
	} else {
		fmt.Fprintf(&b, "Annualized volatility is %.1f%% with a %.0f%% VaR of %.2f%%. ",
			input.RiskReport.AnnualizedVolatility*100,
			input.RiskReport.Confidence*100,
			input.RiskReport.ValueAtRisk*100)
	}

	if input.News.OK() && !input.News.Empty() {
		fmt.Fprintf(&b, "Recent coverage: %q (%s). ",
			input.News.Articles[0].Title, input.News.Articles[0].Source)
	} else {
		b.WriteString("No usable news coverage was found for the period. ")
	}

	switch {
	case change.IsPositive():
		b.WriteString("The trend is positive and upward; the setup favors a buy.")
	case change.IsNegative():
		b.WriteString("The trend is negative and downward; the setup favors a sell.")
	default:
		b.WriteString("The price is flat; hold and maintain the current position.")
	}

	return b.String(), nil
}

func unavailableReason(metaError string) string {
	if metaError == "" {
		return "vendors returned no records for the requested range"
	}
	return metaError
}
