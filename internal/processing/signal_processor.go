// Package processing turns free-form decision text from the analysis
// pipeline into structured trade proposals.
package processing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantcortex/tradepilot/internal/orders"
)

// SignalProcessor extracts actionable decisions from analysis text.
type SignalProcessor struct {
	buyPatterns  []*regexp.Regexp
	sellPatterns []*regexp.Regexp
	holdPatterns []*regexp.Regexp
}

// TradingSignal is a processed trading signal.
type TradingSignal struct {
	Action       string  `json:"action"` // BUY, SELL, HOLD
	Confidence   float64 `json:"confidence"`
	Reasoning    string  `json:"reasoning"`
	EntryPrice   float64 `json:"entry_price"`
	StopLoss     float64 `json:"stop_loss"`
	TakeProfit   float64 `json:"take_profit"`
	PositionSize float64 `json:"position_size"`
}

// NewSignalProcessor creates a signal processor with predefined patterns.
func NewSignalProcessor() *SignalProcessor {
	return &SignalProcessor{
		buyPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(buy|purchase|long|bullish|positive|upward|invest)\b`),
			regexp.MustCompile(`(?i)\b(strong buy|recommended buy|buy recommendation)\b`),
			regexp.MustCompile(`(?i)\b(undervalued|oversold|growth potential|opportunity)\b`),
		},
		sellPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(sell|short|bearish|negative|downward|divest)\b`),
			regexp.MustCompile(`(?i)\b(strong sell|sell recommendation|avoid)\b`),
			regexp.MustCompile(`(?i)\b(overvalued|overbought|decline)\b`),
		},
		holdPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(hold|maintain|neutral|wait|sideways)\b`),
			regexp.MustCompile(`(?i)\b(no action|stay put|keep position)\b`),
		},
	}
}

// ProcessDecisionText extracts a trading signal from decision text.
func (sp *SignalProcessor) ProcessDecisionText(text string) *TradingSignal {
	action := sp.extractAction(text)
	return &TradingSignal{
		Action:       action,
		Confidence:   sp.calculateConfidence(text, action),
		Reasoning:    sp.extractReasoning(text, action),
		EntryPrice:   sp.extractPrice(text, "entry"),
		StopLoss:     sp.extractPrice(text, "stop"),
		TakeProfit:   sp.extractPrice(text, "target"),
		PositionSize: sp.extractPositionSize(text),
	}
}

// BuildInstruction converts a signal into a proposed trade instruction for
// the given symbol. HOLD signals produce no instruction.
func (sp *SignalProcessor) BuildInstruction(symbol string, signal *TradingSignal) (*orders.TradeInstruction, error) {
	var side orders.Side
	switch signal.Action {
	case "BUY":
		side = orders.Buy
	case "SELL":
		side = orders.Sell
	case "HOLD":
		return nil, nil
	default:
		return nil, fmt.Errorf("unrecognized action %q", signal.Action)
	}

	instr := orders.NewInstruction(symbol, side, newClientOrderID(symbol))

	if signal.PositionSize > 0 {
		qty := decimal.NewFromFloat(signal.PositionSize)
		instr.Qty = &qty
	}
	if signal.EntryPrice > 0 {
		limit := decimal.NewFromFloat(signal.EntryPrice)
		instr.Type = orders.Limit
		instr.LimitPrice = &limit
	}
	if signal.StopLoss > 0 {
		stop := decimal.NewFromFloat(signal.StopLoss)
		instr.StopPrice = &stop
	}

	return instr, nil
}

func newClientOrderID(symbol string) string {
	return fmt.Sprintf("tp-%s-%d", strings.ToLower(symbol), time.Now().UnixNano())
}

// extractAction determines the primary trading action from text.
func (sp *SignalProcessor) extractAction(text string) string {
	text = strings.ToLower(text)

	buyScore := 0
	sellScore := 0
	holdScore := 0

	for _, pattern := range sp.buyPatterns {
		buyScore += len(pattern.FindAllString(text, -1))
	}
	for _, pattern := range sp.sellPatterns {
		sellScore += len(pattern.FindAllString(text, -1))
	}
	for _, pattern := range sp.holdPatterns {
		holdScore += len(pattern.FindAllString(text, -1))
	}

	if buyScore > sellScore && buyScore > holdScore {
		return "BUY"
	} else if sellScore > buyScore && sellScore > holdScore {
		return "SELL"
	}

	return "HOLD"
}

// calculateConfidence scores signal strength from pattern density.
func (sp *SignalProcessor) calculateConfidence(text string, action string) float64 {
	text = strings.ToLower(text)
	totalWords := len(strings.Fields(text))

	if totalWords == 0 {
		return 0.5
	}

	var relevantPatterns []*regexp.Regexp
	switch action {
	case "BUY":
		relevantPatterns = sp.buyPatterns
	case "SELL":
		relevantPatterns = sp.sellPatterns
	case "HOLD":
		relevantPatterns = sp.holdPatterns
	}

	matchCount := 0
	for _, pattern := range relevantPatterns {
		matchCount += len(pattern.FindAllString(text, -1))
	}

	confidence := float64(matchCount) / float64(totalWords) * 10
	if confidence > 1.0 {
		confidence = 1.0
	}
	if confidence < 0.1 {
		confidence = 0.1
	}

	return confidence
}

// extractReasoning pulls the sentences that carried the decision.
func (sp *SignalProcessor) extractReasoning(text string, action string) string {
	sentences := strings.Split(text, ".")
	relevantSentences := []string{}

	actionWords := map[string][]string{
		"BUY":  {"buy", "bullish", "positive", "growth", "opportunity", "undervalued"},
		"SELL": {"sell", "bearish", "negative", "risk", "decline", "overvalued"},
		"HOLD": {"hold", "neutral", "wait", "maintain", "uncertain"},
	}

	words := actionWords[action]
	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if len(sentence) < 10 {
			continue
		}

		for _, word := range words {
			if strings.Contains(strings.ToLower(sentence), word) {
				relevantSentences = append(relevantSentences, sentence)
				break
			}
		}

		if len(relevantSentences) >= 3 {
			break
		}
	}

	if len(relevantSentences) == 0 {
		return "Decision based on comprehensive analysis of market conditions."
	}

	return strings.Join(relevantSentences, ". ")
}

// extractPrice extracts a named price level from text.
func (sp *SignalProcessor) extractPrice(text string, priceType string) float64 {
	patterns := map[string]*regexp.Regexp{
		"entry":  regexp.MustCompile(`(?i)entry[^$]*\$?(\d+\.?\d*)`),
		"stop":   regexp.MustCompile(`(?i)stop[^$]*\$?(\d+\.?\d*)`),
		"target": regexp.MustCompile(`(?i)target[^$]*\$?(\d+\.?\d*)`),
	}

	pattern := patterns[priceType]
	if pattern == nil {
		return 0.0
	}

	matches := pattern.FindStringSubmatch(text)
	if len(matches) > 1 {
		if price, err := strconv.ParseFloat(matches[1], 64); err == nil {
			return price
		}
	}

	return 0.0
}

// extractPositionSize extracts position sizing information.
func (sp *SignalProcessor) extractPositionSize(text string) float64 {
	pattern := regexp.MustCompile(`(?i)position[^0-9]*(\d+\.?\d*)`)
	matches := pattern.FindStringSubmatch(text)

	if len(matches) > 1 {
		if size, err := strconv.ParseFloat(matches[1], 64); err == nil {
			return size
		}
	}

	return 0.0
}
