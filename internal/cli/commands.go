// Package cli provides the command-line interface for tradepilot.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantcortex/tradepilot/internal/config"
	"github.com/quantcortex/tradepilot/internal/dataflows"
	"github.com/quantcortex/tradepilot/internal/display"
	"github.com/quantcortex/tradepilot/internal/orders"
	"github.com/quantcortex/tradepilot/internal/trading"
	"github.com/quantcortex/tradepilot/internal/utils"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cfg := config.DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "tradepilot",
		Short: "TradePilot - research-and-trading pipeline",
		Long: `TradePilot routes market data and news through configurable vendor
fallback chains, computes quantitative risk measures, and gates every trade
instruction through an order-safety check before it can reach a broker.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("failed to create directories: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(newAnalyzeCmd(cfg))
	return rootCmd
}

func newAnalyzeCmd(cfg *config.Config) *cobra.Command {
	var (
		symbol   string
		dateStr  string
		lookback int
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run one analysis pass for a symbol",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := utils.NewLogger(cfg.LogLevel)

			if err := cfg.Validate(logger); err != nil {
				return fmt.Errorf("configuration: %w", err)
			}

			var err error
			interactive := symbol == ""
			if interactive {
				if symbol, err = PromptForTicker(); err != nil {
					return err
				}
			}

			date := time.Now()
			if dateStr != "" {
				if date, err = time.Parse("2006-01-02", dateStr); err != nil {
					return fmt.Errorf("invalid date format, expected YYYY-MM-DD: %w", err)
				}
			} else if interactive {
				if date, err = PromptForAnalysisDate(); err != nil {
					return err
				}
			}

			opts := []trading.Option{
				trading.WithApprover(SurveyApprover{}),
				trading.WithLookback(lookback),
			}
			if broker, err := orders.NewRESTBroker(cfg); err == nil {
				opts = append(opts, trading.WithBroker(broker))
			} else {
				logger.Warn().Err(err).Msg("broker unavailable, orders will stop at the gate")
			}
			if enricher, err := dataflows.NewLongportClient(cfg); err == nil {
				opts = append(opts, trading.WithInstrumentEnricher(enricher))
			} else {
				logger.Warn().Err(err).Msg("instrument static info unavailable")
			}

			session, err := trading.NewSession(cfg, logger, trading.RuleBasedDecider{}, opts...)
			if err != nil {
				return err
			}

			result, err := session.Run(cmd.Context(), symbol, date)
			if err != nil {
				return err
			}

			fmt.Println(display.RenderResult(result))
			return nil
		},
	}

	cmd.Flags().StringVarP(&symbol, "symbol", "s", "", "ticker symbol to analyze")
	cmd.Flags().StringVarP(&dateStr, "date", "d", "", "analysis date (YYYY-MM-DD), defaults to today")
	cmd.Flags().IntVar(&lookback, "lookback", 365, "calendar days of price history")

	return cmd
}
