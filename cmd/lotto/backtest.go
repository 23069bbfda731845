package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kydenul/lotto"
)

func (a *app) backtestCommand() *cobra.Command {
	var (
		draws   int
		tickets int
		seed    int64
		mix     float64
	)

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay past draws and compare weighted tickets with pure random ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			history, err := a.advisor.History(cmd.Context())
			if err != nil {
				return err
			}

			cfg := a.generator.GetConfig()
			if cmd.Flags().Changed("mix") {
				cfg.MixRatio = mix
			}

			report, err := lotto.Backtest(history, &cfg, draws, tickets, seed)
			if err != nil {
				return err
			}

			return a.render(cmd.OutOrStdout(), report, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "draws\t%d (last %d replayed, %d tickets each)\n",
					len(history), report.TestDraws, report.TicketsPerDraw)
				fmt.Fprintln(tw, "\nSTRATEGY\tMIX\tAVG BEST\tMAX BEST\t3+\t4+\tWINNINGS\tCOST\tNET\tROI")
				for _, s := range []lotto.StrategyResult{report.Strategy, report.Baseline} {
					fmt.Fprintf(tw, "%s\t%.2f\t%.3f\t%d\t%.1f%%\t%.1f%%\t%s\t%s\t%s\t%s%%\n",
						s.Name, s.MixRatio, s.AvgBestMatch, s.MaxBestMatch, s.ThreePlusRate*100, s.FourPlusRate*100,
						s.Winnings.StringFixed(2), s.Cost.StringFixed(2), s.Net.StringFixed(2), s.ROIPct.StringFixed(1))
				}

				verdict := "no significant difference"
				if report.Significant {
					verdict = "significant difference"
				}
				fmt.Fprintf(tw, "\nt-statistic\t%.4f (p=%.4f): %s\n", report.TStatistic, report.PValue, verdict)
			})
		},
	}

	cmd.Flags().IntVar(&draws, "draws", lotto.DefaultBacktestDraws, "most recent draws to replay")
	cmd.Flags().IntVarP(&tickets, "tickets", "n", lotto.DefaultBacktestTickets, "tickets per replayed draw")
	cmd.Flags().Int64Var(&seed, "seed", lotto.DefaultBacktestSeed, "seed for both strategies")
	cmd.Flags().Float64Var(&mix, "mix", lotto.DefaultMixRatio, "mix ratio of the weighted strategy (default from config)")
	return cmd
}
