package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kydenul/lotto"
)

func (a *app) generateCommand() *cobra.Command {
	var (
		size   int
		mix    float64
		seed   int64
		unique bool
		save   bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a portfolio of tickets from the current history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if unique {
				cfg := a.generator.GetConfig()
				cfg.UniqueTickets = true
				if err := a.generator.UpdateConfig(&cfg); err != nil {
					return err
				}
			}

			req := lotto.SuggestRequest{PortfolioSize: size}
			if cmd.Flags().Changed("mix") {
				req.MixRatio = &mix
			}
			if cmd.Flags().Changed("seed") {
				req.Seed = &seed
			}

			p, err := a.advisor.Suggest(cmd.Context(), req)
			if err != nil {
				return err
			}

			if save {
				store, err := a.portfolioStore()
				if err != nil {
					return err
				}
				if err := store.SavePortfolio(cmd.Context(), p); err != nil {
					return err
				}
			}

			stats := lotto.PortfolioStatistics(p, a.generator.GetConfig().MaxNumber)
			out := struct {
				Portfolio *lotto.Portfolio     `json:"portfolio"`
				Stats     lotto.PortfolioStats `json:"stats"`
				Saved     bool                 `json:"saved"`
			}{p, stats, save}

			return a.render(cmd.OutOrStdout(), out, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "Portfolio %s (mix %.2f)\n", p.ID, p.MixRatio)
				if p.EmptyHistory {
					fmt.Fprintln(tw, "warning: no history, numbers are uniformly random")
				}
				fmt.Fprintln(tw, "#\tNUMBERS")
				for i, t := range p.Tickets {
					fmt.Fprintf(tw, "%d\t%s\n", i+1, joinNumbers(t))
				}
				fmt.Fprintf(tw, "\ncoverage\t%d numbers (%.1f%%)\n", stats.UniqueNumbers, stats.CoveragePct)
				fmt.Fprintf(tw, "overlap\tavg %.2f, min %d, max %d\n", stats.AvgOverlap, stats.MinOverlap, stats.MaxOverlap)
				if p.DuplicatesAccepted > 0 {
					fmt.Fprintf(tw, "duplicates\t%d\n", p.DuplicatesAccepted)
				}
				if save {
					fmt.Fprintf(tw, "saved\t%s\n", p.ID)
				}
			})
		},
	}

	cmd.Flags().IntVarP(&size, "size", "n", 0, "tickets per portfolio (default from config)")
	cmd.Flags().Float64Var(&mix, "mix", lotto.DefaultMixRatio, "fraction of each ticket chosen by weight, in [0, 1]")
	cmd.Flags().Int64Var(&seed, "seed", 0, "seed for a reproducible portfolio")
	cmd.Flags().BoolVar(&unique, "unique", false, "regenerate duplicate tickets")
	cmd.Flags().BoolVar(&save, "save", false, "store the portfolio for a later evaluate --id")
	return cmd
}

func (a *app) weightsCommand() *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "weights",
		Short: "Show the per-number weights of the current history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w, err := a.advisor.Weights(cmd.Context())
			if err != nil {
				return err
			}

			ranked := w.Ranked()
			if top > 0 && top < len(ranked) {
				ranked = ranked[:top]
			}
			out := struct {
				Observations int                  `json:"observations"`
				EmptyHistory bool                 `json:"empty_history"`
				Weights      []lotto.NumberWeight `json:"weights"`
			}{w.Observations(), w.EmptyHistory(), ranked}

			return a.render(cmd.OutOrStdout(), out, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "draws\t%d\n", w.Observations())
				fmt.Fprintln(tw, "RANK\tNUMBER\tWEIGHT\tRATIO")
				uniform := 1 / float64(w.MaxNumber())
				for i, nw := range ranked {
					fmt.Fprintf(tw, "%d\t%d\t%.5f\t%.2f\n", i+1, nw.Number, nw.Weight, nw.Weight/uniform)
				}
			})
		},
	}

	cmd.Flags().IntVar(&top, "top", 0, "show only the top N numbers")
	return cmd
}

type matchOdds struct {
	Matches     int     `json:"matches"`
	Probability float64 `json:"probability"`
	AtLeast     float64 `json:"at_least"`
	Prize       string  `json:"prize"`
}

func (a *app) statsCommand() *cobra.Command {
	var recent int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show number statistics, fairness and match odds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			history, err := a.advisor.History(cmd.Context())
			if err != nil {
				return err
			}

			cfg := a.generator.GetConfig()
			numbers := lotto.NumberStatistics(history, cfg.MaxNumber, cfg.DrawSize, recent)

			var fairness *lotto.FairnessResult
			if len(history) > 0 {
				if fairness, err = lotto.FairnessTest(history, cfg.MaxNumber); err != nil {
					return err
				}
			}

			prizes := lotto.DefaultPrizeTable()
			odds := make([]matchOdds, 0, cfg.DrawSize+1)
			for k := cfg.DrawSize; k >= 0; k-- {
				odds = append(odds, matchOdds{
					Matches:     k,
					Probability: lotto.MatchProbability(k, cfg.MaxNumber, cfg.DrawSize),
					AtLeast:     lotto.MatchProbabilityAtLeast(k, cfg.MaxNumber, cfg.DrawSize),
					Prize:       prizes.PrizeFor(k).String(),
				})
			}

			out := struct {
				Draws        int                   `json:"draws"`
				Combinations float64               `json:"combinations"`
				Numbers      []lotto.NumberStat    `json:"numbers"`
				Fairness     *lotto.FairnessResult `json:"fairness,omitempty"`
				MatchOdds    []matchOdds           `json:"match_odds"`
			}{len(history), lotto.TotalCombinations(cfg.MaxNumber, cfg.DrawSize), numbers, fairness, odds}

			return a.render(cmd.OutOrStdout(), out, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "draws\t%d\n", out.Draws)
				fmt.Fprintf(tw, "combinations\t%.0f\n\n", out.Combinations)

				fmt.Fprintln(tw, "NUMBER\tSEEN\tFREQ\tRECENT\tDEVIATION\tGAP\tSTATUS")
				for _, s := range numbers {
					fmt.Fprintf(tw, "%d\t%d\t%.3f\t%.3f\t%+.3f\t%d\t%s\n",
						s.Number, s.Appearances, s.Frequency, s.RecentFrequency, s.Deviation, s.CurrentGap, s.Status)
				}

				if fairness != nil {
					verdict := "fair"
					if !fairness.Fair {
						verdict = "not uniform"
					}
					fmt.Fprintf(tw, "\nchi-square\t%.2f (df %d, p=%.4f): %s\n",
						fairness.Statistic, fairness.DegreesOfFreedom, fairness.PValue, verdict)
				}

				fmt.Fprintln(tw, "\nMATCHES\tPROBABILITY\tAT LEAST\tPRIZE")
				for _, o := range odds {
					fmt.Fprintf(tw, "%d\t%.8f\t%.8f\t%s\n", o.Matches, o.Probability, o.AtLeast, o.Prize)
				}
				fmt.Fprintf(tw, "\nexpected value\t%s per ticket of %s\n",
					prizes.ExpectedValue(cfg.MaxNumber, cfg.DrawSize), prizes.TicketCost)
			})
		},
	}

	cmd.Flags().IntVar(&recent, "recent", lotto.DefaultRecentWindow, "draws used for hot/cold classification")
	return cmd
}

func (a *app) addDrawCommand() *cobra.Command {
	var (
		round   int
		date    string
		numbers string
	)

	cmd := &cobra.Command{
		Use:   "add-draw",
		Short: "Record a published draw and refresh the weights",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed, err := parseNumbers(numbers)
			if err != nil {
				return err
			}
			if date == "" {
				date = time.Now().Format(time.DateOnly)
			}

			d := lotto.Draw{Round: round, Date: date, Numbers: parsed}
			if err := a.advisor.RecordDraw(cmd.Context(), d); err != nil {
				return err
			}

			return a.render(cmd.OutOrStdout(), d, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "recorded round %d (%s)\t%s\n", d.Round, d.Date, joinNumbers(d.Numbers))
			})
		},
	}

	cmd.Flags().IntVar(&round, "round", 0, "draw round")
	cmd.Flags().StringVar(&date, "date", "", "draw date, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&numbers, "numbers", "", "drawn numbers, e.g. 3,11,19,24,31,40,45")
	_ = cmd.MarkFlagRequired("round")
	_ = cmd.MarkFlagRequired("numbers")
	return cmd
}

func (a *app) evaluateCommand() *cobra.Command {
	var (
		id      string
		tickets string
		actual  string
		round   int
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Compare a saved or given portfolio with a draw",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			var p *lotto.Portfolio
			switch {
			case id != "":
				store, err := a.portfolioStore()
				if err != nil {
					return err
				}
				if p, err = store.LoadPortfolio(ctx, id); err != nil {
					return err
				}
			case tickets != "":
				parsed, err := parseTickets(tickets)
				if err != nil {
					return err
				}
				p = &lotto.Portfolio{Tickets: parsed}
			default:
				return errors.New("one of --id or --tickets is required")
			}

			draw, err := a.actualDraw(cmd, actual, round)
			if err != nil {
				return err
			}

			ev, err := lotto.Evaluate(p, draw, lotto.DefaultPrizeTable())
			if err != nil {
				return err
			}

			return a.render(cmd.OutOrStdout(), ev, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "draw %d\t%s\n", draw.Round, joinNumbers(draw.Numbers))
				fmt.Fprintln(tw, "#\tTICKET\tMATCHED\tPRIZE")
				for i, r := range ev.Results {
					fmt.Fprintf(tw, "%d\t%s\t%v\t%s\n", i+1, joinNumbers(r.Ticket), r.Matched, r.Prize.StringFixed(2))
				}
				fmt.Fprintf(tw, "\n%s\n", ev)
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "saved portfolio id")
	cmd.Flags().StringVar(&tickets, "tickets", "", "tickets separated by ';'")
	cmd.Flags().StringVar(&actual, "actual", "", "drawn numbers (default: latest recorded draw)")
	cmd.Flags().IntVar(&round, "round", 0, "round of the --actual draw")
	cmd.MarkFlagsMutuallyExclusive("id", "tickets")
	return cmd
}

// actualDraw returns the draw given by --actual, or the most recent recorded draw.
func (a *app) actualDraw(cmd *cobra.Command, actual string, round int) (lotto.Draw, error) {
	cfg := a.generator.GetConfig()

	if actual != "" {
		numbers, err := parseNumbers(actual)
		if err != nil {
			return lotto.Draw{}, err
		}
		d := lotto.Draw{Round: round, Numbers: numbers}
		if err := d.Validate(cfg.MaxNumber, cfg.DrawSize); err != nil {
			return lotto.Draw{}, err
		}
		return d, nil
	}

	history, err := a.advisor.History(cmd.Context())
	if err != nil {
		return lotto.Draw{}, err
	}
	latest, ok := history.Latest()
	if !ok {
		return lotto.Draw{}, errors.New("no recorded draw, pass --actual")
	}
	return latest, nil
}
