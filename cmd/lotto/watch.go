package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/kydenul/lotto"
)

func (a *app) watchCommand() *cobra.Command {
	var (
		schedule string
		runNow   bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Regenerate a portfolio on the draw schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if schedule == "" {
				schedule = a.config.Schedule.Cron
			}
			return a.watch(cmd.Context(), cmd.OutOrStdout(), schedule, runNow)
		},
	}

	cmd.Flags().StringVar(&schedule, "schedule", "", "six-field cron expression (default from config)")
	cmd.Flags().BoolVar(&runNow, "run-now", false, "generate once immediately")
	return cmd
}

// watch runs the scheduled job until ctx is done. Config file changes are
// applied to the generator between runs.
func (a *app) watch(ctx context.Context, out io.Writer, schedule string, runNow bool) error {
	var mu sync.Mutex // 串行化定时任务输出

	job := func() {
		mu.Lock()
		defer mu.Unlock()

		// 数据源可能已被其他进程更新
		a.advisor.Invalidate()
		p, err := a.advisor.Suggest(ctx, lotto.SuggestRequest{})
		if err != nil {
			a.logger.Error("Scheduled generation failed: %v", err)
			return
		}

		fmt.Fprintf(out, "%s  portfolio %s\n", p.CreatedAt.Format("2006-01-02 15:04:05"), p.ID)
		for i, t := range p.Tickets {
			fmt.Fprintf(out, "  %2d  %s\n", i+1, joinNumbers(t))
		}
	}

	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(schedule, job); err != nil {
		return fmt.Errorf("register schedule %q: %w", schedule, err)
	}

	if a.configManager.Viper().ConfigFileUsed() != "" {
		a.configManager.WatchConfig(func(cfg *lotto.Config) {
			if err := a.generator.UpdateConfig(cfg.Generator); err != nil {
				a.logger.Error("Rejected generator config: %v", err)
				return
			}
			a.advisor.Invalidate()
		})
	}

	if runNow {
		job()
	}

	c.Start()
	a.logger.Info("Watching with schedule %q", schedule)

	<-ctx.Done()
	<-c.Stop().Done()
	a.logger.Info("Watch stopped")
	return nil
}
