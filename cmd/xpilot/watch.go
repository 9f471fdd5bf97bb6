package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ibeckermayer/xpilot/internal/scheduler"
)

// newWatchCmd runs the session sweep on its schedule until interrupted.
// schedule.session_sweep is a cron expression, a daily "15:04" time or
// "off". SIGHUP reloads the configuration.
func newWatchCmd(c *cli) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Periodically warn about expired or expiring sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := c.app.Config().Schedule
			sched, err := scheduler.New(cfg.Timezone, c.logger)
			if err != nil {
				return err
			}

			sweep := func(ctx context.Context) error {
				return c.app.Sweeper().Sweep(ctx)
			}
			if err := sched.RunNow(scheduler.SweepJobName, sweep); err != nil || once {
				return err
			}
			if err := sched.Schedule(scheduler.SweepJobName, cfg.SessionSweep, sweep); err != nil {
				return err
			}

			sched.Start()
			for _, job := range sched.ListJobs() {
				c.logger.Info("next run", zap.String("job", job.Name), zap.Time("at", job.NextRun))
			}

			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, append([]os.Signal{os.Interrupt, syscall.SIGTERM}, reloadSignals...)...)
			defer signal.Stop(sigs)

			for {
				select {
				case <-cmd.Context().Done():
				case sig := <-sigs:
					if isReload(sig) {
						if err := c.app.ReloadConfig(); err != nil {
							c.logger.Error("reload failed", zap.Error(err))
							continue
						}
						if err := sched.Schedule(scheduler.SweepJobName, c.app.Config().Schedule.SessionSweep, sweep); err != nil {
							c.logger.Error("reschedule failed", zap.Error(err))
						}
						continue
					}
				}
				<-sched.Stop().Done()
				return nil
			}
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "sweep once and exit")

	return cmd
}
