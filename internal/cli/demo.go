package cli

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/gofib/internal/trace"
	"github.com/me/gofib/pkg/fiber"
)

func newDemoCmd() *cobra.Command {
	var (
		tasks  int
		fanout int
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a fan-out/fan-in job graph through the scheduler",
		Long: `demo submits a batch of parent jobs. Each parent submits its own
sub-batch and waits on it, exercising fiber suspension (or the inline
drain in inline mode) before the parents complete.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}

			st, err := openTrace(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			if st != nil {
				defer st.Close()
			}

			sched, err := fiber.New(cfg, logger)
			if err != nil {
				return err
			}
			defer sched.Close()

			var sum atomic.Int64
			parents := make([]fiber.Job, tasks)
			for i := range parents {
				parents[i] = func(tc *fiber.TaskContext) {
					children := make([]fiber.Job, fanout)
					for j := range children {
						children[j] = func(*fiber.TaskContext) { sum.Add(1) }
					}
					sub, err := tc.Submit(children...)
					if err != nil {
						logger.Error("submit sub-batch", "error", err)
						return
					}
					tc.Wait(sub)
					sum.Add(1)
				}
			}

			start := time.Now()
			ctr, err := sched.SubmitBatch(parents...)
			if err != nil {
				return fmt.Errorf("submit batch: %w", err)
			}
			sched.Wait(ctr)
			elapsed := time.Since(start)

			stats := sched.Stats()
			want := int64(tasks * (fanout + 1))
			fmt.Printf("mode:         %s\n", stats.Mode)
			fmt.Printf("workers:      %d\n", stats.Workers)
			fmt.Printf("jobs:         %d executed (%d expected)\n", stats.JobsExecuted, want)
			fmt.Printf("suspensions:  %d\n", stats.Suspensions)
			fmt.Printf("resumes:      %d\n", stats.Resumes)
			fmt.Printf("elapsed:      %s\n", elapsed.Round(time.Microsecond))
			if got := sum.Load(); got != want {
				return fmt.Errorf("result mismatch: sum = %d, want %d", got, want)
			}

			if st != nil {
				run := &trace.Run{
					Label:       "demo",
					Mode:        stats.Mode,
					Workers:     stats.Workers,
					Batches:     stats.Batches,
					Jobs:        stats.JobsExecuted,
					Suspensions: stats.Suspensions,
					Resumes:     stats.Resumes,
					Duration:    elapsed,
				}
				if err := st.RecordRun(cmd.Context(), run); err != nil {
					return fmt.Errorf("record run: %w", err)
				}
				fmt.Printf("recorded:     %s\n", run.ID)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&tasks, "tasks", 8, "Parent jobs in the outer batch")
	cmd.Flags().IntVar(&fanout, "fanout", 4, "Sub-jobs each parent submits")
	return cmd
}
