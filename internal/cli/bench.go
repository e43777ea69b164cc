package cli

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/gofib/internal/trace"
	"github.com/me/gofib/pkg/fiber"
)

func newBenchCmd() *cobra.Command {
	var (
		batches   int
		batchSize int
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure scheduler throughput on trivial jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			if batchSize > cfg.MaxJobs {
				return fmt.Errorf("batch size %d exceeds max_jobs %d", batchSize, cfg.MaxJobs)
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

			var executed atomic.Int64
			jobs := make([]fiber.Job, batchSize)
			for i := range jobs {
				jobs[i] = func(*fiber.TaskContext) { executed.Add(1) }
			}

			start := time.Now()
			for b := 0; b < batches; b++ {
				ctr, err := sched.SubmitBatch(jobs...)
				if err != nil {
					return fmt.Errorf("submit batch %d: %w", b, err)
				}
				sched.Wait(ctr)
			}
			elapsed := time.Since(start)

			total := executed.Load()
			perSec := float64(total) / elapsed.Seconds()
			fmt.Printf("mode:        %s\n", cfg.Mode)
			fmt.Printf("workers:     %d\n", cfg.Workers)
			fmt.Printf("jobs:        %d (%d batches x %d)\n", total, batches, batchSize)
			fmt.Printf("elapsed:     %s\n", elapsed.Round(time.Microsecond))
			fmt.Printf("throughput:  %.0f jobs/s\n", perSec)

			if st != nil {
				run := &trace.Run{
					Label:    "bench",
					Mode:     string(cfg.Mode),
					Workers:  cfg.Workers,
					Batches:  uint64(batches),
					Jobs:     uint64(total),
					Duration: elapsed,
				}
				if err := st.RecordRun(cmd.Context(), run); err != nil {
					return fmt.Errorf("record run: %w", err)
				}
				fmt.Printf("recorded:    %s\n", run.ID)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&batches, "batches", 100, "Batches to submit")
	cmd.Flags().IntVar(&batchSize, "batch-size", 256, "Jobs per batch")
	return cmd
}
