package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/Borislavv/go-estimator/pkg/bench"
	"github.com/Borislavv/go-estimator/pkg/estimator"
	"github.com/Borislavv/go-estimator/pkg/prometheus/metrics"
	"github.com/Borislavv/go-estimator/pkg/prometheus/metrics/server"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newBenchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Drive an estimator with a zipf workload and report throughput",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				ctx    = cmd.Context()
				fs     = cmd.Flags()
				sketch = a.cfg.Estimator.Sketch
				cfg    = a.cfg.Estimator.Bench
			)
			if err := applySketchFlags(fs, &sketch); err != nil {
				return err
			}
			if fs.Changed("workers") {
				cfg.Workers, _ = fs.GetInt("workers")
			}
			if fs.Changed("iterations") {
				cfg.Iterations, _ = fs.GetInt("iterations")
			}

			est, err := estimator.NewFromConfig[uint64](&sketch)
			if err != nil {
				return err
			}

			if m := a.cfg.Estimator.Metrics; m.Enabled {
				srv := server.New(ctx, &m)
				go func() {
					if err := srv.ListenAndServe(); err != nil {
						log.Error().Err(err).Msg("[metrics] server failed")
					}
				}()
			}

			report, err := bench.Run(ctx, est, &cfg, metrics.New())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "run %s\n", report.RunID)
			fmt.Fprintln(w, "phase\tworkers\ttotal\tavg/op\tops/s")
			for _, p := range report.Phases {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
					p.Name, p.Workers, p.Elapsed, p.AvgPerOp(), humanize.Comma(int64(p.OpsPerSecond())))
			}
			return w.Flush()
		},
	}
	cmd.Flags().Int("workers", 0, "goroutines of the parallel phases (overrides config)")
	cmd.Flags().Int("iterations", 0, "operations per worker and phase (overrides config)")
	addSketchFlags(cmd.Flags())

	return cmd
}
