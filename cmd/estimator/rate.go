package main

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/Borislavv/go-estimator/pkg/prometheus/metrics"
	"github.com/Borislavv/go-estimator/pkg/rate"
	"github.com/spf13/cobra"
)

func newRateCmd(a *app) *cobra.Command {
	var keys []string

	cmd := &cobra.Command{
		Use:   "rate [file]",
		Short: "Replay \"key [events]\" lines through a rate estimator and print the queried keys",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Estimator.Rate
			if err := applySketchFlags(cmd.Flags(), &cfg.Sketch); err != nil {
				return err
			}
			if cmd.Flags().Changed("interval") {
				cfg.Interval, _ = cmd.Flags().GetDuration("interval")
			}

			r, err := rate.New[string](&cfg, metrics.New())
			if err != nil {
				return err
			}

			in, err := openInput(cmd, args)
			if err != nil {
				return err
			}
			defer in.Close()

			sc := bufio.NewScanner(in)
			for line := 1; sc.Scan(); line++ {
				fields := strings.Fields(sc.Text())
				if len(fields) == 0 {
					continue
				}
				events := int64(1)
				if len(fields) > 1 {
					if events, err = strconv.ParseInt(fields[1], 10, 64); err != nil {
						return fmt.Errorf("line %d: bad events count %q: %w", line, fields[1], err)
					}
				}
				r.Observe(fields[0], events)
			}
			if err = sc.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, key := range keys {
				if _, err = fmt.Fprintf(out, "%s\t%d\t%.2f/s\n", key, r.Current(key), r.Rate(key)); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&keys, "key", "k", nil, "key to print the estimate of (repeatable)")
	cmd.Flags().Duration("interval", 0, "rate window (overrides config)")
	addSketchFlags(cmd.Flags())

	return cmd
}
