package main

import (
	"bufio"
	"fmt"

	"github.com/Borislavv/go-estimator/pkg/estimator"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newCountCmd(a *app) *cobra.Command {
	var keys []string

	cmd := &cobra.Command{
		Use:   "count [file]",
		Short: "Count whitespace-separated words and print the estimates of the given keys",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sketch := a.cfg.Estimator.Sketch
			if err := applySketchFlags(cmd.Flags(), &sketch); err != nil {
				return err
			}

			est, err := estimator.NewFromConfig[string](&sketch)
			if err != nil {
				return err
			}

			in, err := openInput(cmd, args)
			if err != nil {
				return err
			}
			defer in.Close()

			var words int64
			sc := bufio.NewScanner(in)
			sc.Split(bufio.ScanWords)
			for sc.Scan() {
				est.Incr(sc.Text(), 1)
				words++
			}
			if err = sc.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			log.Info().Msgf("[count] counted %s words in a %dx%d sketch (%s)",
				humanize.Comma(words), est.Hashes(), est.Slots(), humanize.IBytes(uint64(est.Memory())))

			out := cmd.OutOrStdout()
			for _, key := range keys {
				if _, err = fmt.Fprintf(out, "%s\t%d\n", key, est.Get(key)); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&keys, "key", "k", nil, "key to print the estimate of (repeatable)")
	addSketchFlags(cmd.Flags())

	return cmd
}
