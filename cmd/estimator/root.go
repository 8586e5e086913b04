package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/Borislavv/go-estimator/pkg/config"
	"github.com/Borislavv/go-estimator/pkg/logger"
	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"
)

const memLimitRatio = 0.9

// app is the state shared by all subcommands once the root pre-run is done.
type app struct {
	cfgPath  string
	cfg      *config.Config
	closeLog func() error
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "estimator",
		Short:         "Lock-free count-min frequency estimation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.closeLog != nil {
				return a.closeLog()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "",
		"path to a yaml or toml config file (defaults to $"+config.EnvConfigPath+")")

	root.AddCommand(
		newBenchCmd(a),
		newCountCmd(a),
		newRateCmd(a),
	)

	return root
}

// setup loads .env, the config and sets up logging and the runtime limits.
func (a *app) setup() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg

	if a.closeLog, err = logger.Setup(cfg); err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}

	if _, err = maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		log.Debug().Msgf("[runtime] "+format, args...)
	})); err != nil {
		log.Warn().Err(err).Msg("[runtime] failed to set GOMAXPROCS")
	}

	limit, err := memlimit.SetGoMemLimitWithOpts(
		memlimit.WithRatio(memLimitRatio),
		memlimit.WithProvider(memlimit.ApplyFallback(memlimit.FromCgroup, memlimit.FromSystem)),
	)
	if err != nil {
		log.Debug().Err(err).Msg("[runtime] memory limit left untouched")
	} else {
		log.Debug().Int64("limit", limit).Msg("[runtime] memory limit set")
	}

	return nil
}

func (a *app) loadConfig() (*config.Config, error) {
	path := a.cfgPath
	if path == "" {
		path = os.Getenv(config.EnvConfigPath)
	}
	if path != "" {
		return config.LoadConfig(path)
	}

	cfg := config.Default()
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// addSketchFlags registers the flags overriding a sketch config section.
func addSketchFlags(fs *pflag.FlagSet) {
	fs.Int("hashes", 0, "rows of the sketch (overrides config)")
	fs.Int("slots", 0, "counters per row (overrides config)")
	fs.String("hash", "", "digest algorithm: xxh3 or xxh64 (overrides config)")
}

// applySketchFlags copies the explicitly set sketch flags over s.
func applySketchFlags(fs *pflag.FlagSet, s *config.Sketch) (err error) {
	if fs.Changed("hashes") {
		if s.Hashes, err = fs.GetInt("hashes"); err != nil {
			return err
		}
	}
	if fs.Changed("slots") {
		if s.Slots, err = fs.GetInt("slots"); err != nil {
			return err
		}
	}
	if fs.Changed("hash") {
		if s.Hash, err = fs.GetString("hash"); err != nil {
			return err
		}
	}
	return nil
}

// openInput returns the file named by the first argument or stdin when there is none or it is "-".
func openInput(cmd *cobra.Command, args []string) (io.ReadCloser, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}
