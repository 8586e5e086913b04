package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Borislavv/go-estimator/pkg/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup configures the global zerolog logger from cfg and returns a function releasing its output.
// Prod writes JSON, other envs write the human-readable console format; a configured file
// always gets JSON and is rotated by lumberjack.
func Setup(cfg *config.Config) (closeFn func() error, err error) {
	logs := cfg.Estimator.Logs

	level, err := zerolog.ParseLevel(logs.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", logs.Level, err)
	}
	zerolog.SetGlobalLevel(level)

	out, closeFn := writer(cfg)
	log.Logger = zerolog.New(out).With().Timestamp().Logger()

	return closeFn, nil
}

func writer(cfg *config.Config) (io.Writer, func() error) {
	logs := cfg.Estimator.Logs

	if logs.File != "" {
		file := &lumberjack.Logger{
			Filename:   logs.File,
			MaxSize:    logs.MaxSizeMB,
			MaxBackups: logs.MaxBackups,
			MaxAge:     logs.MaxAgeDays,
		}
		return file, file.Close
	}

	nop := func() error { return nil }
	if cfg.IsProd() {
		return os.Stdout, nop
	}
	return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}, nop
}
