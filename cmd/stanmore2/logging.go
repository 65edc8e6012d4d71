package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/stanmore2/pkg/config"
)

// flagLogLevel parses the --log-level flag. set is false when the flag was
// not given.
func flagLogLevel(cmd *cobra.Command) (level logrus.Level, set bool, err error) {
	logLevelStr, _ := cmd.Flags().GetString("log-level")
	if logLevelStr == "" {
		return logrus.InfoLevel, false, nil
	}

	switch logLevelStr {
	case "debug":
		return logrus.DebugLevel, true, nil
	case "info":
		return logrus.InfoLevel, true, nil
	case "warn":
		return logrus.WarnLevel, true, nil
	case "error":
		return logrus.ErrorLevel, true, nil
	default:
		return 0, false, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", logLevelStr)
	}
}

// configureLogger creates a logger from the --log-level flag, falling back
// to the given level when the flag is unset. Returns an error if the
// level is invalid.
func configureLogger(cmd *cobra.Command, fallback logrus.Level) (*logrus.Logger, error) {
	level, set, err := flagLogLevel(cmd)
	if err != nil {
		return nil, err
	}
	if !set {
		level = fallback
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger, nil
}

// serveLogger builds the serve logger from the configured log_level, with
// the --log-level flag taking precedence when given.
func serveLogger(cmd *cobra.Command, cfg *config.Config) (*logrus.Logger, error) {
	logger := cfg.NewLogger()

	level, set, err := flagLogLevel(cmd)
	if err != nil {
		return nil, err
	}
	if set {
		logger.SetLevel(level)
	}
	return logger, nil
}
