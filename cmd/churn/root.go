package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/David-Botos/churn-ml/pkg/config"
)

var rootCmd = &cobra.Command{
	Use:   "churn",
	Short: "Telecom customer churn pipeline",
	Long: `churn loads the telecom customer dataset from a CSV file or a Snowflake
table, encodes numeric features, trains a churn classifier and evaluates
it on a held-out test set.

Configuration is read from .env, an optional YAML file (CHURN_CONFIG) and
the environment.`,
	SilenceUsage: true,
}

var rootFlags struct {
	configPath string
	logLevel   string
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootFlags.configPath, "config", "c", "", "YAML configuration file (overrides CHURN_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&rootFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// loadConfig reads the configuration and builds the process logger
func loadConfig() (*config.Config, *zap.Logger, error) {
	if rootFlags.configPath != "" {
		if err := os.Setenv("CHURN_CONFIG", rootFlags.configPath); err != nil {
			return nil, nil, err
		}
	}
	if rootFlags.logLevel != "" {
		if err := os.Setenv("LOG_LEVEL", rootFlags.logLevel); err != nil {
			return nil, nil, err
		}
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	zap.ReplaceGlobals(logger)
	return cfg, logger, nil
}

func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var zc zap.Config
	switch strings.ToLower(format) {
	case "console", "text":
		zc = zap.NewDevelopmentConfig()
	case "json", "":
		zc = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format %q (want json or console)", format)
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zc.Build()
}
