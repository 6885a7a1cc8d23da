// Command formula evaluates spreadsheet formulas from the command line,
// either on their own or against a workbook described in YAML.
package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vogtb/go-formula/packages/formula"
)

var (
	configPath  string
	localeTag   string
	debug       bool
	showMetrics bool
)

var rootCmd = &cobra.Command{
	Use:           "formula",
	Short:         "Evaluate spreadsheet formulas",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "engine configuration file (YAML)")
	rootCmd.PersistentFlags().StringVar(&localeTag, "locale", "", "accept localised function names, e.g. fr or de")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log at debug level")
	rootCmd.PersistentFlags().BoolVar(&showMetrics, "metrics", false, "print engine metrics after the command")
	rootCmd.AddCommand(evalCmd, sheetCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger(level zapcore.Level) (*zap.SugaredLogger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("04:05.000")
	cfg.Level = zap.NewAtomicLevelAt(level)
	log, err := cfg.Build(zap.AddStacktrace(zapcore.FatalLevel))
	if err != nil {
		return nil, err
	}
	return log.Sugar(), nil
}

// session is the engine and its surroundings shared by every command.
type session struct {
	engine   *formula.Engine
	log      *zap.SugaredLogger
	registry *prometheus.Registry
}

func newSession() (*session, error) {
	cfg := formula.Config{}
	if configPath != "" {
		loaded, err := formula.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if localeTag != "" {
		cfg.Locale = localeTag
	}
	level := cfg.Level()
	if debug {
		level = zapcore.DebugLevel
	}
	log, err := newLogger(level)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	registry := prometheus.NewRegistry()
	opts := append(cfg.Options(log), formula.WithMetrics(registry))
	return &session{
		engine:   formula.NewEngine(opts...),
		log:      log,
		registry: registry,
	}, nil
}

// close flushes the logger and prints metrics when asked to.
func (s *session) close(cmd *cobra.Command) error {
	defer s.log.Sync() //nolint:errcheck
	if !showMetrics {
		return nil
	}
	families, err := s.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(cmd.ErrOrStderr(), mf); err != nil {
			return err
		}
	}
	return nil
}
