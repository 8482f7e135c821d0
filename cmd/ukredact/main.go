// Command ukredact finds and redacts personal data in Ukrainian text.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/straja-ai/ukredact/internal/config"
)

// app carries state shared by the subcommands.
type app struct {
	configPath string
	nerBackend string
	strategy   string
	format     string

	cfg *config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "ukredact",
		Short:         "Detect and redact personal data in Ukrainian text",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "ukredact.yaml", "path to config file")
	root.PersistentFlags().StringVar(&a.nerBackend, "ner", "", "NER backend: onnx, remote or disabled (overrides config)")
	root.PersistentFlags().StringVar(&a.strategy, "strategy", "", "conflict strategy: score or priority (overrides config)")
	root.PersistentFlags().StringVar(&a.format, "replace-format", "", "replacement template, e.g. \"[{entity_type}]\" (overrides config)")

	root.AddCommand(
		newAnalyzeCmd(a),
		newServeCmd(a),
		newEntitiesCmd(a),
		newBenchCmd(a),
	)
	return root
}

// load reads and validates configuration, applies flag overrides and
// installs the default logger.
func (a *app) load(logOut io.Writer) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.nerBackend != "" {
		cfg.NER.Backend = a.nerBackend
	}
	if a.strategy != "" {
		cfg.ConflictStrategy = a.strategy
	}
	if a.format != "" {
		cfg.Anonymization.Format = a.format
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	slog.SetDefault(newLogger(logOut, cfg.Logging))
	a.cfg = cfg
	return nil
}

func newLogger(w io.Writer, lc config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(lc.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
