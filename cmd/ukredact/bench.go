package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/straja-ai/ukredact/internal/pipeline"
)

const benchText = "Іван Петренко, тел. +380 67 123 45 67, email ivan.petrenko@ukr.net, рахунок UA213223130000026007233566001."

func newBenchCmd(a *app) *cobra.Command {
	var (
		n    int
		text string
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure end-to-end analysis latency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			analyzer, closeModel, err := pipeline.Build(a.cfg, nil, nil)
			if err != nil {
				return err
			}
			defer closeModel()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			// Warmup
			for i := 0; i < 5; i++ {
				if _, err := analyzer.Analyze(ctx, text); err != nil {
					return fmt.Errorf("warmup analyze failed: %w", err)
				}
			}

			if n <= 0 {
				n = 1
			}
			durations := make([]time.Duration, 0, n)
			for i := 0; i < n; i++ {
				start := time.Now()
				if _, err := analyzer.Analyze(ctx, text); err != nil {
					return fmt.Errorf("analyze failed: %w", err)
				}
				durations = append(durations, time.Since(start))
			}

			sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

			var total time.Duration
			for _, d := range durations {
				total += d
			}
			avg := float64(total.Microseconds()) / 1000.0 / float64(len(durations))
			p50 := float64(durations[len(durations)/2].Microseconds()) / 1000.0
			p95 := float64(durations[int(float64(len(durations))*0.95)].Microseconds()) / 1000.0

			info := analyzer.Info()
			fmt.Fprintf(cmd.OutOrStdout(), "bench: n=%d avg_ms=%.2f p50_ms=%.2f p95_ms=%.2f chars=%d ner=%s strategy=%s\n",
				len(durations), avg, p50, p95, len([]rune(text)), info.NERBackend, info.Strategy)
			return nil
		},
	}
	cmd.Flags().IntVar(&n, "n", 200, "number of iterations")
	cmd.Flags().StringVar(&text, "text", benchText, "text to analyze")
	return cmd
}
