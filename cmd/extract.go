package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var extractCmd = &cobra.Command{
	Use:   "extract [file|dir|s3://bucket/key]...",
	Short: "Print the normalized text extracted from documents",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		extractText(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
}

func extractText(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, config := setup()
	out := printer{out: cmd.OutOrStdout()}

	a, err := newApplication(ctx, config, logger, appOptions{})
	if err != nil {
		logger.Fatal("building application", zap.Error(err))
	}

	loader, err := a.loader(ctx, args)
	if err != nil {
		logger.Fatal("preparing sources", zap.Error(err))
	}
	files, err := loader.Load(ctx, args)
	if err != nil {
		logger.Fatal("loading files", zap.Error(err))
	}

	failed := 0
	for _, f := range files {
		res, err := a.engine.Extract(ctx, f, out.progress)
		if err != nil {
			failed++
			out.warning("%s: %v", f.Name, err)
			continue
		}

		_, _ = bold.Fprintf(out.out, "=== %s (%s, %d chars) ===\n", f.Name, res.Method, len([]rune(res.Text)))
		for _, w := range res.Warnings {
			out.warning("%s", w)
		}
		_, _ = fmt.Fprintln(out.out, res.Text)
	}

	if failed > 0 {
		logger.Fatal("some files could not be read", zap.Int("failed", failed), zap.Int("total", len(files)))
	}
}
