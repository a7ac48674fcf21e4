package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/TechFutureAIFPT/hr-support/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis pipeline over HTTP",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, config := setup()
	logger.Info("starting the hr-support server", zap.String("version", version))

	a, err := newApplication(ctx, config, logger, appOptions{withModel: true, withLock: true})
	if err != nil {
		logger.Fatal("building application", zap.Error(err))
	}
	defer a.Close(context.Background())

	go func() {
		if err := a.coordinator.Watch(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("lock status watch stopped", zap.Error(err))
		}
	}()

	serverCfg := config.Server
	if serverCfg.Language == "" {
		serverCfg.Language = config.Language
	}

	srv := server.New(serverCfg, server.Deps{
		Runner:   a.controller,
		Lock:     a.coordinator,
		Advisor:  a.advisor,
		Scoring:  a.scoring,
		Gatherer: a.registry,
		Logger:   logger,
	})

	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Error("server stopped", zap.Error(err))
	}
}
