package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eringen/rescuepost"
	"github.com/eringen/rescuepost/views"
)

var staticDir string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard, API and publishing scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app := rescuepost.New(cfg, views.Funcs(),
			rescuepost.WithLogger(logger),
			rescuepost.WithStaticDir(staticDir),
		)
		defer app.Close()

		if err := app.Start(ctx); err != nil {
			logger.Error("server stopped", zap.Error(err))
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&staticDir, "static", "public", "directory for static files and uploads")
	rootCmd.AddCommand(serveCmd)
}
