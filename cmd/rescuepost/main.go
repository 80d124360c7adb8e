// Command rescuepost serves the post scheduling dashboard and runs one-shot
// maintenance commands against its database.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eringen/rescuepost"
	"github.com/eringen/rescuepost/views"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	logger *zap.Logger

	configPath string
	addrFlag   string
	dbFlag     string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "rescuepost",
	Short: "Social post scheduling for animal rescues",
	Long: `rescuepost drafts, schedules and publishes social media posts for
animal rescue organizations.

Run "rescuepost init" to write a starter config, then "rescuepost serve".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the rescuepost version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "rescuepost %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $RESCUEPOST_CONFIG or ./rescuepost.yaml when present)")
	rootCmd.PersistentFlags().StringVar(&addrFlag, "addr", "", "listen address, overrides the config")
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "SQLite database path, overrides the config")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd)
}

// resolveConfigPath picks the config file to load, or "" for none.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if p := rescuepost.EnvOr("RESCUEPOST_CONFIG", ""); p != "" {
		return p
	}
	if _, err := os.Stat("rescuepost.yaml"); err == nil {
		return "rescuepost.yaml"
	}
	return ""
}

func loadConfig() (rescuepost.Config, error) {
	cfg, err := rescuepost.LoadConfig(resolveConfigPath())
	if err != nil {
		return rescuepost.Config{}, err
	}
	if addrFlag != "" {
		cfg.Addr = addrFlag
	}
	if dbFlag != "" {
		cfg.DatabasePath = dbFlag
	}
	return cfg, nil
}

// openApp loads the config and initializes the app without serving.
func openApp(ctx context.Context) (*rescuepost.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	app := rescuepost.New(cfg, views.Funcs(), rescuepost.WithLogger(logger))
	if err := app.Init(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
