package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/contato-rede/leads/internal/config"
	"github.com/contato-rede/leads/internal/logging"
	"github.com/contato-rede/leads/internal/model"
	"github.com/contato-rede/leads/internal/tui"
)

var (
	configPath string
	dbFlag     string
	levelFlag  string

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:           "leadtap",
	Short:         "leadtap finds business leads through Google Places and keeps them in a local database.",
	Long:          "Run without a subcommand to open the interactive interface.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if dbFlag != "" {
			cfg.Storage.DBPath = dbFlag
		}
		if levelFlag != "" {
			cfg.Log.Level = levelFlag
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runInteractive(cmd.Context(), nil)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $LEADTAP_CONFIG or ./leadtap.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "database path")
	rootCmd.PersistentFlags().StringVar(&levelFlag, "log-level", "", "debug, info, warn or error")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "leadtap "+version)
	},
}

func execute(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

// openHeadless opens the app with a console logger on stderr.
func openHeadless() (*app, error) {
	return newApp(cfg, logging.New(os.Stderr, cfg.Log.Level))
}

// runInteractive opens the TUI, logging to a session file next to the
// database. A non-nil scan starts immediately.
func runInteractive(ctx context.Context, start *model.SearchRequest) error {
	logger, logFile, err := logging.NewSessionFile(filepath.Dir(cfg.Storage.DBPath), cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logFile.Close()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Info("SESSION_START", "db", cfg.Storage.DBPath, "version", version)
	if err := tui.Run(ctx, a, start); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Log: %s\n", logFile.Name())
	return nil
}
