package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hochfrequenz/e2e-self-heal/internal/config"
	"github.com/hochfrequenz/e2e-self-heal/internal/logging"
)

var (
	configPath string
	envFile    string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger

	rootCmd = &cobra.Command{
		Use:   "selfheal",
		Short: "E2E self-heal - CI failure analysis and repair agents",
		Long: `selfheal ingests Playwright and backend logs from failed CI runs,
classifies the failure, and runs the agents that repair startup problems,
brittle selectors and test code. The supervisor turns the agent reports
into a single decision for the pipeline.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// setup loads the dotenv file, the config and the logger for every command
func setup(cmd *cobra.Command, args []string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	var err error
	cfg, err = config.LoadWithLocalFallback(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg.ApplyEnv(os.Getenv)

	logger, err = logging.New(verbose)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}
