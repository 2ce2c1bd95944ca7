package noirgraph

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/soundprediction/noirgraph/pkg/config"
	"github.com/soundprediction/noirgraph/pkg/logger"
)

var (
	cfgFile   string
	envFile   string
	logLevel  string
	logFormat string

	// Set by PersistentPreRunE for every subcommand.
	cfg         *config.Config
	appLogger   *slog.Logger
	closeLogger = func() error { return nil }

	rootCmd = &cobra.Command{
		Use:   "noirgraph",
		Short: "noirgraph: knowledge graphs from detective fiction",
		Long: `noirgraph turns a story into a knowledge graph. It splits the text into
chunks, extracts subject-predicate-object statements, resolves the entities
they mention and stores everything in Neo4j with vector indexes.

Configuration comes from config.yaml, a .env file and environment variables
such as NEO4J_URI, OPENAI_API_KEY and LARGE_MODEL_NAME.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return closeLogger()
		},
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or $HOME/.noirgraph/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "environment file loaded before the config (default .env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (console, text, json)")
}

// initConfig loads the configuration and builds the logger.
func initConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(config.Options{ConfigFile: cfgFile, EnvFile: envFile})
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		loaded.Log.Level = logLevel
	}
	if logFormat != "" {
		loaded.Log.Format = logFormat
	}

	l, closer, err := logger.New(logger.Config{
		Level:         loaded.Log.Level,
		Format:        loaded.Log.Format,
		TelemetryPath: loaded.Telemetry.ParquetPath,
		Output:        cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	slog.SetDefault(l)

	cfg, appLogger, closeLogger = loaded, l, closer
	return nil
}
