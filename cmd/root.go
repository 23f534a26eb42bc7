// Package cmd implements the docscraper command-line interface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdhistory "github.com/jonesrussell/docscraper/cmd/history"
	"github.com/jonesrussell/docscraper/cmd/scrape"
	"github.com/jonesrussell/docscraper/cmd/serve"
	cmdsources "github.com/jonesrussell/docscraper/cmd/sources"
	cmdtables "github.com/jonesrussell/docscraper/cmd/tables"
	"github.com/jonesrussell/docscraper/internal/config"
)

// Version is set at build time with -ldflags "-X github.com/jonesrussell/docscraper/cmd.Version=...".
var Version = "dev"

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// Debug enables debug mode for all commands.
	Debug bool

	rootCmd = &cobra.Command{
		Use:   "docscraper",
		Short: "Keyword-filtered document scraper",
		Long: `docscraper searches configured sites for documents matching a keyword list,
downloads them up to a cap and records what was found.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "docscraper version %s\n", Version)
		},
	})

	rootCmd.AddCommand(scrape.Command())
	rootCmd.AddCommand(cmdsources.Command())
	rootCmd.AddCommand(cmdtables.Command())
	rootCmd.AddCommand(cmdhistory.Command())
	rootCmd.AddCommand(serve.Command(Version))
}

// initConfig reads the config file, .env and environment into the global viper.
// cmd is the command being executed; flags are bound from its root.
func initConfig(cmd *cobra.Command) error {
	// .env is optional; existing environment variables win.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	config.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		if cfgFile != "" {
			return fmt.Errorf("read config file %s: %w", cfgFile, err)
		}
		fmt.Fprintf(os.Stderr, "Warning: config file not found (using defaults and environment variables)\n")
	}

	if err := viper.BindPFlag("app.debug", cmd.Root().PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("failed to bind debug flag: %w", err)
	}
	return bindEnvVars()
}

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string][]string{
	"app.environment":         {"APP_ENV"},
	"app.debug":               {"APP_DEBUG"},
	"logger.level":            {"LOG_LEVEL"},
	"scraper.output_dir":      {"DOCSCRAPER_OUTPUT_DIR"},
	"scraper.max_downloads":   {"DOCSCRAPER_MAX_DOWNLOADS"},
	"scraper.concurrency":     {"DOCSCRAPER_CONCURRENCY"},
	"scraper.search_keywords": {"DOCSCRAPER_SEARCH_KEYWORDS"},
	"fetch.user_agent":        {"DOCSCRAPER_USER_AGENT"},
	"fetch.timeout":           {"DOCSCRAPER_FETCH_TIMEOUT"},
	"history.enabled":         {"DOCSCRAPER_HISTORY_ENABLED"},
	"history.path":            {"DOCSCRAPER_HISTORY_PATH"},
	"server.port":             {"DOCSCRAPER_PORT", "PORT"},
	"schedule.cron":           {"DOCSCRAPER_SCHEDULE"},
}

func bindEnvVars() error {
	for key, envs := range envBindings {
		args := append([]string{key}, envs...)
		if err := viper.BindEnv(args...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", strings.Join(envs, ","), err)
		}
	}
	return nil
}
