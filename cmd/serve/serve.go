// Package serve implements the serve command, which runs the HTTP API and
// the optional run scheduler.
package serve

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonesrussell/docscraper/cmd/common"
	"github.com/jonesrussell/docscraper/internal/api"
	"github.com/jonesrussell/docscraper/internal/logger"
	"github.com/jonesrussell/docscraper/internal/schedule"
)

// Command returns the serve command.
func Command(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and scheduled runs",
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("port") {
				return nil
			}
			if err := viper.BindPFlag("server.port", cmd.Flags().Lookup("port")); err != nil {
				return fmt.Errorf("failed to bind port flag: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, version)
		},
	}
	cmd.Flags().Int("port", 0, "port to listen on")
	return cmd
}

func run(cmd *cobra.Command, version string) error {
	deps, err := common.NewCommandDeps()
	if err != nil {
		return fmt.Errorf("failed to get dependencies: %w", err)
	}
	defer func() { _ = deps.Logger.Sync() }()
	cfg := deps.Config

	pipeline, err := common.NewPipeline(cmd.Context(), deps)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := pipeline.Close(); closeErr != nil {
			deps.Logger.Warn("Failed to close pipeline", logger.Error(closeErr))
		}
	}()

	params := api.HandlerParams{
		Runs:     pipeline.Service,
		Sources:  pipeline.Registry,
		Gatherer: pipeline.Gatherer,
		Version:  version,
	}
	// A nil *history.Store must not become a non-nil interface.
	if pipeline.History != nil {
		params.History = pipeline.History
	}
	handler := api.NewHandler(params)

	if cfg.Schedule.Cron != "" {
		sched, schedErr := schedule.New(cfg.Schedule.Cron, pipeline.Service, deps.Logger)
		if schedErr != nil {
			return schedErr
		}
		sched.Start()
		defer sched.Stop()
	}

	server := api.NewServer(api.Config{
		Port:            cfg.Server.Port,
		Debug:           cfg.App.Debug,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		ServiceName:     cfg.App.Name,
		ServiceVersion:  version,
	}, deps.Logger, handler.Register)

	return server.Run(cmd.Context())
}
