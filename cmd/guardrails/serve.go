package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"openserver-hq/guardrails/pkg/app"
	"openserver-hq/guardrails/pkg/cli"
	"openserver-hq/guardrails/pkg/config"
	"openserver-hq/guardrails/pkg/reload"
	"openserver-hq/guardrails/pkg/server"
)

var serveFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the guardrails HTTP service",
	Long: `Start the guardrails HTTP service with the specified configuration.

Routes:
  POST /v1/moderations           decide allow, warn or block for an input
  POST /v1/classifications       engine votes without a decision
  POST /v1/inference-mitigation  mask PII and soften model output
  GET  /health, /ready, /version, /metrics

The policy (cultural profiles and thresholds) is reloaded from the
configuration file on SIGHUP, and on file change or on a cron schedule
when configured. Engine, translation and server settings need a restart.

Examples:
  # Start with the default config
  guardrails serve

  # Override the listen address
  guardrails serve --listen 0.0.0.0:8080

  # Validate and build everything without listening
  guardrails serve --dry-run`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "build the service without starting it")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = serveFlags.logLevel
	} else if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return configError(err)
	}

	a, err := app.New(cfg, app.Options{ConfigPath: path, LogWriter: cmd.ErrOrStderr()})
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.Logger.Warn("error releasing resources", "error", err)
		}
	}()

	deps := server.Deps{
		Moderator:   a.Orchestrator,
		Health:      a.Health,
		Version:     versionInfo(),
		MetricsPath: cfg.Telemetry.Metrics.Path,
		Tracer:      a.Tracer,
		Logger:      a.Logger,
	}
	if cfg.MetricsEnabled() {
		deps.Metrics = a.Metrics
	}
	srv := server.New(cfg.Server, deps)

	if serveFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid, service assembled")
		return nil
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	reloads, stopReloads := cli.NotifyReload()
	defer stopReloads()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(ctx)
	})
	g.Go(func() error {
		return a.RunReload(ctx)
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-reloads:
				if a.Reloader == nil {
					a.Logger.Warn("SIGHUP ignored, no configuration file to reload")
					continue
				}
				_ = a.Reloader.Reload(ctx, reload.TriggerSignal)
			}
		}
	})

	if err := g.Wait(); err != nil {
		return cli.NewCommandError("serve", err)
	}
	return nil
}
