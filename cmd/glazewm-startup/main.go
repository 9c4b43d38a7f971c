package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwsmws22/glazewm-startup/internal/config"
	"github.com/mwsmws22/glazewm-startup/internal/ipc"
	"github.com/mwsmws22/glazewm-startup/internal/launcher"
	"github.com/mwsmws22/glazewm-startup/internal/metrics"
	"github.com/mwsmws22/glazewm-startup/internal/session"
	"github.com/mwsmws22/glazewm-startup/internal/util"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type rootFlags struct {
	configPath string
	logLevel   string
}

func defaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "glazewm-startup", "config.json")
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "glazewm-startup",
		Short:         "Declarative desktop session setup for GlazeWM",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", defaultConfigPath(), "path to the session config (JSON or YAML)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "log level (debug|info|warn|error)")
	root.AddCommand(newRunCmd(flags))
	root.AddCommand(newCaptureCmd(flags))
	return root
}

func newRunCmd(flags *rootFlags) *cobra.Command {
	var (
		phasesFlag   string
		dryRun       bool
		watch        bool
		showMetrics  bool
		openTimeout  time.Duration
		clearTimeout time.Duration
		settle       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the setup phases against the live window manager",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := util.NewLogger(util.ParseLogLevel(flags.logLevel))
			phases, err := session.ParsePhases(phasesFlag)
			if err != nil {
				return err
			}
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client := ipc.NewClient()
			subscribe := func(ctx context.Context, kinds ...string) (<-chan ipc.Event, func(), error) {
				return client.Subscribe(ctx, logger, kinds...)
			}
			launch := launcher.NewExecLauncher(launcher.NewResolver(nil), logger)
			collector := metrics.NewCollector(showMetrics)
			opts := session.Options{
				DryRun:       dryRun,
				OpenTimeout:  openTimeout,
				ClearTimeout: clearTimeout,
				Settle:       settle,
				Metrics:      collector,
			}

			runOnce := func(cfg *config.Config, phases []string) (bool, error) {
				orch := session.New(client, subscribe, launch, *cfg, logger, opts)
				return orch.Run(ctx, phases)
			}

			verified, err := runOnce(cfg, phases)
			if err != nil {
				return err
			}
			reportMetrics(logger, collector)
			if !verified {
				logger.Warnf("session does not match config; see mismatches above")
			}
			if !watch {
				return nil
			}
			return watchAndReapply(ctx, logger, flags.configPath, func(cfg *config.Config) error {
				// On config change only the layout is re-driven; windows
				// already open are kept.
				verified, err := runOnce(cfg, []string{session.PhaseLayout, session.PhaseVerify})
				if err != nil {
					return err
				}
				reportMetrics(logger, collector)
				if !verified {
					logger.Warnf("session does not match config after reload")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&phasesFlag, "phases", "", "comma-separated phases (clear,open,layout,verify,fullscreen); default all")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log commands instead of issuing them")
	cmd.Flags().BoolVar(&watch, "watch", false, "stay running and re-apply layout when the config file changes")
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "report per-workspace command counters after the run")
	cmd.Flags().DurationVar(&openTimeout, "open-timeout", 30*time.Second, "per-window wait for the manager to adopt a launched window")
	cmd.Flags().DurationVar(&clearTimeout, "clear-timeout", 10*time.Second, "per-workspace wait for closed windows to disappear")
	cmd.Flags().DurationVar(&settle, "settle", 150*time.Millisecond, "delay after each command before the next query")
	return cmd
}

func reportMetrics(logger *util.Logger, collector *metrics.Collector) {
	if !collector.Enabled() {
		return
	}
	snap := collector.Snapshot()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		logger.Warnf("encode metrics: %v", err)
		return
	}
	logger.Infof("run metrics:\n%s", data)
}

func newCaptureCmd(flags *rootFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture the live window arrangement as a config document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := util.NewLogger(util.ParseLogLevel(flags.logLevel))
			client := ipc.NewClient()
			snap, err := client.QueryWorkspaces(cmd.Context())
			if err != nil {
				return err
			}
			cfg := config.FromSnapshot(snap)
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			data = append(data, '\n')
			if output == "" {
				_, err = os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			logger.Infof("captured %d workspaces to %s", len(cfg.Workspaces), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the captured config to a file instead of stdout")
	return cmd
}
