// Command agriroute serves the agricultural tool routing layer.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonwraymond/agriroute/cache"
	"github.com/jonwraymond/agriroute/health"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "agriroute",
		Short:         "Adaptive caching, rate limiting and routing for agronomy tools",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML configuration")

	root.AddCommand(
		newServeCmd(&configPath),
		newClassifyCmd(&configPath),
		newCheckCmd(&configPath),
	)
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API until SIGINT or SIGTERM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig(ctx, *configPath)
			if err != nil {
				return err
			}
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := a.close(context.WithoutCancel(ctx)); cerr != nil {
					a.logger.Warn("shutdown", zap.Error(cerr))
				}
			}()

			a.logger.Info("agriroute starting",
				zap.String("version", version),
				zap.String("store", cfg.Store.Kind),
				zap.Strings("categories", a.manager.Categories()),
				zap.Strings("upstreams", a.registry.Categories()),
			)
			return a.server().ListenAndServe(ctx)
		},
	}
}

func newClassifyCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "classify QUERY...",
		Short: "Print the classification of a query as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.close(context.WithoutCancel(cmd.Context())) }()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(a.classifier.Classify(strings.Join(args, " ")))
		},
	}
}

// checkReport is the output of the check command.
type checkReport struct {
	Status     string                          `json:"status"`
	Categories []string                        `json:"categories"`
	Upstreams  []string                        `json:"upstreams"`
	Checks     map[string]health.CheckResponse `json:"checks"`
}

func newCheckCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and run the health checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.close(context.WithoutCancel(cmd.Context())) }()

			if p, ok := a.durable.(cache.Pinger); ok {
				if err := p.Ping(cmd.Context()); err != nil {
					return fmt.Errorf("durable store %s: %w", a.durable.Name(), err)
				}
			}

			results := a.health.CheckAll(cmd.Context())
			report := checkReport{
				Status:     health.OverallStatus(results).String(),
				Categories: a.manager.Categories(),
				Upstreams:  a.registry.Categories(),
				Checks:     make(map[string]health.CheckResponse, len(results)),
			}
			for name, r := range results {
				report.Checks[name] = health.NewCheckResponse(r)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}
