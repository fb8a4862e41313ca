package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/rvexel/feedcycler/api/schemas"
	"github.com/rvexel/feedcycler/internal/browser"
	"github.com/rvexel/feedcycler/internal/config"
	"github.com/rvexel/feedcycler/internal/dom"
	"github.com/rvexel/feedcycler/internal/engine"
	"github.com/rvexel/feedcycler/internal/observability"
	"github.com/rvexel/feedcycler/internal/schedule"
	"github.com/rvexel/feedcycler/internal/telemetry"
)

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [url]",
		Short: "Opens the target page and drives the react-and-advance cycle until interrupted",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags so command-line values override the config file and
			// environment with the right precedence.
			if err := viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			if err := viper.BindPFlag("engine.start_url", cmd.Flags().Lookup("url")); err != nil {
				return err
			}
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			cfg, err := configForRun(args)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info("Starting cycle run",
				zap.String("url", cfg.Engine.StartURL),
				zap.Bool("headless", cfg.Browser.Headless),
				zap.Int("react_retry_limit", cfg.Engine.ReactRetry.Limit),
				zap.Int("advance_retry_limit", cfg.Engine.AdvanceRetry.Limit),
			)

			if err := runCycle(ctx, cfg, logger); err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Warn("Run aborted gracefully")
					return nil
				}
				logger.Error("Run failed", zap.Error(err))
				return err
			}
			return nil
		},
	}

	runCmd.Flags().String("url", "", "Target page URL. (Overrides config/env)")
	runCmd.Flags().Bool("headless", true, "Run the browser headless. (Overrides config/env)")

	return runCmd
}

// configForRun finalizes and validates the configuration for a run, applying
// the positional URL argument when given.
func configForRun(args []string) (*config.Config, error) {
	cfg, err := config.NewConfigFromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		cfg.Engine.StartURL = args[0]
	}
	if cfg.Engine.StartURL == "" {
		return nil, fmt.Errorf("no target URL: pass one as an argument or set engine.start_url")
	}
	if !strings.HasPrefix(cfg.Engine.StartURL, "http://") && !strings.HasPrefix(cfg.Engine.StartURL, "https://") {
		cfg.Engine.StartURL = "https://" + cfg.Engine.StartURL
	}
	return cfg, nil
}

// runCycle wires the browser session, telemetry and cycle engine together and
// blocks until the context is cancelled.
func runCycle(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	// 1. Browser session
	session := browser.NewSession(cfg.Browser, logger)
	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("failed to start browser session: %w", err)
	}
	defer session.Close()

	if err := session.Navigate(ctx, cfg.Engine.StartURL); err != nil {
		return fmt.Errorf("failed to open target page: %w", err)
	}

	// 2. Telemetry
	registry := prometheus.NewRegistry()
	counters := telemetry.New(registry)

	var metricsSrv *http.Server
	if cfg.Telemetry.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: cfg.Telemetry.MetricsAddr, Handler: mux}
		go func() {
			logger.Info("Metrics listener started", zap.String("addr", cfg.Telemetry.MetricsAddr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics listener failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	// 3. Task loop and cycle engine
	loop := schedule.NewLoop(logger, 0)
	attempt := dom.NewAttempt(session, session, counters, logger)
	gate := engine.NewReactionGate(
		session,
		toIdentifiers(cfg.Selectors.RemoveReact),
		schemas.ElementIdentifier(cfg.Selectors.EligibilityContainer),
		schemas.ElementIdentifier(cfg.Selectors.EligibilityChild),
		cfg.Engine.MinEligibleChildren,
		logger,
	)

	reactID := schemas.ElementIdentifier(cfg.Selectors.React)
	advanceID := schemas.ElementIdentifier(cfg.Selectors.Advance)
	react := func(ctx context.Context) schemas.AttemptResult {
		return attempt.Do(ctx, reactID, dom.KindReaction, cfg.Engine.MatchAllReact)
	}
	advance := func(ctx context.Context) schemas.AttemptResult {
		return attempt.Do(ctx, advanceID, dom.KindAdvance, false)
	}

	controller := engine.NewController(
		loop,
		gate,
		react,
		advance,
		counters,
		engine.ControllerConfig{
			ReactPolicy:   cfg.Engine.ReactRetry,
			AdvancePolicy: cfg.Engine.AdvanceRetry,
			LogCycles:     cfg.Engine.LogCycles,
		},
		logger,
	)

	controller.Start(ctx)

	// The loop runs on this goroutine until the signal context cancels it.
	loop.Run(ctx)

	snap := counters.Snapshot()
	logger.Info("Cycle run finished", snap.Fields()...)
	return ctx.Err()
}

func toIdentifiers(ss []string) []schemas.ElementIdentifier {
	ids := make([]schemas.ElementIdentifier, 0, len(ss))
	for _, s := range ss {
		ids = append(ids, schemas.ElementIdentifier(s))
	}
	return ids
}
