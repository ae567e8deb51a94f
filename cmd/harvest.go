// cmd/harvest.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/rclaycock/Cosmos-scraper-mk-2/internal/browser"
	"github.com/rclaycock/Cosmos-scraper-mk-2/internal/config"
	"github.com/rclaycock/Cosmos-scraper-mk-2/internal/harvest"
	"github.com/rclaycock/Cosmos-scraper-mk-2/internal/media"
	"github.com/rclaycock/Cosmos-scraper-mk-2/internal/observability"
	"github.com/rclaycock/Cosmos-scraper-mk-2/internal/results"
)

// newHarvestCmd creates the harvest command: one run, one payload.
func newHarvestCmd() *cobra.Command {
	harvestCmd := &cobra.Command{
		Use:   "harvest [url]",
		Short: "Harvests all media assets from an infinite-scroll gallery page",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to viper keys so CLI overrides win over file
			// and environment values with the right precedence.
			bindings := map[string]string{
				"harvest.max_steps":       "max-steps",
				"harvest.scroll_step_px":  "scroll-step",
				"harvest.scroll_wait":     "scroll-wait",
				"harvest.initial_wait":    "initial-wait",
				"harvest.stable_checks":   "stable-checks",
				"harvest.reverse_output":  "reverse",
				"browser.headless":        "headless",
				"browser.viewport_width":  "viewport-width",
				"browser.viewport_height": "viewport-height",
			}
			for key, flag := range bindings {
				if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return err
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			target := args[0]
			if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
				target = "https://" + target
			}

			output, _ := cmd.Flags().GetString("output")
			if output != "" {
				if output, err = config.ExpandPath(output); err != nil {
					return err
				}
			}

			runID := uuid.New().String()
			logger = logger.With(zap.String("run_id", runID))
			logger.Info("harvest run starting",
				zap.String("target", target),
				zap.Int("max_steps", cfg.Harvest.MaxSteps),
				zap.Int("stable_checks", cfg.Harvest.StableChecks))

			assets, err := runHarvest(ctx, cfg, target, logger)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Warn("harvest aborted by signal")
				}
				if werr := results.Write(results.Failure(target, err), output); werr != nil {
					logger.Error("failed to write failure payload", zap.Error(werr))
				}
				return fmt.Errorf("harvest failed: %w", err)
			}

			logger.Info("harvest run complete", zap.Int("assets", len(assets)))
			return results.Write(results.Success(target, assets), output)
		},
	}

	harvestCmd.Flags().StringP("output", "o", "", "Write the payload to this file instead of stdout.")
	harvestCmd.Flags().Int("max-steps", 0, "Hard ceiling on scroll steps. (Overrides config/env)")
	harvestCmd.Flags().Int("scroll-step", 0, "Scroll increment in pixels per step. (Overrides config/env)")
	harvestCmd.Flags().Duration("scroll-wait", 0, "Settle interval after each scroll. (Overrides config/env)")
	harvestCmd.Flags().Duration("initial-wait", 0, "Settle delay after navigation. (Overrides config/env)")
	harvestCmd.Flags().Int("stable-checks", 0, "Consecutive stable steps required to converge. (Overrides config/env)")
	harvestCmd.Flags().Bool("reverse", false, "Reverse the final list (newest-first consumers).")
	harvestCmd.Flags().Bool("headless", true, "Run the browser headless.")
	harvestCmd.Flags().Int("viewport-width", 0, "Browser viewport width. (Overrides config/env)")
	harvestCmd.Flags().Int("viewport-height", 0, "Browser viewport height. (Overrides config/env)")

	return harvestCmd
}

// runHarvest wires one run's components and executes it end to end.
func runHarvest(ctx context.Context, cfg *config.Config, target string, logger *zap.Logger) ([]media.Asset, error) {
	canon, err := media.NewCanonicalizer(target)
	if err != nil {
		return nil, err
	}

	manager, err := browser.NewManager(ctx, cfg.Browser, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := manager.Shutdown(shutdownCtx); err != nil {
			logger.Warn("browser shutdown error", zap.Error(err))
		}
	}()

	session, err := manager.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = session.Close(closeCtx)
	}()

	reconciler := media.NewReconciler(canon, target, logger)
	// The network channel feeds the same merge entry point as the DOM
	// poll; merge idempotence makes the interleaving harmless.
	session.OnNetworkResponse(reconciler.Merge)

	controller := harvest.NewController(harvest.Config{
		MaxSteps:     cfg.Harvest.MaxSteps,
		ScrollStepPx: cfg.Harvest.ScrollStepPx,
		ScrollWait:   cfg.Harvest.ScrollWait,
		InitialWait:  cfg.Harvest.InitialWait,
		StableChecks: cfg.Harvest.StableChecks,
	}, session, reconciler, logger)

	if err := controller.Run(ctx, target); err != nil {
		return nil, err
	}
	return media.Finalize(reconciler.Entries(), cfg.Harvest.ReverseOutput), nil
}
