// internal/harvest/controller.go
package harvest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// State tracks the controller's progress through one harvest run.
type State int

const (
	StateIdle State = iota
	StateAdvancing
	StateConverged
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAdvancing:
		return "advancing"
	case StateConverged:
		return "converged"
	default:
		return "unknown"
	}
}

// Config holds the knobs of the convergence loop.
type Config struct {
	MaxSteps     int           `mapstructure:"max_steps" yaml:"max_steps"`
	ScrollStepPx int           `mapstructure:"scroll_step_px" yaml:"scroll_step_px"`
	ScrollWait   time.Duration `mapstructure:"scroll_wait" yaml:"scroll_wait"`
	InitialWait  time.Duration `mapstructure:"initial_wait" yaml:"initial_wait"`
	StableChecks int           `mapstructure:"stable_checks" yaml:"stable_checks"`
}

// SetDefaults applies default values for anything unset. Using <= 0 catches
// negative values too.
func (c *Config) SetDefaults() {
	if c.MaxSteps <= 0 {
		c.MaxSteps = 60
	}
	if c.ScrollStepPx <= 0 {
		c.ScrollStepPx = 1400
	}
	if c.ScrollWait <= 0 {
		c.ScrollWait = 1200 * time.Millisecond
	}
	if c.InitialWait <= 0 {
		c.InitialWait = 2500 * time.Millisecond
	}
	if c.StableChecks <= 0 {
		c.StableChecks = 3
	}
}

// Controller drives the page forward and decides when discovery has
// converged. One step: pull a DOM snapshot, merge it, scroll a bounded
// increment, settle. Two independent stability counters must both reach the
// threshold before the run converges:
//
//   - height stability alone is not enough, virtualized pages stop growing
//     while still substituting content;
//   - item stability alone is not enough, slow networks produce temporary
//     zero-growth steps.
//
// The step ceiling is the hard upper bound and the only cancellation
// mechanism the loop needs beyond its context.
type Controller struct {
	cfg    Config
	page   Page
	merger Merger
	logger *zap.Logger

	state State
	steps int
}

// NewController wires a controller for one run.
func NewController(cfg Config, page Page, merger Merger, logger *zap.Logger) *Controller {
	cfg.SetDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		cfg:    cfg,
		page:   page,
		merger: merger,
		logger: logger.Named("controller"),
		state:  StateIdle,
	}
}

// State returns the controller's current state.
func (c *Controller) State() State { return c.state }

// Steps returns how many loop steps ran.
func (c *Controller) Steps() int { return c.steps }

// Run executes one full harvest: navigate, settle, then advance until both
// stability counters agree or the step ceiling is hit. Navigation failure is
// fatal; everything merge-related is best effort.
func (c *Controller) Run(ctx context.Context, targetURL string) error {
	c.state = StateAdvancing
	c.logger.Info("starting harvest",
		zap.String("url", targetURL),
		zap.Int("max_steps", c.cfg.MaxSteps),
		zap.Int("stable_checks", c.cfg.StableChecks))

	if err := c.page.Navigate(ctx, targetURL); err != nil {
		return fmt.Errorf("navigate %s: %w", targetURL, err)
	}
	if err := c.page.Wait(ctx, c.cfg.InitialWait); err != nil {
		return err
	}

	var (
		heightStable int
		itemStable   int
		lastHeight   int64
		prevLen      int
	)

	for c.steps = 1; c.steps <= c.cfg.MaxSteps; c.steps++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if obs, err := c.page.SnapshotVisibleMedia(ctx); err != nil {
			// A single bad snapshot does not end the run.
			c.logger.Warn("snapshot failed", zap.Int("step", c.steps), zap.Error(err))
		} else {
			for _, o := range obs {
				c.merger.Merge(o)
			}
		}
		// The baseline carries across the whole iteration so identities the
		// network callback merges during the scroll settle still count as
		// growth on the next step.
		curLen := c.merger.Len()
		grew := curLen > prevLen
		prevLen = curLen

		height, err := c.page.CurrentScrollHeight(ctx)
		if err != nil {
			c.logger.Warn("scroll height read failed", zap.Int("step", c.steps), zap.Error(err))
			height = lastHeight
		}

		if height > lastHeight {
			heightStable = 0
			lastHeight = height
		} else {
			heightStable++
		}
		if grew {
			itemStable = 0
		} else {
			itemStable++
		}

		c.logger.Debug("harvest step",
			zap.Int("step", c.steps),
			zap.Int64("height", height),
			zap.Int("identities", c.merger.Len()),
			zap.Int("height_stable", heightStable),
			zap.Int("item_stable", itemStable))

		if heightStable >= c.cfg.StableChecks && itemStable >= c.cfg.StableChecks {
			c.state = StateConverged
			c.logger.Info("harvest converged",
				zap.Int("steps", c.steps),
				zap.Int("identities", c.merger.Len()))
			return nil
		}

		if err := c.page.ScrollBy(ctx, c.cfg.ScrollStepPx); err != nil {
			c.logger.Warn("scroll failed", zap.Int("step", c.steps), zap.Error(err))
		}
		if err := c.page.Wait(ctx, c.cfg.ScrollWait); err != nil {
			return err
		}
	}

	// Ceiling hit. Not an error: best effort against a page that may keep
	// virtualizing forever.
	c.steps = c.cfg.MaxSteps
	c.state = StateConverged
	c.logger.Info("harvest hit step ceiling",
		zap.Int("steps", c.steps),
		zap.Int("identities", c.merger.Len()))
	return nil
}
