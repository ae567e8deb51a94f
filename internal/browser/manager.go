// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/rclaycock/Cosmos-scraper-mk-2/internal/config"
)

// Manager owns the browser process lifecycle: one exec allocator, one browser
// context, sessions created on demand.
type Manager struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc
}

const shutdownGracePeriod = 10 * time.Second

// NewManager launches the browser with the configured switches. The returned
// manager must be shut down to reap the browser process.
func NewManager(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{cfg: cfg, logger: logger.Named("browser_manager")}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("disable-background-networking", false),
		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
	)
	for _, arg := range cfg.Args {
		opts = append(opts, chromedp.Flag(arg, true))
	}

	m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	m.browserCtx, m.cancel = chromedp.NewContext(m.allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			m.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	// Force the browser process to start now so launch failures surface
	// here instead of on the first navigation.
	startCtx, cancel := context.WithTimeout(m.browserCtx, 30*time.Second)
	defer cancel()
	if err := chromedp.Run(startCtx); err != nil {
		m.shutdownContexts()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	m.logger.Info("browser launched",
		zap.Bool("headless", cfg.Headless),
		zap.Int("viewport_width", cfg.ViewportWidth),
		zap.Int("viewport_height", cfg.ViewportHeight))
	return m, nil
}

// NewSession opens a tab wired with the media sniffer and returns it as a
// harvest page.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	return newSession(ctx, m.browserCtx, m.cfg, m.logger)
}

// Shutdown tears down the browser process, bounded by a grace period.
func (m *Manager) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.shutdownContexts()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(shutdownGracePeriod):
		return fmt.Errorf("browser shutdown timed out after %s", shutdownGracePeriod)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) shutdownContexts() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.allocCancel != nil {
		m.allocCancel()
	}
}
