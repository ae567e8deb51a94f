// internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/rclaycock/Cosmos-scraper-mk-2/internal/config"
	"github.com/rclaycock/Cosmos-scraper-mk-2/internal/harvest"
	"github.com/rclaycock/Cosmos-scraper-mk-2/internal/media"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Session is one browser tab implementing the harvest page surface.
type Session struct {
	id      string
	ctx     context.Context
	cancel  context.CancelFunc
	cfg     config.BrowserConfig
	logger  *zap.Logger
	sniffer *Sniffer
}

var _ harvest.Page = (*Session)(nil)

func newSession(ctx context.Context, browserCtx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tabCtx, cancel := chromedp.NewContext(browserCtx)

	s := &Session{
		id:     uuid.New().String(),
		ctx:    tabCtx,
		cancel: cancel,
		cfg:    cfg,
	}
	s.logger = logger.Named("session").With(zap.String("session_id", s.id))

	// Connect the tab now; sniffer event registration must precede the
	// first navigation or early responses are lost.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open browser tab: %w", err)
	}

	s.sniffer = NewSniffer(tabCtx, s.logger)
	if err := s.sniffer.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start network sniffer: %w", err)
	}
	return s, nil
}

// Navigate loads the target and waits for the document body. Unreachable
// pages and timeouts are fatal to the run.
func (s *Session) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(s.ctx, s.cfg.NavigationTimeout)
	defer cancel()

	if err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("navigation failed: %w", err)
	}
	s.logger.Debug("navigated", zap.String("url", url))
	return nil
}

// domMediaEntry mirrors the objects produced by snapshotJS.
type domMediaEntry struct {
	Kind   string   `json:"kind"`
	Srcs   []string `json:"srcs"`
	Poster string   `json:"poster"`
	ItemID string   `json:"itemId"`
	Width  int64    `json:"width"`
	Height int64    `json:"height"`
	Top    float64  `json:"top"`
	Left   float64  `json:"left"`
}

// SnapshotVisibleMedia pulls every rendered img and video element with its
// sources, geometry and any stable item id on the containing element.
func (s *Session) SnapshotVisibleMedia(ctx context.Context) ([]media.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var raw string
	evalCtx, cancel := context.WithTimeout(s.ctx, 15*time.Second)
	defer cancel()
	if err := chromedp.Run(evalCtx, chromedp.Evaluate(snapshotJS, &raw)); err != nil {
		return nil, fmt.Errorf("media snapshot failed: %w", err)
	}

	var entries []domMediaEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("media snapshot returned malformed JSON: %w", err)
	}

	obs := make([]media.Observation, 0, len(entries))
	for _, e := range entries {
		hint := media.TypeImage
		if e.Kind == "video" {
			hint = media.TypeVideo
		}
		for _, src := range e.Srcs {
			if src == "" {
				continue
			}
			obs = append(obs, media.Observation{
				Channel:    media.ChannelDOM,
				RawURL:     src,
				PosterURL:  e.Poster,
				StableID:   e.ItemID,
				Hint:       hint,
				Width:      e.Width,
				Height:     e.Height,
				Top:        e.Top,
				Left:       e.Left,
				Positioned: true,
			})
		}
		// A poster with no playable source yet is still worth reporting;
		// the reconciler pairs it up when the video arrives.
		if len(e.Srcs) == 0 && e.Poster != "" {
			obs = append(obs, media.Observation{
				Channel:    media.ChannelDOM,
				RawURL:     e.Poster,
				Hint:       media.TypeImage,
				StableID:   e.ItemID,
				Top:        e.Top,
				Left:       e.Left,
				Positioned: true,
			})
		}
	}
	return obs, nil
}

// ScrollBy advances the page by px pixels.
func (s *Session) ScrollBy(ctx context.Context, px int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	scrollCtx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()
	expr := fmt.Sprintf(`window.scrollBy({top: %d, left: 0, behavior: "instant"}); true`, px)
	var ok bool
	return chromedp.Run(scrollCtx, chromedp.Evaluate(expr, &ok))
}

// CurrentScrollHeight reads the page's scrollable height.
func (s *Session) CurrentScrollHeight(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var height int64
	evalCtx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()
	err := chromedp.Run(evalCtx, chromedp.Evaluate(
		`document.scrollingElement ? document.scrollingElement.scrollHeight : document.body.scrollHeight`,
		&height))
	if err != nil {
		return 0, fmt.Errorf("scroll height read failed: %w", err)
	}
	return height, nil
}

// Wait sleeps for d or until ctx is cancelled.
func (s *Session) Wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnNetworkResponse registers the network-channel observation callback.
func (s *Session) OnNetworkResponse(fn func(media.Observation)) {
	s.sniffer.SetCallback(fn)
}

// Close stops the sniffer and releases the tab.
func (s *Session) Close(ctx context.Context) error {
	s.sniffer.Stop(ctx)
	s.cancel()
	return nil
}

// snapshotJS collects every rendered media element. Positions are in page
// coordinates (viewport offset plus scroll), matching the ordering contract.
const snapshotJS = `JSON.stringify((() => {
	const out = [];
	const stableId = (el) => {
		const holder = el.closest("[data-item-id],[data-id],[data-key]");
		if (holder) {
			const d = holder.dataset;
			if (d.itemId) return d.itemId;
			if (d.id) return d.id;
			if (d.key) return d.key;
		}
		const link = el.closest("a[href]");
		return link ? link.href : "";
	};
	document.querySelectorAll("img").forEach((el) => {
		const r = el.getBoundingClientRect();
		out.push({
			kind: "image",
			srcs: [el.currentSrc || el.src || ""].filter(Boolean),
			poster: "",
			itemId: stableId(el),
			width: el.naturalWidth | 0,
			height: el.naturalHeight | 0,
			top: r.top + window.scrollY,
			left: r.left + window.scrollX,
		});
	});
	document.querySelectorAll("video").forEach((el) => {
		const r = el.getBoundingClientRect();
		const srcs = [];
		if (el.currentSrc) srcs.push(el.currentSrc);
		if (el.src) srcs.push(el.src);
		el.querySelectorAll("source").forEach((sEl) => {
			if (sEl.src) srcs.push(sEl.src);
		});
		out.push({
			kind: "video",
			srcs: srcs,
			poster: el.poster || "",
			itemId: stableId(el),
			width: el.videoWidth | 0,
			height: el.videoHeight | 0,
			top: r.top + window.scrollY,
			left: r.left + window.scrollX,
		});
	});
	return out;
})())`
