// internal/harvest/page.go
package harvest

import (
	"context"
	"time"

	"github.com/rclaycock/Cosmos-scraper-mk-2/internal/media"
)

// Page is the automation surface over the live gallery tab. The browser is an
// effectful external system with no contract of its own; everything the
// harvesting core needs from it goes through this interface so the core is
// testable against a fake.
type Page interface {
	// Navigate loads the target page. Failure here is fatal to the run.
	Navigate(ctx context.Context, url string) error
	// SnapshotVisibleMedia returns every media element currently rendered,
	// with type, source URL(s) and screen position.
	SnapshotVisibleMedia(ctx context.Context) ([]media.Observation, error)
	// ScrollBy advances the page by px pixels.
	ScrollBy(ctx context.Context, px int) error
	// Wait sleeps for d, honoring ctx cancellation.
	Wait(ctx context.Context, d time.Duration) error
	// CurrentScrollHeight reports the page's scrollable height.
	CurrentScrollHeight(ctx context.Context) (int64, error)
	// OnNetworkResponse registers the callback that receives observations
	// harvested from network traffic. Delivery is asynchronous and may
	// interleave with any suspension point of the harvest loop.
	OnNetworkResponse(fn func(media.Observation))
}

// Merger is the slice of the reconciler the controller depends on.
type Merger interface {
	Merge(media.Observation)
	Len() int
}
