// internal/browser/sniffer.go
package browser

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/rclaycock/Cosmos-scraper-mk-2/internal/media"
)

const (
	// bodyFetchConcurrency bounds simultaneous response-body pulls so a
	// chatty page cannot starve the CDP connection.
	bodyFetchConcurrency = 4
	// bodyFetchRate throttles body pulls overall.
	bodyFetchRate = 20 // per second
	// maxURLsPerBody caps how many embedded URLs one JSON payload may
	// contribute. Anything past this is noise.
	maxURLsPerBody = 512
)

// Sniffer listens to CDP network events on one tab and reports media URLs as
// observations: direct media responses immediately, JSON API responses after
// scanning their bodies for embedded URLs. Loss of any single response never
// affects the others.
type Sniffer struct {
	ctx    context.Context
	logger *zap.Logger

	mu       sync.Mutex
	callback func(media.Observation)
	// pendingJSON maps request ids of JSON responses awaiting a body pull
	// to their response URL.
	pendingJSON map[network.RequestID]string
	started     bool

	sem     *semaphore.Weighted
	limiter *rate.Limiter
	bodyWG  sync.WaitGroup
}

// NewSniffer attaches to the given tab context. Call Start before the first
// navigation.
func NewSniffer(tabCtx context.Context, logger *zap.Logger) *Sniffer {
	return &Sniffer{
		ctx:         tabCtx,
		logger:      logger.Named("sniffer"),
		pendingJSON: make(map[network.RequestID]string),
		sem:         semaphore.NewWeighted(bodyFetchConcurrency),
		limiter:     rate.NewLimiter(rate.Limit(bodyFetchRate), bodyFetchConcurrency),
	}
}

// SetCallback installs the observation sink. Until one is set, events are
// dropped.
func (s *Sniffer) SetCallback(fn func(media.Observation)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = fn
}

// Start enables the CDP network domain and begins listening.
func (s *Sniffer) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	if err := chromedp.Run(s.ctx, network.Enable()); err != nil {
		return err
	}

	chromedp.ListenTarget(s.ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventResponseReceived:
			s.handleResponse(e)
		case *network.EventLoadingFinished:
			s.handleLoadingFinished(e)
		case *network.EventLoadingFailed:
			s.handleLoadingFailed(e)
		}
	})
	s.logger.Debug("sniffer listening")
	return nil
}

// Stop waits for in-flight body pulls, bounded by ctx.
func (s *Sniffer) Stop(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.bodyWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("timed out waiting for pending body fetches")
	}
}

func (s *Sniffer) handleResponse(e *network.EventResponseReceived) {
	if e.Response == nil {
		return
	}
	mime := strings.ToLower(e.Response.MimeType)
	switch {
	case strings.HasPrefix(mime, "image/"):
		s.emit(media.Observation{
			Channel: media.ChannelNetwork,
			RawURL:  e.Response.URL,
			Hint:    media.TypeImage,
		})
	case strings.HasPrefix(mime, "video/"):
		s.emit(media.Observation{
			Channel: media.ChannelNetwork,
			RawURL:  e.Response.URL,
			Hint:    media.TypeVideo,
		})
	case strings.Contains(mime, "json"):
		s.mu.Lock()
		s.pendingJSON[e.RequestID] = e.Response.URL
		s.mu.Unlock()
	}
}

func (s *Sniffer) handleLoadingFinished(e *network.EventLoadingFinished) {
	s.mu.Lock()
	respURL, ok := s.pendingJSON[e.RequestID]
	if ok {
		delete(s.pendingJSON, e.RequestID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	s.bodyWG.Add(1)
	go s.fetchAndScan(e.RequestID, respURL)
}

func (s *Sniffer) handleLoadingFailed(e *network.EventLoadingFailed) {
	s.mu.Lock()
	delete(s.pendingJSON, e.RequestID)
	s.mu.Unlock()
}

// fetchAndScan pulls one JSON body and reports every URL embedded in it.
// Runs in its own goroutine; all failures are swallowed per response.
func (s *Sniffer) fetchAndScan(id network.RequestID, respURL string) {
	defer s.bodyWG.Done()

	if s.ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, 15*time.Second)
	defer cancel()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer s.sem.Release(1)
	if err := s.limiter.Wait(ctx); err != nil {
		return
	}

	c := chromedp.FromContext(s.ctx)
	if c == nil || c.Target == nil {
		return
	}
	body, err := network.GetResponseBody(id).Do(cdp.WithExecutor(ctx, c.Target))
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Debug("body fetch failed", zap.String("url", respURL), zap.Error(err))
		}
		return
	}

	urls := ExtractURLs(body)
	if len(urls) == 0 {
		return
	}
	s.logger.Debug("scanned json response",
		zap.String("url", respURL),
		zap.Int("embedded_urls", len(urls)))
	for _, u := range urls {
		s.emit(media.Observation{
			Channel: media.ChannelNetwork,
			RawURL:  u,
			Hint:    media.TypeUnknown,
		})
	}
}

func (s *Sniffer) emit(obs media.Observation) {
	s.mu.Lock()
	fn := s.callback
	s.mu.Unlock()
	if fn != nil {
		fn(obs)
	}
}

// ExtractURLs walks an arbitrary JSON document and collects every distinct
// http(s) URL string it contains, in a deterministic order (object keys are
// visited sorted). Unparsable bodies yield nothing; they are someone else's
// problem.
func ExtractURLs(body []byte) []string {
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil
	}
	seen := make(map[string]struct{})
	var urls []string
	var walk func(v interface{})
	walk = func(v interface{}) {
		if len(urls) >= maxURLsPerBody {
			return
		}
		switch t := v.(type) {
		case string:
			if strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://") {
				if _, dup := seen[t]; !dup {
					seen[t] = struct{}{}
					urls = append(urls, t)
				}
			}
		case []interface{}:
			for _, item := range t {
				walk(item)
			}
		case map[string]interface{}:
			keys := make([]string, 0, len(t))
			for k := range t {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(t[k])
			}
		}
	}
	walk(doc)
	return urls
}
