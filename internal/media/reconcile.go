// internal/media/reconcile.go
package media

import (
	"sync"

	"go.uber.org/zap"
)

// record is the reconciler's view of one identity: the best-known asset plus
// its best-known position.
type record struct {
	asset          Asset
	pos            Position
	positioned     bool
	seq            int
	providerBacked bool
	playbackID     string
}

// Entry is a read-only snapshot of one reconciled identity, handed to the
// finalizer. Seq preserves first-discovery order for entries that were never
// positioned in the DOM.
type Entry struct {
	Asset      Asset
	Pos        Position
	Positioned bool
	Seq        int
}

// Reconciler owns the Reconciled Collection for one harvest run. Merge is the
// only mutation entry point; it is idempotent and commutative per identity
// key, so the DOM poll loop and the network callback may interleave freely.
//
// The harvest loop is cooperative, but CDP events arrive on the event
// goroutine, so the collection is guarded by a mutex.
type Reconciler struct {
	mu     sync.Mutex
	canon  *Canonicalizer
	base   string
	logger *zap.Logger

	records map[string]*record
	// byPlayback aliases a provider playback id to the identity key that
	// first claimed it. Every rendition of a clip folds into that one
	// record regardless of which key tier each observation resolves to.
	byPlayback map[string]string
	// pendingPosters holds thumbnail candidates whose video has not been
	// seen yet, keyed by playback id. Attachment works in either arrival
	// order.
	pendingPosters   map[string]string
	hasProviderVideo bool
	nextSeq          int
}

// NewReconciler creates the collection for a single run rooted at baseURL,
// which resolves relative references in observations.
func NewReconciler(canon *Canonicalizer, baseURL string, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		canon:          canon,
		base:           baseURL,
		logger:         logger.Named("reconciler"),
		records:        make(map[string]*record),
		byPlayback:     make(map[string]string),
		pendingPosters: make(map[string]string),
	}
}

// Merge folds one observation into the collection. Invalid or excluded
// observations are dropped silently; a malformed sighting must never abort
// the run.
func (r *Reconciler) Merge(obs Observation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	can, ok := r.canon.Canonicalize(obs.RawURL, r.base, obs.Hint)
	if !ok {
		if can.PosterOnly && can.PlaybackID != "" {
			r.attachPosterLocked(can.PlaybackID, can.Src)
		}
		return
	}

	key := IdentityKey(obs.StableID, can)
	if can.Type == TypeVideo && can.PlaybackID != "" {
		// All renditions of one clip share a record. The first key to
		// claim the playback id wins; later observations alias to it.
		if alias, seen := r.byPlayback[can.PlaybackID]; seen {
			key = alias
		} else {
			r.byPlayback[can.PlaybackID] = key
		}
	}

	src := can.Src
	providerBacked := can.Type == TypeVideo && can.PlaybackID != ""
	if providerBacked {
		// Store only the best rendition per identity.
		src = upgradeTier(src)
		r.hasProviderVideo = true
	}

	rec := r.records[key]
	if rec == nil {
		rec = &record{
			asset: Asset{
				Type:         can.Type,
				CanonicalSrc: src,
				Width:        ClampDimension(obs.Width),
				Height:       ClampDimension(obs.Height),
			},
			seq:            r.nextSeq,
			providerBacked: providerBacked,
			playbackID:     can.PlaybackID,
		}
		r.nextSeq++
		r.records[key] = rec
		r.logger.Debug("new identity",
			zap.String("key", key),
			zap.String("src", src),
			zap.String("channel", string(obs.Channel)))
	} else {
		// Conflict resolution on an existing identity.
		switch {
		case can.Type == TypeVideo && rec.asset.Type == TypeImage:
			// A video observation upgrades an image-typed record; the
			// image render sharing the identity is the clip's
			// thumbnail, so it demotes to poster. Its dimensions go
			// with it, the video's own measurements replace them.
			if rec.asset.Poster == "" {
				rec.asset.Poster = rec.asset.CanonicalSrc
			}
			rec.asset.Type = TypeVideo
			rec.asset.CanonicalSrc = src
			rec.asset.Width = ClampDimension(obs.Width)
			rec.asset.Height = ClampDimension(obs.Height)
			rec.providerBacked = providerBacked
			rec.playbackID = can.PlaybackID
		case can.Type == TypeImage && rec.asset.Type == TypeVideo:
			// The reverse never downgrades. The image becomes the
			// poster, keeping the merge commutative across arrival
			// orders.
			if rec.asset.Poster == "" {
				rec.asset.Poster = src
			}
		case providerBacked && !rec.providerBacked:
			// A provider rendition replaces a self-hosted one, never
			// the reverse.
			rec.asset.CanonicalSrc = src
			rec.providerBacked = true
			rec.playbackID = can.PlaybackID
		}
		if rec.asset.Width == 0 {
			rec.asset.Width = ClampDimension(obs.Width)
		}
		if rec.asset.Height == 0 {
			rec.asset.Height = ClampDimension(obs.Height)
		}
	}

	// Earlier renders are closer to true document order than mid-scroll
	// jitter: keep the topmost, then leftmost, position seen.
	if obs.Positioned {
		pos := Position{Top: obs.Top, Left: obs.Left}
		if !rec.positioned || pos.Before(rec.pos) {
			rec.pos = pos
			rec.positioned = true
		}
	}

	if rec.asset.Type == TypeVideo && rec.asset.Poster == "" {
		if obs.PosterURL != "" {
			if poster, ok := r.canonicalPoster(obs.PosterURL); ok {
				rec.asset.Poster = poster
			}
		}
		if rec.asset.Poster == "" && rec.playbackID != "" {
			if poster, pending := r.pendingPosters[rec.playbackID]; pending {
				rec.asset.Poster = poster
				delete(r.pendingPosters, rec.playbackID)
			}
		}
	}
}

// attachPosterLocked routes a provider thumbnail to the video sharing its
// playback id, or parks it until that video arrives.
func (r *Reconciler) attachPosterLocked(playbackID, posterSrc string) {
	if key, seen := r.byPlayback[playbackID]; seen {
		if rec := r.records[key]; rec != nil {
			if rec.asset.Poster == "" {
				rec.asset.Poster = posterSrc
			}
			return
		}
	}
	r.pendingPosters[playbackID] = posterSrc
}

// canonicalPoster normalizes a poster attribute URL. The provider thumbnail
// shape is acceptable here; that is exactly its role.
func (r *Reconciler) canonicalPoster(raw string) (string, bool) {
	can, ok := r.canon.Canonicalize(raw, r.base, TypeImage)
	if ok && can.Type == TypeImage {
		return can.Src, true
	}
	if can.PosterOnly {
		return can.Src, true
	}
	return "", false
}

// Len returns the number of distinct identities merged so far. The
// convergence controller uses growth of this count as its item-stability
// signal.
func (r *Reconciler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Entries snapshots the collection for finalization. When any
// provider-backed video exists, self-hosted videos are suppressed: a gallery
// mixing both serves the self-hosted copy as a redundant fallback render.
func (r *Reconciler) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]Entry, 0, len(r.records))
	for _, rec := range r.records {
		if r.hasProviderVideo && rec.asset.Type == TypeVideo && !rec.providerBacked {
			continue
		}
		entries = append(entries, Entry{
			Asset:      rec.asset,
			Pos:        rec.pos,
			Positioned: rec.positioned,
			Seq:        rec.seq,
		})
	}
	return entries
}
