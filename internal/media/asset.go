// internal/media/asset.go
package media

// Type classifies a harvested asset.
type Type string

const (
	TypeImage   Type = "image"
	TypeVideo   Type = "video"
	TypeUnknown Type = "unknown"
)

// Channel tags which discovery path produced an observation.
type Channel string

const (
	ChannelDOM     Channel = "dom"
	ChannelNetwork Channel = "network"
)

// MaxDimension is the sanity ceiling for reported element geometry. Anything
// above this is a corrupt read, not a real render.
const MaxDimension = 16384

// Observation is a single raw sighting of a possible asset. Observations are
// transient: they are folded into the reconciler or discarded, never retained.
type Observation struct {
	Channel Channel
	RawURL  string
	// PosterURL carries the poster attribute of a video element, if any.
	PosterURL string
	// StableID is an explicit per-item identifier captured from the DOM
	// (data attribute or permalink). Empty for network observations.
	StableID string
	Hint     Type
	Width    int64
	Height   int64
	Top      float64
	Left     float64
	// Positioned reports whether Top/Left are meaningful. Network
	// observations never carry geometry.
	Positioned bool
}

// Asset is the unit of output: one deduplicated media item.
type Asset struct {
	Type         Type
	CanonicalSrc string
	// Poster is only set for videos.
	Poster string
	Width  int64
	Height int64
}

// Position locates an asset in page coordinates. It is used only for
// ordering and never appears in output.
type Position struct {
	Top  float64
	Left float64
}

// Before reports whether p sorts ahead of q in visual document order.
func (p Position) Before(q Position) bool {
	if p.Top != q.Top {
		return p.Top < q.Top
	}
	return p.Left < q.Left
}

// ClampDimension normalizes a reported width or height: negatives and
// corrupt reads collapse to 0, meaning unknown.
func ClampDimension(v int64) int64 {
	if v < 0 || v > MaxDimension {
		return 0
	}
	return v
}
