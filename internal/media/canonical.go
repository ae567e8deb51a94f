// internal/media/canonical.go
package media

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// imageExtensions and videoExtensions are the fixed classification tables.
// Extension lookups happen against the lower-cased canonical path.
var imageExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".avif": {},
}

var videoExtensions = map[string]struct{}{
	".mp4": {}, ".webm": {}, ".mov": {}, ".m4v": {},
}

// manifestExtensions are streaming control-plane artifacts. They describe
// renditions rather than being one, so they are never assets.
var manifestExtensions = map[string]struct{}{
	".m3u8": {}, ".mpd": {},
}

// excludedPathFragments rejects page chrome that renders through media
// elements but is not gallery content: avatars, placeholders, bundled app
// assets, favicons and API endpoints.
var excludedPathFragments = []string{
	"/avatar",
	"/placeholder",
	"/favicon",
	"/static/",
	"/assets/",
	"/_next/",
	"/api/",
}

// Canonical is the outcome of canonicalizing one raw URL.
type Canonical struct {
	// Src is the canonical form: scheme + lower-cased host + path, with
	// query and fragment stripped.
	Src  string
	Type Type
	// PlaybackID is set when the URL belongs to the streaming provider.
	PlaybackID string
	// PosterOnly marks the provider thumbnail shape: not a standalone
	// asset, but a poster candidate for the video sharing its PlaybackID.
	PosterOnly bool
}

// Canonicalizer normalizes and classifies raw URLs. Its only state is the
// gallery's organizational domain, fixed at construction, so Canonicalize is
// a pure function of (URL, base, hint).
type Canonicalizer struct {
	galleryDomain string
}

// NewCanonicalizer derives the trusted gallery domain (eTLD+1) from the
// target page URL. Extension-less URLs served from this domain classify as
// images, since the gallery's own image host format-negotiates without
// extensions.
func NewCanonicalizer(pageURL string) (*Canonicalizer, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL %q: %w", pageURL, err)
	}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("page URL %q has no hostname", pageURL)
	}
	// Public Suffix List handles multi-part TLDs correctly. Don't roll a
	// domain parser.
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// IPs and local hostnames have no eTLD+1. Fall back to the
		// literal host so test servers still get a trusted domain.
		domain = host
	}
	return &Canonicalizer{galleryDomain: strings.ToLower(domain)}, nil
}

// Canonicalize reduces a raw URL to its canonical, classified form.
// Rules apply in order; the first rejection wins. ok is false when the URL
// is not an asset at all, including the poster-only thumbnail shape when it
// can never be content (the reconciler still reads PosterOnly off the result
// to route it as a poster candidate).
func (c *Canonicalizer) Canonicalize(raw, base string, hint Type) (Canonical, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "data:") {
		return Canonical{}, false
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Canonical{}, false
	}
	if !u.IsAbs() {
		if base == "" {
			return Canonical{}, false
		}
		b, err := url.Parse(base)
		if err != nil {
			return Canonical{}, false
		}
		u = b.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Canonical{}, false
	}
	if u.Hostname() == "" {
		return Canonical{}, false
	}

	// Normal form: drop query and fragment, lower-case the host, keep the
	// path verbatim.
	u.RawQuery = ""
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)

	lowerPath := strings.ToLower(u.Path)
	for _, frag := range excludedPathFragments {
		if strings.Contains(lowerPath, frag) {
			return Canonical{}, false
		}
	}

	ext := strings.ToLower(path.Ext(u.Path))
	if _, manifest := manifestExtensions[ext]; manifest {
		return Canonical{}, false
	}

	// The provider thumbnail is a poster, not content. Surface it as a
	// poster candidate rather than an asset.
	if isProviderThumbnail(u) {
		return Canonical{
			Src:        u.String(),
			PlaybackID: providerPlaybackID(u),
			PosterOnly: true,
		}, false
	}

	typ := classify(u, ext, hint, c.galleryDomain)
	if typ == TypeUnknown {
		return Canonical{}, false
	}

	can := Canonical{Src: u.String(), Type: typ}
	if typ == TypeVideo && isProviderStream(u) {
		can.PlaybackID = providerPlaybackID(u)
	}
	return can, true
}

// classify determines the media type from the extension tables, falling back
// to the trusted-host rule for extension-less image URLs.
func classify(u *url.URL, ext string, hint Type, galleryDomain string) Type {
	if _, ok := imageExtensions[ext]; ok {
		return TypeImage
	}
	if _, ok := videoExtensions[ext]; ok {
		return TypeVideo
	}
	if ext == "" && isTrustedImageHost(u.Hostname(), galleryDomain) {
		// The gallery's own image host serves format-negotiated images
		// without extensions.
		return TypeImage
	}
	if ext == "" && hint == TypeVideo && isProviderStream(u) {
		return TypeVideo
	}
	return TypeUnknown
}

// imageHostLabels are the leading labels the gallery uses for its dedicated
// image-serving hosts. Only these get the extension-less image rule;
// applying it to the whole domain would turn every permalink found in an
// API payload into a phantom image.
var imageHostLabels = []string{"images", "image", "cdn", "media"}

// isTrustedImageHost reports whether host is one of the gallery's own
// image-serving subdomains.
func isTrustedImageHost(host, domain string) bool {
	host = strings.ToLower(host)
	if !strings.HasSuffix(host, "."+domain) {
		return false
	}
	label, _, found := strings.Cut(host, ".")
	if !found {
		return false
	}
	for _, l := range imageHostLabels {
		if label == l {
			return true
		}
	}
	return false
}
