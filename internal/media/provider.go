// internal/media/provider.go
package media

import (
	"net/url"
	"strings"
)

// The gallery streams its video clips through a Mux-style provider. Two hosts
// matter: the stream host serves the playable renditions and the image host
// serves a fixed-name thumbnail per clip. Both embed the clip's playback id
// as the first path segment, which is the stable identity across renditions.
const (
	providerStreamHost = "stream.mux.com"
	providerImageHost  = "image.mux.com"
)

// tierLadder orders the provider's predictable quality renditions,
// worst first. Upgrades substitute the final path element.
var tierLadder = []string{"low.mp4", "medium.mp4", "high.mp4"}

// providerPlaybackID extracts the playback id from a provider URL path.
// Returns "" when the URL is not hosted by the provider.
func providerPlaybackID(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	if host != providerStreamHost && host != providerImageHost {
		return ""
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segs) == 0 || segs[0] == "" {
		return ""
	}
	return segs[0]
}

// isProviderThumbnail reports whether the URL is the provider's fixed
// thumbnail shape. Thumbnails are never standalone assets; their only role
// is to serve as the poster of the sibling video with the same playback id.
func isProviderThumbnail(u *url.URL) bool {
	if strings.ToLower(u.Hostname()) != providerImageHost {
		return false
	}
	base := strings.ToLower(lastPathSegment(u.Path))
	return base == "thumbnail.jpg" || base == "thumbnail.png" || base == "thumbnail.webp"
}

// isProviderStream reports whether the URL is a playable provider rendition.
func isProviderStream(u *url.URL) bool {
	return strings.ToLower(u.Hostname()) == providerStreamHost
}

// upgradeTier rewrites a provider stream URL to the highest known quality
// rendition. The substitution is a pure path rewrite, so the same clip always
// collapses to the same representation no matter which tier was observed.
func upgradeTier(canonicalSrc string) string {
	best := tierLadder[len(tierLadder)-1]
	for _, tier := range tierLadder {
		if strings.HasSuffix(canonicalSrc, "/"+tier) {
			return canonicalSrc[:len(canonicalSrc)-len(tier)] + best
		}
	}
	return canonicalSrc
}

func lastPathSegment(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
