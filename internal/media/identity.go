// internal/media/identity.go
package media

// IdentityKey derives the deduplication key for a canonicalized asset.
// Priority, first match wins:
//
//  1. An explicit stable id from the containing element. It tracks the
//     gallery item no matter which CDN variant happens to render it.
//  2. The provider playback id for provider-served videos, collapsing
//     quality tiers of the same clip into one identity.
//  3. type + canonical source, the plain fallback.
//
// Keys are namespaced so the tiers cannot collide with each other.
func IdentityKey(stableID string, can Canonical) string {
	if stableID != "" {
		return "id:" + stableID
	}
	if can.Type == TypeVideo && can.PlaybackID != "" {
		return "pb:" + can.PlaybackID
	}
	return string(can.Type) + ":" + can.Src
}
