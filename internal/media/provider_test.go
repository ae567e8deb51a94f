package media

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestProviderPlaybackID(t *testing.T) {
	assert.Equal(t, "pb1", providerPlaybackID(mustParse(t, "https://stream.mux.com/pb1/high.mp4")))
	assert.Equal(t, "pb1", providerPlaybackID(mustParse(t, "https://image.mux.com/pb1/thumbnail.jpg")))
	assert.Empty(t, providerPlaybackID(mustParse(t, "https://cdn.x/pb1/high.mp4")))
	assert.Empty(t, providerPlaybackID(mustParse(t, "https://stream.mux.com/")))
}

func TestUpgradeTier(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{"https://stream.mux.com/pb1/low.mp4", "https://stream.mux.com/pb1/high.mp4"},
		{"https://stream.mux.com/pb1/medium.mp4", "https://stream.mux.com/pb1/high.mp4"},
		{"https://stream.mux.com/pb1/high.mp4", "https://stream.mux.com/pb1/high.mp4"},
		// Unknown renditions pass through untouched.
		{"https://stream.mux.com/pb1/capped-1080p.mp4", "https://stream.mux.com/pb1/capped-1080p.mp4"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, upgradeTier(tc.in), tc.in)
	}
}

func TestIdentityKeyPriority(t *testing.T) {
	providerVideo := Canonical{Src: "https://stream.mux.com/pb1/high.mp4", Type: TypeVideo, PlaybackID: "pb1"}

	// Explicit stable id beats everything.
	assert.Equal(t, "id:item-1", IdentityKey("item-1", providerVideo))
	// Playback id beats the URL for provider videos.
	assert.Equal(t, "pb:pb1", IdentityKey("", providerVideo))
	// Plain fallback otherwise.
	image := Canonical{Src: "https://cdn.x/a.jpg", Type: TypeImage}
	assert.Equal(t, "image:https://cdn.x/a.jpg", IdentityKey("", image))
}
