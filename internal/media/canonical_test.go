package media

import (
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPageURL = "https://gallery.example.com/feed"

func newTestCanonicalizer(t *testing.T) *Canonicalizer {
	t.Helper()
	c, err := NewCanonicalizer(testPageURL)
	require.NoError(t, err)
	return c
}

func TestCanonicalize(t *testing.T) {
	c := newTestCanonicalizer(t)

	testCases := []struct {
		name     string
		raw      string
		base     string
		hint     Type
		wantOK   bool
		wantSrc  string
		wantType Type
	}{
		{
			name:     "strips query and fragment",
			raw:      "https://cdn.x/a.jpg?v=1#frag",
			wantOK:   true,
			wantSrc:  "https://cdn.x/a.jpg",
			wantType: TypeImage,
		},
		{
			name:     "lower-cases the host, keeps the path verbatim",
			raw:      "https://CDN.Example.COM/Media/Photo.JPG",
			wantOK:   true,
			wantSrc:  "https://cdn.example.com/Media/Photo.JPG",
			wantType: TypeImage,
		},
		{
			name:     "resolves relative references against the base",
			raw:      "/media/clip.mp4",
			base:     "https://gallery.example.com/feed",
			wantOK:   true,
			wantSrc:  "https://gallery.example.com/media/clip.mp4",
			wantType: TypeVideo,
		},
		{
			name:   "relative URL without a base is rejected",
			raw:    "/media/clip.mp4",
			wantOK: false,
		},
		{
			name:   "data URIs are rejected",
			raw:    "data:image/png;base64,iVBORw0KGgo=",
			wantOK: false,
		},
		{
			name:   "unparsable URLs are rejected",
			raw:    "https://x.test/%zz",
			wantOK: false,
		},
		{
			name:   "avatar paths are excluded",
			raw:    "https://gallery.example.com/avatars/u123.png",
			wantOK: false,
		},
		{
			name:   "app bundle assets are excluded",
			raw:    "https://gallery.example.com/_next/image.png",
			wantOK: false,
		},
		{
			name:   "favicons are excluded",
			raw:    "https://gallery.example.com/favicon.ico",
			wantOK: false,
		},
		{
			name:   "api endpoints are excluded",
			raw:    "https://gallery.example.com/api/v1/items.png",
			wantOK: false,
		},
		{
			name:   "streaming manifests are never assets",
			raw:    "https://stream.mux.com/pbID123/playlist.m3u8",
			wantOK: false,
		},
		{
			name:   "dash manifests are never assets",
			raw:    "https://cdn.x/video/manifest.mpd",
			wantOK: false,
		},
		{
			name:     "extension-less URL on the trusted gallery host is an image",
			raw:      "https://images.gallery.example.com/item/9f3b",
			wantOK:   true,
			wantSrc:  "https://images.gallery.example.com/item/9f3b",
			wantType: TypeImage,
		},
		{
			name:   "extension-less permalink on the gallery page host is rejected",
			raw:    "https://gallery.example.com/item/123",
			wantOK: false,
		},
		{
			name:   "extension-less URL on an untrusted host is rejected",
			raw:    "https://tracker.elsewhere.net/pixel",
			hint:   TypeImage,
			wantOK: false,
		},
		{
			name:     "provider stream rendition is a video",
			raw:      "https://stream.mux.com/pbID123/low.mp4?token=abc",
			wantOK:   true,
			wantSrc:  "https://stream.mux.com/pbID123/low.mp4",
			wantType: TypeVideo,
		},
		{
			name:   "non-http schemes are rejected",
			raw:    "ftp://cdn.x/a.jpg",
			wantOK: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			can, ok := c.Canonicalize(tc.raw, tc.base, tc.hint)
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, tc.wantSrc, can.Src)
				assert.Equal(t, tc.wantType, can.Type)
			}
		})
	}
}

func TestCanonicalizeThumbnailIsPosterOnly(t *testing.T) {
	c := newTestCanonicalizer(t)

	can, ok := c.Canonicalize("https://image.mux.com/pbID123/thumbnail.jpg?width=640", "", TypeImage)
	// Not a standalone asset, but it must surface as a poster candidate.
	assert.False(t, ok)
	assert.True(t, can.PosterOnly)
	assert.Equal(t, "pbID123", can.PlaybackID)
	assert.Equal(t, "https://image.mux.com/pbID123/thumbnail.jpg", can.Src)
}

func TestCanonicalizePlaybackID(t *testing.T) {
	c := newTestCanonicalizer(t)

	can, ok := c.Canonicalize("https://stream.mux.com/AbC123xyz/high.mp4", "", TypeVideo)
	require.True(t, ok)
	assert.Equal(t, "AbC123xyz", can.PlaybackID)

	// Self-hosted videos carry no playback id.
	can, ok = c.Canonicalize("https://gallery.example.com/media/clip.mp4", "", TypeVideo)
	require.True(t, ok)
	assert.Empty(t, can.PlaybackID)
}

// Canonicalization must be idempotent: feeding a canonical URL back through
// yields the same result.
func TestCanonicalizeIdempotent(t *testing.T) {
	c := newTestCanonicalizer(t)

	inputs := []string{
		"https://cdn.x/a.jpg?v=1",
		"https://CDN.X/B.PNG#top",
		"https://stream.mux.com/pb1/medium.mp4?t=1",
		"https://images.gallery.example.com/item/42",
	}
	for _, raw := range inputs {
		first, ok := c.Canonicalize(raw, testPageURL, TypeUnknown)
		require.True(t, ok, raw)
		second, ok := c.Canonicalize(first.Src, testPageURL, first.Type)
		require.True(t, ok, first.Src)
		assert.Equal(t, first.Src, second.Src)
		assert.Equal(t, first.Type, second.Type)
	}
}

// FuzzCanonicalizeIdempotent hammers the idempotence property with
// structured garbage. Accepted outputs must re-canonicalize to themselves,
// and nothing may panic.
func FuzzCanonicalizeIdempotent(f *testing.F) {
	f.Add([]byte("https://cdn.x/a.jpg?v=1"))
	f.Add([]byte("//images.gallery.example.com/x"))
	f.Add([]byte("data:image/png;base64,xx"))

	c, err := NewCanonicalizer(testPageURL)
	if err != nil {
		f.Fatal(err)
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		consumer := fuzz.NewConsumer(data)
		raw, err := consumer.GetString()
		if err != nil {
			return
		}
		first, ok := c.Canonicalize(raw, testPageURL, TypeUnknown)
		if !ok {
			return
		}
		second, ok := c.Canonicalize(first.Src, testPageURL, first.Type)
		if !ok {
			t.Fatalf("canonical output %q rejected on second pass", first.Src)
		}
		if first.Src != second.Src {
			t.Fatalf("not idempotent: %q -> %q", first.Src, second.Src)
		}
	})
}
