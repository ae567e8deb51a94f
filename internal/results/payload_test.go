package results

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rclaycock/Cosmos-scraper-mk-2/internal/media"
)

func TestSuccessPreservesOrder(t *testing.T) {
	assets := []media.Asset{
		{Type: media.TypeImage, CanonicalSrc: "https://cdn.example.com/a.jpg", Width: 800, Height: 600},
		{Type: media.TypeVideo, CanonicalSrc: "https://stream.mux.com/abc/high.mp4", Poster: "https://image.mux.com/abc/thumbnail.jpg"},
		{Type: media.TypeImage, CanonicalSrc: "https://cdn.example.com/b.png"},
	}

	p := Success("https://gallery.example.com/feed", assets)
	assert.True(t, p.OK)
	assert.Equal(t, 3, p.Count)
	require.Len(t, p.Items, 3)
	assert.Equal(t, "https://cdn.example.com/a.jpg", p.Items[0].Src)
	assert.Equal(t, "video", p.Items[1].Type)
	assert.Equal(t, "https://image.mux.com/abc/thumbnail.jpg", p.Items[1].Poster)
	assert.Equal(t, "https://cdn.example.com/b.png", p.Items[2].Src)
}

func TestSuccessEmptyHarvestIsStillOK(t *testing.T) {
	p := Success("https://gallery.example.com/feed", nil)
	assert.True(t, p.OK)
	assert.Equal(t, 0, p.Count)
	assert.NotNil(t, p.Items, "items must serialize as [], not null")
}

func TestFailurePayload(t *testing.T) {
	p := Failure("https://nope.invalid", errors.New("navigate https://nope.invalid: timeout"))
	assert.False(t, p.OK)
	assert.Equal(t, 0, p.Count)
	assert.NotNil(t, p.Items)
	assert.Contains(t, p.Error, "timeout")

	p = Failure("https://nope.invalid", nil)
	assert.Equal(t, "unknown error", p.Error)
}

func TestEncodeShape(t *testing.T) {
	p := Success("https://gallery.example.com/feed", []media.Asset{
		{Type: media.TypeImage, CanonicalSrc: "https://cdn.example.com/a.jpg"},
	})
	data, err := Encode(p)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, jsoniter.Unmarshal(data, &decoded))
	assert.Equal(t, true, decoded["ok"])
	assert.NotContains(t, decoded, "error", "error key omitted on success")

	item := decoded["items"].([]interface{})[0].(map[string]interface{})
	assert.NotContains(t, item, "poster", "empty poster omitted")
	assert.Contains(t, item, "width", "zero dimensions still present")
}

func TestWriteToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	p := Failure("https://gallery.example.com/feed", errors.New("boom"))
	require.NoError(t, Write(p, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, len(data) > 0 && data[len(data)-1] == '\n', "payload ends with newline")

	var decoded Payload
	require.NoError(t, jsoniter.Unmarshal(data, &decoded))
	assert.Equal(t, p, decoded)
}
