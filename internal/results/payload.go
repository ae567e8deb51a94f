// internal/results/payload.go
package results

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/rclaycock/Cosmos-scraper-mk-2/internal/media"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Item is one asset in the output payload.
type Item struct {
	Type   string `json:"type"`
	Src    string `json:"src"`
	Width  int64  `json:"width"`
	Height int64  `json:"height"`
	Poster string `json:"poster,omitempty"`
}

// Payload is the run's single output document.
type Payload struct {
	OK     bool   `json:"ok"`
	Source string `json:"source"`
	Count  int    `json:"count"`
	Items  []Item `json:"items"`
	Error  string `json:"error,omitempty"`
}

// Success builds the payload for a completed harvest, preserving the final
// visual order of assets.
func Success(source string, assets []media.Asset) Payload {
	items := make([]Item, len(assets))
	for i, a := range assets {
		items[i] = Item{
			Type:   string(a.Type),
			Src:    a.CanonicalSrc,
			Width:  a.Width,
			Height: a.Height,
			Poster: a.Poster,
		}
	}
	return Payload{OK: true, Source: source, Count: len(items), Items: items}
}

// Failure builds the payload for a run that died before producing output.
func Failure(source string, err error) Payload {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Payload{OK: false, Source: source, Count: 0, Items: []Item{}, Error: msg}
}

// Encode renders the payload as indented JSON.
func Encode(p Payload) ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// Write emits the payload to path, or stdout when path is empty. Logs go to
// stderr, so stdout stays machine-readable for downstream schedulers.
func Write(p Payload, path string) error {
	data, err := Encode(p)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write payload to %s: %w", path, err)
	}
	return nil
}
