// internal/media/finalize.go
package media

import "sort"

// Finalize turns the reconciled entries into the final ordered asset list.
// Positioned entries sort by (top, left) ascending, mirroring the page's
// visual layout. Entries only ever seen on the network channel have no
// visual rank and are appended afterwards in first-discovered order.
//
// Identity is already unique per entry, so this is a single deterministic
// pass with no further dedup. The reverse flag is a post-processing step for
// consumers that expect newest-first feeds; it is never the default.
func Finalize(entries []Entry, reverse bool) []Asset {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Positioned != b.Positioned {
			return a.Positioned
		}
		if a.Positioned {
			if a.Pos == b.Pos {
				return a.Seq < b.Seq
			}
			return a.Pos.Before(b.Pos)
		}
		return a.Seq < b.Seq
	})

	assets := make([]Asset, len(sorted))
	for i, e := range sorted {
		assets[i] = e.Asset
	}
	if reverse {
		for i, j := 0, len(assets)-1; i < j; i, j = i+1, j-1 {
			assets[i], assets[j] = assets[j], assets[i]
		}
	}
	return assets
}
