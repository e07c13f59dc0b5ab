// Package platform defines the closed set of supported judge platforms and
// the per-platform dispatch tables the rest of the pipeline keys off.
package platform

import (
	"fmt"
	"strings"
)

type Platform string

const (
	Codeforces Platform = "CODEFORCES"
	AtCoder    Platform = "ATCODER"
	NowCoder   Platform = "NOWCODER"
)

// info is the single source of truth for per-platform behavior. Adding a
// platform means adding one row here; everything else dispatches off it.
type info struct {
	ratingColumn string  // column in rating_snapshots holding this platform's rating
	suppliesTags bool    // public API exposes problem tags/difficulty
	weight       float64 // share of the unified rating; zero means excluded
}

var table = map[Platform]info{
	Codeforces: {ratingColumn: "cf_rating", suppliesTags: true, weight: 0.7},
	AtCoder:    {ratingColumn: "at_rating", suppliesTags: false, weight: 0.3},
	NowCoder:   {ratingColumn: "nk_rating", suppliesTags: false, weight: 0},
}

// All lists every supported platform in a stable order.
func All() []Platform {
	return []Platform{Codeforces, AtCoder, NowCoder}
}

// Parse normalizes a user-supplied platform key.
func Parse(s string) (Platform, error) {
	p := Platform(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := table[p]; !ok {
		return "", fmt.Errorf("unsupported platform: %q", s)
	}
	return p, nil
}

func (p Platform) Valid() bool {
	_, ok := table[p]
	return ok
}

func (p Platform) String() string {
	return string(p)
}

// RatingColumn names the rating_snapshots column this platform updates.
func (p Platform) RatingColumn() string {
	return table[p].ratingColumn
}

// SuppliesTags reports whether submissions from this platform carry tag and
// difficulty metadata usable for the skill radar.
func (p Platform) SuppliesTags() bool {
	return table[p].suppliesTags
}

// Weight is this platform's share of the unified rating. NowCoder is tracked
// in the snapshot but carries zero weight; see the rating policy note in
// DESIGN.md before changing this.
func (p Platform) Weight() float64 {
	return table[p].weight
}
