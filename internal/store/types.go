package store

import (
	"time"

	"cptracker/internal/platform"
)

// Handle binds a user to an external account name on one platform.
// Unique per (UserID, Platform); only the sync pipeline touches LastFetched.
type Handle struct {
	UserID      int64
	Platform    platform.Platform
	Handle      string
	LastFetched *time.Time
}

// RatingSnapshot is the single per-user rating row. Per-platform fields stay
// nil until that platform is bound and fetched at least once.
type RatingSnapshot struct {
	UserID        int64
	CFRating      *int
	ATRating      *int
	NKRating      *int
	UnifiedRating int
	UpdatedAt     time.Time
}

// RatingFor reads the rating field belonging to one platform.
func (r *RatingSnapshot) RatingFor(p platform.Platform) *int {
	switch p {
	case platform.Codeforces:
		return r.CFRating
	case platform.AtCoder:
		return r.ATRating
	case platform.NowCoder:
		return r.NKRating
	}
	return nil
}

// ActivityDay is one calendar day of a user's heatmap. Breakdown maps
// platform id to submission count; Total is always the sum of Breakdown.
type ActivityDay struct {
	UserID    int64
	Date      time.Time // date precision, midnight UTC
	Breakdown map[string]int
	Total     int
}

// SkillTag is one spoke of a user's skill radar, derived only from accepted
// tagged submissions. The set for a user is always replaced whole.
type SkillTag struct {
	UserID      int64
	Tag         string
	SolvedCount int
	Rating      float64 // mean difficulty over submissions that expose one
}
