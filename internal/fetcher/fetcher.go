// Package fetcher talks to the external judge APIs and normalizes their
// incompatible response shapes into snapshots and submission lists.
//
// Fetchers absorb every network, decode, and upstream-error condition at
// this boundary: a snapshot that cannot be fetched comes back nil and a
// submission list comes back empty. Callers never see an error and must not
// try to distinguish "account does not exist" from "upstream hiccup" here.
package fetcher

import (
	"context"
	"time"

	"cptracker/internal/platform"
)

// RetentionDays is the rolling window of raw activity kept per user.
// Submissions older than this are dropped at fetch time and stored activity
// beyond it is purged by the aggregator.
const RetentionDays = 365

// Snapshot is a point-in-time read of a user's platform profile.
type Snapshot struct {
	Handle    string
	Rating    *int
	MaxRating *int
	Rank      string
}

// Submission is one judged attempt, already normalized. It is the
// aggregator's input and is never persisted as-is.
type Submission struct {
	RemoteID      string
	ProblemID     string
	Verdict       string
	Language      string
	SubmittedAt   time.Time
	ProblemRating *int     // nil when the platform does not expose difficulty
	Tags          []string // nil when the platform does not expose tags
}

// Accepted reports whether the verdict counts as a solve. Codeforces uses
// "OK", AtCoder and normalized NowCoder use "AC".
func (s Submission) Accepted() bool {
	return s.Verdict == "OK" || s.Verdict == "AC"
}

// PlatformFetcher is implemented once per supported judge.
type PlatformFetcher interface {
	Platform() platform.Platform

	// FetchSnapshot returns nil when the handle does not exist upstream or
	// the call failed; the two cases are intentionally conflated.
	FetchSnapshot(ctx context.Context, handle string) *Snapshot

	// FetchSubmissions returns the handle's submissions inside the retention
	// window, possibly empty. Failures surface as an empty list.
	FetchSubmissions(ctx context.Context, handle string) []Submission
}

// Registry resolves a fetcher by platform id. Built once at startup.
type Registry map[platform.Platform]PlatformFetcher

func NewRegistry(fetchers ...PlatformFetcher) Registry {
	r := make(Registry, len(fetchers))
	for _, f := range fetchers {
		r[f.Platform()] = f
	}
	return r
}

// Resolve returns nil when the platform has no registered fetcher.
func (r Registry) Resolve(p platform.Platform) PlatformFetcher {
	return r[p]
}

// retentionCutoff is the oldest submission timestamp still kept.
func retentionCutoff(now time.Time) time.Time {
	return now.AddDate(0, 0, -RetentionDays)
}
