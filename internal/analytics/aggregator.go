// Package analytics turns raw snapshots and submissions into the three
// persisted aggregates: unified rating, activity heatmap, skill radar.
package analytics

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"cptracker/internal/fetcher"
	"cptracker/internal/platform"
	"cptracker/internal/store"
)

// Store is the slice of persistence the aggregator needs. *store.Store
// satisfies it; tests plug in an in-memory fake.
type Store interface {
	GetRating(ctx context.Context, userID int64) (*store.RatingSnapshot, error)
	UpsertPlatformRating(ctx context.Context, userID int64, p platform.Platform, rating, unified int) error
	DeleteActivityBefore(ctx context.Context, userID int64, cutoff time.Time) error
	UpsertActivityDays(ctx context.Context, days []store.ActivityDay) error
	ReplaceSkills(ctx context.Context, userID int64, tags []store.SkillTag) error
}

type Aggregator struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func New(logger *slog.Logger, st Store) *Aggregator {
	return &Aggregator{
		store:  st,
		logger: logger,
		now:    time.Now,
	}
}

// ApplyRating upserts one platform's rating field and recomputes the unified
// rating. A snapshot without a rating (unrated account) is a no-op.
func (a *Aggregator) ApplyRating(ctx context.Context, userID int64, p platform.Platform, snap *fetcher.Snapshot) error {
	if snap == nil || snap.Rating == nil {
		return nil
	}

	current, err := a.store.GetRating(ctx, userID)
	if err != nil {
		return err
	}

	cf, at := (*int)(nil), (*int)(nil)
	if current != nil {
		cf = current.CFRating
		at = current.ATRating
	}
	switch p {
	case platform.Codeforces:
		cf = snap.Rating
	case platform.AtCoder:
		at = snap.Rating
	}

	unified := unifiedRating(cf, at)
	if err := a.store.UpsertPlatformRating(ctx, userID, p, *snap.Rating, unified); err != nil {
		return err
	}

	a.logger.Info("rating_updated", "user_id", userID, "platform", p.String(),
		"rating", *snap.Rating, "unified", unified)
	return nil
}

// unifiedRating combines the two weighted primary platforms. With both
// positive the result is the rounded weighted sum; with one, that rating
// stands alone; with neither, zero. NowCoder's rating is tracked in the
// snapshot but carries no weight here.
func unifiedRating(cf, at *int) int {
	hasCF := cf != nil && *cf > 0
	hasAT := at != nil && *at > 0

	switch {
	case hasCF && hasAT:
		w := float64(*cf)*platform.Codeforces.Weight() + float64(*at)*platform.AtCoder.Weight()
		return int(math.Round(w))
	case hasCF:
		return *cf
	case hasAT:
		return *at
	default:
		return 0
	}
}

// ApplyActivity merges one platform's submissions into the user's heatmap.
// Each touched day row only has this platform's breakdown key replaced;
// other platforms' counts are preserved and the total recomputed. The call
// is idempotent for a fixed platform and submission set.
func (a *Aggregator) ApplyActivity(ctx context.Context, userID int64, p platform.Platform, submissions []fetcher.Submission) error {
	if len(submissions) == 0 {
		return nil
	}

	cutoff := dateOnly(a.now().AddDate(0, 0, -fetcher.RetentionDays))
	if err := a.store.DeleteActivityBefore(ctx, userID, cutoff); err != nil {
		return err
	}

	counts := make(map[time.Time]int)
	for _, sub := range submissions {
		counts[dateOnly(sub.SubmittedAt)]++
	}

	days := make([]store.ActivityDay, 0, len(counts))
	for day, count := range counts {
		days = append(days, store.ActivityDay{
			UserID:    userID,
			Date:      day,
			Breakdown: map[string]int{p.String(): count},
			Total:     count,
		})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })

	if err := a.store.UpsertActivityDays(ctx, days); err != nil {
		return err
	}

	a.logger.Info("activity_updated", "user_id", userID, "platform", p.String(), "days", len(days))
	return nil
}

// ApplySkills recomputes the user's whole skill radar from accepted tagged
// submissions. Full delete-and-reinsert in one transaction; with no
// qualifying submissions the radar ends up empty rather than stale.
func (a *Aggregator) ApplySkills(ctx context.Context, userID int64, submissions []fetcher.Submission) error {
	type tagAgg struct {
		solved    int
		ratingSum int
		ratingN   int
	}
	byTag := make(map[string]*tagAgg)

	for _, sub := range submissions {
		if !sub.Accepted() || len(sub.Tags) == 0 {
			continue
		}
		for _, tag := range sub.Tags {
			agg := byTag[tag]
			if agg == nil {
				agg = &tagAgg{}
				byTag[tag] = agg
			}
			agg.solved++
			// difficulty-less submissions count toward solved but not the mean
			if sub.ProblemRating != nil {
				agg.ratingSum += *sub.ProblemRating
				agg.ratingN++
			}
		}
	}

	tags := make([]store.SkillTag, 0, len(byTag))
	for tag, agg := range byTag {
		rating := 0.0
		if agg.ratingN > 0 {
			rating = float64(agg.ratingSum) / float64(agg.ratingN)
		}
		tags = append(tags, store.SkillTag{
			UserID:      userID,
			Tag:         tag,
			SolvedCount: agg.solved,
			Rating:      rating,
		})
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Tag < tags[j].Tag })

	if err := a.store.ReplaceSkills(ctx, userID, tags); err != nil {
		return err
	}

	a.logger.Info("skills_updated", "user_id", userID, "tags", len(tags))
	return nil
}

// dateOnly truncates a timestamp to its local calendar date.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
