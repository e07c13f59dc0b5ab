// Package sync drives the fetch-aggregate pipeline across every bound
// handle, tolerating any single user/platform failure.
package sync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"cptracker/internal/fetcher"
	"cptracker/internal/platform"
	"cptracker/internal/store"
)

var (
	ErrAlreadyBound    = errors.New("platform already bound for this user")
	ErrNotBound        = errors.New("platform not bound for this user")
	ErrUnknownPlatform = errors.New("unsupported platform")
	ErrHandleNotFound  = errors.New("account not found or unreachable")
)

// syncWorkers bounds the user fan-out during a full sync. Handles belonging
// to one user always run sequentially on the same worker, which keeps the
// per-(user,date) activity writes serialized.
const syncWorkers = 4

// HandleStore is the persistence surface the orchestrator needs.
type HandleStore interface {
	ListAllHandles(ctx context.Context) ([]store.Handle, error)
	ListHandlesByUser(ctx context.Context, userID int64) ([]store.Handle, error)
	HandleExists(ctx context.Context, userID int64, p platform.Platform) (bool, error)
	InsertHandle(ctx context.Context, h store.Handle) error
	DeleteHandle(ctx context.Context, userID int64, p platform.Platform) (bool, error)
	StampHandleFetched(ctx context.Context, userID int64, p platform.Platform, at time.Time) error
	GetRating(ctx context.Context, userID int64) (*store.RatingSnapshot, error)
}

// Aggregator is the analytics surface the pipeline feeds.
type Aggregator interface {
	ApplyRating(ctx context.Context, userID int64, p platform.Platform, snap *fetcher.Snapshot) error
	ApplyActivity(ctx context.Context, userID int64, p platform.Platform, submissions []fetcher.Submission) error
	ApplySkills(ctx context.Context, userID int64, submissions []fetcher.Submission) error
}

// HandleView is what callers of bind/list get back: the stored handle
// decorated with rating data.
type HandleView struct {
	UserID      int64             `json:"user_id"`
	Platform    platform.Platform `json:"platform"`
	Handle      string            `json:"handle"`
	Rating      *int              `json:"rating,omitempty"`
	MaxRating   *int              `json:"max_rating,omitempty"`
	Rank        string            `json:"rank,omitempty"`
	LastFetched *time.Time        `json:"last_fetched,omitempty"`
}

type Orchestrator struct {
	logger   *slog.Logger
	store    HandleStore
	agg      Aggregator
	fetchers fetcher.Registry
	now      func() time.Time

	// dispatch runs bind's submission ingestion off the caller's request;
	// tests swap it for a synchronous call
	dispatch func(fn func())
}

func NewOrchestrator(logger *slog.Logger, st HandleStore, agg Aggregator, fetchers fetcher.Registry) *Orchestrator {
	return &Orchestrator{
		logger:   logger,
		store:    st,
		agg:      agg,
		fetchers: fetchers,
		now:      time.Now,
		dispatch: func(fn func()) { go fn() },
	}
}

// SyncAll re-fetches and re-aggregates every stored handle. Users are fanned
// out across a fixed worker pool; a failing handle is logged and skipped.
func (o *Orchestrator) SyncAll(ctx context.Context) error {
	handles, err := o.store.ListAllHandles(ctx)
	if err != nil {
		return err
	}

	byUser := make(map[int64][]store.Handle)
	order := make([]int64, 0)
	for _, h := range handles {
		if _, seen := byUser[h.UserID]; !seen {
			order = append(order, h.UserID)
		}
		byUser[h.UserID] = append(byUser[h.UserID], h)
	}

	o.logger.Info("sync_all_started", "handles", len(handles), "users", len(order))
	start := o.now()

	userCh := make(chan int64)
	var wg sync.WaitGroup
	for i := 0; i < syncWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for userID := range userCh {
				for _, h := range byUser[userID] {
					select {
					case <-ctx.Done():
						return
					default:
					}
					o.syncHandle(ctx, h)
				}
			}
		}()
	}

	for _, userID := range order {
		select {
		case <-ctx.Done():
			close(userCh)
			wg.Wait()
			return ctx.Err()
		case userCh <- userID:
		}
	}
	close(userCh)
	wg.Wait()

	o.logger.Info("sync_all_finished", "handles", len(handles), "elapsed", o.now().Sub(start).String())
	return nil
}

// SyncOne re-syncs all handles of a single user, sequentially.
func (o *Orchestrator) SyncOne(ctx context.Context, userID int64) error {
	handles, err := o.store.ListHandlesByUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, h := range handles {
		o.syncHandle(ctx, h)
	}
	return nil
}

// syncHandle runs the fetch-aggregate steps for one handle. Every failure is
// contained here so the surrounding batch keeps going.
func (o *Orchestrator) syncHandle(ctx context.Context, h store.Handle) {
	f := o.fetchers.Resolve(h.Platform)
	if f == nil {
		o.logger.Warn("fetcher_not_registered", "platform", h.Platform.String(), "user_id", h.UserID)
		return
	}

	if snap := f.FetchSnapshot(ctx, h.Handle); snap != nil {
		if err := o.agg.ApplyRating(ctx, h.UserID, h.Platform, snap); err != nil {
			o.logger.Error("rating_update_failed", "user_id", h.UserID, "platform", h.Platform.String(), "error", err)
			return
		}
	}

	submissions := f.FetchSubmissions(ctx, h.Handle)
	o.logger.Info("submissions_fetched", "user_id", h.UserID, "platform", h.Platform.String(),
		"handle", h.Handle, "count", len(submissions))

	if len(submissions) > 0 {
		if err := o.agg.ApplyActivity(ctx, h.UserID, h.Platform, submissions); err != nil {
			o.logger.Error("activity_update_failed", "user_id", h.UserID, "platform", h.Platform.String(), "error", err)
			return
		}
		if h.Platform.SuppliesTags() {
			if err := o.agg.ApplySkills(ctx, h.UserID, submissions); err != nil {
				o.logger.Error("skills_update_failed", "user_id", h.UserID, "platform", h.Platform.String(), "error", err)
				return
			}
		}
	}

	if err := o.store.StampHandleFetched(ctx, h.UserID, h.Platform, o.now()); err != nil {
		o.logger.Error("handle_stamp_failed", "user_id", h.UserID, "platform", h.Platform.String(), "error", err)
	}
}

// BindHandle verifies the account upstream, persists the binding and the
// rating, then hands submission ingestion to a background task so the caller
// is not held open for a full-history fetch.
func (o *Orchestrator) BindHandle(ctx context.Context, userID int64, p platform.Platform, handle string) (*HandleView, error) {
	bound, err := o.store.HandleExists(ctx, userID, p)
	if err != nil {
		return nil, err
	}
	if bound {
		return nil, ErrAlreadyBound
	}

	f := o.fetchers.Resolve(p)
	if f == nil {
		return nil, ErrUnknownPlatform
	}

	snap := f.FetchSnapshot(ctx, handle)
	if snap == nil {
		return nil, ErrHandleNotFound
	}

	h := store.Handle{UserID: userID, Platform: p, Handle: handle}
	if err := o.store.InsertHandle(ctx, h); err != nil {
		return nil, err
	}
	if err := o.agg.ApplyRating(ctx, userID, p, snap); err != nil {
		return nil, err
	}

	o.logger.Info("handle_bound", "user_id", userID, "platform", p.String(), "handle", handle)

	o.dispatch(func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		o.ingestSubmissions(bgCtx, h, f)
	})

	return &HandleView{
		UserID:    userID,
		Platform:  p,
		Handle:    handle,
		Rating:    snap.Rating,
		MaxRating: snap.MaxRating,
		Rank:      snap.Rank,
	}, nil
}

// ingestSubmissions is bind's deferred half: full-history fetch plus the
// activity and skill updates, then the last-fetched stamp.
func (o *Orchestrator) ingestSubmissions(ctx context.Context, h store.Handle, f fetcher.PlatformFetcher) {
	submissions := f.FetchSubmissions(ctx, h.Handle)
	o.logger.Info("bind_ingestion_fetched", "user_id", h.UserID, "platform", h.Platform.String(), "count", len(submissions))

	if len(submissions) > 0 {
		if err := o.agg.ApplyActivity(ctx, h.UserID, h.Platform, submissions); err != nil {
			o.logger.Error("bind_activity_failed", "user_id", h.UserID, "platform", h.Platform.String(), "error", err)
			return
		}
		if h.Platform.SuppliesTags() {
			if err := o.agg.ApplySkills(ctx, h.UserID, submissions); err != nil {
				o.logger.Error("bind_skills_failed", "user_id", h.UserID, "platform", h.Platform.String(), "error", err)
				return
			}
		}
	}

	if err := o.store.StampHandleFetched(ctx, h.UserID, h.Platform, o.now()); err != nil {
		o.logger.Error("bind_stamp_failed", "user_id", h.UserID, "platform", h.Platform.String(), "error", err)
	}
}

// UnbindHandle removes the binding; aggregates are left to age out on the
// next sync of the user's remaining platforms.
func (o *Orchestrator) UnbindHandle(ctx context.Context, userID int64, p platform.Platform) error {
	deleted, err := o.store.DeleteHandle(ctx, userID, p)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotBound
	}
	o.logger.Info("handle_unbound", "user_id", userID, "platform", p.String())
	return nil
}

// ListHandles reads the user's bindings decorated with stored ratings. No
// external calls are made here.
func (o *Orchestrator) ListHandles(ctx context.Context, userID int64) ([]HandleView, error) {
	handles, err := o.store.ListHandlesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	rating, err := o.store.GetRating(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]HandleView, 0, len(handles))
	for _, h := range handles {
		v := HandleView{
			UserID:      h.UserID,
			Platform:    h.Platform,
			Handle:      h.Handle,
			LastFetched: h.LastFetched,
		}
		if rating != nil {
			v.Rating = rating.RatingFor(h.Platform)
		}
		views = append(views, v)
	}
	return views, nil
}
