package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"cptracker/internal/platform"
)

// AtCoder reads contest history from the official site and submissions from
// the kenkoooo mirror API. Neither endpoint exposes problem tags or
// difficulty, so submissions carry no skill metadata.
type AtCoder struct {
	apiURL     string // kenkoooo submissions API
	historyURL string // atcoder.jp, for /users/{handle}/history/json
	limiter    *Limiter
	client     *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

type atcoderHistoryEntry struct {
	NewRating int `json:"NewRating"`
}

type atcoderSubmission struct {
	ID          int64  `json:"id"`
	EpochSecond *int64 `json:"epoch_second"`
	ProblemID   string `json:"problem_id"`
	Language    string `json:"language"`
	Result      string `json:"result"`
}

func NewAtCoder(logger *slog.Logger, apiURL, historyURL string, limiter *Limiter) *AtCoder {
	return &AtCoder{
		apiURL:     apiURL,
		historyURL: historyURL,
		limiter:    limiter,
		logger:     logger,
		client:     &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
}

func (f *AtCoder) Platform() platform.Platform {
	return platform.AtCoder
}

func (f *AtCoder) FetchSnapshot(ctx context.Context, handle string) *Snapshot {
	if err := f.limiter.Acquire(ctx); err != nil {
		return nil
	}

	// the latest history entry holds the current rating
	reqURL := fmt.Sprintf("%s/users/%s/history/json", f.historyURL, url.PathEscape(handle))

	var history []atcoderHistoryEntry
	if err := f.getJSON(ctx, reqURL, &history); err != nil {
		f.logger.Warn("atcoder_history_failed", "handle", handle, "error", err)
		return nil
	}
	if len(history) == 0 {
		f.logger.Warn("atcoder_user_no_history", "handle", handle)
		return nil
	}

	rating := history[len(history)-1].NewRating
	maxRating := 0
	for _, e := range history {
		if e.NewRating > maxRating {
			maxRating = e.NewRating
		}
	}

	return &Snapshot{
		Handle:    handle,
		Rating:    &rating,
		MaxRating: &maxRating,
	}
}

func (f *AtCoder) FetchSubmissions(ctx context.Context, handle string) []Submission {
	if err := f.limiter.Acquire(ctx); err != nil {
		return nil
	}

	reqURL := fmt.Sprintf("%s/user/submissions?user=%s", f.apiURL, url.QueryEscape(handle))
	cutoff := retentionCutoff(f.now())

	var results []atcoderSubmission
	if err := f.getJSON(ctx, reqURL, &results); err != nil {
		f.logger.Warn("atcoder_submissions_failed", "handle", handle, "error", err)
		return nil
	}

	submissions := make([]Submission, 0, len(results))
	for _, item := range results {
		if item.EpochSecond == nil {
			continue
		}
		submittedAt := time.Unix(*item.EpochSecond, 0)
		if submittedAt.Before(cutoff) {
			continue
		}

		submissions = append(submissions, Submission{
			RemoteID:    fmt.Sprintf("%d", item.ID),
			ProblemID:   item.ProblemID,
			Verdict:     item.Result, // "AC", "WA", ...
			Language:    item.Language,
			SubmittedAt: submittedAt,
			// no tags or difficulty; skill radar skips this platform
		})
	}

	return submissions
}

func (f *AtCoder) getJSON(ctx context.Context, reqURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
