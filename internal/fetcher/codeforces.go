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

type Codeforces struct {
	apiURL  string
	limiter *Limiter
	client  *http.Client
	logger  *slog.Logger
	now     func() time.Time
}

type cfUserInfoResponse struct {
	Status string `json:"status"`
	Result []struct {
		Handle    string `json:"handle"`
		Rating    *int   `json:"rating"`
		MaxRating *int   `json:"maxRating"`
		Rank      string `json:"rank"`
	} `json:"result"`
}

type cfSubmissionResponse struct {
	Status string `json:"status"`
	Result []struct {
		ID                  int64  `json:"id"`
		CreationTimeSeconds *int64 `json:"creationTimeSeconds"`
		ProgrammingLanguage string `json:"programmingLanguage"`
		Verdict             string `json:"verdict"`
		Problem             *struct {
			ContestID *int     `json:"contestId"`
			Index     string   `json:"index"`
			Rating    *int     `json:"rating"`
			Tags      []string `json:"tags"`
		} `json:"problem"`
	} `json:"result"`
}

func NewCodeforces(logger *slog.Logger, apiURL string, limiter *Limiter) *Codeforces {
	return &Codeforces{
		apiURL:  apiURL,
		limiter: limiter,
		logger:  logger,
		client:  &http.Client{Timeout: 10 * time.Second},
		now:     time.Now,
	}
}

func (f *Codeforces) Platform() platform.Platform {
	return platform.Codeforces
}

func (f *Codeforces) FetchSnapshot(ctx context.Context, handle string) *Snapshot {
	if err := f.limiter.Acquire(ctx); err != nil {
		return nil
	}

	reqURL := fmt.Sprintf("%s/user.info?handles=%s", f.apiURL, url.QueryEscape(handle))

	var resp cfUserInfoResponse
	if err := f.getJSON(ctx, reqURL, &resp); err != nil {
		f.logger.Warn("cf_user_info_failed", "handle", handle, "error", err)
		return nil
	}

	if resp.Status != "OK" || len(resp.Result) == 0 {
		f.logger.Warn("cf_user_not_found", "handle", handle, "status", resp.Status)
		return nil
	}

	u := resp.Result[0]
	return &Snapshot{
		Handle:    u.Handle,
		Rating:    u.Rating,
		MaxRating: u.MaxRating,
		Rank:      u.Rank,
	}
}

func (f *Codeforces) FetchSubmissions(ctx context.Context, handle string) []Submission {
	if err := f.limiter.Acquire(ctx); err != nil {
		return nil
	}

	// unbounded fetch; everything outside the retention window is dropped here
	reqURL := fmt.Sprintf("%s/user.status?handle=%s", f.apiURL, url.QueryEscape(handle))
	cutoff := retentionCutoff(f.now())

	var resp cfSubmissionResponse
	if err := f.getJSON(ctx, reqURL, &resp); err != nil {
		f.logger.Warn("cf_submissions_failed", "handle", handle, "error", err)
		return nil
	}
	if resp.Status != "OK" {
		f.logger.Warn("cf_submissions_bad_status", "handle", handle, "status", resp.Status)
		return nil
	}

	submissions := make([]Submission, 0, len(resp.Result))
	for _, item := range resp.Result {
		if item.CreationTimeSeconds == nil || item.Problem == nil {
			continue
		}
		submittedAt := time.Unix(*item.CreationTimeSeconds, 0)
		if submittedAt.Before(cutoff) {
			continue
		}

		// gym and other contest-less submissions get a synthetic prefix
		var problemID string
		if item.Problem.ContestID != nil {
			problemID = fmt.Sprintf("%d%s", *item.Problem.ContestID, item.Problem.Index)
		} else {
			problemID = "gym_" + item.Problem.Index
		}

		submissions = append(submissions, Submission{
			RemoteID:      fmt.Sprintf("%d", item.ID),
			ProblemID:     problemID,
			Verdict:       item.Verdict,
			Language:      item.ProgrammingLanguage,
			SubmittedAt:   submittedAt,
			ProblemRating: item.Problem.Rating,
			Tags:          item.Problem.Tags,
		})
	}

	return submissions
}

func (f *Codeforces) getJSON(ctx context.Context, reqURL string, out interface{}) error {
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
