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

// nowcoderACStatus is the status code NowCoder uses for an accepted run.
const nowcoderACStatus = 5

// NowCoder scrapes the contest profile endpoints. They answer JSON but
// expect browser-looking headers. No tags or difficulty are exposed.
type NowCoder struct {
	apiURL  string
	limiter *Limiter
	client  *http.Client
	logger  *slog.Logger
	now     func() time.Time
}

type nowcoderUserResponse struct {
	Code *int `json:"code"`
	Data *struct {
		Rating    *int   `json:"rating"`
		MaxRating *int   `json:"maxRating"`
		Rank      string `json:"rank"`
	} `json:"data"`
}

type nowcoderSubmissionResponse struct {
	Code *int `json:"code"`
	Data *struct {
		List []struct {
			SubmissionID  json.Number `json:"submissionId"`
			ProblemID     json.Number `json:"problemId"`
			Status        int         `json:"status"`
			StatusMessage string      `json:"statusMessage"`
			Language      string      `json:"language"`
			SubmitTime    *int64      `json:"submitTime"` // epoch millis
		} `json:"list"`
	} `json:"data"`
}

func NewNowCoder(logger *slog.Logger, apiURL string, limiter *Limiter) *NowCoder {
	return &NowCoder{
		apiURL:  apiURL,
		limiter: limiter,
		logger:  logger,
		client:  &http.Client{Timeout: 10 * time.Second},
		now:     time.Now,
	}
}

func (f *NowCoder) Platform() platform.Platform {
	return platform.NowCoder
}

func (f *NowCoder) FetchSnapshot(ctx context.Context, handle string) *Snapshot {
	if err := f.limiter.Acquire(ctx); err != nil {
		return nil
	}

	reqURL := fmt.Sprintf("%s/acm-heavy/acm/contest/profile-info?uid=%s", f.apiURL, url.QueryEscape(handle))

	var resp nowcoderUserResponse
	if err := f.getJSON(ctx, reqURL, &resp); err != nil {
		f.logger.Warn("nowcoder_user_info_failed", "handle", handle, "error", err)
		return nil
	}

	if resp.Code == nil || *resp.Code != 0 || resp.Data == nil {
		f.logger.Warn("nowcoder_user_not_found", "handle", handle)
		return nil
	}

	return &Snapshot{
		Handle:    handle,
		Rating:    resp.Data.Rating,
		MaxRating: resp.Data.MaxRating,
		Rank:      resp.Data.Rank,
	}
}

func (f *NowCoder) FetchSubmissions(ctx context.Context, handle string) []Submission {
	if err := f.limiter.Acquire(ctx); err != nil {
		return nil
	}

	reqURL := fmt.Sprintf("%s/acm/contest/profile/%s/practice-coding?pageSize=500", f.apiURL, url.PathEscape(handle))
	cutoff := retentionCutoff(f.now())

	var resp nowcoderSubmissionResponse
	if err := f.getJSON(ctx, reqURL, &resp); err != nil {
		f.logger.Warn("nowcoder_submissions_failed", "handle", handle, "error", err)
		return nil
	}
	if resp.Code == nil || *resp.Code != 0 || resp.Data == nil {
		f.logger.Warn("nowcoder_submissions_bad_code", "handle", handle)
		return nil
	}

	submissions := make([]Submission, 0, len(resp.Data.List))
	for _, item := range resp.Data.List {
		if item.SubmitTime == nil {
			continue
		}
		submittedAt := time.UnixMilli(*item.SubmitTime)
		if submittedAt.Before(cutoff) {
			continue
		}

		verdict := item.StatusMessage
		if item.Status == nowcoderACStatus {
			verdict = "AC"
		}

		submissions = append(submissions, Submission{
			RemoteID:    item.SubmissionID.String(),
			ProblemID:   item.ProblemID.String(),
			Verdict:     verdict,
			Language:    item.Language,
			SubmittedAt: submittedAt,
		})
	}

	return submissions
}

func (f *NowCoder) getJSON(ctx context.Context, reqURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

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
