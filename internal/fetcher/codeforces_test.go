package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastLimiter() *Limiter {
	return NewLimiter(10000)
}

func TestCodeforces_FetchSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user.info" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("handles"); got != "tourist" {
			t.Errorf("unexpected handles param %q", got)
		}
		fmt.Fprint(w, `{"status":"OK","result":[{"handle":"tourist","rating":3800,"maxRating":4009,"rank":"legendary grandmaster"}]}`)
	}))
	defer srv.Close()

	f := NewCodeforces(testLogger(), srv.URL, fastLimiter())
	snap := f.FetchSnapshot(context.Background(), "tourist")

	if snap == nil {
		t.Fatal("expected snapshot, got nil")
	}
	if snap.Handle != "tourist" {
		t.Errorf("handle = %q", snap.Handle)
	}
	if snap.Rating == nil || *snap.Rating != 3800 {
		t.Errorf("rating = %v", snap.Rating)
	}
	if snap.MaxRating == nil || *snap.MaxRating != 4009 {
		t.Errorf("max rating = %v", snap.MaxRating)
	}
	if snap.Rank != "legendary grandmaster" {
		t.Errorf("rank = %q", snap.Rank)
	}
}

func TestCodeforces_FetchSnapshot_AbsentCases(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"user not found", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status":"FAILED","comment":"handles: User not found"}`)
		}},
		{"empty result", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status":"OK","result":[]}`)
		}},
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"garbage body", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `not json at all`)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			f := NewCodeforces(testLogger(), srv.URL, fastLimiter())
			if snap := f.FetchSnapshot(context.Background(), "nobody"); snap != nil {
				t.Errorf("expected nil snapshot, got %+v", snap)
			}
		})
	}
}

func TestCodeforces_FetchSubmissions_RetentionAndNormalization(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	recent := now.AddDate(0, 0, -10).Unix()
	ancient := now.AddDate(0, 0, -400).Unix()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"status":"OK","result":[
			{"id":1,"creationTimeSeconds":%d,"programmingLanguage":"GNU C++17","verdict":"OK",
			 "problem":{"contestId":1500,"index":"A","rating":800,"tags":["math","greedy"]}},
			{"id":2,"creationTimeSeconds":%d,"programmingLanguage":"Python 3","verdict":"WRONG_ANSWER",
			 "problem":{"contestId":1500,"index":"B"}},
			{"id":3,"creationTimeSeconds":%d,"programmingLanguage":"GNU C++17","verdict":"OK",
			 "problem":{"index":"C","rating":2100,"tags":["dp"]}},
			{"id":4,"creationTimeSeconds":%d,"programmingLanguage":"GNU C++17","verdict":"OK",
			 "problem":{"contestId":900,"index":"D"}},
			{"id":5,"programmingLanguage":"GNU C++17","verdict":"OK",
			 "problem":{"contestId":901,"index":"E"}}
		]}`, recent, recent, recent, ancient)
	}))
	defer srv.Close()

	f := NewCodeforces(testLogger(), srv.URL, fastLimiter())
	f.now = func() time.Time { return now }

	subs := f.FetchSubmissions(context.Background(), "someone")

	if len(subs) != 3 {
		t.Fatalf("expected 3 submissions inside retention window, got %d", len(subs))
	}

	cutoff := now.AddDate(0, 0, -RetentionDays)
	for _, s := range subs {
		if s.SubmittedAt.Before(cutoff) {
			t.Errorf("submission %s older than retention cutoff", s.RemoteID)
		}
	}

	if subs[0].ProblemID != "1500A" {
		t.Errorf("problem id = %q, want 1500A", subs[0].ProblemID)
	}
	if len(subs[0].Tags) != 2 || subs[0].ProblemRating == nil || *subs[0].ProblemRating != 800 {
		t.Errorf("tags/rating not carried: %+v", subs[0])
	}

	if subs[1].Tags != nil || subs[1].ProblemRating != nil {
		t.Errorf("absent metadata must stay absent: %+v", subs[1])
	}

	// contest-less problem gets the synthetic prefix
	if subs[2].ProblemID != "gym_C" {
		t.Errorf("problem id = %q, want gym_C", subs[2].ProblemID)
	}
}

func TestCodeforces_FetchSubmissions_UpstreamFailureIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewCodeforces(testLogger(), srv.URL, fastLimiter())
	if subs := f.FetchSubmissions(context.Background(), "someone"); len(subs) != 0 {
		t.Errorf("expected empty list on upstream failure, got %d", len(subs))
	}
}
