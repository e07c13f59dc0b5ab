package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNowCoder_FetchSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/acm-heavy/acm/contest/profile-info" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("uid"); got != "12345" {
			t.Errorf("unexpected uid %q", got)
		}
		fmt.Fprint(w, `{"code":0,"msg":"OK","data":{"rating":1650,"maxRating":1700,"rank":"3201"}}`)
	}))
	defer srv.Close()

	f := NewNowCoder(testLogger(), srv.URL, fastLimiter())
	snap := f.FetchSnapshot(context.Background(), "12345")

	if snap == nil {
		t.Fatal("expected snapshot, got nil")
	}
	if snap.Rating == nil || *snap.Rating != 1650 {
		t.Errorf("rating = %v, want 1650", snap.Rating)
	}
	if snap.Rank != "3201" {
		t.Errorf("rank = %q", snap.Rank)
	}
}

func TestNowCoder_FetchSnapshot_NonZeroCodeIsAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":1,"msg":"user not exist"}`)
	}))
	defer srv.Close()

	f := NewNowCoder(testLogger(), srv.URL, fastLimiter())
	if snap := f.FetchSnapshot(context.Background(), "0"); snap != nil {
		t.Errorf("expected nil snapshot, got %+v", snap)
	}
}

func TestNowCoder_FetchSubmissions_VerdictNormalization(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	recentMillis := now.AddDate(0, 0, -5).UnixMilli()
	ancientMillis := now.AddDate(0, 0, -400).UnixMilli()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"code":0,"data":{"list":[
			{"submissionId":900,"problemId":201,"status":5,"statusMessage":"答案正确","language":"C++","submitTime":%d},
			{"submissionId":901,"problemId":202,"status":4,"statusMessage":"答案错误","language":"C++","submitTime":%d},
			{"submissionId":902,"problemId":203,"status":5,"statusMessage":"答案正确","language":"C++","submitTime":%d}
		]}}`, recentMillis, recentMillis, ancientMillis)
	}))
	defer srv.Close()

	f := NewNowCoder(testLogger(), srv.URL, fastLimiter())
	f.now = func() time.Time { return now }

	subs := f.FetchSubmissions(context.Background(), "12345")

	if len(subs) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(subs))
	}
	// status 5 normalizes to AC, everything else keeps the message
	if subs[0].Verdict != "AC" || !subs[0].Accepted() {
		t.Errorf("accepted run not normalized: %+v", subs[0])
	}
	if subs[1].Verdict != "答案错误" || subs[1].Accepted() {
		t.Errorf("rejected run mishandled: %+v", subs[1])
	}
	if subs[0].ProblemID != "201" {
		t.Errorf("problem id = %q, want 201", subs[0].ProblemID)
	}
}
