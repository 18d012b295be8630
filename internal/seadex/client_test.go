package seadex

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/seadexarr/seadexarr/internal/retry"
)

const entryResponse = `{
  "page": 1, "perPage": 30, "totalItems": 1,
  "items": [{
    "id": "e1", "alID": 21519, "incomplete": false, "notes": "",
    "expand": {"trs": [
      {"id": "t1", "tracker": "Nyaa", "url": "https://nyaa.si/view/1693872", "infoHash": "ABCDEF",
       "releaseGroup": "Okay-Subs", "isBest": true, "dualAudio": false,
       "files": [{"length": 1000, "name": "a.mkv"}, {"length": 500, "name": "b.mkv"}]},
      {"id": "t2", "tracker": "AB", "url": "/torrents.php?id=1", "infoHash": "<redacted>",
       "releaseGroup": "Kawaiika", "isBest": false, "dualAudio": true,
       "files": [{"length": 2000, "name": "c.mkv"}]}
    ]}
  }]
}`

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(ClientConfig{
		BaseURL: server.URL,
		Retry: retry.Config{
			InitialDelay: time.Millisecond,
			MaxDelay:     2 * time.Millisecond,
			MaxAttempts:  3,
			Multiplier:   2,
		},
		Logger: zerolog.Nop(),
	})
}

func TestFetch_ParsesCandidates(t *testing.T) {
	var gotFilter, gotExpand string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != entriesPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotFilter = r.URL.Query().Get("filter")
		gotExpand = r.URL.Query().Get("expand")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(entryResponse))
	}))

	candidates, err := client.Fetch(context.Background(), 21519)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if gotFilter != "(alID=21519)" || gotExpand != "trs" {
		t.Errorf("query = filter %q expand %q", gotFilter, gotExpand)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}

	nyaa := candidates[0]
	if nyaa.ID != "t1" || nyaa.IndexID != 21519 || !nyaa.IsBest || nyaa.IsDualAudio || !nyaa.IsPublic {
		t.Errorf("unexpected nyaa candidate: %+v", nyaa)
	}
	if nyaa.Size != 1500 || nyaa.FileCount != 2 {
		t.Errorf("size/files = %d/%d, want 1500/2", nyaa.Size, nyaa.FileCount)
	}
	if nyaa.InfoHash != "abcdef" {
		t.Errorf("info hash = %q, want lower-cased", nyaa.InfoHash)
	}
	if nyaa.EntryURL != client.EntryURL(21519) {
		t.Errorf("entry url = %q", nyaa.EntryURL)
	}

	ab := candidates[1]
	if ab.IsPublic {
		t.Error("AB should be private")
	}
	if ab.InfoHash != "" {
		t.Errorf("redacted hash should be dropped, got %q", ab.InfoHash)
	}
	if ab.URL != client.baseURL+"/torrents.php?id=1" {
		t.Errorf("relative url not anchored: %q", ab.URL)
	}
}

func TestFetch_EmptyEntryIsNotAnError(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"page":1,"perPage":30,"totalItems":0,"items":[]}`))
	}))

	candidates, err := client.Fetch(context.Background(), 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if candidates == nil || len(candidates) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", candidates)
	}
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls int32
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(entryResponse))
	}))

	candidates, err := client.Fetch(context.Background(), 21519)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(candidates) != 2 {
		t.Errorf("expected 2 candidates, got %d", len(candidates))
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestFetch_RateLimitedIsRetriedThenUnavailable(t *testing.T) {
	var calls int32
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.Fetch(context.Background(), 5)
	if !errors.Is(err, ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
	if !IsRateLimited(err) {
		t.Errorf("expected rate limited classification, got %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestFetch_ClientErrorFailsImmediately(t *testing.T) {
	var calls int32
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad filter", http.StatusBadRequest)
	}))

	_, err := client.Fetch(context.Background(), 5)
	if !errors.Is(err, ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 StatusError, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

type countingGate struct{ calls int32 }

func (g *countingGate) Do(ctx context.Context, fn func(context.Context) error) error {
	atomic.AddInt32(&g.calls, 1)
	return fn(ctx)
}

func TestFetch_EveryAttemptPassesTheGate(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer server.Close()

	gate := &countingGate{}
	client := NewClient(ClientConfig{
		BaseURL: server.URL,
		Gate:    gate,
		Retry:   retry.Config{InitialDelay: time.Millisecond, MaxAttempts: 3, Multiplier: 1},
		Logger:  zerolog.Nop(),
	})

	if _, err := client.Fetch(context.Background(), 9); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gate.calls != 2 {
		t.Errorf("gate calls = %d, want 2", gate.calls)
	}
}

func TestIsPublicTracker(t *testing.T) {
	for name, want := range map[string]bool{
		"Nyaa": true, "AnimeTosho": true, "AniDex": true, "RuTracker": true,
		"AB": false, "BeyondHD": false, "OtherPrivate": false,
	} {
		if got := IsPublicTracker(name); got != want {
			t.Errorf("IsPublicTracker(%q) = %v, want %v", name, got, want)
		}
	}
}
