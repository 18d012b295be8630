package library

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/seadexarr/seadexarr/internal/media"
)

type staticProvider struct {
	entries []Entry
	err     error
}

func (p staticProvider) ListTitlesNeedingSync(context.Context) ([]Entry, error) {
	return p.entries, p.err
}

func TestMulti_ConcatenatesAndSortsByTitle(t *testing.T) {
	m := Multi{
		staticProvider{entries: []Entry{{App: AppSonarr, ID: 1, Title: "Vinland Saga"}}},
		staticProvider{entries: []Entry{{App: AppRadarr, ID: 2, Title: "akira"}, {App: AppRadarr, ID: 3, Title: "Perfect Blue"}}},
	}

	entries, err := m.ListTitlesNeedingSync(context.Background())
	if err != nil {
		t.Fatalf("ListTitlesNeedingSync: %v", err)
	}

	want := []string{"akira", "Perfect Blue", "Vinland Saga"}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, title := range want {
		if entries[i].Title != title {
			t.Errorf("entries[%d] = %q, want %q", i, entries[i].Title, title)
		}
	}
}

func TestMulti_PropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := Multi{staticProvider{err: boom}}.ListTitlesNeedingSync(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("expected provider error, got %v", err)
	}
}

func TestEntry_LibraryIDAndKind(t *testing.T) {
	e := Entry{App: AppRadarr, ID: 42}
	if e.LibraryID() != "radarr:42" {
		t.Errorf("LibraryID() = %q", e.LibraryID())
	}
	if e.Kind() != media.KindMovie {
		t.Errorf("Kind() = %q", e.Kind())
	}
	if AppSonarr.Kind() != media.KindSeries {
		t.Errorf("sonarr kind = %q", AppSonarr.Kind())
	}
}

func TestAPIClient_GetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"appName":"Sonarr"}`))
	}))
	defer server.Close()

	var status struct {
		AppName string `json:"appName"`
	}

	client := NewAPIClient(AppSonarr, ClientConfig{URL: server.URL + "/", APIKey: "secret", Logger: zerolog.Nop()})
	if err := client.GetJSON(context.Background(), "/api/v3/system/status", &status); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if status.AppName != "Sonarr" {
		t.Errorf("appName = %q", status.AppName)
	}

	bad := NewAPIClient(AppSonarr, ClientConfig{URL: server.URL, APIKey: "wrong", Logger: zerolog.Nop()})
	err := bad.GetJSON(context.Background(), "/api/v3/system/status", &status)
	if !errors.Is(err, ErrRequestFailed) {
		t.Errorf("expected ErrRequestFailed, got %v", err)
	}
}
