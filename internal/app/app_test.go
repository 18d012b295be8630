package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seadexarr/seadexarr/internal/config"
)

const (
	seriesJSON = `[{"id": 1, "title": "Frieren", "tvdbId": 424536, "seriesType": "anime", "monitored": true}]`

	episodesJSON = `[
		{"seasonNumber": 1, "episodeNumber": 1, "monitored": true, "hasFile": false, "episodeFileId": 0},
		{"seasonNumber": 1, "episodeNumber": 2, "monitored": true, "hasFile": false, "episodeFileId": 0}
	]`

	entryJSON = `{"page": 1, "perPage": 30, "totalItems": 1, "items": [{
		"id": "e1", "alID": 154587,
		"expand": {"trs": [
			{"id": "t1", "tracker": "Nyaa", "url": "https://nyaa.si/view/1693872", "infoHash": "ABC",
			 "releaseGroup": "Okay-Subs", "isBest": true, "dualAudio": true,
			 "files": [{"length": 1000, "name": "a.mkv"}]}
		]}
	}]}`

	kometaJSON = `{"17494": {"tvdb_id": 424536, "tvdb_season": 1, "tvdb_epoffset": 0, "anilist_id": 154587}}`
	anidbXML   = `<?xml version="1.0" encoding="UTF-8"?><anime-list></anime-list>`
)

type fixture struct {
	cfg     *config.Config
	added   atomic.Int32
	fetches atomic.Int32
	// hold blocks release index responses until closed when set.
	hold chan struct{}
	hit  chan struct{}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{}
	dir := t.TempDir()

	arr := http.NewServeMux()
	arr.HandleFunc("/api/v3/series", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(seriesJSON))
	})
	arr.HandleFunc("/api/v3/episode", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(episodesJSON))
	})
	arrServer := httptest.NewServer(arr)
	t.Cleanup(arrServer.Close)

	index := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.fetches.Add(1)
		if f.hold != nil {
			f.hit <- struct{}{}
			<-f.hold
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(entryJSON))
	}))
	t.Cleanup(index.Close)

	qbit := http.NewServeMux()
	qbit.HandleFunc("/api/v2/torrents/info", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	qbit.HandleFunc("/api/v2/torrents/add", func(w http.ResponseWriter, r *http.Request) {
		f.added.Add(1)
		_, _ = w.Write([]byte("Ok."))
	})
	qbitServer := httptest.NewServer(qbit)
	t.Cleanup(qbitServer.Close)

	kometaPath := filepath.Join(dir, "anime_ids.json")
	anidbPath := filepath.Join(dir, "anime-list-master.xml")
	require.NoError(t, os.WriteFile(kometaPath, []byte(kometaJSON), 0o600))
	require.NoError(t, os.WriteFile(anidbPath, []byte(anidbXML), 0o600))

	f.cfg = &config.Config{
		Sonarr:      config.ArrConfig{URL: arrServer.URL, APIKey: "k", Category: "sonarr", AnimeOnly: true},
		QBittorrent: config.QBittorrentConfig{URL: qbitServer.URL},
		SeaDex:      config.SeaDexConfig{BaseURL: index.URL, Timeout: 5 * time.Second, MaxAttempts: 1},
		Mappings: config.MappingsConfig{
			CacheDir:     filepath.Join(dir, "cache"),
			CacheDays:    1,
			AnimeIDsURL:  kometaPath,
			AniDBListURL: anidbPath,
		},
		Filter: config.FilterConfig{PublicOnly: true, WantBest: true, PreferDualAudio: true},
		Sync:   config.SyncConfig{Concurrency: 2, HistorySize: 5},
		Ledger: config.LedgerConfig{Path: filepath.Join(dir, "ledger.db")},
	}
	return f
}

func (f *fixture) app(t *testing.T) *App {
	t.Helper()
	a, err := New(f.cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestSync_AcquiresThenIsSatisfied(t *testing.T) {
	f := newFixture(t)
	a := f.app(t)
	ctx := context.Background()

	first, err := a.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Counts.ChosenAuto)
	assert.Equal(t, 1, first.Counts.Submitted)
	assert.Len(t, first.LedgerWrites, 2)
	assert.Equal(t, int32(1), f.added.Load())

	entries, err := a.Ledger().List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "t1", entries[0].ReleaseIndexID)

	second, err := a.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Counts.AlreadySatisfied)
	assert.Empty(t, second.LedgerWrites)
	assert.Equal(t, int32(1), f.added.Load(), "no second submission")

	history := a.History()
	require.Len(t, history, 2)
	assert.Equal(t, second.RunID, history[0].RunID)

	last, ok := a.LastRun()
	require.True(t, ok)
	assert.Equal(t, second.RunID, last.RunID)
}

func TestSync_LedgerSurvivesRestart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := New(f.cfg, zerolog.Nop())
	require.NoError(t, err)
	_, err = a.Sync(ctx)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	reopened := f.app(t)
	summary, err := reopened.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Counts.AlreadySatisfied)
	assert.Equal(t, int32(1), f.added.Load())
}

func TestSync_DryRunLeavesLedgerEmpty(t *testing.T) {
	f := newFixture(t)
	f.cfg.Sync.DryRun = true
	a := f.app(t)
	ctx := context.Background()

	summary, err := a.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, summary.DryRun)
	assert.Equal(t, int32(0), f.added.Load())

	entries, err := a.Ledger().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSync_NoTorrentClientLeavesLedgerEmpty(t *testing.T) {
	f := newFixture(t)
	f.cfg.QBittorrent = config.QBittorrentConfig{}
	a := f.app(t)
	ctx := context.Background()

	summary, err := a.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, summary.DryRun)
	assert.Empty(t, summary.LedgerWrites)

	entries, err := a.Ledger().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSync_RejectsOverlappingRuns(t *testing.T) {
	f := newFixture(t)
	f.hold = make(chan struct{})
	f.hit = make(chan struct{}, 1)
	a := f.app(t)

	done := make(chan error, 1)
	go func() {
		_, err := a.Sync(context.Background())
		done <- err
	}()
	<-f.hit

	_, err := a.Sync(context.Background())
	assert.ErrorIs(t, err, ErrSyncRunning)

	close(f.hold)
	require.NoError(t, <-done)
}

func TestSync_MappingLoadFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	f.cfg.Mappings.AnimeIDsURL = filepath.Join(t.TempDir(), "missing.json")
	a := f.app(t)

	summary, err := a.Sync(context.Background())
	assert.Error(t, err)
	assert.Nil(t, summary)
	assert.Empty(t, a.History())
	assert.Equal(t, int32(0), f.fetches.Load())
}

func TestRefreshMappings_LocalTables(t *testing.T) {
	f := newFixture(t)
	a := f.app(t)

	assert.NoError(t, a.RefreshMappings(context.Background()))
}
