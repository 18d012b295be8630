package mapping

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

	"github.com/seadexarr/seadexarr/internal/retry"
)

type tableServer struct {
	*httptest.Server
	hits int32
	fail atomic.Bool
}

func newTableServer(t *testing.T) *tableServer {
	t.Helper()
	ts := &tableServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&ts.hits, 1)
		if ts.fail.Load() {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch r.URL.Path {
		case "/anime_ids.json":
			_, _ = w.Write([]byte(kometaJSON))
		case "/anime-list-master.xml":
			_, _ = w.Write([]byte(anidbXML))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func testLoader(ts *tableServer, dir string, cacheDays int) *Loader {
	return NewLoader(LoaderConfig{
		CacheDir:     dir,
		CacheDays:    cacheDays,
		AnimeIDsURL:  ts.URL + "/anime_ids.json",
		AniDBListURL: ts.URL + "/anime-list-master.xml",
		Retry:        retry.Config{InitialDelay: time.Millisecond, MaxAttempts: 1, Multiplier: 1},
		Logger:       zerolog.Nop(),
	})
}

func TestLoader_DownloadsThenUsesCache(t *testing.T) {
	ts := newTableServer(t)
	dir := t.TempDir()
	loader := testLoader(ts, dir, 1)

	tables, err := loader.Load(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 7, tables.Kometa.Len())
	assert.Equal(t, 4, tables.AniDB.Len())
	assert.Nil(t, tables.Overrides)
	assert.FileExists(t, filepath.Join(dir, animeIDsFile))
	assert.EqualValues(t, 2, atomic.LoadInt32(&ts.hits))

	_, err = loader.Load(context.Background(), false)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&ts.hits), "fresh cache should not be downloaded again")

	_, err = loader.Load(context.Background(), true)
	require.NoError(t, err)
	assert.EqualValues(t, 4, atomic.LoadInt32(&ts.hits), "force refreshes both tables")
}

func TestLoader_RefreshesExpiredCache(t *testing.T) {
	ts := newTableServer(t)
	dir := t.TempDir()
	loader := testLoader(ts, dir, 1)

	_, err := loader.Load(context.Background(), false)
	require.NoError(t, err)

	loader.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	_, err = loader.Load(context.Background(), false)
	require.NoError(t, err)
	assert.EqualValues(t, 4, atomic.LoadInt32(&ts.hits))
}

func TestLoader_StaleCacheWhenDownloadFails(t *testing.T) {
	ts := newTableServer(t)
	dir := t.TempDir()
	loader := testLoader(ts, dir, 0)

	_, err := loader.Load(context.Background(), false)
	require.NoError(t, err)

	ts.fail.Store(true)
	tables, err := loader.Load(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 7, tables.Kometa.Len())
}

func TestLoader_FailsWithoutAnyCopy(t *testing.T) {
	ts := newTableServer(t)
	ts.fail.Store(true)

	_, err := testLoader(ts, t.TempDir(), 1).Load(context.Background(), false)
	assert.ErrorIs(t, err, ErrTableLoad)
}

func TestLoader_LocalFilesAndOverrides(t *testing.T) {
	dir := t.TempDir()
	kometaPath := filepath.Join(dir, "ids.json")
	anidbPath := filepath.Join(dir, "list.xml")
	overridesPath := filepath.Join(dir, "overrides.yml")
	require.NoError(t, os.WriteFile(kometaPath, []byte(kometaJSON), 0o600))
	require.NoError(t, os.WriteFile(anidbPath, []byte(anidbXML), 0o600))
	require.NoError(t, os.WriteFile(overridesPath, []byte("movies:\n  - tmdb_id: 1\n    releases:\n      - anilist_id: 2\n"), 0o600))

	loader := NewLoader(LoaderConfig{
		CacheDir:      filepath.Join(dir, "cache"),
		AnimeIDsURL:   kometaPath,
		AniDBListURL:  anidbPath,
		OverridesPath: overridesPath,
		Logger:        zerolog.Nop(),
	})

	tables, err := loader.Load(context.Background(), false)
	require.NoError(t, err)
	require.NotNil(t, tables.Overrides)
	assert.Len(t, tables.Overrides.Movies, 1)
}
