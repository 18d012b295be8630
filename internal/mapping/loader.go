package mapping

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/seadexarr/seadexarr/internal/retry"
)

const (
	animeIDsFile  = "anime_ids.json"
	aniDBListFile = "anime-list-master.xml"
)

// Tables holds every mapping source loaded for a run.
type Tables struct {
	Kometa    *KometaTable
	AniDB     *AniDBTable
	Overrides *Overrides
}

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	CacheDir      string
	CacheDays     int
	AnimeIDsURL   string
	AniDBListURL  string
	OverridesPath string
	HTTPClient    *http.Client
	Retry         retry.Config
	Logger        zerolog.Logger
}

// Loader downloads the mapping tables into a cache directory and re-downloads
// them once they are older than the cache period.
type Loader struct {
	cfg    LoaderConfig
	client *http.Client
	now    func() time.Time
	logger zerolog.Logger
}

// NewLoader creates a Loader.
func NewLoader(cfg LoaderConfig) *Loader {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	return &Loader{
		cfg:    cfg,
		client: client,
		now:    time.Now,
		logger: cfg.Logger.With().Str("component", "mapping-loader").Logger(),
	}
}

// Load returns the parsed tables. With force set, cached files are refreshed
// regardless of age. Any table that cannot be produced fails the load.
func (l *Loader) Load(ctx context.Context, force bool) (*Tables, error) {
	kometaPath, err := l.fetch(ctx, animeIDsFile, l.cfg.AnimeIDsURL, force)
	if err != nil {
		return nil, err
	}
	kometa, err := parseFile(kometaPath, ParseKometa)
	if err != nil {
		return nil, err
	}

	anidbPath, err := l.fetch(ctx, aniDBListFile, l.cfg.AniDBListURL, force)
	if err != nil {
		return nil, err
	}
	anidb, err := parseFile(anidbPath, ParseAniDB)
	if err != nil {
		return nil, err
	}

	tables := &Tables{Kometa: kometa, AniDB: anidb}
	if l.cfg.OverridesPath != "" {
		if tables.Overrides, err = LoadOverrides(l.cfg.OverridesPath); err != nil {
			return nil, err
		}
	}

	l.logger.Info().
		Int("kometa", kometa.Len()).
		Int("anidb", anidb.Len()).
		Bool("overrides", tables.Overrides != nil).
		Msg("mapping tables loaded")
	return tables, nil
}

func parseFile[T any](path string, parse func(io.Reader) (*T, error)) (*T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTableLoad, err)
	}
	defer f.Close()

	t, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTableLoad, filepath.Base(path), err)
	}
	return t, nil
}

// fetch returns a local path for the table. Sources without an http(s) scheme
// are read in place. A failed refresh falls back to a stale cached copy.
func (l *Loader) fetch(ctx context.Context, name, source string, force bool) (string, error) {
	if source == "" {
		return "", fmt.Errorf("%w: no source configured for %s", ErrTableLoad, name)
	}
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		return source, nil
	}

	if err := os.MkdirAll(l.cfg.CacheDir, 0o750); err != nil {
		return "", fmt.Errorf("%w: create cache dir: %w", ErrTableLoad, err)
	}
	path := filepath.Join(l.cfg.CacheDir, name)

	info, statErr := os.Stat(path)
	cached := statErr == nil
	if cached && !force && !l.expired(info.ModTime()) {
		l.logger.Debug().Str("file", name).Time("modified", info.ModTime()).Msg("using cached mapping table")
		return path, nil
	}

	err := retry.Do(ctx, "download "+name, l.cfg.Retry, func(ctx context.Context) error {
		return l.download(ctx, source, path)
	}, l.logger)
	if err != nil {
		if cached {
			l.logger.Warn().Err(err).Str("file", name).Msg("failed to refresh mapping table, using stale copy")
			return path, nil
		}
		return "", fmt.Errorf("%w: download %s: %w", ErrTableLoad, name, err)
	}
	return path, nil
}

func (l *Loader) expired(modified time.Time) bool {
	age := l.now().Sub(modified)
	return int(age/(24*time.Hour)) >= l.cfg.CacheDays
}

func (l *Loader) download(ctx context.Context, source, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &downloadStatusError{status: resp.StatusCode}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}

	l.logger.Info().Str("file", filepath.Base(path)).Str("size", humanize.Bytes(uint64(n))).Msg("downloaded mapping table")
	return nil
}

type downloadStatusError struct {
	status int
}

func (e *downloadStatusError) Error() string {
	return fmt.Sprintf("download returned status %d", e.status)
}

func (e *downloadStatusError) Transient() bool {
	return e.status == http.StatusTooManyRequests || e.status >= 500
}
