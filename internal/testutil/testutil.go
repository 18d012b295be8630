// Package testutil provides testing utilities for integration tests.
package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/seadexarr/seadexarr/internal/database"
	"github.com/seadexarr/seadexarr/internal/media"
)

// TestDB wraps a test database connection.
type TestDB struct {
	DB     *database.DB
	Conn   *sql.DB
	Path   string
	Logger zerolog.Logger
}

// NewTestDB creates a new migrated ledger database in a temp directory.
// It is closed automatically when the test ends.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	logger := NewTestLogger(t)

	db, err := database.New(dbPath, logger)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}

	tdb := &TestDB{
		DB:     db,
		Conn:   db.Conn(),
		Path:   dbPath,
		Logger: logger,
	}
	t.Cleanup(tdb.Close)
	return tdb
}

// Close closes the database.
func (tdb *TestDB) Close() {
	if tdb.DB != nil {
		tdb.DB.Close()
	}
}

// NewTestLogger creates a test logger that outputs to t.Log.
func NewTestLogger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
}

// NopLogger returns a no-op logger for tests that don't need output.
func NopLogger() zerolog.Logger {
	return zerolog.Nop()
}

// Series returns a resolved series covering every regular season with the given AniList IDs.
func Series(libraryID, title string, anilistIDs ...int) media.TitleRef {
	refs := make([]media.IndexRef, 0, len(anilistIDs))
	for _, id := range anilistIDs {
		refs = append(refs, media.IndexRef{ID: id, Season: media.AllSeasons})
	}
	return media.TitleRef{LibraryID: libraryID, Kind: media.KindSeries, Title: title, ReleaseIndex: refs}
}

// Episode returns an EpisodeRef without an existing file.
func Episode(title media.TitleRef, season, episode int) media.EpisodeRef {
	return media.EpisodeRef{Title: title, Season: season, Episode: episode}
}

// Candidate returns a public Nyaa release.
func Candidate(id string, indexID int, group string) media.Candidate {
	return media.Candidate{
		ID:           id,
		IndexID:      indexID,
		Tracker:      "Nyaa",
		IsPublic:     true,
		ReleaseGroup: group,
		URL:          "https://nyaa.si/view/" + id,
		InfoHash:     "hash-" + id,
	}
}
