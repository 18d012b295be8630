package ledger

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/seadexarr/seadexarr/internal/media"
)

var (
	// ErrLedgerWrite is returned when the backing store cannot persist an entry.
	ErrLedgerWrite = errors.New("ledger write failed")
	// ErrAlreadyRecorded is returned when a key already holds a different release.
	ErrAlreadyRecorded = errors.New("a different release is already recorded")
	// ErrSupersedeConflict is returned when the entry to replace changed underneath the caller.
	ErrSupersedeConflict = errors.New("ledger entry changed before it could be superseded")
	// ErrInvalidKey is returned by ParseKey.
	ErrInvalidKey = errors.New("invalid ledger key")
)

// Key addresses one acquisition slot.
type Key struct {
	LibraryID string `json:"libraryId"`
	Season    int    `json:"season"`
	Episode   int    `json:"episode"`
}

// KeyOf returns the key for an episode.
func KeyOf(e media.EpisodeRef) Key {
	return Key{LibraryID: e.Title.LibraryID, Season: e.Season, Episode: e.Episode}
}

func (k Key) String() string {
	return media.LedgerKey(k.LibraryID, k.Season, k.Episode)
}

// ParseKey parses "<library_id>:<season>:<episode>". The library ID may itself
// contain colons.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	n := len(parts)
	season, err := strconv.Atoi(parts[n-2])
	if err != nil {
		return Key{}, fmt.Errorf("%w: season in %q", ErrInvalidKey, s)
	}
	episode, err := strconv.Atoi(parts[n-1])
	if err != nil {
		return Key{}, fmt.Errorf("%w: episode in %q", ErrInvalidKey, s)
	}
	libraryID := strings.Join(parts[:n-2], ":")
	if libraryID == "" {
		return Key{}, fmt.Errorf("%w: empty library id in %q", ErrInvalidKey, s)
	}
	return Key{LibraryID: libraryID, Season: season, Episode: episode}, nil
}

// Entry is one recorded acquisition.
type Entry struct {
	Key
	ReleaseIndexID string    `json:"releaseIndexId"`
	IndexID        int       `json:"indexId"`
	Title          string    `json:"title"`
	ReleaseGroup   string    `json:"releaseGroup"`
	AcquiredAt     time.Time `json:"acquiredAt"`
}

func newEntry(e media.EpisodeRef, c media.Candidate, now time.Time) Entry {
	return Entry{
		Key:            KeyOf(e),
		ReleaseIndexID: c.ID,
		IndexID:        c.IndexID,
		Title:          e.Title.Title,
		ReleaseGroup:   c.ReleaseGroup,
		AcquiredAt:     now.UTC(),
	}
}
