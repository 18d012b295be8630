// Package media defines the value types shared by every stage of a sync run.
package media

import (
	"fmt"
	"strings"
)

// Kind identifies which library application a title came from.
type Kind string

const (
	KindSeries Kind = "series"
	KindMovie  Kind = "movie"
)

// Season and episode sentinels.
const (
	// AllSeasons marks an IndexRef that covers every regular season (never specials).
	AllSeasons = -1
	// SpecialsSeason is the library's season 0.
	SpecialsSeason = 0
	// MovieSeason and MovieEpisode address the single file of a movie. MovieSeason
	// shares AllSeasons' value on purpose: a movie IndexRef covers the whole file,
	// and Covers tests IsMovie before looking at seasons. Ledger keys for movies
	// are persisted with this value, so it must not change.
	MovieSeason  = -1
	MovieEpisode = -1
)

// IndexRef is one release-index identifier resolved for a title, together with
// the slice of the library title it covers.
type IndexRef struct {
	ID            int `json:"id"` // AniList ID used by the release index
	AniDBID       int `json:"anidbId,omitempty"`
	Season        int `json:"season"`
	EpisodeOffset int `json:"episodeOffset,omitempty"`
	// Episodes, when set, lists exactly which episodes of Season the ref covers
	// and takes precedence over EpisodeOffset.
	Episodes []int `json:"episodes,omitempty"`

	// MovieTMDBID and MovieIMDbIDs name the movie the mapping also points at.
	// They let a specials ref be matched against a movie library.
	MovieTMDBID  int      `json:"movieTmdbId,omitempty"`
	MovieIMDbIDs []string `json:"movieImdbIds,omitempty"`
}

// MovieSet indexes movies by TMDB and IMDb ID. The zero value is empty.
type MovieSet struct {
	tmdb map[int]string
	imdb map[string]string
}

// Add records a movie. Zero or empty IDs are ignored.
func (s *MovieSet) Add(title string, tmdbID int, imdbID string) {
	if s.tmdb == nil {
		s.tmdb = make(map[int]string)
		s.imdb = make(map[string]string)
	}
	if tmdbID > 0 {
		s.tmdb[tmdbID] = title
	}
	if imdbID != "" {
		s.imdb[imdbID] = title
	}
}

// Len returns the number of indexed IDs.
func (s MovieSet) Len() int {
	return len(s.tmdb) + len(s.imdb)
}

// Title returns the title of the movie the ref names, if the set has it.
func (s MovieSet) Title(ref IndexRef) (string, bool) {
	if t, ok := s.tmdb[ref.MovieTMDBID]; ok && ref.MovieTMDBID > 0 {
		return t, true
	}
	for _, id := range ref.MovieIMDbIDs {
		if t, ok := s.imdb[id]; ok {
			return t, true
		}
	}
	return "", false
}

// EpisodeRef scopes an acquisition to one episode (or the movie file) of a title.
type EpisodeRef struct {
	Title   TitleRef `json:"title"`
	Season  int      `json:"season"`
	Episode int      `json:"episode"`

	// ReleaseGroup is the group of the file the library already has, if any.
	ReleaseGroup string `json:"releaseGroup,omitempty"`
}

// MovieRef returns the EpisodeRef addressing a movie's file.
func MovieRef(title TitleRef, releaseGroup string) EpisodeRef {
	return EpisodeRef{Title: title, Season: MovieSeason, Episode: MovieEpisode, ReleaseGroup: releaseGroup}
}

// IsMovie reports whether the ref addresses a movie file.
func (e EpisodeRef) IsMovie() bool {
	return e.Season == MovieSeason && e.Episode == MovieEpisode
}

// IsSpecial reports whether the ref lives in the specials season.
func (e EpisodeRef) IsSpecial() bool {
	return e.Season == SpecialsSeason
}

// Key is the stable ledger key for the ref: <library_id>:<season>:<episode>.
func (e EpisodeRef) Key() string {
	return LedgerKey(e.Title.LibraryID, e.Season, e.Episode)
}

// String renders the ref for log lines and prompts.
func (e EpisodeRef) String() string {
	if e.IsMovie() {
		return e.Title.Title
	}
	return e.Title.Title + " " + EpisodeLabel(e.Season, e.Episode)
}

// EpisodeLabel renders a season/episode pair as S01E02, or "movie".
func EpisodeLabel(season, episode int) string {
	if season == MovieSeason && episode == MovieEpisode {
		return "movie"
	}
	return fmt.Sprintf("S%02dE%02d", season, episode)
}

// LedgerKey builds the composite ledger key.
func LedgerKey(libraryID string, season, episode int) string {
	return fmt.Sprintf("%s:%d:%d", libraryID, season, episode)
}

// Candidate is one release record returned by the release index. Candidates are
// never mutated; pipeline stages only drop or keep them.
type Candidate struct {
	ID           string `json:"id"`
	IndexID      int    `json:"indexId"`
	Tracker      string `json:"tracker"`
	IsBest       bool   `json:"isBest"`
	IsDualAudio  bool   `json:"isDualAudio"`
	IsPublic     bool   `json:"isPublic"`
	ReleaseGroup string `json:"releaseGroup"`
	URL          string `json:"url"`
	InfoHash     string `json:"infoHash,omitempty"`
	Size         int64  `json:"size"`
	FileCount    int    `json:"fileCount"`
	EntryURL     string `json:"entryUrl,omitempty"`
}

// MatchesGroup reports whether the candidate was released by the given group.
func (c Candidate) MatchesGroup(group string) bool {
	return group != "" && strings.EqualFold(strings.TrimSpace(c.ReleaseGroup), strings.TrimSpace(group))
}
