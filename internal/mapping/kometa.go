package mapping

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/seadexarr/seadexarr/internal/media"
)

// KometaEntry is one record of the Kometa anime_ids.json table, keyed by AniDB ID.
type KometaEntry struct {
	AniDBID      int
	AniListID    int
	TVDBID       int
	TVDBSeason   int
	TVDBEpOffset int
	TMDBMovieID  int
	TMDBShowID   int
	IMDbIDs      []string
}

// IndexRef converts the entry for the given media kind.
func (e KometaEntry) IndexRef(kind media.Kind) media.IndexRef {
	ref := media.IndexRef{ID: e.AniListID, AniDBID: e.AniDBID, Season: e.TVDBSeason, EpisodeOffset: e.TVDBEpOffset}
	if kind == media.KindMovie {
		ref.Season = media.MovieSeason
		ref.EpisodeOffset = 0
		return ref
	}
	e.tagMovie(&ref)
	return ref
}

// tagMovie copies the entry's movie IDs onto a specials ref.
func (e KometaEntry) tagMovie(ref *media.IndexRef) {
	if ref.Season != media.SpecialsSeason {
		return
	}
	ref.MovieTMDBID = e.TMDBMovieID
	ref.MovieIMDbIDs = append([]string(nil), e.IMDbIDs...)
}

// KometaTable indexes anime_ids.json by every ID namespace it carries while
// keeping the file's key order.
type KometaTable struct {
	entries []KometaEntry
	byAniDB map[int]int
	byTVDB  map[int][]int
	byTMDB  map[int][]int
	byIMDb  map[string][]int
}

type kometaRecord struct {
	AniListID    flexInt  `json:"anilist_id"`
	TVDBID       flexInt  `json:"tvdb_id"`
	TVDBSeason   *flexInt `json:"tvdb_season"`
	TVDBEpOffset flexInt  `json:"tvdb_epoffset"`
	TMDBMovieID  flexInt  `json:"tmdb_movie_id"`
	TMDBShowID   flexInt  `json:"tmdb_show_id"`
	IMDbID       string   `json:"imdb_id"`
}

// ParseKometa reads an anime_ids.json document.
func ParseKometa(r io.Reader) (*KometaTable, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to read anime ids: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("anime ids: expected object, got %v", tok)
	}

	t := &KometaTable{
		byAniDB: make(map[int]int),
		byTVDB:  make(map[int][]int),
		byTMDB:  make(map[int][]int),
		byIMDb:  make(map[string][]int),
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to read anime ids key: %w", err)
		}
		key, _ := keyTok.(string)

		var rec kometaRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("anime ids entry %q: %w", key, err)
		}

		anidbID, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		t.add(anidbID, rec)
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("failed to read anime ids: %w", err)
	}
	return t, nil
}

func (t *KometaTable) add(anidbID int, rec kometaRecord) {
	season := media.AllSeasons
	if rec.TVDBSeason != nil {
		season = int(*rec.TVDBSeason)
	}

	e := KometaEntry{
		AniDBID:      anidbID,
		AniListID:    int(rec.AniListID),
		TVDBID:       int(rec.TVDBID),
		TVDBSeason:   season,
		TVDBEpOffset: int(rec.TVDBEpOffset),
		TMDBMovieID:  int(rec.TMDBMovieID),
		TMDBShowID:   int(rec.TMDBShowID),
		IMDbIDs:      splitList(rec.IMDbID),
	}

	idx := len(t.entries)
	t.entries = append(t.entries, e)
	t.byAniDB[anidbID] = idx
	if e.TVDBID > 0 {
		t.byTVDB[e.TVDBID] = append(t.byTVDB[e.TVDBID], idx)
	}
	if e.TMDBMovieID > 0 {
		t.byTMDB[e.TMDBMovieID] = append(t.byTMDB[e.TMDBMovieID], idx)
	}
	for _, imdb := range e.IMDbIDs {
		t.byIMDb[imdb] = append(t.byIMDb[imdb], idx)
	}
}

// Len returns the number of entries.
func (t *KometaTable) Len() int {
	return len(t.entries)
}

// ByAniDB returns the entry for an AniDB ID.
func (t *KometaTable) ByAniDB(id int) (KometaEntry, bool) {
	idx, ok := t.byAniDB[id]
	if !ok {
		return KometaEntry{}, false
	}
	return t.entries[idx], true
}

// ByTVDB returns entries for a TVDB series ID in table order.
func (t *KometaTable) ByTVDB(id int) []KometaEntry {
	return t.pick(t.byTVDB[id])
}

// ByTMDBMovie returns entries for a TMDB movie ID in table order.
func (t *KometaTable) ByTMDBMovie(id int) []KometaEntry {
	return t.pick(t.byTMDB[id])
}

// ByIMDb returns entries for an IMDb ID in table order.
func (t *KometaTable) ByIMDb(id string) []KometaEntry {
	return t.pick(t.byIMDb[id])
}

func (t *KometaTable) pick(idx []int) []KometaEntry {
	out := make([]KometaEntry, 0, len(idx))
	for _, i := range idx {
		out = append(out, t.entries[i])
	}
	return out
}

// flexInt decodes JSON numbers and numeric strings alike.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		// Comma separated lists keep their first value
		first, _, _ := strings.Cut(string(data), ",")
		n, err = strconv.Atoi(strings.TrimSpace(first))
		if err != nil {
			return fmt.Errorf("invalid id %q", data)
		}
	}
	*f = flexInt(n)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
