package mapping

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/seadexarr/seadexarr/internal/media"
)

// AniDBEntry is one <anime> element of anime-list-master.xml.
type AniDBEntry struct {
	AniDBID       int
	Name          string
	TVDBID        int
	TVDBSeason    int
	EpisodeOffset int
	TMDBIDs       []int
	IMDbIDs       []string

	// Episodes maps a TVDB season to the TVDB episodes the entry's
	// mapping-list places there.
	Episodes map[int][]int
}

// AniDBTable is the Anime-Lists XML table, independent of the Kometa table.
type AniDBTable struct {
	entries []AniDBEntry
	byAniDB map[int]int
	byTVDB  map[int][]int
	byTMDB  map[int][]int
	byIMDb  map[string][]int
}

type xmlAnimeList struct {
	Anime []xmlAnime `xml:"anime"`
}

type xmlAnime struct {
	AniDBID           int          `xml:"anidbid,attr"`
	TVDBID            string       `xml:"tvdbid,attr"`
	DefaultTVDBSeason string       `xml:"defaulttvdbseason,attr"`
	EpisodeOffset     string       `xml:"episodeoffset,attr"`
	TMDBID            string       `xml:"tmdbid,attr"`
	IMDbID            string       `xml:"imdbid,attr"`
	Name              string       `xml:"name"`
	Mappings          []xmlMapping `xml:"mapping-list>mapping"`
}

type xmlMapping struct {
	AniDBSeason int    `xml:"anidbseason,attr"`
	TVDBSeason  int    `xml:"tvdbseason,attr"`
	Text        string `xml:",chardata"`
}

// ParseAniDB reads an anime-list-master.xml document.
func ParseAniDB(r io.Reader) (*AniDBTable, error) {
	var doc xmlAnimeList
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse anime list: %w", err)
	}

	t := &AniDBTable{
		byAniDB: make(map[int]int),
		byTVDB:  make(map[int][]int),
		byTMDB:  make(map[int][]int),
		byIMDb:  make(map[string][]int),
	}
	for _, a := range doc.Anime {
		if a.AniDBID <= 0 {
			continue
		}
		t.add(convertAnime(a))
	}
	return t, nil
}

func convertAnime(a xmlAnime) AniDBEntry {
	e := AniDBEntry{
		AniDBID:    a.AniDBID,
		Name:       strings.TrimSpace(a.Name),
		TVDBSeason: 1,
		IMDbIDs:    splitList(a.IMDbID),
	}

	// tvdbid may also be "movie", "OVA", "hentai" or "unknown"
	if n, err := strconv.Atoi(strings.TrimSpace(a.TVDBID)); err == nil {
		e.TVDBID = n
	}
	switch s := strings.TrimSpace(a.DefaultTVDBSeason); s {
	case "":
	case "a":
		e.TVDBSeason = media.AllSeasons
	default:
		if n, err := strconv.Atoi(s); err == nil {
			e.TVDBSeason = n
		}
	}
	if n, err := strconv.Atoi(strings.TrimSpace(a.EpisodeOffset)); err == nil {
		e.EpisodeOffset = n
	}
	for _, id := range splitList(a.TMDBID) {
		if n, err := strconv.Atoi(id); err == nil {
			e.TMDBIDs = append(e.TMDBIDs, n)
		}
	}

	for _, m := range a.Mappings {
		eps := parseMappingText(m.Text)
		if len(eps) == 0 {
			continue
		}
		if e.Episodes == nil {
			e.Episodes = make(map[int][]int)
		}
		e.Episodes[m.TVDBSeason] = mergeSorted(e.Episodes[m.TVDBSeason], eps)
	}
	return e
}

// parseMappingText reads ";1-5;2-6+7;" into the TVDB side [5 6 7]. A TVDB
// episode of 0 means the AniDB episode has no counterpart.
func parseMappingText(text string) []int {
	var out []int
	for _, pair := range strings.Split(strings.Trim(strings.TrimSpace(text), ";"), ";") {
		_, tvdb, ok := strings.Cut(pair, "-")
		if !ok {
			continue
		}
		for _, ep := range strings.Split(tvdb, "+") {
			n, err := strconv.Atoi(strings.TrimSpace(ep))
			if err == nil && n > 0 {
				out = append(out, n)
			}
		}
	}
	return out
}

func mergeSorted(a, b []int) []int {
	seen := make(map[int]struct{}, len(a)+len(b))
	out := make([]int, 0, len(a)+len(b))
	for _, n := range append(append([]int(nil), a...), b...) {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

func (t *AniDBTable) add(e AniDBEntry) {
	idx := len(t.entries)
	t.entries = append(t.entries, e)
	t.byAniDB[e.AniDBID] = idx
	if e.TVDBID > 0 {
		t.byTVDB[e.TVDBID] = append(t.byTVDB[e.TVDBID], idx)
	}
	for _, id := range e.TMDBIDs {
		t.byTMDB[id] = append(t.byTMDB[id], idx)
	}
	for _, id := range e.IMDbIDs {
		t.byIMDb[id] = append(t.byIMDb[id], idx)
	}
}

// Len returns the number of entries.
func (t *AniDBTable) Len() int {
	return len(t.entries)
}

// ByAniDB returns the entry for an AniDB ID.
func (t *AniDBTable) ByAniDB(id int) (AniDBEntry, bool) {
	idx, ok := t.byAniDB[id]
	if !ok {
		return AniDBEntry{}, false
	}
	return t.entries[idx], true
}

// ByTVDB returns entries for a TVDB series ID in document order.
func (t *AniDBTable) ByTVDB(id int) []AniDBEntry {
	return t.pick(t.byTVDB[id])
}

// ByTMDB returns entries for a TMDB ID in document order.
func (t *AniDBTable) ByTMDB(id int) []AniDBEntry {
	return t.pick(t.byTMDB[id])
}

// ByIMDb returns entries for an IMDb ID in document order.
func (t *AniDBTable) ByIMDb(id string) []AniDBEntry {
	return t.pick(t.byIMDb[id])
}

// SeasonEpisodes returns the TVDB episodes an AniDB entry maps into a season.
func (t *AniDBTable) SeasonEpisodes(anidbID, season int) []int {
	e, ok := t.ByAniDB(anidbID)
	if !ok {
		return nil
	}
	return e.Episodes[season]
}

func (t *AniDBTable) pick(idx []int) []AniDBEntry {
	out := make([]AniDBEntry, 0, len(idx))
	for _, i := range idx {
		out = append(out, t.entries[i])
	}
	return out
}
