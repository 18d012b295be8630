// Package mapping resolves library titles to release index IDs through a chain
// of mapping tables.
package mapping

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/seadexarr/seadexarr/internal/library"
	"github.com/seadexarr/seadexarr/internal/media"
)

// Resolver is one lookup strategy in the chain.
type Resolver interface {
	Name() string
	// TryResolve returns a TitleRef with at least one release index ref, or false.
	TryResolve(entry library.Entry) (media.TitleRef, bool)
}

// Mapper runs resolvers in order and returns the first hit.
type Mapper struct {
	resolvers []Resolver
	anidb     *AniDBTable
	logger    zerolog.Logger
}

// NewMapper builds the default chain over loaded tables: user overrides,
// Kometa by the library's own ID, Kometa by IMDb, then the AniDB list.
func NewMapper(tables *Tables, logger zerolog.Logger) *Mapper {
	var resolvers []Resolver
	if tables.Overrides != nil {
		resolvers = append(resolvers, OverrideResolver{Overrides: tables.Overrides})
	}
	if tables.Kometa != nil {
		resolvers = append(resolvers,
			KometaResolver{Table: tables.Kometa},
			KometaIMDbResolver{Table: tables.Kometa},
		)
		if tables.AniDB != nil {
			resolvers = append(resolvers, AniDBResolver{AniDB: tables.AniDB, Kometa: tables.Kometa})
		}
	}

	m := NewChain(logger, resolvers...)
	m.anidb = tables.AniDB
	return m
}

// NewChain builds a mapper from explicit resolvers.
func NewChain(logger zerolog.Logger, resolvers ...Resolver) *Mapper {
	return &Mapper{
		resolvers: resolvers,
		logger:    logger.With().Str("component", "mapper").Logger(),
	}
}

// Resolve maps a library entry to a TitleRef. It fails with ErrMappingNotFound
// when no resolver knows the entry.
func (m *Mapper) Resolve(entry library.Entry) (media.TitleRef, error) {
	for _, r := range m.resolvers {
		ref, ok := r.TryResolve(entry)
		if !ok || len(ref.ReleaseIndex) == 0 {
			continue
		}

		m.fillSpecials(&ref)
		m.logger.Debug().
			Str("title", entry.Title).
			Str("resolver", r.Name()).
			Ints("anilistIds", ref.IndexIDs()).
			Msg("resolved title")
		return ref, nil
	}
	return media.TitleRef{}, fmt.Errorf("%w: %s (%s)", ErrMappingNotFound, entry.Title, entry.LibraryID())
}

// fillSpecials narrows specials refs to the episodes the AniDB mapping-list
// places in season 0; offsets are unreliable there.
func (m *Mapper) fillSpecials(ref *media.TitleRef) {
	if m.anidb == nil {
		return
	}
	for i, ir := range ref.ReleaseIndex {
		if ir.Season != media.SpecialsSeason || ir.AniDBID == 0 || len(ir.Episodes) > 0 {
			continue
		}
		if eps := m.anidb.SeasonEpisodes(ir.AniDBID, media.SpecialsSeason); len(eps) > 0 {
			ref.ReleaseIndex[i].Episodes = append([]int(nil), eps...)
		}
	}
}

func baseTitleRef(entry library.Entry) media.TitleRef {
	return media.TitleRef{
		LibraryID: entry.LibraryID(),
		Kind:      entry.Kind(),
		Title:     entry.Title,
		TVDBID:    entry.TVDBID,
		TMDBID:    entry.TMDBID,
		IMDbID:    entry.IMDbID,
	}
}

func withRefs(entry library.Entry, refs []media.IndexRef) (media.TitleRef, bool) {
	if len(refs) == 0 {
		return media.TitleRef{}, false
	}
	t := baseTitleRef(entry)
	t.ReleaseIndex = refs
	seen := make(map[int]struct{})
	for _, r := range refs {
		if r.AniDBID == 0 {
			continue
		}
		if _, ok := seen[r.AniDBID]; !ok {
			seen[r.AniDBID] = struct{}{}
			t.AniDBIDs = append(t.AniDBIDs, r.AniDBID)
		}
	}
	return t, true
}

func kometaRefs(entries []KometaEntry, kind media.Kind) []media.IndexRef {
	refs := make([]media.IndexRef, 0, len(entries))
	for _, e := range entries {
		if e.AniListID <= 0 {
			continue
		}
		refs = append(refs, e.IndexRef(kind))
	}
	return refs
}

// OverrideResolver consults the user's override file.
type OverrideResolver struct {
	Overrides *Overrides
}

func (OverrideResolver) Name() string { return "overrides" }

func (r OverrideResolver) TryResolve(entry library.Entry) (media.TitleRef, bool) {
	list := r.Overrides.Series
	if entry.Kind() == media.KindMovie {
		list = r.Overrides.Movies
	}
	for _, ov := range list {
		if overrideMatches(ov, entry) {
			return withRefs(entry, ov.indexRefs(entry.Kind()))
		}
	}
	return media.TitleRef{}, false
}

func overrideMatches(ov Override, entry library.Entry) bool {
	switch {
	case ov.LibraryID != "":
		return ov.LibraryID == entry.LibraryID()
	case ov.TVDBID != 0 && entry.Kind() == media.KindSeries:
		return ov.TVDBID == entry.TVDBID
	case ov.TMDBID != 0 && entry.Kind() == media.KindMovie:
		return ov.TMDBID == entry.TMDBID
	case ov.IMDbID != "":
		return ov.IMDbID == entry.IMDbID
	}
	return false
}

// KometaResolver looks the entry up by its native namespace: TVDB for series,
// TMDB for movies.
type KometaResolver struct {
	Table *KometaTable
}

func (KometaResolver) Name() string { return "kometa" }

func (r KometaResolver) TryResolve(entry library.Entry) (media.TitleRef, bool) {
	var entries []KometaEntry
	switch entry.Kind() {
	case media.KindMovie:
		if entry.TMDBID > 0 {
			entries = r.Table.ByTMDBMovie(entry.TMDBID)
		}
	default:
		if entry.TVDBID > 0 {
			entries = r.Table.ByTVDB(entry.TVDBID)
		}
	}
	return withRefs(entry, kometaRefs(entries, entry.Kind()))
}

// KometaIMDbResolver is the secondary lookup through the entry's IMDb ID.
type KometaIMDbResolver struct {
	Table *KometaTable
}

func (KometaIMDbResolver) Name() string { return "kometa-imdb" }

func (r KometaIMDbResolver) TryResolve(entry library.Entry) (media.TitleRef, bool) {
	if entry.IMDbID == "" {
		return media.TitleRef{}, false
	}
	return withRefs(entry, kometaRefs(r.Table.ByIMDb(entry.IMDbID), entry.Kind()))
}

// AniDBResolver goes through the independent AniDB list: native or IMDb ID to
// AniDB IDs, then to AniList IDs via the Kometa table.
type AniDBResolver struct {
	AniDB  *AniDBTable
	Kometa *KometaTable
}

func (AniDBResolver) Name() string { return "anidb" }

func (r AniDBResolver) TryResolve(entry library.Entry) (media.TitleRef, bool) {
	var matches []AniDBEntry
	switch entry.Kind() {
	case media.KindMovie:
		if entry.TMDBID > 0 {
			matches = r.AniDB.ByTMDB(entry.TMDBID)
		}
	default:
		if entry.TVDBID > 0 {
			matches = r.AniDB.ByTVDB(entry.TVDBID)
		}
	}
	if len(matches) == 0 && entry.IMDbID != "" {
		matches = r.AniDB.ByIMDb(entry.IMDbID)
	}

	refs := make([]media.IndexRef, 0, len(matches))
	for _, a := range matches {
		k, ok := r.Kometa.ByAniDB(a.AniDBID)
		if !ok || k.AniListID <= 0 {
			continue
		}
		ref := media.IndexRef{
			ID:            k.AniListID,
			AniDBID:       a.AniDBID,
			Season:        a.TVDBSeason,
			EpisodeOffset: a.EpisodeOffset,
		}
		if entry.Kind() == media.KindMovie {
			ref.Season = media.MovieSeason
			ref.EpisodeOffset = 0
		} else {
			k.tagMovie(&ref)
		}
		refs = append(refs, ref)
	}
	return withRefs(entry, refs)
}
