package mapping

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/seadexarr/seadexarr/internal/media"
)

// Overrides are user supplied mappings that win over both tables.
//
//	series:
//	  - tvdb_id: 424536
//	    releases:
//	      - anilist_id: 154587
//	        season: 1
//	movies:
//	  - tmdb_id: 372058
//	    releases:
//	      - anilist_id: 21519
type Overrides struct {
	Series []Override `yaml:"series"`
	Movies []Override `yaml:"movies"`
}

// Override maps one library title onto release index IDs.
type Override struct {
	LibraryID string            `yaml:"library_id"`
	TVDBID    int               `yaml:"tvdb_id"`
	TMDBID    int               `yaml:"tmdb_id"`
	IMDbID    string            `yaml:"imdb_id"`
	Releases  []OverrideRelease `yaml:"releases"`
}

// OverrideRelease is one release index ID with its coverage.
type OverrideRelease struct {
	AniListID     int   `yaml:"anilist_id"`
	AniDBID       int   `yaml:"anidb_id"`
	Season        *int  `yaml:"season"`
	EpisodeOffset int   `yaml:"episode_offset"`
	Episodes      []int `yaml:"episodes"`
}

// LoadOverrides reads an overrides file. Unknown keys are rejected.
func LoadOverrides(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read overrides: %w", ErrTableLoad, err)
	}
	return ParseOverrides(data)
}

// ParseOverrides decodes an overrides document.
func ParseOverrides(data []byte) (*Overrides, error) {
	var o Overrides
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&o); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: parse overrides: %w", ErrTableLoad, err)
	}

	for i, list := range [][]Override{o.Series, o.Movies} {
		kind := "series"
		if i == 1 {
			kind = "movies"
		}
		for j, ov := range list {
			if ov.LibraryID == "" && ov.TVDBID == 0 && ov.TMDBID == 0 && ov.IMDbID == "" {
				return nil, fmt.Errorf("%w: overrides %s[%d] has no identifier", ErrTableLoad, kind, j)
			}
			for _, r := range ov.Releases {
				if r.AniListID <= 0 {
					return nil, fmt.Errorf("%w: overrides %s[%d] has a release without anilist_id", ErrTableLoad, kind, j)
				}
			}
		}
	}
	return &o, nil
}

func (o Override) indexRefs(kind media.Kind) []media.IndexRef {
	refs := make([]media.IndexRef, 0, len(o.Releases))
	for _, r := range o.Releases {
		ref := media.IndexRef{
			ID:            r.AniListID,
			AniDBID:       r.AniDBID,
			Season:        media.AllSeasons,
			EpisodeOffset: r.EpisodeOffset,
			Episodes:      r.Episodes,
		}
		if r.Season != nil {
			ref.Season = *r.Season
		}
		if kind == media.KindMovie {
			ref.Season = media.MovieSeason
			ref.EpisodeOffset = 0
			ref.Episodes = nil
		}
		refs = append(refs, ref)
	}
	return refs
}
