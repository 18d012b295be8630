package media

import "sort"

// Covers reports whether ref addresses the episode's season. Specials are a
// separate namespace: AllSeasons never reaches season 0.
func (ref IndexRef) Covers(e EpisodeRef) bool {
	if e.IsMovie() {
		return true
	}
	if ref.Season == AllSeasons {
		return e.Season > SpecialsSeason
	}
	if ref.Season != e.Season {
		return false
	}
	if len(ref.Episodes) > 0 {
		for _, ep := range ref.Episodes {
			if ep == e.Episode {
				return true
			}
		}
		return false
	}
	return true
}

// CoveringRefs returns the release-index refs of the title that cover the episode.
//
// When several refs share a season their episode offsets split it: a ref with
// offset o covers episodes in (o, next offset]; the last one is open-ended.
// Refs with an explicit episode list skip the offset split. Movies are
// covered by every ref.
func CoveringRefs(e EpisodeRef) []IndexRef {
	refs := e.Title.ReleaseIndex
	if e.IsMovie() {
		return append([]IndexRef(nil), refs...)
	}

	bySeason := make(map[int][]IndexRef)
	for _, ref := range refs {
		if ref.Covers(e) && len(ref.Episodes) == 0 {
			bySeason[ref.Season] = append(bySeason[ref.Season], ref)
		}
	}

	var out []IndexRef
	for _, ref := range refs {
		if !ref.Covers(e) {
			continue
		}
		if len(ref.Episodes) > 0 || withinOffsets(ref, bySeason[ref.Season], e.Episode) {
			out = append(out, ref)
		}
	}
	return out
}

func withinOffsets(ref IndexRef, group []IndexRef, episode int) bool {
	offsets := make([]int, 0, len(group))
	for _, g := range group {
		offsets = append(offsets, g.EpisodeOffset)
	}
	sort.Ints(offsets)

	if episode <= ref.EpisodeOffset {
		return false
	}
	for _, o := range offsets {
		if o > ref.EpisodeOffset {
			return episode <= o
		}
	}
	return true
}
