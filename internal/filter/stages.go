package filter

import (
	"strings"

	"github.com/seadexarr/seadexarr/internal/config"
	"github.com/seadexarr/seadexarr/internal/media"
)

// TrackerStage drops excluded trackers and, when an inclusion set is
// configured, anything outside it. Names compare case-insensitively.
type TrackerStage struct{}

func (TrackerStage) Name() string { return "tracker" }

func (TrackerStage) Apply(candidates []media.Candidate, cfg config.FilterConfig) []media.Candidate {
	if len(cfg.IncludeTrackers) == 0 && len(cfg.ExcludeTrackers) == 0 {
		return candidates
	}
	include := trackerSet(cfg.IncludeTrackers)
	exclude := trackerSet(cfg.ExcludeTrackers)

	return keep(candidates, func(c media.Candidate) bool {
		name := strings.ToLower(c.Tracker)
		if _, ok := exclude[name]; ok {
			return false
		}
		if len(include) > 0 {
			_, ok := include[name]
			return ok
		}
		return true
	})
}

func trackerSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[strings.ToLower(strings.TrimSpace(n))] = struct{}{}
	}
	return set
}

// PrivacyStage drops private tracker releases when public_only is set.
type PrivacyStage struct{}

func (PrivacyStage) Name() string { return "privacy" }

func (PrivacyStage) Apply(candidates []media.Candidate, cfg config.FilterConfig) []media.Candidate {
	if !cfg.PublicOnly {
		return candidates
	}
	return keep(candidates, func(c media.Candidate) bool { return c.IsPublic })
}

// BestStage keeps only best-tagged releases when want_best is set and at
// least one exists.
type BestStage struct{}

func (BestStage) Name() string { return "best" }

func (BestStage) Apply(candidates []media.Candidate, cfg config.FilterConfig) []media.Candidate {
	if !cfg.WantBest {
		return candidates
	}
	return preferIf(candidates, func(c media.Candidate) bool { return c.IsBest })
}

// DualAudioStage keeps only dual audio releases when prefer_dual_audio is set
// and at least one exists.
type DualAudioStage struct{}

func (DualAudioStage) Name() string { return "dual-audio" }

func (DualAudioStage) Apply(candidates []media.Candidate, cfg config.FilterConfig) []media.Candidate {
	if !cfg.PreferDualAudio {
		return candidates
	}
	return preferIf(candidates, func(c media.Candidate) bool { return c.IsDualAudio })
}
