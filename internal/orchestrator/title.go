package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/seadexarr/seadexarr/internal/downloader"
	"github.com/seadexarr/seadexarr/internal/ledger"
	"github.com/seadexarr/seadexarr/internal/library"
	"github.com/seadexarr/seadexarr/internal/mapping"
	"github.com/seadexarr/seadexarr/internal/media"
	"github.com/seadexarr/seadexarr/internal/notification"
	"github.com/seadexarr/seadexarr/internal/seadex"
	"github.com/seadexarr/seadexarr/internal/selection"
)

// episodeGroup is a set of episodes covered by the same release-index refs.
// Candidates, filtering and selection are shared by the whole group.
type episodeGroup struct {
	refs     []media.IndexRef
	episodes []media.EpisodeRef
}

// titleRun is the state of one title. It is only touched by its own worker.
type titleRun struct {
	ref         media.TitleRef
	category    string
	submissions map[string]error
	acquired    map[string][]string
	releases    map[string]media.Candidate
	order       []string
	interactive bool
}

func (t *titleRun) markAcquired(ep media.EpisodeRef, c media.Candidate, interactive bool) {
	if _, ok := t.acquired[c.ID]; !ok {
		t.order = append(t.order, c.ID)
		t.releases[c.ID] = c
	}
	t.acquired[c.ID] = append(t.acquired[c.ID], ep.String())
	t.interactive = t.interactive || interactive
}

func (r *run) processTitle(ctx context.Context, entry library.Entry) (res TitleResult) {
	start := time.Now()
	res = TitleResult{LibraryID: entry.LibraryID(), Title: entry.Title}
	defer func() {
		res.Duration = time.Since(start)
		r.logTitle(res)
	}()

	ref, err := r.o.mapper.Resolve(entry)
	if err != nil {
		res.Status = StatusFailed
		if errors.Is(err, mapping.ErrMappingNotFound) {
			res.Status = StatusNoMapping
		}
		res.Error = err.Error()
		return res
	}
	res.Resolved = true
	res.Title = ref.Title

	var episodes []media.EpisodeRef
	for _, ep := range r.o.episodeRefs(ref, entry) {
		if movie, ok := r.ownedByRadarr(ep); ok {
			r.logger.Info().
				Str("title", ref.Title).
				Str("episode", ep.String()).
				Str("movie", movie).
				Msg("Special found in Radarr, skipping")
			res.Episodes = append(res.Episodes, EpisodeResult{Key: ep.Key(), Episode: ep.String(), Status: StatusInRadarr})
			continue
		}
		episodes = append(episodes, ep)
	}

	groups := groupByCoverage(episodes, r.coverage)
	if len(groups) == 0 {
		res.Status = StatusNoEpisodes
		if len(res.Episodes) > 0 {
			res.Status = StatusInRadarr
		}
		return res
	}
	if r.cap.reached() {
		res.Status = StatusDeferredCap
		return res
	}

	candidates, err := r.fetchAll(ctx, groups)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			res.Status = StatusCancelled
		case errors.Is(err, seadex.ErrIndexUnavailable):
			res.Status = StatusIndexUnavailable
		default:
			res.Status = StatusFailed
		}
		res.Error = err.Error()
		r.notifySkipped(ctx, res)
		return res
	}

	t := &titleRun{
		ref:         ref,
		category:    r.o.cfg.Categories[entry.App],
		submissions: make(map[string]error),
		acquired:    make(map[string][]string),
		releases:    make(map[string]media.Candidate),
	}

	var aborted error
	for _, grp := range groups {
		episodes, err := r.processGroup(ctx, t, grp, candidates)
		for _, ep := range episodes {
			r.logEpisode(ref.Title, ep)
		}
		res.Episodes = append(res.Episodes, episodes...)
		if err != nil {
			aborted = err
			break
		}
	}

	res.Status = titleStatus(res.Episodes, t.interactive)
	if aborted != nil {
		res.Error = aborted.Error()
	}

	for _, id := range t.order {
		r.o.notify(ctx, notification.TitleChosenEvent{
			RunID:       r.id,
			Title:       ref.Title,
			LibraryID:   ref.LibraryID,
			Episodes:    t.acquired[id],
			Release:     t.releases[id],
			Interactive: t.interactive,
			DryRun:      r.o.cfg.DryRun,
			ChosenAt:    r.o.now(),
		})
	}
	if res.Status.Failure() || res.Status == StatusSkippedUser {
		r.notifySkipped(ctx, res)
	}
	return res
}

func (r *run) notifySkipped(ctx context.Context, res TitleResult) {
	r.o.notify(ctx, notification.TitleSkippedEvent{
		RunID:     r.id,
		Title:     res.Title,
		LibraryID: res.LibraryID,
		Reason:    string(res.Status),
		Detail:    res.Error,
	})
}

// episodeRefs lists the episodes of the entry that some release-index ref covers.
func (o *Orchestrator) episodeRefs(ref media.TitleRef, entry library.Entry) []media.EpisodeRef {
	if ref.Kind == media.KindMovie {
		group := ""
		for _, ep := range entry.Episodes {
			if ep.ReleaseGroup != "" {
				group = ep.ReleaseGroup
				break
			}
		}
		return []media.EpisodeRef{media.MovieRef(ref, group)}
	}

	var out []media.EpisodeRef
	for _, ep := range entry.Episodes {
		if o.cfg.MonitoredOnly && !ep.Monitored {
			continue
		}
		e := media.EpisodeRef{Title: ref, Season: ep.Season, Episode: ep.Episode, ReleaseGroup: ep.ReleaseGroup}
		if len(media.CoveringRefs(e)) == 0 {
			continue
		}
		out = append(out, e)
	}
	return out
}

// ownedByRadarr reports whether every ref covering a series special names a
// movie Radarr lists, returning that movie's title.
func (r *run) ownedByRadarr(ep media.EpisodeRef) (string, bool) {
	if r.radarr.Len() == 0 || ep.Title.Kind != media.KindSeries || !ep.IsSpecial() {
		return "", false
	}
	refs := media.CoveringRefs(ep)
	if len(refs) == 0 {
		return "", false
	}
	var movie string
	for _, ref := range refs {
		title, ok := r.radarr.Title(ref)
		if !ok {
			return "", false
		}
		if movie == "" {
			movie = title
		}
	}
	return movie, true
}

// coverage returns the refs covering ep, minus specials refs owned by Radarr.
func (r *run) coverage(ep media.EpisodeRef) []media.IndexRef {
	refs := media.CoveringRefs(ep)
	if r.radarr.Len() == 0 || ep.Title.Kind != media.KindSeries || !ep.IsSpecial() {
		return refs
	}
	kept := refs[:0]
	for _, ref := range refs {
		if _, ok := r.radarr.Title(ref); !ok {
			kept = append(kept, ref)
		}
	}
	return kept
}

func groupByCoverage(episodes []media.EpisodeRef, cover func(media.EpisodeRef) []media.IndexRef) []episodeGroup {
	var groups []episodeGroup
	index := make(map[string]int)
	for _, ep := range episodes {
		refs := cover(ep)
		key := refsKey(refs)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, episodeGroup{refs: refs})
		}
		groups[i].episodes = append(groups[i].episodes, ep)
	}
	return groups
}

func refsKey(refs []media.IndexRef) string {
	parts := make([]string, 0, len(refs))
	for _, ref := range refs {
		eps := make([]string, 0, len(ref.Episodes))
		for _, e := range ref.Episodes {
			eps = append(eps, strconv.Itoa(e))
		}
		parts = append(parts, fmt.Sprintf("%d/%d/%d/%s", ref.ID, ref.Season, ref.EpisodeOffset, strings.Join(eps, ",")))
	}
	return strings.Join(parts, "|")
}

// fetchAll queries the index once per distinct ID the groups need, in mapping order.
func (r *run) fetchAll(ctx context.Context, groups []episodeGroup) (map[int][]media.Candidate, error) {
	out := make(map[int][]media.Candidate)
	for _, grp := range groups {
		for _, ref := range grp.refs {
			if _, ok := out[ref.ID]; ok {
				continue
			}
			cands, err := r.o.index.Fetch(ctx, ref.ID)
			if err != nil {
				return nil, err
			}
			out[ref.ID] = cands
		}
	}
	return out, nil
}

// mergeCandidates concatenates the candidates of every ref, dropping repeats.
func mergeCandidates(refs []media.IndexRef, candidates map[int][]media.Candidate) []media.Candidate {
	seen := make(map[string]struct{})
	var out []media.Candidate
	for _, ref := range refs {
		for _, c := range candidates[ref.ID] {
			if _, ok := seen[c.ID]; ok {
				continue
			}
			seen[c.ID] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// processGroup runs filter, selection and dispatch for one episode group. A
// non-nil error means the rest of the title must not be dispatched.
func (r *run) processGroup(ctx context.Context, t *titleRun, grp episodeGroup, candidates map[int][]media.Candidate) ([]EpisodeResult, error) {
	filtered, trace := r.o.pipeline.ApplyTrace(mergeCandidates(grp.refs, candidates), r.o.cfg.Filter)
	r.logger.Debug().
		Str("title", t.ref.Title).
		Str("refs", refsKey(grp.refs)).
		Str("stages", trace.String()).
		Msg("Filtered candidates")

	outcome := selection.Resolve(filtered, r.o.cfg.Filter)
	if outcome.Kind == selection.NoneFound {
		return allEpisodes(grp.episodes, StatusNoCandidates, nil), nil
	}

	var results []EpisodeResult
	var pending []media.EpisodeRef
	for _, ep := range grp.episodes {
		if status, ok := r.preSatisfied(ctx, ep, filtered); ok {
			results = append(results, EpisodeResult{Key: ep.Key(), Episode: ep.String(), Status: status})
			continue
		}
		pending = append(pending, ep)
	}
	if len(pending) == 0 {
		return results, nil
	}

	interactive := outcome.Kind == selection.AwaitingUserChoice
	if interactive {
		if r.cap.reached() {
			return append(results, allEpisodes(pending, StatusDeferredCap, nil)...), nil
		}
		prompt := selection.Prompt{Title: t.ref.Title, Episodes: episodeNames(pending)}
		resolved, skipped, err := selection.Ask(ctx, outcome, prompt, r.o.chooser)
		if err != nil {
			status := StatusFailed
			if ctx.Err() != nil {
				status = StatusCancelled
			}
			return append(results, allEpisodes(pending, status, err)...), err
		}
		if skipped {
			return append(results, allEpisodes(pending, StatusSkippedUser, nil)...), nil
		}
		outcome = resolved
	}

	for _, ep := range pending {
		res, err := r.dispatch(ctx, t, ep, outcome.Candidate, filtered, interactive)
		results = append(results, res)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// preSatisfied is the unlocked check used to avoid prompting for work that is
// already done. dispatch repeats the ledger check under the key lock.
func (r *run) preSatisfied(ctx context.Context, ep media.EpisodeRef, survivors []media.Candidate) (Status, bool) {
	for _, c := range survivors {
		if c.MatchesGroup(ep.ReleaseGroup) {
			return StatusAlreadyHaveGroup, true
		}
	}
	entry, ok, err := r.o.ledger.Get(ctx, ep)
	if err == nil && ok && containsRelease(survivors, entry.ReleaseIndexID) {
		return StatusAlreadySatisfied, true
	}
	return "", false
}

// dispatch submits the chosen release for one episode and records it, holding
// the episode's ledger lock throughout.
func (r *run) dispatch(ctx context.Context, t *titleRun, ep media.EpisodeRef, c media.Candidate, survivors []media.Candidate, interactive bool) (EpisodeResult, error) {
	res := EpisodeResult{Key: ep.Key(), Episode: ep.String()}

	unlock, err := r.o.ledger.Lock(ctx, ledger.KeyOf(ep))
	if err != nil {
		res.Status = StatusCancelled
		res.Error = err.Error()
		return res, err
	}
	defer unlock()

	existing, found, err := r.o.ledger.Get(ctx, ep)
	if err != nil {
		res.Status = StatusLedgerWriteError
		res.Error = err.Error()
		return res, err
	}
	if found && containsRelease(survivors, existing.ReleaseIndexID) {
		res.Status = StatusAlreadySatisfied
		return res, nil
	}

	submitErr, submitted := t.submissions[c.ID]
	if !submitted {
		if !r.cap.reserve() {
			res.Status = StatusDeferredCap
			return res, nil
		}
		submitErr = r.submit(ctx, t, c)
		if submitErr != nil {
			r.cap.release()
		}
		t.submissions[c.ID] = submitErr
	}
	if submitErr != nil {
		res.Status = StatusSubmitError
		res.Error = submitErr.Error()
		return res, nil
	}

	release := c
	res.Release = &release
	if r.o.cfg.DryRun {
		res.Status = StatusWouldAcquire
		t.markAcquired(ep, c, interactive)
		return res, nil
	}

	// The release is with the torrent client now; record it even if the run
	// is being cancelled.
	writeCtx := context.WithoutCancel(ctx)
	var entry ledger.Entry
	if found {
		entry, err = r.o.ledger.Supersede(writeCtx, ep, existing, c)
		res.Status = StatusSuperseded
	} else {
		var written bool
		entry, written, err = r.o.ledger.Record(writeCtx, ep, c)
		if err == nil && !written {
			res.Status = StatusAlreadySatisfied
			return res, nil
		}
		res.Status = StatusChosenAuto
		if interactive {
			res.Status = StatusChosenInteractive
		}
	}

	if err != nil {
		if errors.Is(err, ledger.ErrAlreadyRecorded) || errors.Is(err, ledger.ErrSupersedeConflict) {
			r.logger.Warn().Err(err).Str("key", res.Key).Msg("Ledger entry changed by another writer")
			res.Status = StatusAlreadySatisfied
			return res, nil
		}
		res.Status = StatusLedgerWriteError
		res.Error = err.Error()
		return res, err
	}

	r.addWrite(entry)
	t.markAcquired(ep, c, interactive)
	return res, nil
}

func (r *run) submit(ctx context.Context, t *titleRun, c media.Candidate) error {
	err := r.o.submitter.Submit(ctx, downloader.Request{Candidate: c, Category: t.category})
	if errors.Is(err, downloader.ErrAlreadyPresent) {
		r.logger.Info().
			Str("title", t.ref.Title).
			Str("release", c.ID).
			Msg("Release already in torrent client")
		return nil
	}
	return err
}

// titleStatus folds episode outcomes into one status for the title.
func titleStatus(episodes []EpisodeResult, interactive bool) Status {
	seen := make(map[Status]bool)
	for _, ep := range episodes {
		seen[ep.Status] = true
	}

	acquired := seen[StatusChosenAuto] || seen[StatusChosenInteractive] ||
		seen[StatusSuperseded] || seen[StatusWouldAcquire]

	switch {
	case seen[StatusLedgerWriteError]:
		return StatusLedgerWriteError
	case acquired && interactive:
		return StatusChosenInteractive
	case acquired:
		return StatusChosenAuto
	case seen[StatusSubmitError]:
		return StatusSubmitError
	case seen[StatusFailed]:
		return StatusFailed
	case seen[StatusCancelled]:
		return StatusCancelled
	case seen[StatusDeferredCap]:
		return StatusDeferredCap
	case seen[StatusSkippedUser]:
		return StatusSkippedUser
	case seen[StatusAlreadySatisfied], seen[StatusAlreadyHaveGroup]:
		return StatusAlreadySatisfied
	case seen[StatusNoCandidates]:
		return StatusNoCandidates
	case seen[StatusInRadarr]:
		return StatusInRadarr
	default:
		return StatusNoCandidates
	}
}

func allEpisodes(episodes []media.EpisodeRef, status Status, err error) []EpisodeResult {
	out := make([]EpisodeResult, 0, len(episodes))
	for _, ep := range episodes {
		res := EpisodeResult{Key: ep.Key(), Episode: ep.String(), Status: status}
		if err != nil {
			res.Error = err.Error()
		}
		out = append(out, res)
	}
	return out
}

func episodeNames(episodes []media.EpisodeRef) []string {
	names := make([]string, 0, len(episodes))
	for _, ep := range episodes {
		names = append(names, ep.String())
	}
	return names
}

func containsRelease(candidates []media.Candidate, id string) bool {
	for _, c := range candidates {
		if c.ID == id {
			return true
		}
	}
	return false
}
