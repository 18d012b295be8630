// Package orchestrator drives a sync run: for every library title it resolves
// release-index IDs, fetches and filters candidates, selects a release, checks
// the ledger and dispatches the acquisition.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/seadexarr/seadexarr/internal/config"
	"github.com/seadexarr/seadexarr/internal/downloader"
	"github.com/seadexarr/seadexarr/internal/filter"
	"github.com/seadexarr/seadexarr/internal/ledger"
	"github.com/seadexarr/seadexarr/internal/library"
	"github.com/seadexarr/seadexarr/internal/media"
	"github.com/seadexarr/seadexarr/internal/notification"
	"github.com/seadexarr/seadexarr/internal/selection"
)

// Mapper resolves a library entry to its release-index identifiers.
type Mapper interface {
	Resolve(entry library.Entry) (media.TitleRef, error)
}

// Index fetches candidate releases for one release-index ID.
type Index interface {
	Fetch(ctx context.Context, indexID int) ([]media.Candidate, error)
}

// Notifier receives best-effort run events.
type Notifier interface {
	Notify(ctx context.Context, event notification.Event)
}

// Config holds the per-run settings.
type Config struct {
	Filter        config.FilterConfig
	Concurrency   int
	DryRun        bool
	MonitoredOnly bool
	// IgnoreMoviesInRadarr skips series specials whose mapping names a movie
	// listed by the Radarr provider.
	IgnoreMoviesInRadarr bool
	// Categories maps library apps to torrent client categories.
	Categories map[library.App]string
}

// Orchestrator runs syncs. It is safe to call Run repeatedly but not concurrently.
type Orchestrator struct {
	cfg       Config
	library   library.Provider
	mapper    Mapper
	index     Index
	pipeline  *filter.Pipeline
	ledger    *ledger.Ledger
	submitter downloader.Submitter
	notifier  Notifier
	chooser   selection.Chooser
	logger    zerolog.Logger
	now       func() time.Time
}

// New creates an orchestrator. A nil submitter turns the run into a dry run:
// nothing reaches a torrent client, so nothing may be recorded in the ledger.
func New(
	cfg Config,
	lib library.Provider,
	mapper Mapper,
	index Index,
	l *ledger.Ledger,
	submitter downloader.Submitter,
	logger zerolog.Logger,
) *Orchestrator {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if submitter == nil {
		cfg.DryRun = true
	}
	if cfg.DryRun {
		submitter = downloader.DryRun{Logger: logger}
	}
	return &Orchestrator{
		cfg:       cfg,
		library:   lib,
		mapper:    mapper,
		index:     index,
		pipeline:  filter.New(),
		ledger:    l,
		submitter: submitter,
		logger:    logger.With().Str("component", "orchestrator").Logger(),
		now:       time.Now,
	}
}

// SetNotifier sets where run events are sent.
func (o *Orchestrator) SetNotifier(n Notifier) {
	o.notifier = n
}

// SetChooser sets the interactive tie-breaker. Without one, ties in
// interactive mode are skipped.
func (o *Orchestrator) SetChooser(c selection.Chooser) {
	o.chooser = c
}

// SetPipeline replaces the standard filter pipeline.
func (o *Orchestrator) SetPipeline(p *filter.Pipeline) {
	o.pipeline = p
}

// run holds the state shared by the title workers of one Run.
type run struct {
	o      *Orchestrator
	id     string
	cap    *acquisitionCap
	logger zerolog.Logger

	// radarr holds the movies that own matching series specials.
	radarr media.MovieSet

	mu     sync.Mutex
	writes []ledger.Entry
}

// Run performs one pass over the library. It only fails when the library
// cannot be listed; every per-title problem is reported in the summary.
// Cancellation is honoured between titles.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	runID := uuid.NewString()
	logger := o.logger.With().Str("run", runID).Logger()
	summary := &Summary{RunID: runID, StartedAt: o.now(), DryRun: o.cfg.DryRun}

	entries, err := o.library.ListTitlesNeedingSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list library titles: %w", err)
	}

	logger.Info().
		Int("titles", len(entries)).
		Int("concurrency", o.cfg.Concurrency).
		Int("cap", o.cfg.Filter.MaxAcquisitionsPerRun).
		Bool("dryRun", o.cfg.DryRun).
		Msg("Starting sync run")

	r := &run{
		o:      o,
		id:     runID,
		cap:    newAcquisitionCap(o.cfg.Filter.MaxAcquisitionsPerRun),
		logger: logger,
	}
	if o.cfg.IgnoreMoviesInRadarr {
		r.radarr = radarrMovies(entries)
		logger.Debug().Int("ids", r.radarr.Len()).Msg("Indexed Radarr movies for specials matching")
	}
	results := make([]*TitleResult, len(entries))

	var g errgroup.Group
	g.SetLimit(o.cfg.Concurrency)
	for i, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// Checkpoint: titles that get a worker after cancellation are not started.
			if ctx.Err() != nil {
				return nil
			}
			res := r.processTitle(ctx, entry)
			results[i] = &res
			return nil
		})
	}
	_ = g.Wait()

	summary.Cancelled = ctx.Err() != nil
	for _, res := range results {
		if res == nil {
			continue
		}
		summary.Titles = append(summary.Titles, *res)
		summary.Counts.add(*res)
	}
	summary.Counts.Submitted = r.cap.count()
	summary.LedgerWrites = r.writes
	summary.FinishedAt = o.now()

	logger.Info().
		Int("resolved", summary.Counts.Resolved).
		Int("chosenAuto", summary.Counts.ChosenAuto).
		Int("chosenInteractive", summary.Counts.ChosenInteractive).
		Int("submitted", summary.Counts.Submitted).
		Int("noMapping", summary.Counts.SkippedNoMapping).
		Int("noCandidates", summary.Counts.SkippedNoCandidates).
		Int("deferredCap", summary.Counts.DeferredCap).
		Int("inRadarr", summary.Counts.SkippedInRadarr).
		Int("failed", summary.Counts.Failed).
		Int("ledgerWrites", len(summary.LedgerWrites)).
		Bool("cancelled", summary.Cancelled).
		Dur("took", summary.Duration()).
		Msg("Sync run complete")

	o.notify(ctx, summary.event())
	return summary, nil
}

func radarrMovies(entries []library.Entry) media.MovieSet {
	var set media.MovieSet
	for _, e := range entries {
		if e.App == library.AppRadarr {
			set.Add(e.Title, e.TMDBID, e.IMDbID)
		}
	}
	return set
}

func (o *Orchestrator) notify(ctx context.Context, event notification.Event) {
	if o.notifier != nil {
		o.notifier.Notify(ctx, event)
	}
}

func (r *run) addWrite(e ledger.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, e)
}

func (r *run) logTitle(res TitleResult) {
	ev := r.logger.Info()
	if res.Status.Failure() {
		ev = r.logger.Warn()
	}
	ev = ev.
		Str("title", res.Title).
		Str("libraryId", res.LibraryID).
		Str("status", string(res.Status)).
		Int("episodes", len(res.Episodes)).
		Dur("took", res.Duration)
	if res.Error != "" {
		ev = ev.Str("error", res.Error)
	}
	ev.Msg("Title processed")
}

func (r *run) logEpisode(title string, res EpisodeResult) {
	var ev *zerolog.Event
	switch {
	case res.Status.Failure():
		ev = r.logger.Warn()
	case res.Status == StatusChosenAuto, res.Status == StatusChosenInteractive,
		res.Status == StatusSuperseded, res.Status == StatusWouldAcquire:
		ev = r.logger.Info()
	default:
		ev = r.logger.Debug()
	}
	ev = ev.Str("title", title).Str("episode", res.Episode).Str("status", string(res.Status))
	if res.Release != nil {
		ev = ev.Str("release", res.Release.ID).Str("group", res.Release.ReleaseGroup)
	}
	if res.Error != "" {
		ev = ev.Str("error", res.Error)
	}
	ev.Msg("Episode processed")
}
