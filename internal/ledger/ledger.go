// Package ledger records which releases have been acquired so each episode is
// acquired at most once.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/seadexarr/seadexarr/internal/media"
)

// Ledger enforces at-most-one entry per key over a Store. It never decides to
// supersede on its own; callers must ask explicitly.
type Ledger struct {
	store  Store
	locks  *KeyLock
	now    func() time.Time
	logger zerolog.Logger
}

// New creates a Ledger.
func New(store Store, logger zerolog.Logger) *Ledger {
	return &Ledger{
		store:  store,
		locks:  NewKeyLock(),
		now:    time.Now,
		logger: logger.With().Str("component", "ledger").Logger(),
	}
}

// Lock serializes work on one key across workers. The returned func releases it.
func (l *Ledger) Lock(ctx context.Context, key Key) (func(), error) {
	k := key.String()
	if err := l.locks.Lock(ctx, k); err != nil {
		return nil, err
	}
	return func() { l.locks.Release(k) }, nil
}

// IsSatisfied reports whether the episode already has a recorded acquisition.
func (l *Ledger) IsSatisfied(ctx context.Context, e media.EpisodeRef) (bool, error) {
	_, ok, err := l.Get(ctx, e)
	return ok, err
}

// Get returns the entry recorded for the episode, if any.
func (l *Ledger) Get(ctx context.Context, e media.EpisodeRef) (Entry, bool, error) {
	entry, ok, err := l.store.Get(ctx, KeyOf(e))
	if err != nil {
		return Entry{}, false, fmt.Errorf("ledger lookup %s: %w", KeyOf(e), err)
	}
	return entry, ok, nil
}

// Record stores the chosen release for the episode. Recording the release
// already stored is a no-op (written is false); recording a different one
// fails with ErrAlreadyRecorded.
func (l *Ledger) Record(ctx context.Context, e media.EpisodeRef, c media.Candidate) (entry Entry, written bool, err error) {
	want := newEntry(e, c, l.now())

	stored, inserted, err := l.store.InsertIfAbsent(ctx, want)
	if err != nil {
		return Entry{}, false, fmt.Errorf("%w: %s: %w", ErrLedgerWrite, want.Key, err)
	}
	if inserted {
		l.logger.Debug().Str("key", want.Key.String()).Str("release", c.ID).Msg("recorded acquisition")
		return stored, true, nil
	}
	if stored.ReleaseIndexID == c.ID {
		return stored, false, nil
	}
	return stored, false, fmt.Errorf("%w: %s holds %s", ErrAlreadyRecorded, want.Key, stored.ReleaseIndexID)
}

// Supersede replaces previous with the new release. It fails with
// ErrSupersedeConflict if the stored entry is no longer previous.
func (l *Ledger) Supersede(ctx context.Context, e media.EpisodeRef, previous Entry, c media.Candidate) (Entry, error) {
	want := newEntry(e, c, l.now())
	if previous.Key != want.Key {
		return Entry{}, fmt.Errorf("%w: %s is not %s", ErrSupersedeConflict, previous.Key, want.Key)
	}

	ok, err := l.store.Replace(ctx, want, previous.ReleaseIndexID)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %s: %w", ErrLedgerWrite, want.Key, err)
	}
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrSupersedeConflict, want.Key)
	}

	l.logger.Info().
		Str("key", want.Key.String()).
		Str("previous", previous.ReleaseIndexID).
		Str("release", c.ID).
		Msg("superseded acquisition")
	return want, nil
}

// List returns every entry, newest first.
func (l *Ledger) List(ctx context.Context) ([]Entry, error) {
	return l.store.List(ctx)
}

// Forget removes an entry so the episode is considered again on the next run.
func (l *Ledger) Forget(ctx context.Context, key Key) (bool, error) {
	unlock, err := l.Lock(ctx, key)
	if err != nil {
		return false, err
	}
	defer unlock()

	ok, err := l.store.Delete(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%w: forget %s: %w", ErrLedgerWrite, key, err)
	}
	return ok, nil
}
