package ledger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seadexarr/seadexarr/internal/media"
	"github.com/seadexarr/seadexarr/internal/testutil"
)

func stores(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"sqlite": func() Store { return NewSQLiteStore(testutil.NewTestDB(t).Conn) },
	}
}

var (
	frieren = testutil.Series("sonarr:1", "Frieren", 154587)
	ep1     = testutil.Episode(frieren, 1, 1)
	okay    = testutil.Candidate("t1", 154587, "Okay-Subs")
	lost    = testutil.Candidate("t2", 154587, "LostYears")
)

func fixedClock(l *Ledger, at time.Time) {
	l.now = func() time.Time { return at }
}

func TestLedger_RecordIsIdempotent(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := New(newStore(), zerolog.Nop())

			ok, err := l.IsSatisfied(ctx, ep1)
			require.NoError(t, err)
			assert.False(t, ok)

			entry, written, err := l.Record(ctx, ep1, okay)
			require.NoError(t, err)
			assert.True(t, written)
			assert.Equal(t, "sonarr:1:1:1", entry.Key.String())

			_, written, err = l.Record(ctx, ep1, okay)
			require.NoError(t, err)
			assert.False(t, written, "same release is a no-op")

			entries, err := l.List(ctx)
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, "t1", entries[0].ReleaseIndexID)
			assert.Equal(t, "Okay-Subs", entries[0].ReleaseGroup)
			assert.Equal(t, "Frieren", entries[0].Title)

			ok, err = l.IsSatisfied(ctx, ep1)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestLedger_RefusesSilentOverwrite(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := New(newStore(), zerolog.Nop())

			_, _, err := l.Record(ctx, ep1, okay)
			require.NoError(t, err)

			_, _, err = l.Record(ctx, ep1, lost)
			assert.ErrorIs(t, err, ErrAlreadyRecorded)

			entry, ok, err := l.Get(ctx, ep1)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "t1", entry.ReleaseIndexID)
		})
	}
}

func TestLedger_Supersede(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := New(newStore(), zerolog.Nop())
			start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
			fixedClock(l, start)

			previous, _, err := l.Record(ctx, ep1, okay)
			require.NoError(t, err)

			fixedClock(l, start.Add(time.Hour))
			replaced, err := l.Supersede(ctx, ep1, previous, lost)
			require.NoError(t, err)
			assert.Equal(t, "t2", replaced.ReleaseIndexID)

			entry, _, err := l.Get(ctx, ep1)
			require.NoError(t, err)
			assert.Equal(t, "t2", entry.ReleaseIndexID)
			assert.True(t, entry.AcquiredAt.Equal(start.Add(time.Hour)), "acquired_at = %v", entry.AcquiredAt)

			// previous is stale now
			_, err = l.Supersede(ctx, ep1, previous, okay)
			assert.ErrorIs(t, err, ErrSupersedeConflict)

			other := testutil.Episode(frieren, 1, 2)
			_, err = l.Supersede(ctx, other, entry, okay)
			assert.ErrorIs(t, err, ErrSupersedeConflict)
		})
	}
}

func TestLedger_ListNewestFirstAndForget(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := New(newStore(), zerolog.Nop())
			start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

			for i, ep := range []media.EpisodeRef{ep1, testutil.Episode(frieren, 1, 2), testutil.Episode(frieren, 0, 1)} {
				fixedClock(l, start.Add(time.Duration(i)*time.Minute))
				_, _, err := l.Record(ctx, ep, okay)
				require.NoError(t, err)
			}

			entries, err := l.List(ctx)
			require.NoError(t, err)
			require.Len(t, entries, 3)
			assert.Equal(t, "sonarr:1:0:1", entries[0].Key.String())
			assert.Equal(t, "sonarr:1:1:1", entries[2].Key.String())

			removed, err := l.Forget(ctx, KeyOf(ep1))
			require.NoError(t, err)
			assert.True(t, removed)

			removed, err = l.Forget(ctx, KeyOf(ep1))
			require.NoError(t, err)
			assert.False(t, removed)

			ok, err := l.IsSatisfied(ctx, ep1)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestLedger_SpecialsAndMoviesAreDistinctKeys(t *testing.T) {
	ctx := context.Background()
	l := New(NewMemoryStore(), zerolog.Nop())

	_, _, err := l.Record(ctx, testutil.Episode(frieren, 1, 1), okay)
	require.NoError(t, err)

	ok, err := l.IsSatisfied(ctx, testutil.Episode(frieren, 0, 1))
	require.NoError(t, err)
	assert.False(t, ok, "S00E01 must not be satisfied by S01E01")

	movie := media.MovieRef(media.TitleRef{LibraryID: "radarr:1"}, "")
	assert.Equal(t, "radarr:1:-1:-1", KeyOf(movie).String())
}

// Many workers race for the same key; exactly one writes.
func TestLedger_ConcurrentRecordSameKey(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := New(newStore(), zerolog.Nop())

			var writes, skips int32
			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					unlock, err := l.Lock(ctx, KeyOf(ep1))
					if err != nil {
						t.Error(err)
						return
					}
					defer unlock()

					done, err := l.IsSatisfied(ctx, ep1)
					if err != nil {
						t.Error(err)
						return
					}
					if done {
						atomic.AddInt32(&skips, 1)
						return
					}
					if _, written, err := l.Record(ctx, ep1, okay); err != nil {
						t.Error(err)
					} else if written {
						atomic.AddInt32(&writes, 1)
					}
				}()
			}
			wg.Wait()

			assert.EqualValues(t, 1, writes)
			assert.EqualValues(t, 15, skips)
			entries, err := l.List(ctx)
			require.NoError(t, err)
			assert.Len(t, entries, 1)
		})
	}
}

// Without the lock the store's insert-if-absent still keeps one entry.
func TestLedger_ConcurrentRecordWithoutLock(t *testing.T) {
	ctx := context.Background()
	l := New(NewSQLiteStore(testutil.NewTestDB(t).Conn), zerolog.Nop())

	var writes int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, written, err := l.Record(ctx, ep1, okay); err == nil && written {
				atomic.AddInt32(&writes, 1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, writes)
}

type brokenStore struct{ *MemoryStore }

var errDiskFull = errors.New("disk full")

func (*brokenStore) InsertIfAbsent(context.Context, Entry) (Entry, bool, error) {
	return Entry{}, false, errDiskFull
}

func TestLedger_WriteErrors(t *testing.T) {
	l := New(&brokenStore{MemoryStore: NewMemoryStore()}, zerolog.Nop())
	_, _, err := l.Record(context.Background(), ep1, okay)
	assert.ErrorIs(t, err, ErrLedgerWrite)
	assert.ErrorIs(t, err, errDiskFull)
}

func TestParseKey(t *testing.T) {
	k, err := ParseKey("sonarr:12:0:3")
	require.NoError(t, err)
	assert.Equal(t, Key{LibraryID: "sonarr:12", Season: 0, Episode: 3}, k)

	k, err = ParseKey("radarr:7:-1:-1")
	require.NoError(t, err)
	assert.Equal(t, Key{LibraryID: "radarr:7", Season: -1, Episode: -1}, k)

	for _, bad := range []string{"", "sonarr", "1:2", "sonarr:1:x:1", "sonarr:1:1:y", ":1:1"} {
		_, err := ParseKey(bad)
		assert.ErrorIs(t, err, ErrInvalidKey, bad)
	}
}
