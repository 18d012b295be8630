package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteStore keeps the ledger in the acquisitions table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps a migrated database connection.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const entryColumns = `library_id, season, episode, release_index_id, index_id, title, release_group, acquired_at`

func (s *SQLiteStore) Get(ctx context.Context, key Key) (Entry, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM acquisitions WHERE library_id = ? AND season = ? AND episode = ?`,
		key.LibraryID, key.Season, key.Episode)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

func (s *SQLiteStore) InsertIfAbsent(ctx context.Context, e Entry) (Entry, bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO acquisitions (`+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (library_id, season, episode) DO NOTHING`,
		e.LibraryID, e.Season, e.Episode, e.ReleaseIndexID, e.IndexID, e.Title, e.ReleaseGroup, formatTime(e.AcquiredAt))
	if err != nil {
		return Entry{}, false, fmt.Errorf("insert acquisition: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return Entry{}, false, fmt.Errorf("insert acquisition: %w", err)
	}
	if n == 1 {
		return e, true, nil
	}

	existing, ok, err := s.Get(ctx, e.Key)
	if err != nil {
		return Entry{}, false, err
	}
	if !ok {
		return Entry{}, false, fmt.Errorf("insert acquisition: %s vanished after conflict", e.Key)
	}
	return existing, false, nil
}

func (s *SQLiteStore) Replace(ctx context.Context, e Entry, expectedReleaseID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE acquisitions
		 SET release_index_id = ?, index_id = ?, title = ?, release_group = ?, acquired_at = ?
		 WHERE library_id = ? AND season = ? AND episode = ? AND release_index_id = ?`,
		e.ReleaseIndexID, e.IndexID, e.Title, e.ReleaseGroup, formatTime(e.AcquiredAt),
		e.LibraryID, e.Season, e.Episode, expectedReleaseID)
	if err != nil {
		return false, fmt.Errorf("replace acquisition: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("replace acquisition: %w", err)
	}
	return n == 1, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM acquisitions ORDER BY acquired_at DESC, library_id, season, episode`)
	if err != nil {
		return nil, fmt.Errorf("list acquisitions: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, key Key) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM acquisitions WHERE library_id = ? AND season = ? AND episode = ?`,
		key.LibraryID, key.Season, key.Episode)
	if err != nil {
		return false, fmt.Errorf("delete acquisition: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete acquisition: %w", err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var e Entry
	var acquired string
	err := row.Scan(&e.LibraryID, &e.Season, &e.Episode, &e.ReleaseIndexID, &e.IndexID, &e.Title, &e.ReleaseGroup, &acquired)
	if err != nil {
		return Entry{}, err
	}
	if e.AcquiredAt, err = parseTime(acquired); err != nil {
		return Entry{}, fmt.Errorf("acquisition %s: %w", e.Key, err)
	}
	return e, nil
}

// timeLayout has fixed width so acquired_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid acquired_at %q", s)
}
