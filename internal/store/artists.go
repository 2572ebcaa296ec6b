package store

import (
	"context"
	"fmt"
	"time"

	"github.com/franz/spotify-manager/internal/music"
	"github.com/franz/spotify-manager/internal/util"
)

// InsertArtists inserts artists that are not stored yet. Existing rows are
// left untouched.
func (s *Store) InsertArtists(ctx context.Context, artists []music.Artist) error {
	return s.execBatch(ctx, "insert artists", `
		INSERT INTO artists (id, name)
		     VALUES (?, ?)
		ON CONFLICT (id)
		         DO NOTHING
	`, len(artists), func(i int) []any {
		return []any{artists[i].ID, artists[i].Name}
	})
}

// UpdateArtistTimeFetched stamps an artist as having all of its albums
// stored. The stamp only moves forward.
func (s *Store) UpdateArtistTimeFetched(ctx context.Context, id string) error {
	res, err := s.exec(ctx, "update artist time fetched", `
		UPDATE artists
		   SET time_fetched = MAX(time_fetched, ?)
		 WHERE id = ?
	`, s.now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update artist time fetched: %w", err)
	}
	if res == nil {
		return nil
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("artist %s: %w", id, util.ErrNotFound)
	}
	return nil
}

// GetArtists returns every stored artist
func (s *Store) GetArtists(ctx context.Context) ([]music.Artist, error) {
	return s.queryArtists(ctx, `
		SELECT id,
		       name,
		       time_fetched
		  FROM artists
	`)
}

// GetArtistsToFetch returns artists whose albums were never fetched, plus,
// when staleBefore is non-zero, artists last fetched before it
func (s *Store) GetArtistsToFetch(ctx context.Context, staleBefore time.Time) ([]music.Artist, error) {
	return s.queryArtists(ctx, `
		SELECT id,
		       name,
		       time_fetched
		  FROM artists
		 WHERE time_fetched < ?
	`, fetchCutoff(staleBefore))
}

func (s *Store) queryArtists(ctx context.Context, query string, args ...any) ([]music.Artist, error) {
	rows, err := s.reader().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query artists: %w", err)
	}
	defer rows.Close()

	var artists []music.Artist
	for rows.Next() {
		var a music.Artist
		if err := rows.Scan(&a.ID, &a.Name, &a.TimeFetched); err != nil {
			return nil, fmt.Errorf("failed to scan artist: %w", err)
		}
		artists = append(artists, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query artists: %w", err)
	}

	return artists, nil
}

// fetchCutoff converts a staleness bound into a time_fetched upper bound.
// The zero time selects only never-fetched rows.
func fetchCutoff(staleBefore time.Time) int64 {
	if staleBefore.IsZero() {
		return 1
	}
	return staleBefore.Unix()
}
