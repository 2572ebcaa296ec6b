package store

import (
	"context"
	"fmt"
	"time"

	"github.com/franz/spotify-manager/internal/music"
	"github.com/franz/spotify-manager/internal/util"
)

// InsertAlbums inserts albums that are not stored yet. Existing rows keep
// their name and artist.
func (s *Store) InsertAlbums(ctx context.Context, albums []music.Album) error {
	return s.execBatch(ctx, "insert albums", `
		INSERT INTO albums (id, name, artist_id)
		     VALUES (?, ?, ?)
		ON CONFLICT (id)
		         DO NOTHING
	`, len(albums), func(i int) []any {
		return []any{albums[i].ID, albums[i].Name, albums[i].ArtistID}
	})
}

// UpdateAlbumTimeFetched stamps an album as having all of its tracks stored.
// The stamp only moves forward.
func (s *Store) UpdateAlbumTimeFetched(ctx context.Context, id string) error {
	res, err := s.exec(ctx, "update album time fetched", `
		UPDATE albums
		   SET time_fetched = MAX(time_fetched, ?)
		 WHERE id = ?
	`, s.now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update album time fetched: %w", err)
	}
	if res == nil {
		return nil
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("album %s: %w", id, util.ErrNotFound)
	}
	return nil
}

const albumColumns = `
	SELECT albums.id,
	       albums.name,
	       albums.time_fetched,
	       artists.id,
	       artists.name,
	       artists.time_fetched
	  FROM albums
	  JOIN artists
	    ON albums.artist_id = artists.id
`

// GetAlbums returns every stored album with its artist
func (s *Store) GetAlbums(ctx context.Context) ([]music.Album, error) {
	return s.queryAlbums(ctx, albumColumns)
}

// GetAlbumsToFetch returns albums whose tracks were never fetched, plus,
// when staleBefore is non-zero, albums last fetched before it
func (s *Store) GetAlbumsToFetch(ctx context.Context, staleBefore time.Time) ([]music.Album, error) {
	return s.queryAlbums(ctx, albumColumns+` WHERE albums.time_fetched < ?`, fetchCutoff(staleBefore))
}

func (s *Store) queryAlbums(ctx context.Context, query string, args ...any) ([]music.Album, error) {
	rows, err := s.reader().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query albums: %w", err)
	}
	defer rows.Close()

	var albums []music.Album
	for rows.Next() {
		var al music.Album
		var ar music.Artist
		if err := rows.Scan(&al.ID, &al.Name, &al.TimeFetched, &ar.ID, &ar.Name, &ar.TimeFetched); err != nil {
			return nil, fmt.Errorf("failed to scan album: %w", err)
		}
		al.ArtistID = ar.ID
		al.Artist = &ar
		albums = append(albums, al)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query albums: %w", err)
	}

	return albums, nil
}
