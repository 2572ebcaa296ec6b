package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/franz/spotify-manager/internal/music"
)

// InsertTracks inserts tracks that are not stored yet. A track's name and
// album never change once stored. With a nil rating existing rows are left
// untouched; otherwise every given track, new or existing, takes the rating.
func (s *Store) InsertTracks(ctx context.Context, tracks []music.Track, rating *music.Rating) error {
	if rating == nil {
		return s.execBatch(ctx, "insert tracks", `
			INSERT INTO tracks (id, name, album_id)
			     VALUES (?, ?, ?)
			ON CONFLICT (id)
			         DO NOTHING
		`, len(tracks), func(i int) []any {
			return []any{tracks[i].ID, tracks[i].Name, tracks[i].AlbumID}
		})
	}

	r := int(*rating)
	return s.execBatch(ctx, "insert rated tracks", `
		INSERT INTO tracks (id, name, album_id, rating, num_times_rated)
		     VALUES (?, ?, ?, ?, 1)
		ON CONFLICT (id)
		         DO UPDATE
		        SET rating = excluded.rating,
		            num_times_rated = num_times_rated + 1
	`, len(tracks), func(i int) []any {
		return []any{tracks[i].ID, tracks[i].Name, tracks[i].AlbumID, r}
	})
}

// GetTracks returns every stored track with its album and artist. A track
// whose album row is missing has a nil Album, and an album whose artist row
// is missing has a nil Artist.
func (s *Store) GetTracks(ctx context.Context) ([]music.Track, error) {
	rows, err := s.reader().QueryContext(ctx, `
		SELECT tracks.id,
		       tracks.name,
		       tracks.album_id,
		       tracks.rating,
		       tracks.num_times_rated,
		       albums.id,
		       albums.name,
		       albums.artist_id,
		       albums.time_fetched,
		       artists.id,
		       artists.name,
		       artists.time_fetched
		  FROM tracks
		  LEFT JOIN albums
		    ON tracks.album_id = albums.id
		  LEFT JOIN artists
		    ON albums.artist_id = artists.id
		 ORDER BY tracks.rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []music.Track
	for rows.Next() {
		var (
			tr      music.Track
			rating  sql.NullInt64
			albumID sql.NullString
			album   sql.NullString
			parent  sql.NullString
			fetched sql.NullInt64

			artistID      sql.NullString
			artist        sql.NullString
			artistFetched sql.NullInt64
		)
		err := rows.Scan(
			&tr.ID, &tr.Name, &tr.AlbumID, &rating, &tr.TimesRated,
			&albumID, &album, &parent, &fetched,
			&artistID, &artist, &artistFetched,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}

		if rating.Valid {
			tr.Rating = music.Rating(rating.Int64).Ptr()
		}
		if albumID.Valid {
			tr.Album = &music.Album{
				ID:          albumID.String,
				Name:        album.String,
				ArtistID:    parent.String,
				TimeFetched: fetched.Int64,
			}
		}
		if tr.Album != nil && artistID.Valid {
			tr.Album.Artist = &music.Artist{ID: artistID.String, Name: artist.String, TimeFetched: artistFetched.Int64}
		}
		tracks = append(tracks, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}

	return tracks, nil
}
