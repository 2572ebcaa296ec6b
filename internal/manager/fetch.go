package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/franz/spotify-manager/internal/music"
	"github.com/franz/spotify-manager/internal/report"
	"github.com/franz/spotify-manager/internal/util"
)

// FetchResult counts the outcome of a fetch sweep
type FetchResult struct {
	ArtistsFetched int
	ArtistsFailed  int
	AlbumsFetched  int
	AlbumsFailed   int

	// Entities received from the catalog, new or already stored
	AlbumsReceived int
	TracksReceived int

	// Units left unattempted because the sweep was cancelled
	Skipped int

	// Attempted units that had been fetched before and went stale
	Refreshed int

	Duration time.Duration
}

// Fetch sweeps artists whose albums were not fetched yet and stores their
// albums, then sweeps albums whose tracks were not fetched yet and stores
// their tracks. Albums found in the first phase are swept in the second.
// A non-zero staleBefore also re-fetches entities last fetched before it.
//
// Each unit's inserts and its fetch stamp share one transaction, so a unit
// that fails is left unstamped and is retried by the next sweep. Catalog
// failures skip the unit; store failures abort the sweep.
func (m *Manager) Fetch(ctx context.Context, staleBefore time.Time) (*FetchResult, error) {
	start := time.Now()
	res := &FetchResult{}

	err := m.fetchArtists(ctx, staleBefore, res)
	if err == nil {
		err = m.fetchAlbums(ctx, staleBefore, res)
	}
	res.Duration = time.Since(start)

	return res, err
}

func (m *Manager) fetchArtists(ctx context.Context, staleBefore time.Time, res *FetchResult) error {
	artists, err := m.store.GetArtistsToFetch(ctx, staleBefore)
	if err != nil {
		return fmt.Errorf("failed to list artists to fetch: %w", err)
	}

	util.InfoLog("Fetching albums of %d artists", len(artists))
	bar := m.newBar(len(artists), "Artists")

	for i, artist := range artists {
		if err := ctx.Err(); err != nil {
			m.skipRemaining(report.EventArtistAlbums, artistIDs(artists[i:]), res)
			return err
		}

		if err := m.fetchArtist(ctx, artist, res); err != nil {
			return err
		}
		if bar != nil {
			bar.Add(1)
		}
	}
	if bar != nil {
		bar.Finish()
	}

	return nil
}

// fetchArtist stores one artist's albums and stamps the artist
func (m *Manager) fetchArtist(ctx context.Context, artist music.Artist, res *FetchResult) error {
	start := time.Now()
	if artist.Fetched() {
		res.Refreshed++
		util.DebugLog("Refreshing albums of '%s', last fetched %s", artist.Name, time.Unix(artist.TimeFetched, 0).Format(time.DateTime))
	}

	albums, err := m.catalog.GetArtistAlbums(ctx, artist)
	if err != nil && ctx.Err() != nil {
		m.skipRemaining(report.EventArtistAlbums, []string{artist.ID}, res)
		return nil
	}
	if err != nil {
		res.ArtistsFailed++
		m.logger.LogArtistAlbums(artist, 0, time.Since(start), err)
		util.WarnLog("Skipping artist %s: %v", artist.ID, err)
		return nil
	}

	// A unit whose albums arrived is stored even if the sweep is cancelled
	storeCtx := context.WithoutCancel(ctx)
	err = m.store.Transaction(storeCtx, func() error {
		if err := m.store.InsertAlbums(storeCtx, albums); err != nil {
			return err
		}
		return m.store.UpdateArtistTimeFetched(storeCtx, artist.ID)
	})
	if err != nil {
		m.logger.LogError(report.EventArtistAlbums, artist.ID, err)
		return fmt.Errorf("failed to store albums of artist %s: %w", artist.ID, err)
	}

	res.ArtistsFetched++
	res.AlbumsReceived += len(albums)
	m.logger.LogArtistAlbums(artist, len(albums), time.Since(start), nil)
	util.DebugLog("Stored %d albums of '%s'", len(albums), artist.Name)

	return nil
}

func (m *Manager) fetchAlbums(ctx context.Context, staleBefore time.Time, res *FetchResult) error {
	albums, err := m.store.GetAlbumsToFetch(ctx, staleBefore)
	if err != nil {
		return fmt.Errorf("failed to list albums to fetch: %w", err)
	}

	util.InfoLog("Fetching tracks of %d albums", len(albums))
	bar := m.newBar(len(albums), "Albums")

	for i, album := range albums {
		if err := ctx.Err(); err != nil {
			m.skipRemaining(report.EventAlbumTracks, albumIDs(albums[i:]), res)
			return err
		}

		if err := m.fetchAlbum(ctx, album, res); err != nil {
			return err
		}
		if bar != nil {
			bar.Add(1)
		}
	}
	if bar != nil {
		bar.Finish()
	}

	return nil
}

// fetchAlbum stores one album's tracks and stamps the album
func (m *Manager) fetchAlbum(ctx context.Context, album music.Album, res *FetchResult) error {
	start := time.Now()
	if album.Fetched() {
		res.Refreshed++
		util.DebugLog("Refreshing tracks of '%s', last fetched %s", album.Name, time.Unix(album.TimeFetched, 0).Format(time.DateTime))
	}

	tracks, err := m.catalog.GetAlbumTracks(ctx, album)
	if err != nil && ctx.Err() != nil {
		m.skipRemaining(report.EventAlbumTracks, []string{album.ID}, res)
		return nil
	}
	if err != nil {
		res.AlbumsFailed++
		m.logger.LogAlbumTracks(album, 0, time.Since(start), err)
		util.WarnLog("Skipping album %s: %v", album.ID, err)
		return nil
	}

	storeCtx := context.WithoutCancel(ctx)
	err = m.store.Transaction(storeCtx, func() error {
		if err := m.store.InsertTracks(storeCtx, tracks, nil); err != nil {
			return err
		}
		return m.store.UpdateAlbumTimeFetched(storeCtx, album.ID)
	})
	if err != nil {
		m.logger.LogError(report.EventAlbumTracks, album.ID, err)
		return fmt.Errorf("failed to store tracks of album %s: %w", album.ID, err)
	}

	res.AlbumsFetched++
	res.TracksReceived += len(tracks)
	m.logger.LogAlbumTracks(album, len(tracks), time.Since(start), nil)
	util.DebugLog("Stored %d tracks of '%s'", len(tracks), album.Name)

	return nil
}

func (m *Manager) skipRemaining(unit report.EventType, ids []string, res *FetchResult) {
	util.WarnLog("Sweep cancelled, %d %s units left for the next run", len(ids), unit)
	for _, id := range ids {
		m.logger.LogSkip(unit, id, "cancelled")
	}
	res.Skipped += len(ids)
}

func artistIDs(artists []music.Artist) []string {
	ids := make([]string, len(artists))
	for i, a := range artists {
		ids[i] = a.ID
	}
	return ids
}

func albumIDs(albums []music.Album) []string {
	ids := make([]string, len(albums))
	for i, a := range albums {
		ids[i] = a.ID
	}
	return ids
}
