package manager

import (
	"context"
	"time"

	"github.com/franz/spotify-manager/internal/music"
	"github.com/franz/spotify-manager/internal/report"
	"github.com/franz/spotify-manager/internal/util"
)

// AddResult counts the unique entities a playlist contributed
type AddResult struct {
	Tracks  int
	Albums  int
	Artists int
}

// AddPlaylist stores every track of a playlist together with its album and
// artist. Artists, albums and tracks are inserted in that order in one
// transaction. A non-nil rating is applied to every track of the playlist.
// A catalog failure writes nothing and returns an error wrapping ErrCatalog.
func (m *Manager) AddPlaylist(ctx context.Context, id string, rating *music.Rating) (*AddResult, error) {
	start := time.Now()

	playlist, err := m.catalog.GetPlaylist(ctx, id)
	if err != nil {
		m.logger.LogPlaylist(id, nil, rating, time.Since(start), err)
		return nil, catalogError("playlist", id, err)
	}

	err = m.store.Transaction(ctx, func() error {
		if err := m.store.InsertArtists(ctx, playlist.Artists()); err != nil {
			return err
		}
		if err := m.store.InsertAlbums(ctx, playlist.Albums()); err != nil {
			return err
		}
		return m.store.InsertTracks(ctx, playlist.Tracks(), rating)
	})
	if err != nil {
		m.logger.LogError(report.EventPlaylist, id, err)
		return nil, err
	}

	m.logger.LogPlaylist(id, playlist, rating, time.Since(start), nil)

	res := &AddResult{
		Tracks:  playlist.Len(),
		Albums:  len(playlist.Albums()),
		Artists: len(playlist.Artists()),
	}
	if rating != nil {
		util.SuccessLog("Added playlist %s: %d tracks rated %s", id, res.Tracks, rating.State())
	} else {
		util.SuccessLog("Added playlist %s: %d tracks", id, res.Tracks)
	}

	return res, nil
}
