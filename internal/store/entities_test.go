package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/franz/spotify-manager/internal/music"
	"github.com/franz/spotify-manager/internal/util"
)

func findTrack(t *testing.T, s *Store, id string) music.Track {
	t.Helper()

	tracks, err := s.GetTracks(context.Background())
	if err != nil {
		t.Fatalf("GetTracks failed: %v", err)
	}
	for _, tr := range tracks {
		if tr.ID == id {
			return tr
		}
	}
	t.Fatalf("track %s not found", id)
	return music.Track{}
}

func TestInsertIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	artist, album, track := seed(t, s)
	ctx := context.Background()

	renamed := func() {
		mustTx(t, s, func(ctx context.Context) error {
			if err := s.InsertArtists(ctx, []music.Artist{{ID: artist.ID, Name: "Renamed"}}); err != nil {
				return err
			}
			if err := s.InsertAlbums(ctx, []music.Album{{ID: album.ID, Name: "Renamed", ArtistID: "other"}}); err != nil {
				return err
			}
			return s.InsertTracks(ctx, []music.Track{{ID: track.ID, Name: "Renamed", AlbumID: "other"}}, nil)
		})
	}
	renamed()
	renamed()

	artists, _ := s.GetArtists(ctx)
	if len(artists) != 1 || artists[0].Name != "Chelsea Grin" {
		t.Errorf("expected original artist row, got %+v", artists)
	}
	albums, _ := s.GetAlbums(ctx)
	if len(albums) != 1 || albums[0].Name != "Bleeding Sun" || albums[0].ArtistID != artist.ID {
		t.Errorf("expected original album row, got %+v", albums)
	}

	got := findTrack(t, s, track.ID)
	if got.Name != "Bleeding Sun" || got.AlbumID != album.ID {
		t.Errorf("expected original track row, got %+v", got)
	}
	if got.Rating != nil || got.TimesRated != 0 {
		t.Errorf("expected unrated track, got %v/%d", got.Rating, got.TimesRated)
	}
}

func TestRatingOverwrites(t *testing.T) {
	s := newTestStore(t)
	_, _, track := seed(t, s)

	tests := []struct {
		rating    music.Rating
		wantState music.RatingState
		wantTimes int
	}{
		{music.Liked, music.StateLiked, 1},
		{music.Disliked, music.StateDisliked, 2},
		{music.Neutral, music.StateNeutral, 3},
		{music.Neutral, music.StateNeutral, 4},
		{music.Liked, music.StateLiked, 5},
	}

	for _, tt := range tests {
		mustTx(t, s, func(ctx context.Context) error {
			return s.InsertTracks(ctx, []music.Track{track}, tt.rating.Ptr())
		})

		got := findTrack(t, s, track.ID)
		if got.State() != tt.wantState {
			t.Errorf("after rating %d: expected %s, got %s", tt.rating, tt.wantState, got.State())
		}
		if got.TimesRated != tt.wantTimes {
			t.Errorf("after rating %d: expected %d ratings, got %d", tt.rating, tt.wantTimes, got.TimesRated)
		}
	}
}

func TestUnratedInsertKeepsRating(t *testing.T) {
	s := newTestStore(t)
	_, _, track := seed(t, s)

	mustTx(t, s, func(ctx context.Context) error {
		return s.InsertTracks(ctx, []music.Track{track}, music.Disliked.Ptr())
	})
	mustTx(t, s, func(ctx context.Context) error {
		return s.InsertTracks(ctx, []music.Track{track}, nil)
	})

	got := findTrack(t, s, track.ID)
	if got.State() != music.StateDisliked || got.TimesRated != 1 {
		t.Errorf("expected disliked once, got %s/%d", got.State(), got.TimesRated)
	}
}

func TestRatedInsertOfNewTrack(t *testing.T) {
	s := newTestStore(t)
	_, album, _ := seed(t, s)

	mustTx(t, s, func(ctx context.Context) error {
		return s.InsertTracks(ctx, []music.Track{{ID: "tr-new", Name: "Dead Rose", AlbumID: album.ID}}, music.Liked.Ptr())
	})

	got := findTrack(t, s, "tr-new")
	if got.State() != music.StateLiked || got.TimesRated != 1 {
		t.Errorf("expected liked once, got %s/%d", got.State(), got.TimesRated)
	}
}

func TestUpdateTimeFetched(t *testing.T) {
	s := newTestStore(t)
	artist, album, _ := seed(t, s)
	ctx := context.Background()

	stamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return stamp }

	mustTx(t, s, func(ctx context.Context) error {
		if err := s.UpdateArtistTimeFetched(ctx, artist.ID); err != nil {
			return err
		}
		return s.UpdateAlbumTimeFetched(ctx, album.ID)
	})

	// An earlier clock never moves the stamp back
	s.now = func() time.Time { return stamp.Add(-time.Hour) }
	mustTx(t, s, func(ctx context.Context) error {
		return s.UpdateArtistTimeFetched(ctx, artist.ID)
	})

	artists, _ := s.GetArtists(ctx)
	if len(artists) != 1 || artists[0].TimeFetched != stamp.Unix() {
		t.Errorf("expected artist stamped %d, got %+v", stamp.Unix(), artists)
	}
	albums, _ := s.GetAlbums(ctx)
	if len(albums) != 1 || albums[0].TimeFetched != stamp.Unix() {
		t.Errorf("expected album stamped %d, got %+v", stamp.Unix(), albums)
	}
	if !albums[0].Artist.Fetched() {
		t.Error("expected joined artist to be fetched")
	}
}

func TestUpdateTimeFetchedNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Transaction(ctx, func() error {
		return s.UpdateArtistTimeFetched(ctx, "missing")
	})
	if !errors.Is(err, util.ErrNotFound) {
		t.Errorf("expected ErrNotFound for artist, got %v", err)
	}

	err = s.Transaction(ctx, func() error {
		return s.UpdateAlbumTimeFetched(ctx, "missing")
	})
	if !errors.Is(err, util.ErrNotFound) {
		t.Errorf("expected ErrNotFound for album, got %v", err)
	}
}

func TestGetToFetch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustTx(t, s, func(ctx context.Context) error {
		if err := s.InsertArtists(ctx, []music.Artist{
			{ID: "ar-old", Name: "Old"},
			{ID: "ar-new", Name: "New"},
			{ID: "ar-never", Name: "Never"},
		}); err != nil {
			return err
		}
		return s.InsertAlbums(ctx, []music.Album{
			{ID: "al-old", Name: "Old", ArtistID: "ar-old"},
			{ID: "al-never", Name: "Never", ArtistID: "ar-never"},
		})
	})

	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	s.now = func() time.Time { return old }
	mustTx(t, s, func(ctx context.Context) error {
		if err := s.UpdateArtistTimeFetched(ctx, "ar-old"); err != nil {
			return err
		}
		return s.UpdateAlbumTimeFetched(ctx, "al-old")
	})
	s.now = func() time.Time { return recent }
	mustTx(t, s, func(ctx context.Context) error {
		return s.UpdateArtistTimeFetched(ctx, "ar-new")
	})

	ids := func(artists []music.Artist) map[string]bool {
		m := map[string]bool{}
		for _, a := range artists {
			m[a.ID] = true
		}
		return m
	}

	never, err := s.GetArtistsToFetch(ctx, time.Time{})
	if err != nil {
		t.Fatalf("GetArtistsToFetch failed: %v", err)
	}
	if got := ids(never); len(got) != 1 || !got["ar-never"] {
		t.Errorf("expected only never-fetched artist, got %v", got)
	}

	stale, _ := s.GetArtistsToFetch(ctx, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC))
	if got := ids(stale); len(got) != 2 || !got["ar-never"] || !got["ar-old"] {
		t.Errorf("expected never-fetched and stale artists, got %v", got)
	}

	albums, err := s.GetAlbumsToFetch(ctx, time.Time{})
	if err != nil {
		t.Fatalf("GetAlbumsToFetch failed: %v", err)
	}
	if len(albums) != 1 || albums[0].ID != "al-never" || albums[0].Artist.Name != "Never" {
		t.Errorf("expected only never-fetched album with its artist, got %+v", albums)
	}

	albums, _ = s.GetAlbumsToFetch(ctx, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC))
	if len(albums) != 2 {
		t.Errorf("expected never-fetched and stale albums, got %+v", albums)
	}
}

func TestGetTracksJoinsParents(t *testing.T) {
	s := newTestStore(t)
	artist, album, track := seed(t, s)

	got := findTrack(t, s, track.ID)
	if got.Album == nil || got.Album.ID != album.ID || got.Album.Name != album.Name {
		t.Fatalf("expected joined album, got %+v", got.Album)
	}
	if got.Album.Artist == nil || got.Album.Artist.Name != artist.Name {
		t.Errorf("expected joined artist, got %+v", got.Album.Artist)
	}
}

func TestGetTracksKeepsOrphans(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	mustTx(t, s, func(ctx context.Context) error {
		if err := s.InsertAlbums(ctx, []music.Album{{ID: "al2", Name: "Eternal Nightmare", ArtistID: "missing"}}); err != nil {
			return err
		}
		return s.InsertTracks(ctx, []music.Track{
			{ID: "tr2", Name: "Dead Rose", AlbumID: "missing"},
			{ID: "tr3", Name: "Eternal Nightmare", AlbumID: "al2"},
		}, nil)
	})

	tracks, err := s.GetTracks(ctx)
	if err != nil {
		t.Fatalf("GetTracks failed: %v", err)
	}
	sum, err := s.GetSummary(ctx)
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}
	if len(tracks) != sum.Tracks {
		t.Fatalf("expected %d tracks as counted by the summary, got %d", sum.Tracks, len(tracks))
	}

	orphan := findTrack(t, s, "tr2")
	if orphan.Album != nil || orphan.AlbumID != "missing" {
		t.Errorf("expected no album for tr2, got %+v", orphan)
	}

	got := findTrack(t, s, "tr3")
	if got.Album == nil || got.Album.ArtistID != "missing" || got.Album.Artist != nil {
		t.Errorf("expected album without artist for tr3, got %+v", got.Album)
	}
}
