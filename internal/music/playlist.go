package music

// Playlist collects the entities referenced by a playlist's tracks. Each
// entity is kept once, in first-seen order.
type Playlist struct {
	ID string

	tracks  []Track
	albums  []Album
	artists []Artist

	seenTracks  map[string]struct{}
	seenAlbums  map[string]struct{}
	seenArtists map[string]struct{}
}

// NewPlaylist creates an empty playlist
func NewPlaylist(id string) *Playlist {
	return &Playlist{
		ID:          id,
		seenTracks:  make(map[string]struct{}),
		seenAlbums:  make(map[string]struct{}),
		seenArtists: make(map[string]struct{}),
	}
}

// Add records a track together with its album and the album's artist.
// Entities already seen are ignored. Add reports whether the track was new.
func (p *Playlist) Add(track Track, album Album, artist Artist) bool {
	if _, ok := p.seenArtists[artist.ID]; !ok {
		p.seenArtists[artist.ID] = struct{}{}
		p.artists = append(p.artists, artist)
	}
	if _, ok := p.seenAlbums[album.ID]; !ok {
		p.seenAlbums[album.ID] = struct{}{}
		p.albums = append(p.albums, album)
	}
	if _, ok := p.seenTracks[track.ID]; ok {
		return false
	}
	p.seenTracks[track.ID] = struct{}{}
	p.tracks = append(p.tracks, track)
	return true
}

// Tracks returns the playlist's unique tracks
func (p *Playlist) Tracks() []Track {
	return p.tracks
}

// Albums returns the unique albums referenced by the tracks
func (p *Playlist) Albums() []Album {
	return p.albums
}

// Artists returns the unique artists referenced by the albums
func (p *Playlist) Artists() []Artist {
	return p.artists
}

// Len returns the number of unique tracks
func (p *Playlist) Len() int {
	return len(p.tracks)
}
