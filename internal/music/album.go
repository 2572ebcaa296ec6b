package music

// Album mirrors a catalog album. ArtistID is always set; Artist is only
// populated by reads that join the artists table.
type Album struct {
	ID       string
	Name     string
	ArtistID string
	Artist   *Artist

	// TimeFetched is the Unix time at which all of the album's tracks were
	// retrieved, or 0 if they never were.
	TimeFetched int64
}

// Fetched reports whether the album's tracks have been retrieved
func (a Album) Fetched() bool {
	return a.TimeFetched > 0
}
