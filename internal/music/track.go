package music

// Track mirrors a catalog track. AlbumID is always set; Album is only
// populated by reads that join the albums table.
type Track struct {
	ID      string
	Name    string
	AlbumID string
	Album   *Album

	// Rating is nil until the track is rated for the first time
	Rating     *Rating
	TimesRated int
}

// State returns the track's rating state
func (t Track) State() RatingState {
	if t.Rating == nil {
		return StateUnrated
	}
	return t.Rating.State()
}
