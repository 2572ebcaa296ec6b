package music

// Rating is a user judgment of a track: -1, 0 or 1
type Rating int8

const (
	Disliked Rating = -1
	Neutral  Rating = 0
	Liked    Rating = 1
)

// RatingState is the rating lifecycle state of a track. Unrated is only the
// initial state; once rated, a track never returns to it.
type RatingState string

const (
	StateUnrated  RatingState = "unrated"
	StateLiked    RatingState = "liked"
	StateNeutral  RatingState = "neutral"
	StateDisliked RatingState = "disliked"
)

// NewRating maps any integer onto a rating by its sign
func NewRating(r int) Rating {
	switch {
	case r > 0:
		return Liked
	case r < 0:
		return Disliked
	default:
		return Neutral
	}
}

// State returns the rating state the rating moves a track into
func (r Rating) State() RatingState {
	switch {
	case r > 0:
		return StateLiked
	case r < 0:
		return StateDisliked
	default:
		return StateNeutral
	}
}

// Ptr returns a pointer to a copy of r
func (r Rating) Ptr() *Rating {
	return &r
}
