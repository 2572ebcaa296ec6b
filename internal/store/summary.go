package store

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrSummaryMismatch means the summary counts do not add up
var ErrSummaryMismatch = errors.New("summary counts do not add up")

// Summary holds cache totals. Rated plus Unrated always equals Tracks, and
// Liked plus Neutral plus Disliked always equals Rated.
type Summary struct {
	Tracks   int
	Rated    int
	Liked    int
	Neutral  int
	Disliked int
	Unrated  int
	Albums   int
	Artists  int
}

// Validate checks the summary's arithmetic identities
func (sum *Summary) Validate() error {
	if sum.Rated+sum.Unrated != sum.Tracks {
		return fmt.Errorf("%w: %d rated + %d unrated != %d tracks",
			ErrSummaryMismatch, sum.Rated, sum.Unrated, sum.Tracks)
	}
	if sum.Liked+sum.Neutral+sum.Disliked != sum.Rated {
		return fmt.Errorf("%w: %d liked + %d neutral + %d disliked != %d rated",
			ErrSummaryMismatch, sum.Liked, sum.Neutral, sum.Disliked, sum.Rated)
	}
	return nil
}

// WriteTo writes the summary as an indented tree
func (sum *Summary) WriteTo(w io.Writer) (int64, error) {
	n, err := fmt.Fprintf(w,
		"%d tracks\n"+
			"    %d rated\n"+
			"        %d liked\n"+
			"        %d neutral\n"+
			"        %d disliked\n"+
			"    %d unrated\n"+
			"%d albums\n"+
			"%d artists\n",
		sum.Tracks, sum.Rated, sum.Liked, sum.Neutral, sum.Disliked, sum.Unrated,
		sum.Albums, sum.Artists)
	return int64(n), err
}

// GetSummary counts tracks by rating state plus albums and artists. Each
// count is queried on its own so that Validate cross-checks them.
func (s *Store) GetSummary(ctx context.Context) (*Summary, error) {
	var sum Summary

	counts := []struct {
		dest  *int
		query string
	}{
		{&sum.Tracks, `SELECT COUNT(*) FROM tracks`},
		{&sum.Rated, `SELECT COUNT(*) FROM tracks WHERE rating IS NOT NULL`},
		{&sum.Unrated, `SELECT COUNT(*) FROM tracks WHERE rating IS NULL`},
		{&sum.Liked, `SELECT COUNT(*) FROM tracks WHERE rating > 0`},
		{&sum.Neutral, `SELECT COUNT(*) FROM tracks WHERE rating = 0`},
		{&sum.Disliked, `SELECT COUNT(*) FROM tracks WHERE rating < 0`},
		{&sum.Albums, `SELECT COUNT(*) FROM albums`},
		{&sum.Artists, `SELECT COUNT(*) FROM artists`},
	}

	for _, c := range counts {
		if err := s.reader().QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to compute summary: %w", err)
		}
	}

	return &sum, nil
}

// PrintSummary computes the summary, checks it and writes it to w
func (s *Store) PrintSummary(ctx context.Context, w io.Writer) error {
	sum, err := s.GetSummary(ctx)
	if err != nil {
		return err
	}
	if err := sum.Validate(); err != nil {
		return err
	}
	_, err = sum.WriteTo(w)
	return err
}
