package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/franz/spotify-manager/internal/music"
	"github.com/franz/spotify-manager/internal/util"
)

const (
	// BaseURL is the Spotify Web API base URL
	BaseURL = "https://api.spotify.com/v1"

	// DefaultMarket is the market used to resolve track availability
	DefaultMarket = "US"

	// MaxPageSize is the largest page the API serves for the endpoints used here
	MaxPageSize = 50

	// DefaultRequestsPerSecond keeps well below the API's rolling rate limit
	DefaultRequestsPerSecond = 10

	// playlistFields restricts playlist items to what the cache stores
	playlistFields = "items(track(name,id,album(name,id,artists(name,id)))),total"
)

// ErrUnexpectedStatus is wrapped by every non-2xx response error
var ErrUnexpectedStatus = errors.New("unexpected status code")

// StatusError is a non-2xx API response
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%v %d", ErrUnexpectedStatus, e.Code)
	}
	return fmt.Sprintf("%v %d: %s", ErrUnexpectedStatus, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

// Options holds optional client settings. Zero values select the defaults.
type Options struct {
	BaseURL           string
	Market            string
	PageSize          int
	RequestsPerSecond float64
	HTTPClient        *http.Client
	Retry             *util.RetryConfig
}

// Client reads playlists, artist albums and album tracks from the Web API.
// It never writes to the catalog.
type Client struct {
	httpClient *http.Client
	baseURL    string
	market     string
	pageSize   int
	limiter    *rate.Limiter
	tokens     TokenSource
	retry      *util.RetryConfig
}

// NewClient creates a Web API client authenticating with tokens
func NewClient(tokens TokenSource, opts *Options) *Client {
	if opts == nil {
		opts = &Options{}
	}

	c := &Client{
		httpClient: opts.HTTPClient,
		baseURL:    opts.BaseURL,
		market:     opts.Market,
		pageSize:   opts.PageSize,
		tokens:     tokens,
		retry:      opts.Retry,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout: 30 * time.Second,
		}
	}
	if c.baseURL == "" {
		c.baseURL = BaseURL
	}
	if c.market == "" {
		c.market = DefaultMarket
	}
	if c.pageSize <= 0 || c.pageSize > MaxPageSize {
		c.pageSize = MaxPageSize
	}
	if c.retry == nil {
		c.retry = util.DefaultRetryConfig()
	}

	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), 1)

	return c
}

// GetPlaylist returns every track of a playlist with its album and artist.
// Pages are requested at offsets 0, n, 2n... until the total reported by the
// first page is covered. Removed and local tracks are skipped.
func (c *Client) GetPlaylist(ctx context.Context, id string) (*music.Playlist, error) {
	if id == "" {
		return nil, fmt.Errorf("playlist id cannot be empty")
	}

	util.DebugLog("Spotify API: reading playlist %s", id)

	playlist := music.NewPlaylist(id)
	path := "/playlists/" + url.PathEscape(id) + "/tracks"

	total := -1
	for offset := 0; total < 0 || offset < total; offset += c.pageSize {
		query := url.Values{
			"market": {c.market},
			"fields": {playlistFields},
			"limit":  {strconv.Itoa(c.pageSize)},
			"offset": {strconv.Itoa(offset)},
		}

		var page playlistPage
		if err := c.get(ctx, path, query, &page); err != nil {
			return nil, fmt.Errorf("failed to read playlist %s: %w", id, err)
		}
		if total < 0 {
			total = page.Total
		}

		for _, item := range page.Items {
			if item.Track == nil || item.Track.ID == "" {
				util.DebugLog("Spotify: skipping unavailable item in playlist %s", id)
				continue
			}
			tr := item.Track
			if tr.Album.ID == "" || len(tr.Album.Artists) == 0 {
				util.WarnLog("Spotify: skipping track %s without album artist", tr.ID)
				continue
			}

			artist := music.Artist{
				ID:   tr.Album.Artists[0].ID,
				Name: music.NormalizeName(tr.Album.Artists[0].Name),
			}
			album := music.Album{
				ID:       tr.Album.ID,
				Name:     music.NormalizeName(tr.Album.Name),
				ArtistID: artist.ID,
			}
			track := music.Track{
				ID:      tr.ID,
				Name:    music.NormalizeName(tr.Name),
				AlbumID: album.ID,
			}
			playlist.Add(track, album, artist)
		}

		if len(page.Items) == 0 {
			break
		}
	}

	util.DebugLog("Spotify: playlist %s has %d tracks, %d albums, %d artists",
		id, playlist.Len(), len(playlist.Albums()), len(playlist.Artists()))

	return playlist, nil
}

// GetArtistAlbums returns the albums and singles of an artist. Every album
// is attributed to the given artist.
func (c *Client) GetArtistAlbums(ctx context.Context, artist music.Artist) ([]music.Album, error) {
	util.DebugLog("Spotify API: reading albums of '%s'", artist.Name)

	path := "/artists/" + url.PathEscape(artist.ID) + "/albums"
	seen := make(map[string]struct{})
	var albums []music.Album

	total := -1
	for offset := 0; total < 0 || offset < total; offset += c.pageSize {
		query := url.Values{
			"market":         {c.market},
			"include_groups": {"album,single"},
			"limit":          {strconv.Itoa(c.pageSize)},
			"offset":         {strconv.Itoa(offset)},
		}

		var page albumPage
		if err := c.get(ctx, path, query, &page); err != nil {
			return nil, fmt.Errorf("failed to read albums of artist %s: %w", artist.ID, err)
		}
		if total < 0 {
			total = page.Total
		}

		for _, al := range page.Items {
			if _, ok := seen[al.ID]; ok || al.ID == "" {
				continue
			}
			seen[al.ID] = struct{}{}
			albums = append(albums, music.Album{
				ID:       al.ID,
				Name:     music.NormalizeName(al.Name),
				ArtistID: artist.ID,
			})
		}

		if len(page.Items) == 0 {
			break
		}
	}

	return albums, nil
}

// GetAlbumTracks returns the tracks of an album from a single request
func (c *Client) GetAlbumTracks(ctx context.Context, album music.Album) ([]music.Track, error) {
	util.DebugLog("Spotify API: reading tracks of '%s'", album.Name)

	query := url.Values{"market": {c.market}}

	var resp albumWithTracks
	if err := c.get(ctx, "/albums/"+url.PathEscape(album.ID), query, &resp); err != nil {
		return nil, fmt.Errorf("failed to read tracks of album %s: %w", album.ID, err)
	}
	if resp.ID != album.ID {
		return nil, fmt.Errorf("requested album %s but received %s", album.ID, resp.ID)
	}
	if resp.Tracks.Total > len(resp.Tracks.Items) {
		util.WarnLog("Spotify: album '%s' lists %d tracks, only %d returned",
			album.Name, resp.Tracks.Total, len(resp.Tracks.Items))
	}

	tracks := make([]music.Track, 0, len(resp.Tracks.Items))
	for _, tr := range resp.Tracks.Items {
		if tr.ID == "" {
			continue
		}
		tracks = append(tracks, music.Track{
			ID:      tr.ID,
			Name:    music.NormalizeName(tr.Name),
			AlbumID: album.ID,
		})
	}

	return tracks, nil
}

// get issues a GET request and decodes the JSON response into out, retrying
// transient failures
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	urlStr := c.baseURL + path
	if len(query) > 0 {
		urlStr += "?" + query.Encode()
	}

	return util.Retry(ctx, c.retry, func() error {
		return c.do(ctx, urlStr, out)
	}, "GET "+path)
}

func (c *Client) do(ctx context.Context, urlStr string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to get token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := &StatusError{Code: resp.StatusCode, Body: string(body)}
		util.WarnLog("Spotify API returned status %d for %s", resp.StatusCode, req.URL.Path)

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return fmt.Errorf("%w: %w", util.ErrUnauthorized, statusErr)
		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%w: %w", util.ErrNotFound, statusErr)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return &util.TransientError{
				Err:        statusErr,
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
			}
		default:
			return statusErr
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// parseRetryAfter reads a Retry-After header given in seconds or as an HTTP
// date. It returns 0 when the header is absent or unusable.
func parseRetryAfter(header string, now time.Time) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}
