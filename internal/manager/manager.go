package manager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/franz/spotify-manager/internal/music"
	"github.com/franz/spotify-manager/internal/report"
	"github.com/franz/spotify-manager/internal/store"
	"github.com/franz/spotify-manager/internal/util"
)

// ErrCatalog wraps failures of the remote catalog. The unit that hit it is
// skipped and nothing is written for it.
var ErrCatalog = errors.New("catalog request failed")

// Catalog is the read-only source of entities
type Catalog interface {
	GetPlaylist(ctx context.Context, id string) (*music.Playlist, error)
	GetArtistAlbums(ctx context.Context, artist music.Artist) ([]music.Album, error)
	GetAlbumTracks(ctx context.Context, album music.Album) ([]music.Track, error)
}

// Manager moves entities from the catalog into the store
type Manager struct {
	store        *store.Store
	catalog      Catalog
	logger       *report.EventLogger
	showProgress bool
}

// Config holds manager configuration
type Config struct {
	Store        *store.Store
	Catalog      Catalog
	Logger       *report.EventLogger
	ShowProgress bool
}

// New creates a new manager
func New(cfg *Config) *Manager {
	return &Manager{
		store:        cfg.Store,
		catalog:      cfg.Catalog,
		logger:       cfg.Logger,
		showProgress: cfg.ShowProgress,
	}
}

// newBar returns a progress bar over n units, or nil when progress is hidden
func (m *Manager) newBar(n int, description string) *progressbar.ProgressBar {
	if !m.showProgress || n == 0 {
		return nil
	}

	return progressbar.NewOptions(n,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(200*time.Millisecond),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// catalogError logs a failed catalog unit and wraps err in ErrCatalog
func catalogError(unit, id string, err error) error {
	util.WarnLog("Skipping %s %s: %v", unit, id, err)
	return fmt.Errorf("%w: %s %s: %w", ErrCatalog, unit, id, err)
}
