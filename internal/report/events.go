package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/franz/spotify-manager/internal/music"
)

// EventType represents the type of event
type EventType string

const (
	EventPlaylist     EventType = "playlist"
	EventArtistAlbums EventType = "artist_albums"
	EventAlbumTracks  EventType = "album_tracks"
	EventSchema       EventType = "schema"
	EventSkip         EventType = "skip"
	EventError        EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// Event represents a single sync event
type Event struct {
	Timestamp time.Time         `json:"ts"`
	RunID     string            `json:"run_id"`
	Level     EventLevel        `json:"level"`
	Event     EventType         `json:"event"`
	EntityID  string            `json:"entity_id,omitempty"`
	Name      string            `json:"name,omitempty"`
	Count     int               `json:"count,omitempty"` // entities stored by the unit
	Rating    *int              `json:"rating,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Duration  int64             `json:"duration_ms,omitempty"` // in milliseconds
	Error     string            `json:"error,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// EventLogger writes the events of one run to a JSONL file
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	runID    string
	minLevel EventLevel
}

// NewEventLogger creates a new event logger with a minimum log level
// minLevel determines which events are written (e.g., LevelInfo skips LevelDebug)
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	runID := uuid.NewString()

	// Timestamp first so that logs sort chronologically
	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("events-%s-%s.jsonl", timestamp, runID[:8])
	path := filepath.Join(outputDir, filename)

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		runID:    runID,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil // Silently ignore if logger not initialized
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.RunID = l.runID

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// LogPlaylist logs the ingestion of a playlist
func (l *EventLogger) LogPlaylist(id string, p *music.Playlist, rating *music.Rating, duration time.Duration, err error) error {
	event := &Event{
		Level:    LevelInfo,
		Event:    EventPlaylist,
		EntityID: id,
		Duration: duration.Milliseconds(),
	}
	if rating != nil {
		r := int(*rating)
		event.Rating = &r
	}
	if p != nil {
		event.Count = p.Len()
		event.Extra = map[string]string{
			"albums":  fmt.Sprintf("%d", len(p.Albums())),
			"artists": fmt.Sprintf("%d", len(p.Artists())),
		}
	}
	if err != nil {
		event.Level = LevelError
		event.Error = err.Error()
	}

	return l.Log(event)
}

// LogArtistAlbums logs the retrieval of an artist's albums
func (l *EventLogger) LogArtistAlbums(artist music.Artist, albums int, duration time.Duration, err error) error {
	return l.logUnit(EventArtistAlbums, artist.ID, artist.Name, albums, duration, err)
}

// LogAlbumTracks logs the retrieval of an album's tracks
func (l *EventLogger) LogAlbumTracks(album music.Album, tracks int, duration time.Duration, err error) error {
	return l.logUnit(EventAlbumTracks, album.ID, album.Name, tracks, duration, err)
}

func (l *EventLogger) logUnit(eventType EventType, id, name string, count int, duration time.Duration, err error) error {
	event := &Event{
		Level:    LevelInfo,
		Event:    eventType,
		EntityID: id,
		Name:     name,
		Count:    count,
		Duration: duration.Milliseconds(),
	}
	if err != nil {
		event.Level = LevelError
		event.Error = err.Error()
	}

	return l.Log(event)
}

// LogSchema logs a table creation or upgrade
func (l *EventLogger) LogSchema(action, from, to string, err error) error {
	event := &Event{
		Level: LevelInfo,
		Event: EventSchema,
		Extra: map[string]string{
			"action": action,
			"from":   from,
			"to":     to,
		},
	}
	if err != nil {
		event.Level = LevelError
		event.Error = err.Error()
	}

	return l.Log(event)
}

// LogSkip logs a unit that was not attempted
func (l *EventLogger) LogSkip(eventType EventType, id, reason string) error {
	return l.Log(&Event{
		Level:    LevelWarning,
		Event:    EventSkip,
		EntityID: id,
		Reason:   reason,
		Extra: map[string]string{
			"unit": string(eventType),
		},
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, id string, err error) error {
	return l.Log(&Event{
		Level:    LevelError,
		Event:    event,
		EntityID: id,
		Error:    err.Error(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// RunID returns the identifier stamped on every event of this run
func (l *EventLogger) RunID() string {
	if l == nil {
		return ""
	}
	return l.runID
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
