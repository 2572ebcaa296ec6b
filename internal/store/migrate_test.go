package store

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/franz/spotify-manager/internal/music"
	"github.com/franz/spotify-manager/internal/schema"
)

var (
	v100 = schema.MustParseVersion("1.0.0")
	v110 = schema.MustParseVersion("1.1.0")
	v200 = schema.MustParseVersion("2.0.0")
)

// dumpTable renders every row of a table as one string, ordered by the first
// column
func dumpTable(t *testing.T, s *Store, table string) []string {
	t.Helper()

	ctx := context.Background()
	cols, err := s.TableColumns(ctx, table)
	if err != nil {
		t.Fatalf("TableColumns failed: %v", err)
	}

	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = "quote(" + c + ")"
	}
	query := "SELECT " + strings.Join(quoted, " || '|' || ") + " FROM " + table + " ORDER BY 1"

	rows, err := s.DB().QueryContext(ctx, query)
	if err != nil {
		t.Fatalf("failed to dump %s: %v", table, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			t.Fatalf("failed to scan %s row: %v", table, err)
		}
		out = append(out, line)
	}
	return out
}

// seedV100 creates 1.0.0 tables holding a few rows
func seedV100(t *testing.T, s *Store) {
	t.Helper()

	ctx := context.Background()
	if err := s.CreateTables(ctx, v100, false); err != nil {
		t.Fatalf("CreateTables failed: %v", err)
	}

	mustTx(t, s, func(ctx context.Context) error {
		stmts := []string{
			`INSERT INTO artists (id, name) VALUES ('ar1', 'Chelsea Grin'), ('ar2', 'Bring Me the Horizon')`,
			`INSERT INTO albums (id, name, artist) VALUES ('al1', 'Bleeding Sun', 'ar1'), ('al2', 'Sempiternal', 'ar2')`,
			`INSERT INTO tracks (id, name, album) VALUES ('tr1', 'Bleeding Sun', 'al1'), ('tr2', 'Shadow Moses', 'al2'), ('tr3', 'Crooked Young', 'al2')`,
		}
		for _, q := range stmts {
			if _, err := s.exec(ctx, "seed", q); err != nil {
				return err
			}
		}
		return nil
	})
}

func TestCreateTablesLatest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	installed, err := s.InstalledVersion(ctx)
	if err != nil {
		t.Fatalf("InstalledVersion failed: %v", err)
	}
	if installed != s.Registry().Latest() {
		t.Errorf("expected installed %s, got %s", s.Registry().Latest(), installed)
	}

	want := map[string][]string{
		"tracks":  {"id", "name", "album_id", "rating", "num_times_rated"},
		"albums":  {"id", "name", "artist_id", "time_fetched"},
		"artists": {"id", "name", "time_fetched"},
	}
	for table, cols := range want {
		got, err := s.TableColumns(ctx, table)
		if err != nil {
			t.Fatalf("TableColumns(%s) failed: %v", table, err)
		}
		if !slices.Equal(got, cols) {
			t.Errorf("%s: expected columns %v, got %v", table, cols, got)
		}
	}
}

func TestCreateTablesKeepsExistingRows(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	if err := s.CreateTables(context.Background(), s.Registry().Latest(), false); err != nil {
		t.Fatalf("CreateTables failed: %v", err)
	}

	if rows := dumpTable(t, s, "tracks"); len(rows) != 1 {
		t.Errorf("expected existing track to survive, got %v", rows)
	}
}

func TestCreateTablesForce(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	if err := s.CreateTables(context.Background(), s.Registry().Latest(), true); err != nil {
		t.Fatalf("CreateTables failed: %v", err)
	}

	for _, table := range schema.EntityTables {
		if rows := dumpTable(t, s, table); len(rows) != 0 {
			t.Errorf("expected %s to be empty after force, got %v", table, rows)
		}
	}
}

func TestCreateTablesUnknownVersion(t *testing.T) {
	s := openTestStore(t, nil)

	err := s.CreateTables(context.Background(), schema.MustParseVersion("9.9.9"), false)
	if !errors.Is(err, ErrUnknownVersion) {
		t.Errorf("expected ErrUnknownVersion, got %v", err)
	}
}

func TestUpgradeMissingTable(t *testing.T) {
	s := openTestStore(t, nil)
	ctx := context.Background()

	err := s.UpgradeTables(ctx, s.Registry().Latest())
	if !errors.Is(err, ErrMissingTable) {
		t.Fatalf("expected ErrMissingTable, got %v", err)
	}

	tables, _ := s.Tables(ctx)
	if len(tables) != 0 {
		t.Errorf("expected the failed upgrade to create nothing, got %v", tables)
	}
}

func TestUpgradeAddsRatingColumns(t *testing.T) {
	s := openTestStore(t, nil)
	seedV100(t, s)
	ctx := context.Background()

	if err := s.UpgradeTables(ctx, v110); err != nil {
		t.Fatalf("UpgradeTables failed: %v", err)
	}

	cols, _ := s.TableColumns(ctx, "tracks")
	if !slices.Equal(cols, []string{"id", "name", "album", "rating", "num_times_rated"}) {
		t.Errorf("unexpected track columns %v", cols)
	}

	want := []string{
		"'tr1'|'Bleeding Sun'|'al1'|NULL|0",
		"'tr2'|'Shadow Moses'|'al2'|NULL|0",
		"'tr3'|'Crooked Young'|'al2'|NULL|0",
	}
	if got := dumpTable(t, s, "tracks"); !slices.Equal(got, want) {
		t.Errorf("expected rows %v, got %v", want, got)
	}

	installed, _ := s.InstalledVersion(ctx)
	if installed != v110 {
		t.Errorf("expected installed 1.1.0, got %s", installed)
	}
}

func TestUpgradeFullPath(t *testing.T) {
	s := openTestStore(t, nil)
	seedV100(t, s)
	ctx := context.Background()

	if err := s.UpgradeTables(ctx, v200); err != nil {
		t.Fatalf("UpgradeTables failed: %v", err)
	}

	tracks, err := s.GetTracks(ctx)
	if err != nil {
		t.Fatalf("GetTracks failed on upgraded schema: %v", err)
	}
	if len(tracks) != 3 {
		t.Fatalf("expected 3 tracks, got %d", len(tracks))
	}
	for _, tr := range tracks {
		if tr.Rating != nil || tr.TimesRated != 0 {
			t.Errorf("%s: expected unrated track, got %v/%d", tr.ID, tr.Rating, tr.TimesRated)
		}
		if tr.Album.Artist.TimeFetched != 0 || tr.Album.TimeFetched != 0 {
			t.Errorf("%s: expected never-fetched album and artist", tr.ID)
		}
	}

	want := []string{"'al1'|'Bleeding Sun'|'ar1'|0", "'al2'|'Sempiternal'|'ar2'|0"}
	if got := dumpTable(t, s, "albums"); !slices.Equal(got, want) {
		t.Errorf("expected albums %v, got %v", want, got)
	}
}

func TestUpgradeIsIdempotent(t *testing.T) {
	s := openTestStore(t, nil)
	seedV100(t, s)
	ctx := context.Background()
	latest := s.Registry().Latest()

	if err := s.UpgradeTables(ctx, latest); err != nil {
		t.Fatalf("first upgrade failed: %v", err)
	}

	before := map[string][]string{}
	for _, table := range schema.EntityTables {
		cols, _ := s.TableColumns(ctx, table)
		before[table] = append(cols, dumpTable(t, s, table)...)
	}

	if err := s.UpgradeTables(ctx, latest); err != nil {
		t.Fatalf("second upgrade failed: %v", err)
	}

	for _, table := range schema.EntityTables {
		cols, _ := s.TableColumns(ctx, table)
		after := append(cols, dumpTable(t, s, table)...)
		if !slices.Equal(before[table], after) {
			t.Errorf("%s changed on second upgrade:\nbefore %v\nafter  %v", table, before[table], after)
		}
	}
}

func TestUpgradeWithoutVersionTable(t *testing.T) {
	s := openTestStore(t, nil)
	seedV100(t, s)
	ctx := context.Background()

	mustTx(t, s, func(ctx context.Context) error {
		_, err := s.exec(ctx, "drop version", "DROP TABLE version")
		return err
	})

	installed, _ := s.InstalledVersion(ctx)
	if installed != v100 {
		t.Fatalf("expected a database without version table to read as 1.0.0, got %s", installed)
	}

	if err := s.UpgradeTables(ctx, v200); err != nil {
		t.Fatalf("UpgradeTables failed: %v", err)
	}
	installed, _ = s.InstalledVersion(ctx)
	if installed != v200 {
		t.Errorf("expected installed 2.0.0, got %s", installed)
	}
}

func TestCreateTablesOverUnversionedTables(t *testing.T) {
	s := openTestStore(t, nil)
	seedV100(t, s)
	ctx := context.Background()

	mustTx(t, s, func(ctx context.Context) error {
		_, err := s.exec(ctx, "drop version", "DROP TABLE version")
		return err
	})

	if err := s.CreateTables(ctx, v200, false); err != nil {
		t.Fatalf("CreateTables failed: %v", err)
	}
	installed, _ := s.InstalledVersion(ctx)
	if installed != v100 {
		t.Fatalf("expected the old tables to stay recorded as 1.0.0, got %s", installed)
	}

	if err := s.UpgradeTables(ctx, v200); err != nil {
		t.Fatalf("UpgradeTables failed: %v", err)
	}
	for table, col := range map[string]string{"tracks": "album_id", "albums": "artist_id"} {
		cols, _ := s.TableColumns(ctx, table)
		if !slices.Contains(cols, col) {
			t.Errorf("%s: expected column %s after upgrade, got %v", table, col, cols)
		}
	}

	mustTx(t, s, func(ctx context.Context) error {
		return s.InsertTracks(ctx, []music.Track{{ID: "tr4", Name: "Recreant", AlbumID: "al1"}}, nil)
	})
	if rows := dumpTable(t, s, "tracks"); len(rows) != 4 {
		t.Errorf("expected 4 tracks, got %v", rows)
	}
}

func TestCreateTablesFillsInMissingTableAtInstalledVersion(t *testing.T) {
	s := openTestStore(t, nil)
	seedV100(t, s)
	ctx := context.Background()

	mustTx(t, s, func(ctx context.Context) error {
		_, err := s.exec(ctx, "drop tracks", "DROP TABLE tracks")
		return err
	})

	if err := s.CreateTables(ctx, v200, false); err != nil {
		t.Fatalf("CreateTables failed: %v", err)
	}
	cols, _ := s.TableColumns(ctx, "tracks")
	if !slices.Equal(cols, []string{"id", "name", "album"}) {
		t.Fatalf("expected tracks at the 1.0.0 layout, got %v", cols)
	}

	if err := s.UpgradeTables(ctx, v200); err != nil {
		t.Fatalf("UpgradeTables failed: %v", err)
	}
	cols, _ = s.TableColumns(ctx, "tracks")
	if !slices.Equal(cols, []string{"id", "name", "album_id", "rating", "num_times_rated"}) {
		t.Errorf("unexpected tracks columns after upgrade: %v", cols)
	}
}

func TestUpgradeRejectsDowngrade(t *testing.T) {
	s := newTestStore(t)

	err := s.UpgradeTables(context.Background(), v110)
	if !errors.Is(err, ErrDowngrade) {
		t.Errorf("expected ErrDowngrade, got %v", err)
	}
}

func TestUpgradeFailureRollsBack(t *testing.T) {
	s := openTestStore(t, nil)
	seedV100(t, s)
	ctx := context.Background()

	// A pre-existing num_times_rated column makes the 1.1.0 step fail midway
	mustTx(t, s, func(ctx context.Context) error {
		_, err := s.exec(ctx, "sabotage", "ALTER TABLE tracks ADD COLUMN num_times_rated int")
		return err
	})

	if err := s.UpgradeTables(ctx, v200); err == nil {
		t.Fatal("expected upgrade to fail on a duplicate column")
	}

	cols, _ := s.TableColumns(ctx, "tracks")
	if !slices.Equal(cols, []string{"id", "name", "album", "num_times_rated"}) {
		t.Errorf("expected columns untouched after failed upgrade, got %v", cols)
	}
	installed, _ := s.InstalledVersion(ctx)
	if installed != v100 {
		t.Errorf("expected version to stay 1.0.0, got %s", installed)
	}
}
