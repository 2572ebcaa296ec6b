package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/franz/spotify-manager/internal/schema"
	"github.com/franz/spotify-manager/internal/util"
)

// versionTable records the installed schema version as a single
// (major, minor, patch) row
const versionTable = "version"

var (
	// ErrMissingTable is returned by UpgradeTables when an entity table
	// does not exist
	ErrMissingTable = errors.New("missing table")

	// ErrUnknownVersion is returned for versions absent from the registry
	ErrUnknownVersion = errors.New("unknown schema version")

	// ErrDowngrade is returned when the target is older than the installed
	// version
	ErrDowngrade = errors.New("schema downgrade not supported")
)

// CreateTables creates the entity tables at the given version, plus the
// version table recording it. Existing tables are left alone unless force
// is set, in which case every table is dropped and recreated empty.
//
// When some entity tables already exist, missing ones are created at the
// installed version instead, and a missing version table records the oldest
// version, so that UpgradeTables can still bring everything to the target.
func (s *Store) CreateTables(ctx context.Context, version schema.Version, force bool) error {
	if _, ok := s.registry.Get(version); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVersion, version)
	}

	return s.Transaction(ctx, func() error {
		tables, err := s.Tables(ctx)
		if err != nil {
			return err
		}

		if force {
			for _, name := range []string{schema.TableTracks, schema.TableAlbums, schema.TableArtists, versionTable} {
				if err := s.dropTable(ctx, tables, name); err != nil {
					return err
				}
			}
			tables = nil
		}

		base := version
		if hasEntityTable(tables) {
			if base, err = s.InstalledVersion(ctx); err != nil {
				return err
			}
		}
		layout, ok := s.registry.Get(base)
		if !ok {
			return fmt.Errorf("%w: installed %s", ErrUnknownVersion, base)
		}

		for _, name := range schema.EntityTables {
			if slices.Contains(tables, name) {
				util.DebugLog("Table %s already exists", name)
				continue
			}
			table, _ := layout.Table(name)
			if err := s.createTable(ctx, table); err != nil {
				return err
			}
		}

		if !slices.Contains(tables, versionTable) {
			if err := s.createVersionTable(ctx, base); err != nil {
				return err
			}
		}

		if base != version {
			util.WarnLog("Existing tables are at schema version %s; run upgrade to reach %s", base, version)
		}
		return nil
	})
}

func hasEntityTable(tables []string) bool {
	for _, name := range schema.EntityTables {
		if slices.Contains(tables, name) {
			return true
		}
	}
	return false
}

// InstalledVersion returns the version recorded in the version table. A
// database without one is assumed to be at the oldest registered version.
func (s *Store) InstalledVersion(ctx context.Context) (schema.Version, error) {
	tables, err := s.Tables(ctx)
	if err != nil {
		return schema.Version{}, err
	}
	if !slices.Contains(tables, versionTable) {
		return s.registry.Oldest(), nil
	}

	var v schema.Version
	err = s.reader().QueryRowContext(ctx, `
		SELECT major, minor, patch
		  FROM version
	`).Scan(&v.Major, &v.Minor, &v.Patch)
	if err == sql.ErrNoRows {
		return s.registry.Oldest(), nil
	}
	if err != nil {
		return schema.Version{}, fmt.Errorf("failed to read schema version: %w", err)
	}

	return v, nil
}

// UpgradeTables migrates the entity tables from the installed version to
// target without touching existing rows. Every intermediate version is
// applied in order: its documented renames first, then its added columns
// in declaration order. All steps share one transaction. Calling it again
// with the same target does nothing.
func (s *Store) UpgradeTables(ctx context.Context, target schema.Version) error {
	if _, ok := s.registry.Get(target); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVersion, target)
	}

	tables, err := s.Tables(ctx)
	if err != nil {
		return err
	}
	for _, name := range schema.EntityTables {
		if !slices.Contains(tables, name) {
			util.ErrorLog("Cannot upgrade tables because %s does not exist", name)
			return fmt.Errorf("%w: %s", ErrMissingTable, name)
		}
	}

	installed, err := s.InstalledVersion(ctx)
	if err != nil {
		return err
	}
	if installed == target {
		util.DebugLog("Schema already at version %s", target)
		return nil
	}
	if target.Less(installed) {
		return fmt.Errorf("%w: installed %s, requested %s", ErrDowngrade, installed, target)
	}

	current, ok := s.registry.Get(installed)
	if !ok {
		return fmt.Errorf("%w: installed %s", ErrUnknownVersion, installed)
	}
	steps, err := s.registry.Path(installed, target)
	if err != nil {
		return err
	}

	return s.Transaction(ctx, func() error {
		prev := current
		for _, step := range steps {
			util.InfoLog("Upgrading schema %s -> %s", prev.Version, step.Version)

			for _, r := range step.Renames {
				query := fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", r.Table, r.From, r.To)
				if _, err := s.exec(ctx, "rename column", query); err != nil {
					return fmt.Errorf("failed to rename %s.%s: %w", r.Table, r.From, err)
				}
			}

			for _, name := range schema.EntityTables {
				for _, col := range step.AddedColumns(prev, name) {
					query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", name, col.Name, col.Decl)
					if _, err := s.exec(ctx, "add column", query); err != nil {
						return fmt.Errorf("failed to add %s.%s: %w", name, col.Name, err)
					}
				}
			}

			prev = step
		}

		return s.setVersion(ctx, tables, target)
	})
}

func (s *Store) createTable(ctx context.Context, table schema.Table) error {
	defs := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		defs[i] = col.Name + " " + col.Decl
	}

	query := fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", table.Name, strings.Join(defs, ",\n\t"))
	if _, err := s.exec(ctx, "create table", query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table.Name, err)
	}
	return nil
}

func (s *Store) dropTable(ctx context.Context, tables []string, name string) error {
	if !slices.Contains(tables, name) {
		return nil
	}
	if _, err := s.exec(ctx, "drop table", "DROP TABLE "+name); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", name, err)
	}
	return nil
}

func (s *Store) createVersionTable(ctx context.Context, v schema.Version) error {
	_, err := s.exec(ctx, "create version table", `
		CREATE TABLE version (
			major int NOT NULL PRIMARY KEY CHECK (major >= 0),
			minor int NOT NULL CHECK (minor >= 0),
			patch int NOT NULL CHECK (patch >= 0)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create version table: %w", err)
	}

	_, err = s.exec(ctx, "record schema version", `
		INSERT INTO version (major, minor, patch)
		     VALUES (?, ?, ?)
	`, v.Major, v.Minor, v.Patch)
	if err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}

// setVersion records v, creating the version table if the database predates it
func (s *Store) setVersion(ctx context.Context, tables []string, v schema.Version) error {
	if !slices.Contains(tables, versionTable) {
		return s.createVersionTable(ctx, v)
	}

	res, err := s.exec(ctx, "record schema version", `
		UPDATE version
		   SET major = ?,
		       minor = ?,
		       patch = ?
	`, v.Major, v.Minor, v.Patch)
	if err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		_, err = s.exec(ctx, "record schema version", `
			INSERT INTO version (major, minor, patch)
			     VALUES (?, ?, ?)
		`, v.Major, v.Minor, v.Patch)
		if err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
	}
	return nil
}
