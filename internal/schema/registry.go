package schema

import (
	"fmt"
	"sort"
)

// Entity table names
const (
	TableTracks  = "tracks"
	TableAlbums  = "albums"
	TableArtists = "artists"
)

// EntityTables lists the entity tables in creation order: parents before
// children.
var EntityTables = []string{TableArtists, TableAlbums, TableTracks}

// Column is a single column definition: the name and everything that
// follows it in a CREATE TABLE or ADD COLUMN clause.
type Column struct {
	Name string
	Decl string
}

// Table is an ordered set of column definitions
type Table struct {
	Name    string
	Columns []Column
}

// Column returns the named column definition
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// HasColumn reports whether the table defines the named column
func (t Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// Rename documents a column rename introduced by a version. Renames are the
// only non-additive change a version may carry.
type Rename struct {
	Table string
	From  string
	To    string
}

// Schema is the full table layout for one version
type Schema struct {
	Version Version
	Tables  []Table
	Renames []Rename
}

// Table returns the named table definition
func (s *Schema) Table(name string) (Table, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// renamedFrom maps a column of table in this schema back to its name in the
// previous version.
func (s *Schema) renamedFrom(table, column string) string {
	for _, r := range s.Renames {
		if r.Table == table && r.To == column {
			return r.From
		}
	}
	return column
}

// AddedColumns returns the columns of table present in s but absent from
// prev, in s's declaration order. Renamed columns are not reported as added.
func (s *Schema) AddedColumns(prev *Schema, table string) []Column {
	cur, ok := s.Table(table)
	if !ok {
		return nil
	}
	old, _ := prev.Table(table)

	var added []Column
	for _, c := range cur.Columns {
		if old.HasColumn(s.renamedFrom(table, c.Name)) {
			continue
		}
		added = append(added, c)
	}
	return added
}

// Registry is an ordered set of schema versions
type Registry struct {
	schemas []*Schema
}

// NewRegistry builds a registry from schema definitions. Definitions may be
// given in any order. Every version must keep the previous version's tables
// and columns (after its documented renames) with unchanged declarations.
func NewRegistry(defs ...Schema) (*Registry, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("schema registry needs at least one version")
	}

	schemas := make([]*Schema, len(defs))
	for i := range defs {
		def := defs[i]
		if def.Version.IsZero() {
			return nil, fmt.Errorf("schema definition %d has no version", i)
		}
		schemas[i] = &def
	}
	sort.Slice(schemas, func(i, j int) bool {
		return schemas[i].Version.Less(schemas[j].Version)
	})

	for i := 1; i < len(schemas); i++ {
		prev, next := schemas[i-1], schemas[i]
		if prev.Version == next.Version {
			return nil, fmt.Errorf("duplicate schema version %s", next.Version)
		}
		if err := checkAdditive(prev, next); err != nil {
			return nil, fmt.Errorf("schema %s: %w", next.Version, err)
		}
	}
	if len(schemas[0].Renames) > 0 {
		return nil, fmt.Errorf("schema %s: the oldest version cannot carry renames", schemas[0].Version)
	}

	return &Registry{schemas: schemas}, nil
}

func checkAdditive(prev, next *Schema) error {
	if len(prev.Tables) != len(next.Tables) {
		return fmt.Errorf("table set changed from %d to %d tables", len(prev.Tables), len(next.Tables))
	}

	for _, r := range next.Renames {
		old, ok := prev.Table(r.Table)
		if !ok || !old.HasColumn(r.From) {
			return fmt.Errorf("rename %s.%s: no such column in %s", r.Table, r.From, prev.Version)
		}
		if old.HasColumn(r.To) {
			return fmt.Errorf("rename %s.%s: %s already exists in %s", r.Table, r.From, r.To, prev.Version)
		}
	}

	for _, old := range prev.Tables {
		cur, ok := next.Table(old.Name)
		if !ok {
			return fmt.Errorf("table %s removed", old.Name)
		}
		for _, col := range old.Columns {
			name := col.Name
			for _, r := range next.Renames {
				if r.Table == old.Name && r.From == col.Name {
					name = r.To
				}
			}
			c, ok := cur.Column(name)
			if !ok {
				return fmt.Errorf("column %s.%s removed", old.Name, col.Name)
			}
			if c.Decl != col.Decl {
				return fmt.Errorf("column %s.%s changed declaration", old.Name, col.Name)
			}
		}
	}

	return nil
}

// Get returns the schema for an exact version. The boolean is false when the
// registry has no such version.
func (r *Registry) Get(v Version) (*Schema, bool) {
	for _, s := range r.schemas {
		if s.Version == v {
			return s, true
		}
	}
	return nil, false
}

// Latest returns the highest registered version
func (r *Registry) Latest() Version {
	return r.schemas[len(r.schemas)-1].Version
}

// Oldest returns the lowest registered version
func (r *Registry) Oldest() Version {
	return r.schemas[0].Version
}

// Versions returns all registered versions in ascending order
func (r *Registry) Versions() []Version {
	versions := make([]Version, len(r.schemas))
	for i, s := range r.schemas {
		versions[i] = s.Version
	}
	return versions
}

// Path returns the schemas to apply, in order, to move from one version to
// another: every version after from up to and including to.
func (r *Registry) Path(from, to Version) ([]*Schema, error) {
	if _, ok := r.Get(from); !ok {
		return nil, fmt.Errorf("unknown schema version %s", from)
	}
	if _, ok := r.Get(to); !ok {
		return nil, fmt.Errorf("unknown schema version %s", to)
	}
	if to.Less(from) {
		return nil, fmt.Errorf("cannot move from schema %s back to %s", from, to)
	}

	var steps []*Schema
	for _, s := range r.schemas {
		if from.Less(s.Version) && !to.Less(s.Version) {
			steps = append(steps, s)
		}
	}
	return steps, nil
}
