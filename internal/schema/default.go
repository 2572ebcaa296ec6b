package schema

const (
	declID   = "text NOT NULL PRIMARY KEY"
	declName = "text NOT NULL"
	declRef  = "text NOT NULL"

	declRating      = "int CHECK (rating IS NULL OR (rating >= -1 AND rating <= 1))"
	declTimesRated  = "int NOT NULL DEFAULT 0 CHECK (num_times_rated >= 0)"
	declTimeFetched = "int NOT NULL DEFAULT 0 CHECK (time_fetched >= 0)"
)

// v1_0_0 is the original layout
func v1_0_0() Schema {
	return Schema{
		Version: Version{1, 0, 0},
		Tables: []Table{
			{Name: TableTracks, Columns: []Column{
				{"id", declID},
				{"name", declName},
				{"album", declRef},
			}},
			{Name: TableAlbums, Columns: []Column{
				{"id", declID},
				{"name", declName},
				{"artist", declRef},
			}},
			{Name: TableArtists, Columns: []Column{
				{"id", declID},
				{"name", declName},
			}},
		},
	}
}

// v1_1_0 adds track ratings. A NULL rating means the track was never rated.
func v1_1_0() Schema {
	s := v1_0_0()
	s.Version = Version{1, 1, 0}
	s.Tables[0].Columns = append(s.Tables[0].Columns,
		Column{"rating", declRating},
		Column{"num_times_rated", declTimesRated},
	)
	return s
}

// v1_2_0 adds fetch stamps to albums and artists
func v1_2_0() Schema {
	s := v1_1_0()
	s.Version = Version{1, 2, 0}
	s.Tables[1].Columns = append(s.Tables[1].Columns, Column{"time_fetched", declTimeFetched})
	s.Tables[2].Columns = append(s.Tables[2].Columns, Column{"time_fetched", declTimeFetched})
	return s
}

// v2_0_0 renames the parent reference columns to album_id and artist_id
func v2_0_0() Schema {
	s := v1_2_0()
	s.Version = Version{2, 0, 0}
	s.Tables[0].Columns[2].Name = "album_id"
	s.Tables[1].Columns[2].Name = "artist_id"
	s.Renames = []Rename{
		{Table: TableTracks, From: "album", To: "album_id"},
		{Table: TableAlbums, From: "artist", To: "artist_id"},
	}
	return s
}

// DefaultRegistry returns the registry of every shipped schema version
func DefaultRegistry() *Registry {
	r, err := NewRegistry(v1_0_0(), v1_1_0(), v1_2_0(), v2_0_0())
	if err != nil {
		panic(err)
	}
	return r
}
