package warehouse

import "fmt"

// Role classifies a managed table
type Role string

const (
	RoleStaging   Role = "staging"
	RoleFact      Role = "fact"
	RoleDimension Role = "dimension"
)

// Managed table names
const (
	StagingEvents = "staging_events"
	StagingSongs  = "staging_songs"
	Songplays     = "songplays"
	Users         = "users"
	Songs         = "songs"
	Artists       = "artists"
	Times         = "times"
)

// Table is one of the seven fixed tables
type Table struct {
	Name       string
	Role       Role
	Columns    []string
	NaturalKey string // empty for staging and fact tables
	DDL        string
}

// LoadDependent reports whether the table is filled by the transform step
func (t Table) LoadDependent() bool {
	return t.Role != RoleStaging
}

// DropSQL returns the idempotent drop statement
func (t Table) DropSQL() string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", t.Name)
}

// CountSQL returns the row count query
func (t Table) CountSQL() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", t.Name)
}

// DuplicateKeySQL counts natural-key values that occur more than once
func (t Table) DuplicateKeySQL() string {
	if t.NaturalKey == "" {
		return ""
	}
	return fmt.Sprintf(
		"SELECT COUNT(*) FROM (SELECT %[1]s FROM %[2]s GROUP BY %[1]s HAVING COUNT(*) > 1) AS dup",
		t.NaturalKey, t.Name)
}

var catalog = map[string]Table{
	StagingEvents: {
		Name: StagingEvents,
		Role: RoleStaging,
		Columns: []string{"artist", "auth", "firstName", "gender", "itemInSession", "lastName", "length",
			"level", "location", "method", "page", "registration", "sessionId", "song", "status", "ts",
			"userAgent", "userId"},
		DDL: stagingEventsDDL,
	},
	StagingSongs: {
		Name: StagingSongs,
		Role: RoleStaging,
		Columns: []string{"num_songs", "artist_id", "artist_latitude", "artist_longitude", "artist_location",
			"artist_name", "song_id", "title", "duration", "year"},
		DDL: stagingSongsDDL,
	},
	Songplays: {
		Name: Songplays,
		Role: RoleFact,
		Columns: []string{"songplay_id", "start_time", "user_id", "level", "song_id", "artist_id",
			"session_id", "location", "user_agent"},
		DDL: songplaysDDL,
	},
	Users: {
		Name:       Users,
		Role:       RoleDimension,
		Columns:    []string{"user_id", "first_name", "last_name", "gender", "level"},
		NaturalKey: "user_id",
		DDL:        usersDDL,
	},
	Songs: {
		Name:       Songs,
		Role:       RoleDimension,
		Columns:    []string{"song_id", "title", "artist_id", "year", "duration"},
		NaturalKey: "song_id",
		DDL:        songsDDL,
	},
	Artists: {
		Name:       Artists,
		Role:       RoleDimension,
		Columns:    []string{"artist_id", "name", "location", "latitude", "longitude"},
		NaturalKey: "artist_id",
		DDL:        artistsDDL,
	},
	Times: {
		Name:       Times,
		Role:       RoleDimension,
		Columns:    []string{"start_time", "hour", "day", "week", "month", "year", "weekday"},
		NaturalKey: "start_time",
		DDL:        timesDDL,
	},
}

// canonical order: staging first, then fact, then dimensions
var allOrder = []string{StagingEvents, StagingSongs, Songplays, Users, Songs, Artists, Times}

// dimensions precede the fact table because songplays references them
var createOrder = []string{StagingEvents, StagingSongs, Users, Songs, Artists, Times, Songplays}

// Lookup returns the catalog entry for name
func Lookup(name string) (Table, bool) {
	t, ok := catalog[name]
	return t, ok
}

// All returns the seven tables in canonical (and drop) order
func All() []Table {
	return tablesFor(allOrder)
}

// DropOrder returns the tables in the order they are dropped
func DropOrder() []Table {
	return tablesFor(allOrder)
}

// CreateOrder returns the tables in dependency order
func CreateOrder() []Table {
	return tablesFor(createOrder)
}

// Dimensions returns the four dimension tables
func Dimensions() []Table {
	var out []Table
	for _, t := range All() {
		if t.Role == RoleDimension {
			out = append(out, t)
		}
	}
	return out
}

// Names lists the table names
func Names(tables []Table) []string {
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	return names
}

// LoadDependentNames lists the fact and dimension tables
func LoadDependentNames() []string {
	var names []string
	for _, t := range All() {
		if t.LoadDependent() {
			names = append(names, t.Name)
		}
	}
	return names
}

func tablesFor(order []string) []Table {
	out := make([]Table, len(order))
	for i, name := range order {
		out[i] = catalog[name]
	}
	return out
}
