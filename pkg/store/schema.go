package store

import (
	"fmt"
	"regexp"
)

// ColumnType is the storage type of a column.
type ColumnType string

const (
	// Text columns hold strings and are NOT NULL.
	Text ColumnType = "TEXT"

	// Integer columns hold whole numbers. SWAPI uses "unknown" for missing
	// measurements, which is stored as NULL.
	Integer ColumnType = "INTEGER"
)

// Column describes one non-key column.
type Column struct {
	Name string
	Type ColumnType
}

// Schema describes the destination table. Every table has an integer primary
// key "id" holding the record index, followed by Columns.
type Schema struct {
	Table   string
	Columns []Column
}

// PeopleSchema is the table layout for SWAPI people.
var PeopleSchema = Schema{
	Table: "sw_persons",
	Columns: []Column{
		{Name: "birth_year", Type: Text},
		{Name: "eye_color", Type: Text},
		{Name: "films", Type: Text},
		{Name: "gender", Type: Text},
		{Name: "hair_color", Type: Text},
		{Name: "height", Type: Integer},
		{Name: "homeworld", Type: Text},
		{Name: "mass", Type: Integer},
		{Name: "name", Type: Text},
		{Name: "skin_color", Type: Text},
		{Name: "species", Type: Text},
		{Name: "starships", Type: Text},
		{Name: "vehicles", Type: Text},
	},
}

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Validate checks that the schema is usable.
func (s Schema) Validate() error {
	if !identifier.MatchString(s.Table) {
		return fmt.Errorf("invalid table name %q", s.Table)
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("schema %s has no columns", s.Table)
	}

	seen := map[string]bool{"id": true}
	for _, c := range s.Columns {
		if !identifier.MatchString(c.Name) {
			return fmt.Errorf("invalid column name %q", c.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate column %q", c.Name)
		}
		seen[c.Name] = true

		switch c.Type {
		case Text, Integer:
		default:
			return fmt.Errorf("column %s: unsupported type %q", c.Name, c.Type)
		}
	}
	return nil
}

// Column returns the column called name.
func (s Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}
