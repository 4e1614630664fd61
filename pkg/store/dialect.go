package store

import (
	"fmt"
	"strings"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// dialect captures the SQL differences between the supported drivers.
type dialect struct {
	name        string
	placeholder func(n int) string
	bigint      string
}

var dialects = map[string]dialect{
	DriverSQLite: {
		name:        DriverSQLite,
		placeholder: func(int) string { return "?" },
		bigint:      "INTEGER",
	},
	DriverPostgres: {
		name:        DriverPostgres,
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		bigint:      "BIGINT",
	},
}

func (d dialect) columnType(t ColumnType) string {
	if t == Integer {
		return d.bigint
	}
	return "TEXT"
}

func (d dialect) dropTable(s Schema) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", s.Table)
}

func (d dialect) createTable(s Schema) string {
	defs := []string{"id " + d.columnType(Integer) + " PRIMARY KEY"}
	for _, c := range s.Columns {
		def := c.Name + " " + d.columnType(c.Type)
		if c.Type == Text {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", s.Table, strings.Join(defs, ", "))
}

func (d dialect) insert(s Schema) string {
	names := []string{"id"}
	marks := []string{d.placeholder(1)}
	for i, c := range s.Columns {
		names = append(names, c.Name)
		marks = append(marks, d.placeholder(i+2))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.Table, strings.Join(names, ", "), strings.Join(marks, ", "))
}

func (d dialect) selectOne(s Schema) string {
	names := []string{"id"}
	for _, c := range s.Columns {
		names = append(names, c.Name)
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE id = %s", strings.Join(names, ", "), s.Table, d.placeholder(1))
}

func (d dialect) count(s Schema) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", s.Table)
}
