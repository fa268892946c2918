// Package calc wires the concrete calculators to a property table set.
package calc

import (
	"Kerf/internal/calc/focus"
	"Kerf/internal/calc/gaspressure"
	"Kerf/internal/calc/multipass"
	"Kerf/internal/engine"
	"Kerf/internal/tables"
)

// Tables loads the table file at path, or the embedded tables when path is
// empty.
func Tables(path string) (*tables.Set, error) {
	if path == "" {
		return tables.Embedded()
	}
	return tables.LoadFile(path)
}

// Registry registers every calculator against set.
func Registry(set *tables.Set) (*engine.Registry, error) {
	return engine.NewRegistry(
		multipass.New(set),
		gaspressure.New(set),
		focus.New(set),
	)
}
