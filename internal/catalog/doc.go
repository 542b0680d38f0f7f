// Package catalog persists decoded volume metadata and the current primary
// selection in SQLite so the selection engine can rank candidates and bus
// sessions survive process restarts.
package catalog
