package store

import (
	"path/filepath"
	"strings"
)

// Open returns the store for a location: paths ending in .db, .sqlite or
// .sqlite3 open a SQLite database, anything else is a directory for an
// FSStore.
func Open(location string) (Store, error) {
	switch strings.ToLower(filepath.Ext(location)) {
	case ".db", ".sqlite", ".sqlite3":
		s, err := NewSQLiteStore(location)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := NewFSStore(location)
	if err != nil {
		return nil, err
	}
	return s, nil
}
