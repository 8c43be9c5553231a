package dbutil

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/maniacs-db/drizzle-sub000/internal/catalog"
	"github.com/maniacs-db/drizzle-sub000/internal/engine/kvengine"
	"github.com/maniacs-db/drizzle-sub000/internal/kv/memory"
	kvpebble "github.com/maniacs-db/drizzle-sub000/internal/kv/pebble"
	"github.com/maniacs-db/drizzle-sub000/internal/replication"
	"github.com/maniacs-db/drizzle-sub000/internal/replication/changelog"
)

// Options used to open a database.
type Options struct {
	// Path of the Pebble database. If empty, tables are kept in memory.
	Path string
	// Table name.
	Table string
	// Schema and Indexes of the table, see ParseSchema and ParseIndex.
	Schema  string
	Indexes []string
	// Path of the change log, if any.
	Changelog string
	Logger    pebble.Logger
}

// DB is an engine with a single table.
type DB struct {
	Engine  *kvengine.Engine
	Catalog *catalog.Catalog
	Table   *catalog.TableInfo
	// Log is nil if no change log was requested.
	Log *changelog.Log
}

// OpenDB is a helper function that takes raw unvalidated parameters and opens a database.
func OpenDB(opts Options) (*DB, error) {
	if opts.Logger == nil {
		opts.Logger = pebble.DefaultLogger
	}
	if opts.Table == "" {
		opts.Table = "t"
	}

	cols, err := ParseSchema(opts.Schema)
	if err != nil {
		return nil, err
	}
	ti := catalog.TableInfo{Name: opts.Table, Columns: cols}
	for _, s := range opts.Indexes {
		idx, err := ParseIndex(s, cols)
		if err != nil {
			return nil, err
		}
		ti.Indexes = append(ti.Indexes, idx)
	}

	db := DB{Catalog: catalog.New()}
	db.Table, err = db.Catalog.CreateTable(&ti)
	if err != nil {
		return nil, err
	}

	eopts := kvengine.Options{Logger: opts.Logger}
	if opts.Path == "" {
		db.Engine = kvengine.OpenMemory(eopts, memory.Options{})
	} else {
		db.Engine, err = kvengine.OpenPebble(eopts, kvpebble.Options{Path: opts.Path})
		if err != nil {
			return nil, err
		}
	}

	if opts.Changelog != "" {
		db.Log, err = changelog.Open(changelog.Options{Path: opts.Changelog, Sync: true, Logger: opts.Logger})
		if err != nil {
			return nil, errors.CombineErrors(err, db.Engine.Close())
		}
	}

	return &db, nil
}

// Replicator returns the change log of the database, or nil.
func (db *DB) Replicator() replication.Replicator {
	if db.Log == nil {
		return nil
	}
	return db.Log
}

// Close the engine and the change log. Calling it twice is a no-op.
func (db *DB) Close() error {
	var err error
	if db.Engine != nil {
		err = db.Engine.Close()
		db.Engine = nil
	}
	if db.Log != nil {
		err = errors.CombineErrors(err, db.Log.Close())
		db.Log = nil
	}
	return err
}
