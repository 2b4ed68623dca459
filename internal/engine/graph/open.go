package graph

import (
	"database/sql"
	"fmt"
	"path/filepath"

	"graphreader/internal/platform/config"
)

// SQLiteFile is the index file name inside the graph base dir.
const SQLiteFile = "graph.db"

// Open builds the reader selected by cfg.IndexerType.
func Open(cfg config.GraphConfig) (Reader, error) {
	switch cfg.IndexerType {
	case config.IndexerSQLite:
		db, err := OpenSQLite(cfg.BaseDir)
		if err != nil {
			return nil, err
		}
		return NewSQLiteReader(db), nil
	case config.IndexerMemory, "":
		snap, err := LoadSnapshot(cfg.BaseDir)
		if err != nil {
			return nil, err
		}
		return NewMemoryReader(snap), nil
	default:
		return nil, fmt.Errorf("unknown graph indexer %q", cfg.IndexerType)
	}
}

func OpenSQLite(baseDir string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", filepath.Join(baseDir, SQLiteFile))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open graph index: %w", err)
	}
	return db, nil
}
