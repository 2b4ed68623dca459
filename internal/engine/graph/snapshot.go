package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	EntitiesFile      = "entities.json"
	RelationshipsFile = "relationships.json"
	CommunitiesFile   = "communities.json"
)

// LoadSnapshot reads the JSON graph files under baseDir. Missing relationship
// or community files yield an empty set; the entities file is required.
func LoadSnapshot(baseDir string) (*Snapshot, error) {
	info, err := os.Stat(baseDir)
	if err != nil {
		return nil, fmt.Errorf("graph base dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("graph base dir %s is not a directory", baseDir)
	}

	snap := &Snapshot{Communities: map[string][]int64{}}

	if err := readJSON(filepath.Join(baseDir, EntitiesFile), &snap.Entities, false); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(baseDir, RelationshipsFile), &snap.Relationships, true); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(baseDir, CommunitiesFile), &snap.Communities, true); err != nil {
		return nil, err
	}
	return snap, nil
}

func readJSON(path string, v interface{}, optional bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
