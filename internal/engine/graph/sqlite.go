package graph

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	apperrors "graphreader/internal/pkg/errors"
)

//go:embed schema.sql
var schema string

// SQLiteReader serves queries from a graph index built by Import.
type SQLiteReader struct {
	db *sql.DB
}

func NewSQLiteReader(db *sql.DB) *SQLiteReader {
	return &SQLiteReader{db: db}
}

func (r *SQLiteReader) Close() error {
	return r.db.Close()
}

func (r *SQLiteReader) GetEntity(ctx context.Context, id int64) (*Entity, error) {
	var props string
	err := r.db.QueryRowContext(ctx, `SELECT properties FROM entities WHERE id = ?`, id).Scan(&props)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get entity %d: %w", id, err)
	}

	e := &Entity{ID: id}
	if err := json.Unmarshal([]byte(props), &e.Properties); err != nil {
		return nil, fmt.Errorf("decode entity %d: %w", id, err)
	}
	return e, nil
}

func (r *SQLiteReader) GetNeighbors(ctx context.Context, id int64) ([]Edge, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT source, target, type, properties FROM relationships
		WHERE source = ? OR target = ? ORDER BY rowid
	`, id, id)
	if err != nil {
		return nil, fmt.Errorf("get neighbors %d: %w", id, err)
	}
	defer rows.Close()

	edges := []Edge{}
	for rows.Next() {
		var edge Edge
		var props sql.NullString
		if err := rows.Scan(&edge.Source, &edge.Target, &edge.Type, &props); err != nil {
			return nil, err
		}
		if props.Valid && props.String != "" {
			if err := json.Unmarshal([]byte(props.String), &edge.Properties); err != nil {
				return nil, fmt.Errorf("decode relationship properties: %w", err)
			}
		}
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}

func (r *SQLiteReader) GetEntityCommunity(ctx context.Context, id int64) (string, error) {
	var cid string
	err := r.db.QueryRowContext(ctx, `
		SELECT community_id FROM community_members WHERE entity_id = ?
		ORDER BY community_id LIMIT 1
	`, id).Scan(&cid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperrors.ErrNotFound
		}
		return "", fmt.Errorf("get community of %d: %w", id, err)
	}
	return cid, nil
}

func (r *SQLiteReader) GetCommunityMembers(ctx context.Context, communityID string) ([]int64, error) {
	return r.queryIDs(ctx, `SELECT entity_id FROM community_members WHERE community_id = ? ORDER BY entity_id`, communityID)
}

func (r *SQLiteReader) SearchByProperty(ctx context.Context, key, value string) ([]int64, error) {
	return r.queryIDs(ctx, `SELECT entity_id FROM entity_properties WHERE key = ? AND value = ? ORDER BY entity_id`, key, value)
}

func (r *SQLiteReader) queryIDs(ctx context.Context, query string, args ...interface{}) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Import replaces the contents of the graph index with snap in one transaction.
func Import(ctx context.Context, db *sql.DB, snap *Snapshot) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create graph schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"entity_properties", "community_members", "relationships", "entities"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}

	for _, e := range snap.Entities {
		props, err := json.Marshal(e.Properties)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO entities (id, properties) VALUES (?, ?)`, e.ID, string(props)); err != nil {
			return fmt.Errorf("insert entity %d: %w", e.ID, err)
		}
		for key, val := range e.Properties {
			s, ok := propertyString(val)
			if !ok {
				continue
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO entity_properties (entity_id, key, value) VALUES (?, ?, ?)`, e.ID, key, s); err != nil {
				return err
			}
		}
	}

	for _, edge := range snap.Relationships {
		var props interface{}
		if len(edge.Properties) > 0 {
			b, err := json.Marshal(edge.Properties)
			if err != nil {
				return err
			}
			props = string(b)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO relationships (source, target, type, properties) VALUES (?, ?, ?, ?)`,
			edge.Source, edge.Target, edge.Type, props); err != nil {
			return err
		}
	}

	for cid, ids := range snap.Communities {
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO community_members (community_id, entity_id) VALUES (?, ?)`, cid, id); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}
