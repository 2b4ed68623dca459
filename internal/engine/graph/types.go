// Package graph is the read side of the knowledge graph: entity lookup,
// neighbor traversal, community membership and property search.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Reader is the contract every route handler depends on. Absent entities and
// communities are reported with apperrors.ErrNotFound; list-returning calls
// answer an unknown id with an empty list.
type Reader interface {
	GetEntity(ctx context.Context, id int64) (*Entity, error)
	GetNeighbors(ctx context.Context, id int64) ([]Edge, error)
	GetEntityCommunity(ctx context.Context, id int64) (string, error)
	GetCommunityMembers(ctx context.Context, communityID string) ([]int64, error)
	SearchByProperty(ctx context.Context, key, value string) ([]int64, error)
}

// Entity is serialized flat: {"id": 1, "name": "Alice", ...}.
type Entity struct {
	ID         int64
	Properties map[string]interface{}
}

func (e Entity) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(e.Properties)+1)
	for k, v := range e.Properties {
		out[k] = v
	}
	out["id"] = e.ID
	return json.Marshal(out)
}

func (e *Entity) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	id, ok := raw["id"].(float64)
	if !ok || id != math.Trunc(id) {
		return fmt.Errorf("entity id must be an integer, got %v", raw["id"])
	}
	delete(raw, "id")

	e.ID = int64(id)
	e.Properties = raw
	return nil
}

type Edge struct {
	Source     int64                  `json:"source"`
	Target     int64                  `json:"target"`
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// Snapshot is the on-disk form of a graph as produced by the indexing pipeline.
type Snapshot struct {
	Entities      []Entity
	Relationships []Edge
	Communities   map[string][]int64
}

// propertyString is the form used to compare a stored property against a
// search value taken from the query string.
func propertyString(v interface{}) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return strconv.FormatInt(int64(val), 10), true
		}
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case int:
		return strconv.Itoa(val), true
	default:
		// Objects, arrays and nulls are not searchable.
		return "", false
	}
}
