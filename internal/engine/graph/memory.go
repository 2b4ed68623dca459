package graph

import (
	"context"
	"slices"
	"sort"

	apperrors "graphreader/internal/pkg/errors"
)

// MemoryReader answers every query from indexes built once at load time.
// It is immutable after construction and safe for concurrent use.
type MemoryReader struct {
	entities    map[int64]*Entity
	adjacency   map[int64][]Edge
	communityOf map[int64]string
	members     map[string][]int64
	// key -> string value -> sorted entity ids
	properties map[string]map[string][]int64
}

func NewMemoryReader(snap *Snapshot) *MemoryReader {
	r := &MemoryReader{
		entities:    make(map[int64]*Entity, len(snap.Entities)),
		adjacency:   make(map[int64][]Edge),
		communityOf: make(map[int64]string),
		members:     make(map[string][]int64, len(snap.Communities)),
		properties:  make(map[string]map[string][]int64),
	}

	for i := range snap.Entities {
		e := snap.Entities[i]
		r.entities[e.ID] = &e
		for key, val := range e.Properties {
			s, ok := propertyString(val)
			if !ok {
				continue
			}
			if r.properties[key] == nil {
				r.properties[key] = make(map[string][]int64)
			}
			r.properties[key][s] = append(r.properties[key][s], e.ID)
		}
	}
	for _, byValue := range r.properties {
		for _, ids := range byValue {
			sortIDs(ids)
		}
	}

	for _, edge := range snap.Relationships {
		r.adjacency[edge.Source] = append(r.adjacency[edge.Source], edge)
		if edge.Target != edge.Source {
			r.adjacency[edge.Target] = append(r.adjacency[edge.Target], edge)
		}
	}

	communityIDs := make([]string, 0, len(snap.Communities))
	for id := range snap.Communities {
		communityIDs = append(communityIDs, id)
	}
	sort.Strings(communityIDs)

	for _, cid := range communityIDs {
		ids := append([]int64(nil), snap.Communities[cid]...)
		sortIDs(ids)
		// A member listed twice is still one member.
		ids = slices.Compact(ids)
		r.members[cid] = ids
		for _, id := range ids {
			// An entity listed in several communities reports the first by id.
			if _, seen := r.communityOf[id]; !seen {
				r.communityOf[id] = cid
			}
		}
	}

	return r
}

func (r *MemoryReader) GetEntity(_ context.Context, id int64) (*Entity, error) {
	e, ok := r.entities[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return e, nil
}

func (r *MemoryReader) GetNeighbors(_ context.Context, id int64) ([]Edge, error) {
	return append([]Edge{}, r.adjacency[id]...), nil
}

func (r *MemoryReader) GetEntityCommunity(_ context.Context, id int64) (string, error) {
	cid, ok := r.communityOf[id]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return cid, nil
}

func (r *MemoryReader) GetCommunityMembers(_ context.Context, communityID string) ([]int64, error) {
	return append([]int64{}, r.members[communityID]...), nil
}

func (r *MemoryReader) SearchByProperty(_ context.Context, key, value string) ([]int64, error) {
	return append([]int64{}, r.properties[key][value]...), nil
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
