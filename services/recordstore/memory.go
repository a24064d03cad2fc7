// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package recordstore

import (
	"context"
	"sync"

	"github.com/AleutianAI/scholar/pkg/records"
)

// MemoryStore keeps records in process memory in insertion order.
//
// # Thread Safety
//
// Safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  map[string]*records.Record
	order []string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*records.Record)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, id string, fields []string) (*records.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return project(rec, id, fields, false), nil
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context, limit int, fields []string) ([]*records.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.order)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*records.Record, 0, n)
	for _, id := range m.order[:n] {
		out = append(out, project(m.docs[id], id, fields, true))
	}
	return out, nil
}

// Put implements Store. Replacing a record keeps its listing position.
func (m *MemoryStore) Put(_ context.Context, id string, rec *records.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[id]; !ok {
		m.order = append(m.order, id)
	}
	m.docs[id] = rec.Clone()
	return nil
}

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }

// DemoStudents returns the built-in sample records.
func DemoStudents() []*records.Record {
	return []*records.Record{
		records.FromPairs(
			records.Field{Name: records.IDField, Value: "689cef602490264c7f2dd235"},
			records.Field{Name: "name", Value: "Student 1"},
			records.Field{Name: "G1", Value: 6},
			records.Field{Name: "G2", Value: 10},
			records.Field{Name: "G3", Value: 10},
			records.Field{Name: "studytime", Value: 2},
			records.Field{Name: "absences", Value: 0},
			records.Field{Name: "failures", Value: 0},
			records.Field{Name: "goout", Value: 3},
			records.Field{Name: "Dalc", Value: 1},
			records.Field{Name: "Walc", Value: 1},
		),
		records.FromPairs(
			records.Field{Name: records.IDField, Value: "689cef602490264c7f2dd260"},
			records.Field{Name: "name", Value: "Student 2"},
			records.Field{Name: "G1", Value: 15},
			records.Field{Name: "G2", Value: 18},
			records.Field{Name: "G3", Value: 20},
		),
		records.FromPairs(
			records.Field{Name: records.IDField, Value: "689cef602490264c7f2dd239"},
			records.Field{Name: "name", Value: "Student 3"},
			records.Field{Name: "G1", Value: 14},
			records.Field{Name: "G2", Value: 17},
			records.Field{Name: "G3", Value: 19},
		),
		records.FromPairs(
			records.Field{Name: records.IDField, Value: "5f43a1a8a1a1a1a1a1a1a1a1"},
			records.Field{Name: "name", Value: "Alice"},
			records.Field{Name: "age", Value: 17},
			records.Field{Name: "sex", Value: "F"},
			records.Field{Name: "G3", Value: 13},
		),
		records.FromPairs(
			records.Field{Name: records.IDField, Value: "5f43a1a8b2b2b2b2b2b2b2b2"},
			records.Field{Name: "name", Value: "Bob"},
			records.Field{Name: "age", Value: 18},
			records.Field{Name: "sex", Value: "M"},
			records.Field{Name: "G3", Value: 15},
		),
	}
}
