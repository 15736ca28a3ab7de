package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
)

// Memory is an in-process store used when mongo is disabled (local env and
// tests). Values go through a bson round-trip so behavior matches the mongo
// backend, tags included.
type Memory struct {
	mu     sync.RWMutex
	tables map[string]map[string]bson.Raw
}

func NewMemory() *Memory {
	return &Memory{tables: make(map[string]map[string]bson.Raw)}
}

func (m *Memory) Connect(_ context.Context) error {
	return nil
}

func (m *Memory) Get(_ context.Context, table, key string, out interface{}) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows, ok := m.tables[table]
	if !ok {
		return false, nil
	}
	raw, ok := rows[key]
	if !ok {
		return false, nil
	}
	if err := bson.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("memory decode: %w", err)
	}
	return true, nil
}

func (m *Memory) Set(_ context.Context, table, key string, value interface{}) error {
	raw, err := bson.Marshal(value)
	if err != nil {
		return fmt.Errorf("memory encode: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.tables[table]
	if !ok {
		rows = make(map[string]bson.Raw)
		m.tables[table] = rows
	}
	rows[key] = raw
	return nil
}

func (m *Memory) Find(_ context.Context, table string, match func(key string, value bson.Raw) bool, out interface{}) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows, ok := m.tables[table]
	if !ok {
		return false, nil
	}
	// sorted keys keep scans deterministic
	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !match(k, rows[k]) {
			continue
		}
		if err := bson.Unmarshal(rows[k], out); err != nil {
			return false, fmt.Errorf("memory decode: %w", err)
		}
		return true, nil
	}
	return false, nil
}
