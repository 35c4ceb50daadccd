package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"sync"
)

type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[string]map[int][]byte
	nextID map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:   make(map[string]map[int][]byte),
		nextID: make(map[string]int),
	}
}

func (m *MemoryStore) List(_ context.Context, kind string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sorted(kind, nil), nil
}

func (m *MemoryStore) Get(_ context.Context, kind string, id int) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.get(kind, id)
}

func (m *MemoryStore) Find(_ context.Context, kind, field, value string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.find(kind, field, value), nil
}

func (m *MemoryStore) Insert(_ context.Context, kind string, build func(id int) ([]byte, error)) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insert(kind, build)
}

func (m *MemoryStore) Put(_ context.Context, kind string, id int, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.put(kind, id, body)
}

func (m *MemoryStore) Delete(_ context.Context, kind string, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.delete(kind, id)
}

// Tx holds the write lock for the whole of fn, so fn must go through tx and
// never back to m. A failed fn, or a panic, restores the state found on entry.
func (m *MemoryStore) Tx(_ context.Context, fn func(tx Store) error) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	docs := make(map[string]map[int][]byte, len(m.docs))
	for kind, byID := range m.docs {
		docs[kind] = maps.Clone(byID)
	}
	nextID := maps.Clone(m.nextID)

	committed := false
	defer func() {
		if !committed {
			m.docs, m.nextID = docs, nextID
		}
	}()

	if err := fn(memTx{m}); err != nil {
		return err
	}
	committed = true
	return nil
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) get(kind string, id int) (Document, error) {
	body, ok := m.docs[kind][id]
	if !ok {
		return Document{}, fmt.Errorf("%s/%d: %w", kind, id, ErrNotFound)
	}
	return Document{ID: id, Body: clone(body)}, nil
}

func (m *MemoryStore) find(kind, field, value string) []Document {
	return m.sorted(kind, func(body []byte) bool {
		return fieldEquals(body, field, value)
	})
}

func (m *MemoryStore) insert(kind string, build func(id int) ([]byte, error)) (int, error) {
	id := m.nextID[kind] + 1
	body, err := build(id)
	if err != nil {
		return 0, err
	}
	if m.docs[kind] == nil {
		m.docs[kind] = make(map[int][]byte)
	}
	m.docs[kind][id] = clone(body)
	m.nextID[kind] = id
	return id, nil
}

// put and delete replace map entries and never write into a stored slice,
// which keeps the shallow per-kind copies taken by Tx valid.
func (m *MemoryStore) put(kind string, id int, body []byte) error {
	if _, ok := m.docs[kind][id]; !ok {
		return fmt.Errorf("%s/%d: %w", kind, id, ErrNotFound)
	}
	m.docs[kind][id] = clone(body)
	return nil
}

func (m *MemoryStore) delete(kind string, id int) error {
	if _, ok := m.docs[kind][id]; !ok {
		return fmt.Errorf("%s/%d: %w", kind, id, ErrNotFound)
	}
	delete(m.docs[kind], id)
	return nil
}

func (m *MemoryStore) sorted(kind string, keep func([]byte) bool) []Document {
	docs := make([]Document, 0, len(m.docs[kind]))
	for id, body := range m.docs[kind] {
		if keep != nil && !keep(body) {
			continue
		}
		docs = append(docs, Document{ID: id, Body: clone(body)})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs
}

// memTx is the view handed to Tx callbacks. The caller already holds the
// write lock.
type memTx struct {
	m *MemoryStore
}

func (t memTx) List(_ context.Context, kind string) ([]Document, error) {
	return t.m.sorted(kind, nil), nil
}

func (t memTx) Get(_ context.Context, kind string, id int) (Document, error) {
	return t.m.get(kind, id)
}

func (t memTx) Find(_ context.Context, kind, field, value string) ([]Document, error) {
	return t.m.find(kind, field, value), nil
}

func (t memTx) Insert(_ context.Context, kind string, build func(id int) ([]byte, error)) (int, error) {
	return t.m.insert(kind, build)
}

func (t memTx) Put(_ context.Context, kind string, id int, body []byte) error {
	return t.m.put(kind, id, body)
}

func (t memTx) Delete(_ context.Context, kind string, id int) error {
	return t.m.delete(kind, id)
}

func (t memTx) Tx(_ context.Context, fn func(tx Store) error) error {
	return fn(t)
}

func (t memTx) Close() error { return nil }

func fieldEquals(body []byte, field, value string) bool {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return false
	}
	v, ok := fields[field]
	if !ok || v == nil {
		return false
	}
	return fmt.Sprint(v) == value
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
