// Package memstore is an in-memory Store fake used by every test in this
// module. It honors the same multi-document transaction contract the
// production firestorestore provides, serializing transactions behind a
// single mutex — the per-trip-lock strategy spec §9 calls for when the
// target store lacks a native cross-document transaction primitive, applied
// at whole-store granularity for simplicity since test workloads are small.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"ark/internal/clock"
	"ark/internal/store"
)

type doc struct {
	id     string
	data   map[string]any
	exists bool
}

// Store is the in-memory Store implementation.
type Store struct {
	mu          sync.Mutex
	clock       clock.Clock
	collections map[string]map[string]*doc
	subs        map[string]map[string]map[string]*doc // parentPath -> subName -> docID -> doc
	seq         int
}

// New returns an empty in-memory store ticking off c for ServerTimestamp
// substitution.
func New(c clock.Clock) *Store {
	return &Store{
		clock:       c,
		collections: map[string]map[string]*doc{},
		subs:        map[string]map[string]map[string]*doc{},
	}
}

func (s *Store) Collection(name string) store.CollectionRef {
	return &collectionRef{s: s, path: name}
}

func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Transaction) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &transaction{s: s}
	if err := fn(ctx, tx); err != nil {
		var abort *store.AbortError
		if ok := asAbort(err, &abort); ok {
			return err
		}
		return err
	}
	return nil
}

func asAbort(err error, target **store.AbortError) bool {
	if e, ok := err.(*store.AbortError); ok {
		*target = e
		return true
	}
	return false
}

func (s *Store) bucket(path string) map[string]*doc {
	b, ok := s.collections[path]
	if !ok {
		b = map[string]*doc{}
		s.collections[path] = b
	}
	return b
}

func (s *Store) nextID() string {
	s.seq++
	return fmt.Sprintf("mem_%d", s.seq)
}

// collectionRef

type collectionRef struct {
	s    *Store
	path string
}

func (c *collectionRef) Doc(id string) store.DocRef {
	return &docRef{s: c.s, path: c.path, id: id}
}

func (c *collectionRef) NewDoc() store.DocRef {
	c.s.mu.Lock()
	id := c.s.nextID()
	c.s.mu.Unlock()
	return &docRef{s: c.s, path: c.path, id: id}
}

func (c *collectionRef) Where(field string, op store.Op, value any) store.Query {
	return &query{s: c.s, path: c.path, filters: []filter{{field, op, value}}}
}

func (c *collectionRef) Documents(ctx context.Context) ([]store.Snapshot, error) {
	return (&query{s: c.s, path: c.path}).Documents(ctx)
}

// docRef

type docRef struct {
	s    *Store
	path string
	id   string
}

func (d *docRef) ID() string { return d.id }

func (d *docRef) Collection(name string) store.CollectionRef {
	return &collectionRef{s: d.s, path: d.path + "/" + d.id + "/" + name}
}

func (d *docRef) Get(ctx context.Context) (store.Snapshot, error) {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	return d.getLocked(), nil
}

func (d *docRef) getLocked() store.Snapshot {
	b := d.s.bucket(d.path)
	doc, ok := b[d.id]
	if !ok || !doc.exists {
		return &snapshot{id: d.id, exists: false}
	}
	return &snapshot{id: d.id, exists: true, data: cloneData(doc.data)}
}

func (d *docRef) Set(ctx context.Context, data map[string]any) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	d.setLocked(data)
	return nil
}

func (d *docRef) setLocked(data map[string]any) {
	b := d.s.bucket(d.path)
	b[d.id] = &doc{id: d.id, data: resolveTimestamps(data, d.s.clock), exists: true}
}

func (d *docRef) Update(ctx context.Context, fields map[string]any) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	return d.updateLocked(fields)
}

func (d *docRef) updateLocked(fields map[string]any) error {
	b := d.s.bucket(d.path)
	existing, ok := b[d.id]
	if !ok || !existing.exists {
		return fmt.Errorf("memstore: update on missing document %s/%s", d.path, d.id)
	}
	merged := cloneData(existing.data)
	for k, v := range resolveTimestamps(fields, d.s.clock) {
		merged[k] = v
	}
	b[d.id] = &doc{id: d.id, data: merged, exists: true}
	return nil
}

func (d *docRef) Delete(ctx context.Context) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	d.deleteLocked()
	return nil
}

func (d *docRef) deleteLocked() {
	b := d.s.bucket(d.path)
	delete(b, d.id)
}

// query

type filter struct {
	field string
	op    store.Op
	value any
}

type query struct {
	s       *Store
	path    string
	filters []filter
}

func (q *query) Where(field string, op store.Op, value any) store.Query {
	next := &query{s: q.s, path: q.path, filters: append(append([]filter{}, q.filters...), filter{field, op, value})}
	return next
}

func (q *query) Documents(ctx context.Context) ([]store.Snapshot, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	return q.documentsLocked(), nil
}

func (q *query) documentsLocked() []store.Snapshot {
	b := q.s.bucket(q.path)
	ids := make([]string, 0, len(b))
	for id := range b {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []store.Snapshot
	for _, id := range ids {
		dc := b[id]
		if !dc.exists {
			continue
		}
		if matchesAll(dc.data, q.filters) {
			out = append(out, &snapshot{id: id, exists: true, data: cloneData(dc.data)})
		}
	}
	return out
}

func matchesAll(data map[string]any, filters []filter) bool {
	for _, f := range filters {
		if !matches(data[f.field], f.op, f.value) {
			return false
		}
	}
	return true
}

func matches(got any, op store.Op, want any) bool {
	switch op {
	case store.OpEqual:
		return fmt.Sprint(got) == fmt.Sprint(want) && sameKind(got, want)
	case store.OpLessThan, store.OpGreaterThan, store.OpLessOrEqual:
		return compareOrdered(got, op, want)
	default:
		return false
	}
}

func sameKind(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return true
}

// snapshot

type snapshot struct {
	id     string
	exists bool
	data   map[string]any
}

func (s *snapshot) ID() string     { return s.id }
func (s *snapshot) Exists() bool   { return s.exists }

func (s *snapshot) DataTo(v any) error {
	b, err := json.Marshal(s.data)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// transaction

type transaction struct {
	s *Store
}

func (t *transaction) Get(ctx context.Context, ref store.DocRef) (store.Snapshot, error) {
	dr := ref.(*docRef)
	return dr.getLocked(), nil
}

func (t *transaction) Create(ctx context.Context, ref store.DocRef, data map[string]any) error {
	dr := ref.(*docRef)
	if dr.getLocked().Exists() {
		return fmt.Errorf("memstore: create on existing document %s/%s", dr.path, dr.id)
	}
	dr.setLocked(data)
	return nil
}

func (t *transaction) Set(ctx context.Context, ref store.DocRef, data map[string]any) error {
	ref.(*docRef).setLocked(data)
	return nil
}

func (t *transaction) Update(ctx context.Context, ref store.DocRef, fields map[string]any) error {
	return ref.(*docRef).updateLocked(fields)
}

func (t *transaction) Delete(ctx context.Context, ref store.DocRef) error {
	ref.(*docRef).deleteLocked()
	return nil
}

func (t *transaction) Documents(ctx context.Context, q store.Query) ([]store.Snapshot, error) {
	return q.(*query).documentsLocked(), nil
}

// helpers

func cloneData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}

func resolveTimestamps(data map[string]any, c clock.Clock) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if v == store.ServerTimestamp {
			out[k] = c.Now()
			continue
		}
		out[k] = v
	}
	return out
}

func compareOrdered(got any, op store.Op, want any) bool {
	gf, gok := toFloat(got)
	wf, wok := toFloat(want)
	if gok && wok {
		switch op {
		case store.OpLessThan:
			return gf < wf
		case store.OpGreaterThan:
			return gf > wf
		case store.OpLessOrEqual:
			return gf <= wf
		}
		return false
	}
	gt, gok := toTime(got)
	wt, wok := toTime(want)
	if gok && wok {
		switch op {
		case store.OpLessThan:
			return gt.Before(wt)
		case store.OpGreaterThan:
			return gt.After(wt)
		case store.OpLessOrEqual:
			return gt.Before(wt) || gt.Equal(wt)
		}
	}
	return false
}
