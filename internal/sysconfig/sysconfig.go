// Package sysconfig reads the system/config singleton (spec §4.7) through a
// bounded-TTL cache, invalidated explicitly on write rather than via any
// implicit process-wide singleton (spec §9 design note).
package sysconfig

import (
	"context"
	"sync"
	"time"

	"ark/internal/clock"
	"ark/internal/model"
	"ark/internal/store"
)

// DefaultTTL is the cache lifetime from spec §4.7.
const DefaultTTL = 10 * time.Second

// Reader is the injectable TTL-cached SystemConfig reader. One Reader per
// process; Invalidate() is called by internal/manager right after a write so
// the writing process observes its own change immediately (spec §4.7: "Other
// processes observe the change at cache expiry").
type Reader struct {
	store store.Store
	clock clock.Clock
	ttl   time.Duration

	mu        sync.Mutex
	cached    model.SystemConfig
	cachedAt  time.Time
	haveCache bool
}

// New builds a Reader with the default 10s TTL.
func New(st store.Store, c clock.Clock) *Reader {
	return &Reader{store: st, clock: c, ttl: DefaultTTL}
}

// NewWithTTL builds a Reader with a caller-supplied TTL, for tests that need
// to observe cache expiry deterministically.
func NewWithTTL(st store.Store, c clock.Clock, ttl time.Duration) *Reader {
	return &Reader{store: st, clock: c, ttl: ttl}
}

// Get returns the current SystemConfig, serving from cache when fresh.
func (r *Reader) Get(ctx context.Context) (model.SystemConfig, error) {
	r.mu.Lock()
	if r.haveCache && r.clock.Now().Sub(r.cachedAt) < r.ttl {
		cfg := r.cached
		r.mu.Unlock()
		return cfg, nil
	}
	r.mu.Unlock()

	cfg, err := r.load(ctx)
	if err != nil {
		return model.SystemConfig{}, err
	}

	r.mu.Lock()
	r.cached = cfg
	r.cachedAt = r.clock.Now()
	r.haveCache = true
	r.mu.Unlock()

	return cfg, nil
}

func (r *Reader) load(ctx context.Context) (model.SystemConfig, error) {
	ref := r.store.Collection(model.CollectionSystem).Doc(model.SystemConfigDocID)
	snap, err := ref.Get(ctx)
	if err != nil {
		return model.SystemConfig{}, err
	}
	if !snap.Exists() {
		return model.DefaultSystemConfig(), nil
	}
	var cfg model.SystemConfig
	if err := snap.DataTo(&cfg); err != nil {
		return model.SystemConfig{}, err
	}
	return cfg, nil
}

// Invalidate drops the cached value so the next Get reloads from the store.
func (r *Reader) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.haveCache = false
}
