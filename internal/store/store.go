// Package store defines the transactional document-store abstraction the
// dispatch core is built against (spec §2 C1, §9 "Cross-collection
// transactions"). Two implementations satisfy it: firestorestore, backed by
// cloud.google.com/go/firestore for production, and memstore, an in-memory
// fake used by every test in this module.
//
// The shape intentionally mirrors cloud.google.com/go/firestore's own API
// (collections of documents, DocumentRef.Get/Set/Update, Where-queries,
// RunTransaction with a callback receiving a Transaction) so the production
// adapter is a thin pass-through rather than a translation layer.
package store

import "context"

// ServerTimestamp is a sentinel value: when present in data passed to Set/
// Update/Create, the implementation substitutes the server's commit time.
// cloud.google.com/go/firestore has an identical sentinel
// (firestore.ServerTimestamp); memstore emulates it with the injected Clock.
var ServerTimestamp = struct{ serverTimestamp bool }{true}

// Store is the root handle. One Store per process.
type Store interface {
	Collection(name string) CollectionRef
	// RunTransaction retries fn on contention the way cloud.google.com/go/
	// firestore's RunTransaction does; fn must be idempotent and should
	// re-read any document it intends to write, because it may be invoked
	// more than once before it commits (spec §4.3: "Read Trip by id" happens
	// inside the transaction, never before it).
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// CollectionRef names a collection (top-level or a document's subcollection,
// e.g. driverRequests/<driverId>/requests per spec §6).
type CollectionRef interface {
	Doc(id string) DocRef
	// NewDoc allocates a fresh random-id document reference without writing.
	NewDoc() DocRef
	Where(field string, op Op, value any) Query
	Documents(ctx context.Context) ([]Snapshot, error)
}

// DocRef addresses a single document outside of any transaction.
type DocRef interface {
	ID() string
	Collection(name string) CollectionRef
	Get(ctx context.Context) (Snapshot, error)
	Set(ctx context.Context, data map[string]any) error
	Update(ctx context.Context, fields map[string]any) error
	Delete(ctx context.Context) error
}

// Snapshot is a point-in-time read of a document.
type Snapshot interface {
	ID() string
	Exists() bool
	DataTo(v any) error
}

// Op is a query comparison operator, matching the subset Firestore's Where
// supports that this module needs.
type Op string

const (
	OpEqual        Op = "=="
	OpLessThan     Op = "<"
	OpGreaterThan  Op = ">"
	OpLessOrEqual  Op = "<="
)

// Query is a filtered, unexecuted read against a collection.
type Query interface {
	Where(field string, op Op, value any) Query
	Documents(ctx context.Context) ([]Snapshot, error)
}

// Transaction scopes document operations to one atomic commit. All reads
// inside a transaction must happen before any write, matching Firestore's
// own transaction contract. firestorestore inherits Firestore's rejection of
// a read after a write; memstore does not check the order.
type Transaction interface {
	Get(ctx context.Context, ref DocRef) (Snapshot, error)
	Create(tx context.Context, ref DocRef, data map[string]any) error
	Set(ctx context.Context, ref DocRef, data map[string]any) error
	Update(ctx context.Context, ref DocRef, fields map[string]any) error
	Delete(ctx context.Context, ref DocRef) error
	// Documents runs a query from inside the transaction (used by the
	// matching claim to count the driver's active trips in the same commit
	// that claims the driver; the sweeper's collection-wide scans run outside
	// a transaction per spec §4.5 "read-then-per-document-transaction").
	Documents(ctx context.Context, q Query) ([]Snapshot, error)
}

// AbortError (built with Abort) can be returned by a RunTransaction callback
// to abort the commit without it being treated as a store failure worth
// retrying. The matching engine's driver re-check does not use it; it
// returns an apperr.NotFound instead.
type AbortError struct{ Reason string }

func (e *AbortError) Error() string { return e.Reason }

func Abort(reason string) error { return &AbortError{Reason: reason} }
