// Package firestorestore is the production store.Store implementation,
// backed by cloud.google.com/go/firestore. It is a thin pass-through: every
// method maps directly onto the Firestore client's own API (collections,
// document references, Where-queries, RunTransaction), because the spec's
// data model (§3, §6) is already shaped as Firestore collections and
// documents with server timestamps and cross-document transactions.
//
// Grounded on the teacher's firebase.google.com/go/v4 wiring
// (internal/infra/firebase.go, internal/modules/location/
// firebase_location_service.go), generalized from Realtime Database to
// Firestore because the spec needs real ACID multi-document transactions,
// which Firestore provides and the RTDB does not.
package firestorestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ark/internal/store"
)

// Store wraps a *firestore.Client.
type Store struct {
	client *firestore.Client
}

// New wires a Store against an already-initialized Firestore client. Client
// construction (credentials, project id) is the caller's job — mirrors the
// teacher's NewFirebaseVerifier, which takes projectID/credentialsFile and
// builds the SDK client itself; the dispatch core only needs the client,
// not how it was authenticated.
func New(client *firestore.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Collection(name string) store.CollectionRef {
	return &collectionRef{ref: s.client.Collection(name)}
}

func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Transaction) error) error {
	return s.client.RunTransaction(ctx, func(ctx context.Context, fsTx *firestore.Transaction) error {
		return fn(ctx, &transaction{tx: fsTx})
	})
}

type collectionRef struct {
	ref *firestore.CollectionRef
}

func (c *collectionRef) Doc(id string) store.DocRef {
	return &docRef{ref: c.ref.Doc(id)}
}

func (c *collectionRef) NewDoc() store.DocRef {
	return &docRef{ref: c.ref.NewDoc()}
}

func (c *collectionRef) Where(field string, op store.Op, value any) store.Query {
	return &query{q: c.ref.Where(field, string(op), value)}
}

func (c *collectionRef) Documents(ctx context.Context) ([]store.Snapshot, error) {
	return collect(c.ref.Documents(ctx))
}

type docRef struct {
	ref *firestore.DocumentRef
}

func (d *docRef) ID() string { return d.ref.ID }

func (d *docRef) Collection(name string) store.CollectionRef {
	return &collectionRef{ref: d.ref.Collection(name)}
}

func (d *docRef) Get(ctx context.Context) (store.Snapshot, error) {
	snap, err := d.ref.Get(ctx)
	if isNotFound(err) {
		return &snapshot{id: d.ref.ID, exists: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return &snapshot{id: d.ref.ID, exists: true, snap: snap}, nil
}

func (d *docRef) Set(ctx context.Context, data map[string]any) error {
	_, err := d.ref.Set(ctx, resolveTimestamps(data))
	return err
}

func (d *docRef) Update(ctx context.Context, fields map[string]any) error {
	_, err := d.ref.Update(ctx, toUpdates(fields))
	return err
}

func (d *docRef) Delete(ctx context.Context) error {
	_, err := d.ref.Delete(ctx)
	return err
}

type query struct {
	q firestore.Query
}

func (q *query) Where(field string, op store.Op, value any) store.Query {
	return &query{q: q.q.Where(field, string(op), value)}
}

func (q *query) Documents(ctx context.Context) ([]store.Snapshot, error) {
	return collect(q.q.Documents(ctx))
}

type snapshot struct {
	id     string
	exists bool
	snap   *firestore.DocumentSnapshot
}

func (s *snapshot) ID() string   { return s.id }
func (s *snapshot) Exists() bool { return s.exists }

func (s *snapshot) DataTo(v any) error {
	if !s.exists {
		return fmt.Errorf("firestorestore: DataTo on nonexistent document %s", s.id)
	}
	return s.snap.DataTo(v)
}

type transaction struct {
	tx *firestore.Transaction
}

func (t *transaction) Get(ctx context.Context, ref store.DocRef) (store.Snapshot, error) {
	dr := ref.(*docRef)
	snap, err := t.tx.Get(dr.ref)
	if isNotFound(err) {
		return &snapshot{id: dr.ref.ID, exists: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return &snapshot{id: dr.ref.ID, exists: true, snap: snap}, nil
}

func (t *transaction) Create(ctx context.Context, ref store.DocRef, data map[string]any) error {
	return t.tx.Create(ref.(*docRef).ref, resolveTimestamps(data))
}

func (t *transaction) Set(ctx context.Context, ref store.DocRef, data map[string]any) error {
	return t.tx.Set(ref.(*docRef).ref, resolveTimestamps(data))
}

func (t *transaction) Update(ctx context.Context, ref store.DocRef, fields map[string]any) error {
	return t.tx.Update(ref.(*docRef).ref, toUpdates(fields))
}

func (t *transaction) Delete(ctx context.Context, ref store.DocRef) error {
	return t.tx.Delete(ref.(*docRef).ref)
}

func (t *transaction) Documents(ctx context.Context, q store.Query) ([]store.Snapshot, error) {
	fsQuery := q.(*query)
	iter := t.tx.Documents(fsQuery.q)
	return collect(iter)
}

// helpers

type docIterator interface {
	Next() (*firestore.DocumentSnapshot, error)
}

func collect(iter docIterator) ([]store.Snapshot, error) {
	var out []store.Snapshot
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, &snapshot{id: snap.Ref.ID, exists: true, snap: snap})
	}
	return out, nil
}

func resolveTimestamps(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if v == store.ServerTimestamp {
			out[k] = firestore.ServerTimestamp
			continue
		}
		out[k] = v
	}
	return out
}

func toUpdates(fields map[string]any) []firestore.Update {
	updates := make([]firestore.Update, 0, len(fields))
	for k, v := range fields {
		if v == store.ServerTimestamp {
			v = firestore.ServerTimestamp
		}
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	return updates
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}
