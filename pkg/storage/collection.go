package storage

import (
	"context"
	"fmt"
	"reflect"

	"github.com/containerd/errdefs"
	json "github.com/goccy/go-json"
)

// Record is the generic field-mapping view of a stored document
type Record map[string]any

// ID returns the record's id field
func (r Record) ID() string {
	id, _ := r["id"].(string)
	return id
}

// Patch mutates a document in place during Update. Apply runs inside the
// write transaction, so it must not block on anything but the document.
type Patch[T any] interface {
	Apply(doc *T) error
}

// PatchFunc adapts a function to the Patch interface
type PatchFunc[T any] func(doc *T) error

// Apply calls f(doc)
func (f PatchFunc[T]) Apply(doc *T) error {
	return f(doc)
}

// Collection is a typed handle to one homogeneous set of documents keyed by id
type Collection[T any] struct {
	name string
	id   func(*T) string
}

// NewCollection creates a handle for the named collection. id extracts the
// document key.
func NewCollection[T any](name string, id func(*T) string) Collection[T] {
	return Collection[T]{name: name, id: id}
}

// Name returns the collection name
func (c Collection[T]) Name() string {
	return c.name
}

func (c Collection[T]) decode(key, data []byte) (*T, error) {
	var doc T
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, corruptionError(c.name, key, err)
	}
	return &doc, nil
}

func (c Collection[T]) put(tx *Tx, doc *T) error {
	b, err := tx.writableBucket(c.name)
	if err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c.name, c.id(doc), err)
	}
	if err := b.Put([]byte(c.id(doc)), data); err != nil {
		return storageError("put", err)
	}
	return nil
}

// All returns every document in the collection
func (c Collection[T]) All(tx *Tx) ([]*T, error) {
	return c.Filter(tx, nil)
}

// Get returns the document with the given id
func (c Collection[T]) Get(tx *Tx, id string) (*T, error) {
	b, err := tx.bucket(c.name)
	if err != nil {
		return nil, err
	}
	data := b.Get([]byte(id))
	if data == nil {
		return nil, fmt.Errorf("%s %s: %w", c.name, id, errdefs.ErrNotFound)
	}
	return c.decode([]byte(id), data)
}

// Exists reports whether a document with the given id is stored
func (c Collection[T]) Exists(tx *Tx, id string) (bool, error) {
	b, err := tx.bucket(c.name)
	if err != nil {
		return false, err
	}
	return b.Get([]byte(id)) != nil, nil
}

// Find returns the first document whose JSON field equals value. It is meant
// for fields that hold at most one match, such as usernames.
func (c Collection[T]) Find(tx *Tx, field string, value any) (*T, error) {
	want, err := normalize(value)
	if err != nil {
		return nil, fmt.Errorf("find %s by %s: %w", c.name, field, err)
	}

	b, err := tx.bucket(c.name)
	if err != nil {
		return nil, err
	}

	cur := b.Cursor()
	for k, v := cur.First(); k != nil; k, v = cur.Next() {
		var rec Record
		if err := json.Unmarshal(v, &rec); err != nil {
			return nil, corruptionError(c.name, k, err)
		}
		got, ok := rec[field]
		if !ok || !reflect.DeepEqual(got, want) {
			continue
		}
		return c.decode(k, v)
	}
	return nil, fmt.Errorf("%s with %s=%v: %w", c.name, field, value, errdefs.ErrNotFound)
}

// normalize converts value to the shape it has after a JSON round trip
func normalize(value any) (any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Filter returns every document matching pred. A nil pred matches all.
func (c Collection[T]) Filter(tx *Tx, pred func(*T) bool) ([]*T, error) {
	b, err := tx.bucket(c.name)
	if err != nil {
		return nil, err
	}

	docs := []*T{}
	err = b.ForEach(func(k, v []byte) error {
		doc, err := c.decode(k, v)
		if err != nil {
			return err
		}
		if pred == nil || pred(doc) {
			docs = append(docs, doc)
		}
		return nil
	})
	return docs, err
}

// Count returns the number of documents in the collection
func (c Collection[T]) Count(tx *Tx) (int, error) {
	b, err := tx.bucket(c.name)
	if err != nil {
		return 0, err
	}
	n := 0
	cur := b.Cursor()
	for k, _ := cur.First(); k != nil; k, _ = cur.Next() {
		n++
	}
	return n, nil
}

// Create inserts a new document. It fails if the id is empty or already present.
func (c Collection[T]) Create(tx *Tx, doc *T) error {
	id := c.id(doc)
	if id == "" {
		return fmt.Errorf("%s: document id is required: %w", c.name, errdefs.ErrInvalidArgument)
	}
	exists, err := c.Exists(tx, id)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%s %s: %w", c.name, id, errdefs.ErrAlreadyExists)
	}
	return c.put(tx, doc)
}

// Update loads the document, applies patch and stores the result. The id
// cannot be changed by a patch.
func (c Collection[T]) Update(tx *Tx, id string, patch Patch[T]) (*T, error) {
	if !tx.Writable() {
		return nil, fmt.Errorf("%s %s: update in read-only transaction: %w", c.name, id, errdefs.ErrFailedPrecondition)
	}
	doc, err := c.Get(tx, id)
	if err != nil {
		return nil, err
	}
	if err := patch.Apply(doc); err != nil {
		return nil, err
	}
	if c.id(doc) != id {
		return nil, fmt.Errorf("%s %s: id is immutable: %w", c.name, id, errdefs.ErrInvalidArgument)
	}
	if err := c.put(tx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Delete removes the document and reports whether it existed
func (c Collection[T]) Delete(tx *Tx, id string) (bool, error) {
	b, err := tx.writableBucket(c.name)
	if err != nil {
		return false, err
	}
	if b.Get([]byte(id)) == nil {
		return false, nil
	}
	if err := b.Delete([]byte(id)); err != nil {
		return false, storageError("delete", err)
	}
	return true, nil
}

// Records returns the generic field-mapping view of every document in the
// named collection
func (t *Tx) Records(collection string) ([]Record, error) {
	b, err := t.bucket(collection)
	if err != nil {
		return nil, err
	}
	records := []Record{}
	err = b.ForEach(func(k, v []byte) error {
		var rec Record
		if err := json.Unmarshal(v, &rec); err != nil {
			return corruptionError(collection, k, err)
		}
		records = append(records, rec)
		return nil
	})
	return records, err
}

// Repo binds a collection to a store so each call runs in its own transaction
type Repo[T any] struct {
	store Store
	c     Collection[T]
}

// NewRepo creates a Repo for c on store
func NewRepo[T any](store Store, c Collection[T]) *Repo[T] {
	return &Repo[T]{store: store, c: c}
}

// All returns every document
func (r *Repo[T]) All(ctx context.Context) ([]*T, error) {
	var docs []*T
	err := r.store.View(ctx, func(tx *Tx) error {
		var err error
		docs, err = r.c.All(tx)
		return err
	})
	return docs, err
}

// Get returns the document with the given id
func (r *Repo[T]) Get(ctx context.Context, id string) (*T, error) {
	var doc *T
	err := r.store.View(ctx, func(tx *Tx) error {
		var err error
		doc, err = r.c.Get(tx, id)
		return err
	})
	return doc, err
}

// Find returns the first document whose field equals value
func (r *Repo[T]) Find(ctx context.Context, field string, value any) (*T, error) {
	var doc *T
	err := r.store.View(ctx, func(tx *Tx) error {
		var err error
		doc, err = r.c.Find(tx, field, value)
		return err
	})
	return doc, err
}

// Filter returns the documents matching pred
func (r *Repo[T]) Filter(ctx context.Context, pred func(*T) bool) ([]*T, error) {
	var docs []*T
	err := r.store.View(ctx, func(tx *Tx) error {
		var err error
		docs, err = r.c.Filter(tx, pred)
		return err
	})
	return docs, err
}

// Create inserts doc
func (r *Repo[T]) Create(ctx context.Context, doc *T) error {
	return r.store.Update(ctx, func(tx *Tx) error {
		return r.c.Create(tx, doc)
	})
}

// Update applies patch to the document with the given id
func (r *Repo[T]) Update(ctx context.Context, id string, patch Patch[T]) (*T, error) {
	var doc *T
	err := r.store.Update(ctx, func(tx *Tx) error {
		var err error
		doc, err = r.c.Update(tx, id, patch)
		return err
	})
	return doc, err
}

// Delete removes the document with the given id
func (r *Repo[T]) Delete(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := r.store.Update(ctx, func(tx *Tx) error {
		var err error
		deleted, err = r.c.Delete(tx, id)
		return err
	})
	return deleted, err
}
