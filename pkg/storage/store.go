package storage

import (
	"context"
	"fmt"

	"github.com/containerd/errdefs"
	"github.com/cuemby/storefront/pkg/types"
	bolt "go.etcd.io/bbolt"
)

// Collection names
const (
	UsersCollection    = "users"
	ProductsCollection = "products"
	OrdersCollection   = "orders"

	RevocationsCollection = "revocations"
)

// Typed handles for the storefront collections
var (
	Users    = NewCollection(UsersCollection, func(u *types.User) string { return u.ID })
	Products = NewCollection(ProductsCollection, func(p *types.Product) string { return p.ID })
	Orders   = NewCollection(OrdersCollection, func(o *types.Order) string { return o.ID })

	Revocations = NewCollection(RevocationsCollection, func(r *types.Revocation) string { return r.ID })
)

// DefaultCollections are created when a store is opened
var DefaultCollections = []string{UsersCollection, ProductsCollection, OrdersCollection, RevocationsCollection}

// Store defines the transactional document store.
//
// Update transactions are serialized against every other Update on the same
// store, so a read-modify-write inside one callback can never interleave with
// another writer. View transactions see a consistent snapshot of every
// collection as of the last committed Update.
type Store interface {
	// View runs fn in a read-only transaction
	View(ctx context.Context, fn func(tx *Tx) error) error

	// Update runs fn in a read-write transaction. The transaction commits only
	// if fn returns nil and ctx is still live; otherwise nothing is applied.
	Update(ctx context.Context, fn func(tx *Tx) error) error

	// Collections lists the collection names held by the store
	Collections() []string

	// Close releases the underlying database
	Close() error
}

// Tx is a transaction handle passed to View and Update callbacks
type Tx struct {
	tx *bolt.Tx
}

// Writable reports whether the transaction may mutate collections
func (t *Tx) Writable() bool {
	return t.tx.Writable()
}

func (t *Tx) bucket(name string) (*bolt.Bucket, error) {
	b := t.tx.Bucket([]byte(name))
	if b == nil {
		return nil, fmt.Errorf("collection %q: %w", name, errdefs.ErrNotFound)
	}
	return b, nil
}

func (t *Tx) writableBucket(name string) (*bolt.Bucket, error) {
	if !t.tx.Writable() {
		return nil, fmt.Errorf("collection %q: write in read-only transaction: %w", name, errdefs.ErrFailedPrecondition)
	}
	return t.bucket(name)
}

// storageError marks an I/O failure of the underlying database
func storageError(op string, err error) error {
	return fmt.Errorf("storage %s: %w: %w", op, errdefs.ErrInternal, err)
}

// corruptionError marks a record that can no longer be decoded
func corruptionError(collection string, key []byte, err error) error {
	return fmt.Errorf("storage: decode %s/%s: %w: %w", collection, key, errdefs.ErrDataLoss, err)
}
