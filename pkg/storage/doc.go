/*
Package storage provides the BoltDB-backed document store for storefront data.

Every entity type lives in its own collection (a bbolt bucket) and every
document is a JSON object keyed by its id. Collections are typed through
Collection[T], and a schema-free view of any document is available as a
Record.

# Architecture

	┌──────────────────── DOCUMENT STORE ────────────────────┐
	│                                                          │
	│  ┌──────────────────────────────────────────┐           │
	│  │              BoltStore                    │           │
	│  │  - File: <dataDir>/storefront.db          │           │
	│  │  - One writer at a time, MVCC readers     │           │
	│  │  - Copy-on-write pages, fsync on commit   │           │
	│  └──────────────────┬───────────────────────┘           │
	│                     │                                     │
	│  ┌──────────────────▼───────────────────────┐           │
	│  │           Collections (buckets)           │           │
	│  │   users      (User ID)    -> JSON         │           │
	│  │   products   (Product ID) -> JSON         │           │
	│  │   orders     (Order ID)   -> JSON         │           │
	│  │   revocations (Token ID)  -> JSON         │           │
	│  └──────────────────────────────────────────┘           │
	│                                                          │
	└──────────────────────────────────────────────────────────┘

# Transactions

Store.View runs a callback against a consistent snapshot of all collections.
Store.Update runs a callback in the single read-write transaction; writers are
serialized for the whole file, so a read-check-write sequence inside one
callback (check stock, then decrement it) cannot interleave with any other
writer. The transaction commits only if the callback returns nil and the
context is still live. Anything else rolls back every collection touched.

	err := store.Update(ctx, func(tx *storage.Tx) error {
		product, err := storage.Products.Get(tx, id)
		if err != nil {
			return err
		}
		product.Stock -= 2
		_, err = storage.Products.Update(tx, id, storage.PatchFunc[types.Product](func(p *types.Product) error {
			p.Stock = product.Stock
			return nil
		}))
		return err
	})

Repo wraps a collection so that each call opens its own transaction, which is
enough for single-document reads and writes.

# Errors

Errors are classified with github.com/containerd/errdefs:

  - errdefs.ErrNotFound: missing document or collection
  - errdefs.ErrAlreadyExists: Create with an id that is taken
  - errdefs.ErrInvalidArgument: empty id, or a patch that changes the id
  - errdefs.ErrInternal: I/O failure of the database
  - errdefs.ErrDataLoss: a stored document that no longer decodes

# Snapshots

WriteSnapshot exports each collection to <name>.json, or <name>.json.zst when
compressed with zstd, from one read transaction. Files are written to a
temporary file, synced and renamed, so a reader never sees a partial file.
RestoreSnapshot replaces every collection from such a directory in a single
write transaction. BoltStore.Backup streams a hot copy of the database file.
*/
package storage
