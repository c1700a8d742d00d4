package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/cuemby/storefront/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		name := "plain"
		if compress {
			name = "zstd"
		}
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			source := newTestStore(t)
			require.NoError(t, NewRepo(source, Products).Create(ctx, testProduct("p1", 4)))
			require.NoError(t, NewRepo(source, Products).Create(ctx, testProduct("p2", 0)))
			require.NoError(t, NewRepo(source, Users).Create(ctx, &types.User{ID: "u1", Username: "alice", Role: types.RoleUser}))

			dir := t.TempDir()
			paths, err := WriteSnapshot(ctx, source, dir, compress)
			require.NoError(t, err)
			require.Len(t, paths, len(DefaultCollections))
			for _, p := range paths {
				assert.FileExists(t, p)
			}
			assert.FileExists(t, filepath.Join(dir, SnapshotFile(OrdersCollection, compress)))

			target := newTestStore(t)
			require.NoError(t, NewRepo(target, Products).Create(ctx, testProduct("stale", 1)))

			counts, err := RestoreSnapshot(ctx, target, dir)
			require.NoError(t, err)
			assert.Equal(t, map[string]int{UsersCollection: 1, ProductsCollection: 2, OrdersCollection: 0, RevocationsCollection: 0}, counts)

			products, err := NewRepo(target, Products).All(ctx)
			require.NoError(t, err)
			assert.Len(t, products, 2)

			_, err = NewRepo(target, Products).Get(ctx, "stale")
			assert.True(t, errdefs.IsNotFound(err))

			p1, err := NewRepo(target, Products).Get(ctx, "p1")
			require.NoError(t, err)
			assert.Equal(t, 4, p1.Stock)
			assert.Equal(t, "19.99", p1.Price.String())
		})
	}
}

func TestSnapshotLeavesNoTempFiles(t *testing.T) {
	store := newTestStore(t)
	dir := t.TempDir()

	_, err := WriteSnapshot(context.Background(), store, dir, false)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, len(DefaultCollections))
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".snapshot-")
	}
}

func TestRestoreSnapshotErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing collection file", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, NewRepo(store, Products).Create(ctx, testProduct("p1", 1)))

		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "users.json"), []byte("[]"), 0600))

		_, err := RestoreSnapshot(ctx, store, dir)
		assert.True(t, errdefs.IsNotFound(err))

		_, err = NewRepo(store, Products).Get(ctx, "p1")
		assert.NoError(t, err, "failed restore must leave the store untouched")
	})

	t.Run("damaged file", func(t *testing.T) {
		store := newTestStore(t)
		dir := t.TempDir()
		for _, name := range DefaultCollections {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), []byte("[]"), 0600))
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, "orders.json"), []byte("[{"), 0600))

		_, err := RestoreSnapshot(ctx, store, dir)
		assert.True(t, errdefs.IsDataLoss(err))
	})

	t.Run("record without id", func(t *testing.T) {
		store := newTestStore(t)
		dir := t.TempDir()
		for _, name := range DefaultCollections {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), []byte("[]"), 0600))
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, "products.json"), []byte(`[{"name":"x"}]`), 0600))

		_, err := RestoreSnapshot(ctx, store, dir)
		assert.True(t, errdefs.IsInvalidArgument(err))
	})

	t.Run("duplicate id", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, NewRepo(store, Products).Create(ctx, testProduct("p1", 7)))

		dir := t.TempDir()
		for _, name := range DefaultCollections {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), []byte("[]"), 0600))
		}
		dup := `[{"id":"p2","name":"a","price":"1.00","stock":1},{"id":"p2","name":"b","price":"2.00","stock":2}]`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "products.json"), []byte(dup), 0600))

		_, err := RestoreSnapshot(ctx, store, dir)
		require.Error(t, err)
		assert.True(t, errdefs.IsInvalidArgument(err))
		assert.Contains(t, err.Error(), `duplicate id "p2"`)

		p1, err := NewRepo(store, Products).Get(ctx, "p1")
		require.NoError(t, err, "failed restore must leave the store untouched")
		assert.Equal(t, 7, p1.Stock)
		_, err = NewRepo(store, Products).Get(ctx, "p2")
		assert.True(t, errdefs.IsNotFound(err))
	})
}
