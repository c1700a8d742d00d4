package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/containerd/errdefs"
	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
)

// Snapshot file extensions
const (
	snapshotExt   = ".json"
	compressedExt = ".json.zst"
)

// zstdEncoder and zstdDecoder are safe for concurrent use and reused across snapshots
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("storage: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("storage: zstd decoder initialization failed: " + err.Error())
	}
}

// SnapshotFile returns the file name a collection is exported to
func SnapshotFile(collection string, compress bool) string {
	if compress {
		return collection + compressedExt
	}
	return collection + snapshotExt
}

// WriteSnapshot exports every collection of store into dir, one JSON array per
// collection, from a single read transaction. Each file is written to a temp
// file and renamed into place. It returns the written paths.
func WriteSnapshot(ctx context.Context, store Store, dir string, compress bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}

	exports := make(map[string][]byte)
	err := store.View(ctx, func(tx *Tx) error {
		for _, name := range store.Collections() {
			data, err := exportCollection(tx, name)
			if err != nil {
				return err
			}
			exports[name] = data
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, name := range store.Collections() {
		data := exports[name]
		if compress {
			data = zstdEncoder.EncodeAll(data, nil)
		}
		path := filepath.Join(dir, SnapshotFile(name, compress))
		if err := writeFileAtomic(dir, path, data); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// exportCollection renders the raw bucket values as one JSON array
func exportCollection(tx *Tx, name string) ([]byte, error) {
	b, err := tx.bucket(name)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	first := true
	err = b.ForEach(func(k, v []byte) error {
		if !json.Valid(v) {
			return corruptionError(name, k, errors.New("invalid JSON"))
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func writeFileAtomic(dir, finalPath string, data []byte) error {
	tmpFile, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("creating temp snapshot file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("syncing snapshot: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp snapshot file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("renaming snapshot to %s: %w", finalPath, err)
	}

	success = true
	return nil
}

// ReadSnapshot loads the records of one collection from dir, preferring the
// compressed file when both exist
func ReadSnapshot(dir, collection string) ([]Record, error) {
	data, err := os.ReadFile(filepath.Join(dir, SnapshotFile(collection, true)))
	switch {
	case err == nil:
		data, err = zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress %s: %w", collection, err)
		}
	case errors.Is(err, os.ErrNotExist):
		data, err = os.ReadFile(filepath.Join(dir, SnapshotFile(collection, false)))
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("snapshot of %s in %s: %w", collection, dir, errdefs.ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("reading snapshot of %s: %w", collection, err)
		}
	default:
		return nil, fmt.Errorf("reading snapshot of %s: %w", collection, err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("snapshot of %s: %w: %w", collection, errdefs.ErrDataLoss, err)
	}
	return records, nil
}

// RestoreSnapshot replaces the contents of every collection of store with the
// snapshot in dir. All collections are replaced in one transaction, so a
// missing or damaged file leaves the store untouched.
func RestoreSnapshot(ctx context.Context, store Store, dir string) (map[string]int, error) {
	loaded := make(map[string][]Record)
	for _, name := range store.Collections() {
		records, err := ReadSnapshot(dir, name)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]bool, len(records))
		for i, rec := range records {
			id := rec.ID()
			if id == "" {
				return nil, fmt.Errorf("snapshot of %s: record %d has no id: %w", name, i, errdefs.ErrInvalidArgument)
			}
			if seen[id] {
				return nil, fmt.Errorf("snapshot of %s: duplicate id %q: %w", name, id, errdefs.ErrInvalidArgument)
			}
			seen[id] = true
		}
		loaded[name] = records
	}

	counts := make(map[string]int)
	err := store.Update(ctx, func(tx *Tx) error {
		for name, records := range loaded {
			if err := tx.tx.DeleteBucket([]byte(name)); err != nil {
				return storageError("restore", err)
			}
			b, err := tx.tx.CreateBucket([]byte(name))
			if err != nil {
				return storageError("restore", err)
			}
			for _, rec := range records {
				data, err := json.Marshal(rec)
				if err != nil {
					return fmt.Errorf("encode %s/%s: %w", name, rec.ID(), err)
				}
				if err := b.Put([]byte(rec.ID()), data); err != nil {
					return storageError("restore", err)
				}
			}
			counts[name] = len(records)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}
