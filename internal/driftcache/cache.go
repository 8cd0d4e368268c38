// Package driftcache tracks, per (cluster, worker) pair, the last config
// hash a worker acknowledged applying. The supervisor records into it after
// each acknowledged mutation; it does not read the records back before
// broadcasting, and only tests call LastAcked. It is a disposable cache, not a
// source of truth: ConfigState and its snapshot remain authoritative.
package driftcache

import (
	"context"
	"encoding/binary"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"
)

// Cache wraps a badger database keyed by "<clusterID>:<workerID>".
type Cache struct {
	db *badgerdb.DB
}

// Open opens (creating if absent) a badger database at dir.
func Open(dir string) (*Cache, error) {
	opts := badgerdb.DefaultOptions(dir).WithLogger(nil)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("driftcache: open %s: %w", dir, err)
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying database.
func (c *Cache) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("driftcache: close: %w", err)
	}
	return nil
}

func key(clusterID string, workerID uint32) []byte {
	return []byte(fmt.Sprintf("%s:%d", clusterID, workerID))
}

// Record stores the hash a worker has just acknowledged applying.
func (c *Cache) Record(ctx context.Context, clusterID string, workerID uint32, hash uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, hash)

	err := c.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(key(clusterID, workerID), buf)
	})
	if err != nil {
		return fmt.Errorf("driftcache: record %s/%d: %w", clusterID, workerID, err)
	}
	return nil
}

// LastAcked returns the last hash a worker acknowledged for a cluster, and
// whether any record exists.
func (c *Cache) LastAcked(ctx context.Context, clusterID string, workerID uint32) (uint64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	var hash uint64
	var found bool

	err := c.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(key(clusterID, workerID))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("driftcache: corrupt value for %s/%d", clusterID, workerID)
			}
			hash = binary.BigEndian.Uint64(val)
			return nil
		})
	})
	if err != nil {
		return 0, false, fmt.Errorf("driftcache: lookup %s/%d: %w", clusterID, workerID, err)
	}
	return hash, found, nil
}

// ForgetWorker drops every recorded hash for a worker. The supervisor does
// not call it, so records of a worker removed from the pool stay in the
// cache.
func (c *Cache) ForgetWorker(ctx context.Context, workerID uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	suffix := []byte(fmt.Sprintf(":%d", workerID))

	err := c.db.Update(func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.DefaultIteratorOptions)
		defer it.Close()

		var toDelete [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			k := it.Item().KeyCopy(nil)
			if hasSuffix(k, suffix) {
				toDelete = append(toDelete, k)
			}
		}
		for _, k := range toDelete {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("driftcache: forget worker %d: %w", workerID, err)
	}
	return nil
}

func hasSuffix(b, suffix []byte) bool {
	if len(b) < len(suffix) {
		return false
	}
	return string(b[len(b)-len(suffix):]) == string(suffix)
}
