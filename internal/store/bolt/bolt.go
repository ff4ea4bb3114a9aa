// Package bolt is the default ports.TaskStore backend: a single embedded
// go.etcd.io/bbolt file with one bucket per task tag, each record
// JSON-encoded under a key of its zero-padded queue position followed by
// its task id, so Load returns each queue in saved order. Save replaces both buckets'
// contents inside one read-write transaction, so a restart never observes
// a snapshot that mixes an old torrent queue with a new file queue.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"torrentstream/internal/domain"
	"torrentstream/internal/domain/ports"
)

var (
	bucketTorrents = []byte("torrents")
	bucketFiles    = []byte("files")
)

// Store is a ports.TaskStore backed by a bbolt file.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) the bbolt file at path and ensures both
// task buckets exist.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("bolt store: create dir %s: %w", dir, err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt store: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketTorrents); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketFiles)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bolt store: create buckets: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save atomically replaces every record in both buckets with snap's
// contents: each bucket is deleted, recreated and repopulated, all
// inside the same transaction, so a crash mid-write leaves the previous
// snapshot intact rather than a half-written one.
func (s *Store) Save(ctx context.Context, snap ports.Snapshot) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := resetBucket(tx, bucketTorrents, snap.Torrents, func(t domain.TorrentTask) string { return t.ID }); err != nil {
			return fmt.Errorf("bolt store: save torrents: %w", err)
		}
		if err := resetBucket(tx, bucketFiles, snap.Files, func(f domain.FileDownloadTask) string { return f.ID }); err != nil {
			return fmt.Errorf("bolt store: save files: %w", err)
		}
		return nil
	})
}

func resetBucket[T any](tx *bolt.Tx, name []byte, records []T, keyOf func(T) string) error {
	if err := tx.DeleteBucket(name); err != nil && err != bolt.ErrBucketNotFound {
		return err
	}
	b, err := tx.CreateBucket(name)
	if err != nil {
		return err
	}
	for i, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		// bbolt iterates keys in byte order, so a zero-padded position
		// prefix makes Load return records in the order they were saved.
		key := fmt.Sprintf("%010d-%s", i, keyOf(rec))
		if err := b.Put([]byte(key), data); err != nil {
			return err
		}
	}
	return nil
}

// Load reads both buckets back into a Snapshot. A brand-new file (empty
// buckets) is not an error — it yields a zero Snapshot.
func (s *Store) Load(ctx context.Context) (ports.Snapshot, error) {
	var snap ports.Snapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketTorrents).ForEach(func(k, v []byte) error {
			var t domain.TorrentTask
			if err := json.Unmarshal(v, &t); err != nil {
				return err
			}
			snap.Torrents = append(snap.Torrents, t)
			return nil
		}); err != nil {
			return err
		}
		return tx.Bucket(bucketFiles).ForEach(func(k, v []byte) error {
			var f domain.FileDownloadTask
			if err := json.Unmarshal(v, &f); err != nil {
				return err
			}
			snap.Files = append(snap.Files, f)
			return nil
		})
	})
	if err != nil {
		return ports.Snapshot{}, fmt.Errorf("bolt store: load: %w", err)
	}
	return snap, nil
}
