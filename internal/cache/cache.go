package cache

import (
	"encoding/binary"
	"time"

	"github.com/golang/snappy"
	bolt "go.etcd.io/bbolt"
)

// Store is the bbolt-backed durable tier.
// It is safe for concurrent use by multiple goroutines.
type Store struct {
	db            *bolt.DB
	bucket        []byte
	maxValueBytes int
}

type Options struct {
	// Bucket is the name of the Bolt bucket to use.
	Bucket string
	// MaxValueBytes bounds a single encoded entry. Zero means unbounded.
	MaxValueBytes int
}

// Open initializes or opens a Store at the given path.
func Open(path string, opts Options) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	bucket := []byte("cache")
	if opts.Bucket != "" {
		bucket = []byte(opts.Bucket)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, bucket: bucket, maxValueBytes: opts.MaxValueBytes}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put stores e under key, replacing any previous entry.
func (s *Store) Put(key string, e Entry) error {
	buf := encodeEntry(e)
	if s.maxValueBytes > 0 && len(buf) > s.maxValueBytes {
		return ErrTooLarge
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), buf)
	})
}

// Get returns the entry for key regardless of its age.
func (s *Store) Get(key string) (Entry, error) {
	var raw []byte
	if err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(s.bucket).Get([]byte(key)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	}); err != nil {
		return Entry{}, err
	}
	if raw == nil {
		return Entry{}, ErrNotFound
	}
	return decodeEntry(raw)
}

// Delete removes a key.
func (s *Store) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	})
}

// Clear drops every entry by recreating the bucket.
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(s.bucket); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket(s.bucket)
		return err
	})
}

// Layout: 8 bytes big endian storedAt (unix nano) || snappy(payload)
func encodeEntry(e Entry) []byte {
	packed := snappy.Encode(nil, e.Payload)
	buf := make([]byte, 8+len(packed))
	binary.BigEndian.PutUint64(buf[:8], uint64(e.StoredAt.UnixNano()))
	copy(buf[8:], packed)
	return buf
}

func decodeEntry(b []byte) (Entry, error) {
	if len(b) < 8 {
		return Entry{}, ErrCorrupt
	}
	storedAt := time.Unix(0, int64(binary.BigEndian.Uint64(b[:8])))
	payload, err := snappy.Decode(nil, b[8:])
	if err != nil {
		return Entry{}, ErrCorrupt
	}
	return Entry{Payload: payload, StoredAt: storedAt}, nil
}
