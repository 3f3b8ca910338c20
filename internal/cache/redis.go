package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"time"

	"github.com/go-redis/redis/v8"
)

type RedisStoreOpts struct {
	// Client cannot be nil.
	Client redis.Cmdable

	// ClientCloser closes Client when RedisStore.Close is called.
	// Optional.
	ClientCloser io.Closer

	// KeyPrefix namespaces keys so Clear does not touch foreign data.
	// Default is "livescore:".
	KeyPrefix string

	// ClientTimeout specifies the timeout for each operation.
	// Default is 200ms.
	ClientTimeout time.Duration
}

func (opts *RedisStoreOpts) Init() error {
	if opts.Client == nil {
		return errors.New("nil client")
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "livescore:"
	}
	if opts.ClientTimeout <= 0 {
		opts.ClientTimeout = 200 * time.Millisecond
	}
	return nil
}

// RedisStore is a Durable backed by redis. Entries carry no redis TTL;
// staleness is decided by the reader from the packed storedAt.
type RedisStore struct {
	opts RedisStoreOpts
}

func NewRedisStore(opts RedisStoreOpts) (*RedisStore, error) {
	if err := opts.Init(); err != nil {
		return nil, err
	}
	return &RedisStore{opts: opts}, nil
}

func (r *RedisStore) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.opts.ClientTimeout)
}

func (r *RedisStore) Get(key string) (Entry, error) {
	ctx, cancel := r.ctx()
	defer cancel()
	b, err := r.opts.Client.Get(ctx, r.opts.KeyPrefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	return unpackRedisValue(b)
}

func (r *RedisStore) Put(key string, e Entry) error {
	ctx, cancel := r.ctx()
	defer cancel()
	return r.opts.Client.Set(ctx, r.opts.KeyPrefix+key, packRedisValue(e), 0).Err()
}

func (r *RedisStore) Delete(key string) error {
	ctx, cancel := r.ctx()
	defer cancel()
	return r.opts.Client.Del(ctx, r.opts.KeyPrefix+key).Err()
}

// Clear removes every key under the prefix.
func (r *RedisStore) Clear() error {
	ctx, cancel := r.ctx()
	defer cancel()
	var cursor uint64
	for {
		keys, next, err := r.opts.Client.Scan(ctx, cursor, r.opts.KeyPrefix+"*", 256).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := r.opts.Client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Close closes the redis client.
func (r *RedisStore) Close() error {
	if f := r.opts.ClientCloser; f != nil {
		return f.Close()
	}
	return nil
}

func packRedisValue(e Entry) []byte {
	b := make([]byte, 8+len(e.Payload))
	binary.BigEndian.PutUint64(b[:8], uint64(e.StoredAt.UnixNano()))
	copy(b[8:], e.Payload)
	return b
}

func unpackRedisValue(b []byte) (Entry, error) {
	if len(b) < 8 {
		return Entry{}, ErrCorrupt
	}
	return Entry{
		Payload:  append([]byte(nil), b[8:]...),
		StoredAt: time.Unix(0, int64(binary.BigEndian.Uint64(b[:8]))),
	}, nil
}
