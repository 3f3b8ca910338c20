package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/leonardcser/livescore-mcp/internal/metrics"
)

var nopLogger = zap.NewNop()

// ErrFetchFailed is matched by every error Fetch returns. Fetch only returns
// it when no cached value of any age exists for the URL.
var ErrFetchFailed = errors.New("cache: fetch failed")

// FetchError carries the network failure that could not be covered by a
// cached value.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch %s: %v", e.URL, e.Err) }

func (e *FetchError) Unwrap() []error { return []error{ErrFetchFailed, e.Err} }

// Transport performs the network GET behind the cache.
type Transport interface {
	Get(ctx context.Context, url string, header http.Header) ([]byte, error)
}

type TieredOptions struct {
	// HotTTL is the memory tier freshness window. Default is 60s.
	HotTTL time.Duration
	// DurableTTL is the durable tier freshness window. Default is 5m.
	DurableTTL time.Duration
	// FetchTimeout bounds every network fetch. Default is 8s.
	FetchTimeout time.Duration

	// Logger is the *zap.Logger for this cache.
	// A nil Logger will disable logging.
	Logger *zap.Logger
	// Metrics may be nil.
	Metrics *metrics.Metrics
	// Now is the clock. Default is time.Now.
	Now func() time.Time
}

func (opts *TieredOptions) Init() error {
	if opts.HotTTL <= 0 {
		opts.HotTTL = 60 * time.Second
	}
	if opts.DurableTTL <= 0 {
		opts.DurableTTL = 5 * time.Minute
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 8 * time.Second
	}
	if opts.HotTTL > opts.DurableTTL {
		return fmt.Errorf("hot ttl %s exceeds durable ttl %s", opts.HotTTL, opts.DurableTTL)
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return nil
}

// Tiered serves JSON for a URL from memory, then the durable tier, then the
// network, and falls back to stale copies of either tier when the network
// fails. It is safe for concurrent use.
type Tiered struct {
	opts      TieredOptions
	transport Transport
	durable   Durable
	memory    *memoryTier
	flight    singleflight.Group
}

// New builds a Tiered cache. A nil durable disables the durable tier.
func New(transport Transport, durable Durable, opts TieredOptions) (*Tiered, error) {
	if transport == nil {
		return nil, errors.New("nil transport")
	}
	if err := opts.Init(); err != nil {
		return nil, err
	}
	if durable == nil {
		durable = Nop{}
	}
	return &Tiered{
		opts:      opts,
		transport: transport,
		durable:   durable,
		memory:    newMemoryTier(),
	}, nil
}

type fetchOptions struct {
	header     http.Header
	useDurable bool
}

// FetchOption adjusts a single Fetch call.
type FetchOption func(*fetchOptions)

// WithHeader adds a request header to the network fetch.
func WithHeader(key, value string) FetchOption {
	return func(o *fetchOptions) {
		if o.header == nil {
			o.header = make(http.Header)
		}
		o.header.Add(key, value)
	}
}

// WithDurable sets whether the durable tier is consulted and populated.
func WithDurable(use bool) FetchOption {
	return func(o *fetchOptions) { o.useDurable = use }
}

// WithoutDurable skips the durable tier entirely for this call.
func WithoutDurable() FetchOption { return WithDurable(false) }

// Key derives the tier key for a URL.
func Key(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return "fetch|" + hex.EncodeToString(sum[:])
}

// Fetch returns the freshest available JSON for rawURL. The returned payload
// is shared with the cache and must not be modified.
func (t *Tiered) Fetch(ctx context.Context, rawURL string, opts ...FetchOption) (json.RawMessage, error) {
	fo := fetchOptions{useDurable: true}
	for _, o := range opts {
		o(&fo)
	}
	key := Key(rawURL)
	now := t.opts.Now()

	if e, ok := t.memory.get(key); ok && now.Sub(e.StoredAt) < t.opts.HotTTL {
		t.opts.Metrics.CacheLookup(metrics.LookupHot)
		return e.Payload, nil
	}

	if fo.useDurable {
		if e, ok := t.durableGet(key); ok && now.Sub(e.StoredAt) < t.opts.DurableTTL {
			t.memory.set(key, e)
			t.opts.Metrics.CacheLookup(metrics.LookupDurable)
			return e.Payload, nil
		}
	}

	payload, err := t.fetchNetwork(ctx, key, rawURL, fo)
	if err == nil {
		t.opts.Metrics.CacheLookup(metrics.LookupNetwork)
		return payload, nil
	}

	if e, ok := t.memory.get(key); ok {
		t.opts.Logger.Warn("serving stale memory entry", zap.String("url", rawURL), zap.Time("stored_at", e.StoredAt), zap.Error(err))
		t.opts.Metrics.CacheLookup(metrics.LookupStaleMemory)
		return e.Payload, nil
	}
	if fo.useDurable {
		if e, ok := t.durableGet(key); ok {
			t.opts.Logger.Warn("serving stale durable entry", zap.String("url", rawURL), zap.Time("stored_at", e.StoredAt), zap.Error(err))
			t.opts.Metrics.CacheLookup(metrics.LookupStaleDurable)
			return e.Payload, nil
		}
	}
	t.opts.Metrics.CacheLookup(metrics.LookupMiss)
	return nil, &FetchError{URL: rawURL, Err: err}
}

func (t *Tiered) fetchNetwork(ctx context.Context, key, rawURL string, fo fetchOptions) (json.RawMessage, error) {
	flightKey := key
	if !fo.useDurable {
		flightKey += "|memory"
	}
	if len(fo.header) > 0 {
		flightKey += "|" + headerDigest(fo.header)
	}
	// The flight outlives any single caller, so only FetchTimeout bounds it.
	detached := context.WithoutCancel(ctx)
	v, err, _ := t.flight.Do(flightKey, func() (any, error) {
		fctx, cancel := context.WithTimeout(detached, t.opts.FetchTimeout)
		defer cancel()
		body, err := t.transport.Get(fctx, rawURL, fo.header)
		if err != nil {
			return nil, err
		}
		if !json.Valid(body) {
			return nil, errors.New("response is not valid json")
		}
		e := Entry{Payload: json.RawMessage(body), StoredAt: t.opts.Now()}
		t.memory.set(key, e)
		if fo.useDurable {
			if err := t.durable.Put(key, e); err != nil {
				t.opts.Logger.Warn("durable write skipped", zap.String("url", rawURL), zap.Error(err))
				t.opts.Metrics.DurableWriteFailed()
			}
		}
		return e.Payload, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(json.RawMessage), nil
}

func headerDigest(h http.Header) string {
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, http.CanonicalHeaderKey(k))
	}
	sort.Strings(names)
	sum := sha256.New()
	for _, k := range names {
		sum.Write([]byte(k))
		for _, v := range h.Values(k) {
			sum.Write([]byte{0})
			sum.Write([]byte(v))
		}
		sum.Write([]byte{'\n'})
	}
	return hex.EncodeToString(sum.Sum(nil)[:8])
}

func (t *Tiered) durableGet(key string) (Entry, bool) {
	e, err := t.durable.Get(key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			t.opts.Logger.Warn("durable read failed", zap.String("key", key), zap.Error(err))
		}
		return Entry{}, false
	}
	return e, true
}

// Peek returns whatever is cached for rawURL without touching the network,
// memory first, then durable, regardless of age.
func (t *Tiered) Peek(rawURL string) (json.RawMessage, bool) {
	key := Key(rawURL)
	if e, ok := t.memory.get(key); ok {
		return e.Payload, true
	}
	if e, ok := t.durableGet(key); ok {
		return e.Payload, true
	}
	return nil, false
}

// InvalidateAll clears every tier.
func (t *Tiered) InvalidateAll() {
	t.memory.clear()
	if err := t.durable.Clear(); err != nil {
		t.opts.Logger.Warn("durable clear failed", zap.Error(err))
	}
}
