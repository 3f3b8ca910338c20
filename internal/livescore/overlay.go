package livescore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/leonardcser/livescore-mcp/internal/cache"
	"github.com/leonardcser/livescore-mcp/internal/metrics"
)

// ErrCategoryFeedUnavailable wraps the failure of a single category feed
// during a refresh. It never fails the refresh itself.
var ErrCategoryFeedUnavailable = errors.New("category feed unavailable")

// Fetcher is the cached fetch the overlay polls feeds through.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts ...cache.FetchOption) (json.RawMessage, error)
}

type Options struct {
	// Cooldown is the minimum time between the starts of two refreshes.
	// Default is 30s.
	Cooldown time.Duration
	// MatchPoll is how often a subscription re-reads the store. Default is 5s.
	MatchPoll time.Duration
	// UseDurable lets feed payloads go through the durable cache tier.
	UseDurable bool
	// EvictAfterCycles drops keys not rewritten for that many refreshes.
	// Zero keeps everything until Clear.
	EvictAfterCycles int
	// FeedURL resolves the feed of a category. Default is TheSportsDB.
	FeedURL func(Category) string
	// APIKey is sent as X-API-KEY when set.
	APIKey string

	// Logger is the *zap.Logger for the overlay.
	// A nil Logger will disable logging.
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

func (opts *Options) Init() {
	if opts.Cooldown <= 0 {
		opts.Cooldown = 30 * time.Second
	}
	if opts.MatchPoll <= 0 {
		opts.MatchPoll = 5 * time.Second
	}
	if opts.FeedURL == nil {
		opts.FeedURL = FeedURLs("https://www.thesportsdb.com/api/v2/json/livescore", nil)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
}

// Overlay polls every category feed into a Store and answers lookups
// against it.
type Overlay struct {
	opts    Options
	fetcher Fetcher
	store   *Store

	mu          sync.Mutex
	lastStarted time.Time
}

// New builds an Overlay writing into store. A nil store gets a fresh one.
func New(fetcher Fetcher, store *Store, opts Options) *Overlay {
	opts.Init()
	if store == nil {
		store = NewStore()
	}
	return &Overlay{opts: opts, fetcher: fetcher, store: store}
}

func (o *Overlay) Store() *Store { return o.store }

// CategoryOutcome reports what one category contributed to a refresh.
type CategoryOutcome struct {
	Category Category `json:"category"`
	Records  int      `json:"records"`
	Err      error    `json:"-"`
}

type RefreshResult struct {
	// Skipped is set when the cooldown gate turned the call away.
	Skipped    bool              `json:"skipped"`
	StartedAt  time.Time         `json:"startedAt"`
	Categories []CategoryOutcome `json:"categories,omitempty"`
	Written    int               `json:"written"`
	Pruned     int               `json:"pruned"`
}

// Refresh fetches every category in parallel and writes the results into
// the store. Calls within Cooldown of the last started refresh are skipped.
// Feed failures are logged and reported per category. The returned error is
// only ever the caller's context error, checked before the cycle starts; a
// started cycle runs to completion even if ctx is cancelled.
func (o *Overlay) Refresh(ctx context.Context) (RefreshResult, error) {
	if err := ctx.Err(); err != nil {
		return RefreshResult{}, err
	}
	now := o.opts.Now()
	o.mu.Lock()
	if !o.lastStarted.IsZero() && now.Sub(o.lastStarted) < o.opts.Cooldown {
		last := o.lastStarted
		o.mu.Unlock()
		o.opts.Metrics.RefreshRun(true)
		return RefreshResult{Skipped: true, StartedAt: last}, nil
	}
	o.lastStarted = now
	o.mu.Unlock()
	o.opts.Metrics.RefreshRun(false)
	ctx = context.WithoutCancel(ctx)

	outcomes := make([]CategoryOutcome, len(Categories))
	batches := make([][]Record, len(Categories))
	var g errgroup.Group
	for i, c := range Categories {
		g.Go(func() error {
			recs, err := o.fetchCategory(ctx, c)
			o.opts.Metrics.CategoryFetch(string(c), err)
			if err != nil {
				o.opts.Logger.Warn("live score feed failed", zap.String("category", string(c)), zap.Error(err))
				outcomes[i] = CategoryOutcome{Category: c, Err: err}
				return nil
			}
			outcomes[i] = CategoryOutcome{Category: c, Records: len(recs)}
			batches[i] = recs
			return nil
		})
	}
	_ = g.Wait()

	var all []Record
	succeeded := 0
	for i := range batches {
		all = append(all, batches[i]...)
		if outcomes[i].Err == nil {
			succeeded++
		}
	}
	res := RefreshResult{StartedAt: now, Categories: outcomes}
	res.Written = o.store.Apply(all)
	// A full outage says nothing about which matches ended.
	if succeeded > 0 {
		res.Pruned = o.store.Prune(o.opts.EvictAfterCycles)
	}
	o.opts.Metrics.StoreRecords(o.store.Len())
	o.opts.Logger.Debug("live scores refreshed",
		zap.Int("records", len(all)),
		zap.Int("written", res.Written),
		zap.Int("pruned", res.Pruned),
		zap.Int("categories_ok", succeeded))
	return res, nil
}

func (o *Overlay) fetchCategory(ctx context.Context, c Category) ([]Record, error) {
	url := o.opts.FeedURL(c)
	if url == "" {
		return nil, fmt.Errorf("%w: %s: no feed url", ErrCategoryFeedUnavailable, c)
	}
	fetchOpts := []cache.FetchOption{cache.WithDurable(o.opts.UseDurable)}
	if o.opts.APIKey != "" {
		fetchOpts = append(fetchOpts, cache.WithHeader("X-API-KEY", o.opts.APIKey))
	}
	payload, err := o.fetcher.Fetch(ctx, url, fetchOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCategoryFeedUnavailable, c, err)
	}
	recs, err := decodeFeed(c, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCategoryFeedUnavailable, c, err)
	}
	return recs, nil
}

// Run refreshes immediately and then each time the cooldown of the latest
// started refresh expires, until ctx is done. Refreshes started by other
// callers push the next run back.
func (o *Overlay) Run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if _, err := o.Refresh(ctx); err != nil {
			return
		}
		timer.Reset(o.nextRefreshIn())
	}
}

func (o *Overlay) nextRefreshIn() time.Duration {
	o.mu.Lock()
	last := o.lastStarted
	o.mu.Unlock()
	return last.Add(o.opts.Cooldown).Sub(o.opts.Now())
}

// ByEventID returns the record stored under the provider's event id.
func (o *Overlay) ByEventID(id string) (Record, bool) {
	if id == "" {
		return Record{}, false
	}
	return o.store.Get(id)
}

// ByTeams resolves a fixture by team names. The exact composite key is tried
// first; otherwise the first stored record, in insertion order, whose home
// and away names both loosely match the query is returned. Candidates are
// not ranked.
func (o *Overlay) ByTeams(home, away string) (Record, bool) {
	h, a := Normalize(home), Normalize(away)
	if h == "" || a == "" {
		return Record{}, false
	}
	if r, ok := o.store.Get(h + "_" + a); ok {
		return r, true
	}
	return o.store.find(func(e *storeEntry) bool {
		return sideMatches(e.normHome, h) && sideMatches(e.normAway, a)
	})
}

// MatchScore evaluates a match subscription once. It returns nil without
// reading the store when isLive is false, and nil when nothing matches.
func (o *Overlay) MatchScore(home, away string, isLive bool) *MatchScore {
	if !isLive {
		return nil
	}
	r, ok := o.ByTeams(home, away)
	if !ok {
		return nil
	}
	return &MatchScore{Home: r.HomeScore, Away: r.AwayScore, Progress: r.Progress}
}

// Clear empties the store. The cooldown gate is left as is.
func (o *Overlay) Clear() {
	o.store.Clear()
	o.opts.Metrics.StoreRecords(0)
}
