package livescore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonardcser/livescore-mcp/internal/cache"
)

type feedResponse struct {
	body string
	err  error
}

type fakeFeeds struct {
	mu        sync.Mutex
	responses map[string]feedResponse
	calls     int
}

func newFakeFeeds() *fakeFeeds {
	f := &fakeFeeds{responses: make(map[string]feedResponse)}
	for _, c := range Categories {
		f.responses[testFeedURL(c)] = feedResponse{body: `[]`}
	}
	return f
}

func (f *fakeFeeds) set(c Category, body string, err error) {
	f.mu.Lock()
	f.responses[testFeedURL(c)] = feedResponse{body: body, err: err}
	f.mu.Unlock()
}

func (f *fakeFeeds) Fetch(_ context.Context, url string, _ ...cache.FetchOption) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	r, ok := f.responses[url]
	if !ok {
		return nil, errors.New("unexpected url " + url)
	}
	if r.err != nil {
		return nil, r.err
	}
	return json.RawMessage(r.body), nil
}

func (f *fakeFeeds) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testFeedURL(c Category) string { return "https://feeds.example.test/" + string(c) }

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestOverlay(feeds *fakeFeeds, opts Options) (*Overlay, *testClock) {
	clk := &testClock{now: time.Date(2026, 5, 10, 15, 0, 0, 0, time.UTC)}
	opts.FeedURL = testFeedURL
	opts.Now = clk.Now
	return New(feeds, nil, opts), clk
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Chelsea FC":            "chelsea",
		"FC Barcelona":          "barcelona",
		"  Manchester  United ": "manchester united",
		"St. Mirren":            "st mirren",
		"Newell's Old Boys":     "newells old boys",
		"F.C. Porto":            "porto",
		"fc":                    "fc",
		"AFC Bournemouth":       "afc bournemouth",
		"":                      "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "Normalize(%q)", in)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	for _, in := range []string{"Chelsea FC", "FC FC Köln", "F.C. Porto fc", "Nott'm  Forest.", "fc fc", "Real Madrid C.F."} {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestCompositeKeyIsNotSymmetric(t *testing.T) {
	assert.Equal(t, "chelsea_arsenal", CompositeKey("Chelsea FC", "Arsenal"))
	assert.NotEqual(t, CompositeKey("Chelsea", "Arsenal"), CompositeKey("Arsenal", "Chelsea"))

	o, _ := newTestOverlay(newFakeFeeds(), Options{})
	o.Store().Apply([]Record{
		{EventID: "1", HomeTeam: "Chelsea", AwayTeam: "Arsenal", HomeScore: Points(2), AwayScore: Points(0)},
	})
	_, ok := o.ByTeams("Arsenal", "Chelsea")
	assert.False(t, ok, "reversed fixture must not resolve")

	o.Store().Apply([]Record{
		{EventID: "2", HomeTeam: "Arsenal", AwayTeam: "Chelsea", HomeScore: Points(1), AwayScore: Points(1)},
	})
	r, ok := o.ByTeams("Arsenal", "Chelsea")
	require.True(t, ok)
	assert.Equal(t, "2", r.EventID)
	r, ok = o.ByTeams("Chelsea", "Arsenal")
	require.True(t, ok)
	assert.Equal(t, "1", r.EventID)
}

func TestByTeamsFuzzy(t *testing.T) {
	o, _ := newTestOverlay(newFakeFeeds(), Options{})
	o.Store().Apply([]Record{
		{EventID: "mu-che", HomeTeam: "Manchester United", AwayTeam: "Chelsea", HomeScore: Points(1), AwayScore: Points(1), Progress: "HT"},
	})

	r, ok := o.ByTeams("Man United", "Chelsea FC")
	require.True(t, ok)
	assert.Equal(t, "mu-che", r.EventID)

	_, ok = o.ByTeams("Man United", "Liverpool")
	assert.False(t, ok, "only the home side matches")
	_, ok = o.ByTeams("Everton", "Chelsea")
	assert.False(t, ok, "only the away side matches")
	_, ok = o.ByTeams("", "Chelsea")
	assert.False(t, ok)
}

func TestByTeamsFirstInsertedWins(t *testing.T) {
	o, _ := newTestOverlay(newFakeFeeds(), Options{})
	o.Store().Apply([]Record{
		{EventID: "a", HomeTeam: "Manchester United", AwayTeam: "Chelsea"},
		{EventID: "b", HomeTeam: "Manchester City", AwayTeam: "Chelsea Women"},
	})
	r, ok := o.ByTeams("Manchester", "Chelsea W")
	require.True(t, ok)
	assert.Equal(t, "a", r.EventID)

	// Rewriting a key keeps its position.
	o.Store().Apply([]Record{
		{EventID: "b", HomeTeam: "Manchester City", AwayTeam: "Chelsea Women"},
		{EventID: "a", HomeTeam: "Manchester United", AwayTeam: "Chelsea", Progress: "70'"},
	})
	r, ok = o.ByTeams("Manchester", "Chelsea W")
	require.True(t, ok)
	assert.Equal(t, "a", r.EventID)
	assert.Equal(t, "70'", r.Progress)
}

func TestShortTokensDoNotMatch(t *testing.T) {
	assert.False(t, sideMatches("ac milan", "ac sparta"))
	assert.False(t, sideMatches("psg", "psv"))
	assert.True(t, sideMatches("atletico madrid", "madrid city"))
	assert.True(t, sideMatches("manchester united", "man united"))
	assert.False(t, sideMatches("", "chelsea"))
}

func TestRefreshEndToEnd(t *testing.T) {
	feeds := newFakeFeeds()
	feeds.set(Soccer, `[{"eventId":"e1","homeTeam":"Chelsea FC","awayTeam":"Arsenal","homeScore":1,"awayScore":0,"progress":"54'"}]`, nil)
	o, _ := newTestOverlay(feeds, Options{})

	res, err := o.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 2, res.Written)

	byID, ok := o.ByEventID("e1")
	require.True(t, ok)
	assert.Equal(t, Record{
		Category:  Soccer,
		EventID:   "e1",
		HomeTeam:  "Chelsea FC",
		AwayTeam:  "Arsenal",
		HomeScore: Points(1),
		AwayScore: Points(0),
		Progress:  "54'",
	}, byID)

	byTeams, ok := o.ByTeams("Chelsea", "Arsenal")
	require.True(t, ok)
	assert.Equal(t, byID, byTeams)
	_, ok = o.Store().Get("chelsea_arsenal")
	assert.True(t, ok)
}

func TestRefreshCategoryIsolation(t *testing.T) {
	feeds := newFakeFeeds()
	for _, c := range Categories {
		feeds.set(c, `{"events":[{"idEvent":"`+string(c)+`","strHomeTeam":"Home `+string(c)+`","strAwayTeam":"Away `+string(c)+`"}]}`, nil)
	}
	feeds.set(Cricket, "", errors.New("upstream 503"))
	o, _ := newTestOverlay(feeds, Options{})

	res, err := o.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Categories, len(Categories))
	for _, out := range res.Categories {
		if out.Category == Cricket {
			assert.ErrorIs(t, out.Err, ErrCategoryFeedUnavailable)
			continue
		}
		assert.NoError(t, out.Err)
		assert.Equal(t, 1, out.Records)
		_, ok := o.ByEventID(string(out.Category))
		assert.True(t, ok, "category %s", out.Category)
	}
	_, ok := o.ByEventID(string(Cricket))
	assert.False(t, ok)
}

func TestRefreshUndecodableFeedIsIsolated(t *testing.T) {
	feeds := newFakeFeeds()
	feeds.set(Hockey, `{"message":"rate limited"}`, nil)
	feeds.set(Rugby, `[{"eventId":"r1","homeTeam":"Leinster","awayTeam":"Munster"}]`, nil)
	o, _ := newTestOverlay(feeds, Options{})

	res, err := o.Refresh(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, res.Categories[2].Err, ErrCategoryFeedUnavailable)
	_, ok := o.ByEventID("r1")
	assert.True(t, ok)
}

func TestRefreshCooldown(t *testing.T) {
	feeds := newFakeFeeds()
	o, clk := newTestOverlay(feeds, Options{Cooldown: 30 * time.Second})

	first, err := o.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, first.Skipped)
	assert.Equal(t, len(Categories), feeds.callCount())

	clk.Advance(10 * time.Second)
	second, err := o.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Equal(t, first.StartedAt, second.StartedAt)
	assert.Equal(t, len(Categories), feeds.callCount())

	clk.Advance(21 * time.Second)
	third, err := o.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, third.Skipped)
	assert.Equal(t, 2*len(Categories), feeds.callCount())
}

func TestRefreshCooldownConcurrentCallers(t *testing.T) {
	feeds := newFakeFeeds()
	o, _ := newTestOverlay(feeds, Options{})

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = o.Refresh(context.Background())
		}()
	}
	wg.Wait()
	assert.Equal(t, len(Categories), feeds.callCount())
}

func TestRefreshCancelledContext(t *testing.T) {
	feeds := newFakeFeeds()
	o, _ := newTestOverlay(feeds, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Refresh(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, feeds.callCount())
}

// slowFeeds answers like fakeFeeds after delay, or fails with the context
// error if ctx ends first.
type slowFeeds struct {
	*fakeFeeds
	delay time.Duration
}

func (f slowFeeds) Fetch(ctx context.Context, url string, opts ...cache.FetchOption) (json.RawMessage, error) {
	select {
	case <-time.After(f.delay):
		return f.fakeFeeds.Fetch(ctx, url, opts...)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestRefreshCompletesAfterCallerCancels(t *testing.T) {
	feeds := newFakeFeeds()
	feeds.set(Soccer, `[{"eventId":"e1","homeTeam":"Chelsea","awayTeam":"Arsenal","homeScore":1,"awayScore":0}]`, nil)
	o := New(slowFeeds{fakeFeeds: feeds, delay: 60 * time.Millisecond}, nil, Options{FeedURL: testFeedURL})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	res, err := o.Refresh(ctx)
	require.NoError(t, err)
	require.Len(t, res.Categories, len(Categories))
	for _, out := range res.Categories {
		assert.NoError(t, out.Err, "category %s", out.Category)
	}
	_, ok := o.ByEventID("e1")
	assert.True(t, ok)
}

func TestRunKeepsCooldownCadence(t *testing.T) {
	feeds := newFakeFeeds()
	o := New(feeds, nil, Options{Cooldown: 30 * time.Millisecond, FeedURL: testFeedURL})

	ctx, cancel := context.WithTimeout(context.Background(), 600*time.Millisecond)
	defer cancel()
	o.Run(ctx)

	// One cycle at start, then one per cooldown.
	cycles := feeds.callCount() / len(Categories)
	assert.GreaterOrEqual(t, cycles, 17)
	assert.LessOrEqual(t, cycles, 21)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	feeds := newFakeFeeds()
	o, _ := newTestOverlay(feeds, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o.Run(ctx)
	assert.Zero(t, feeds.callCount())
}

func TestRefreshEviction(t *testing.T) {
	feeds := newFakeFeeds()
	feeds.set(Soccer, `[{"eventId":"e1","homeTeam":"Chelsea","awayTeam":"Arsenal"}]`, nil)
	o, clk := newTestOverlay(feeds, Options{EvictAfterCycles: 1})

	_, err := o.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, o.Store().Len())

	feeds.set(Soccer, `[{"eventId":"e2","homeTeam":"Liverpool","awayTeam":"Everton"}]`, nil)
	clk.Advance(time.Minute)
	res, err := o.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pruned)
	_, ok := o.ByEventID("e1")
	assert.False(t, ok)
	_, ok = o.ByEventID("e2")
	assert.True(t, ok)

	// A full outage keeps what is there.
	for _, c := range Categories {
		feeds.set(c, "", errors.New("offline"))
	}
	clk.Advance(time.Minute)
	res, err = o.Refresh(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Pruned)
	_, ok = o.ByEventID("e2")
	assert.True(t, ok)
}

func TestStoreKeepsEverythingWithoutEviction(t *testing.T) {
	feeds := newFakeFeeds()
	feeds.set(Soccer, `[{"eventId":"e1","homeTeam":"Chelsea","awayTeam":"Arsenal"}]`, nil)
	o, clk := newTestOverlay(feeds, Options{})
	_, err := o.Refresh(context.Background())
	require.NoError(t, err)

	feeds.set(Soccer, `[]`, nil)
	clk.Advance(time.Minute)
	_, err = o.Refresh(context.Background())
	require.NoError(t, err)
	_, ok := o.ByEventID("e1")
	assert.True(t, ok)

	o.Clear()
	assert.Zero(t, o.Store().Len())
}

func TestMatchScore(t *testing.T) {
	o, _ := newTestOverlay(newFakeFeeds(), Options{})
	o.Store().Apply([]Record{{HomeTeam: "Boston Celtics", AwayTeam: "New York Knicks", HomeScore: Points(88), Progress: "Q3"}})

	assert.Nil(t, o.MatchScore("Celtics", "Knicks", false))
	assert.Nil(t, o.MatchScore("Lakers", "Knicks", true))
	got := o.MatchScore("Celtics", "Knicks", true)
	require.NotNil(t, got)
	assert.Equal(t, MatchScore{Home: Points(88), Away: Score{}, Progress: "Q3"}, *got)
}

func TestSubscribeNotLive(t *testing.T) {
	feeds := newFakeFeeds()
	o, _ := newTestOverlay(feeds, Options{})
	ch := o.Subscribe(context.Background(), "Chelsea", "Arsenal", false)

	v, ok := <-ch
	assert.True(t, ok)
	assert.Nil(t, v)
	_, ok = <-ch
	assert.False(t, ok)
	assert.Zero(t, feeds.callCount())
}

func TestSubscribePublishesChanges(t *testing.T) {
	o, _ := newTestOverlay(newFakeFeeds(), Options{MatchPoll: 10 * time.Millisecond})
	o.Store().Apply([]Record{{EventID: "e1", HomeTeam: "Chelsea", AwayTeam: "Arsenal", HomeScore: Points(0), AwayScore: Points(0), Progress: "12'"}})

	ctx, cancel := context.WithCancel(context.Background())
	ch := o.Subscribe(ctx, "Chelsea FC", "Arsenal", true)

	first := receive(t, ch)
	require.NotNil(t, first)
	assert.Equal(t, "12'", first.Progress)

	o.Store().Apply([]Record{{EventID: "e1", HomeTeam: "Chelsea", AwayTeam: "Arsenal", HomeScore: Points(1), AwayScore: Points(0), Progress: "54'"}})
	second := receive(t, ch)
	require.NotNil(t, second)
	assert.Equal(t, Points(1), second.Home)
	assert.Equal(t, "54'", second.Progress)

	o.Clear()
	assert.Nil(t, receive(t, ch))

	cancel()
	for range ch {
	}
}

func receive(t *testing.T, ch <-chan *MatchScore) *MatchScore {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("no update")
		return nil
	}
}

func TestDecodeFeed(t *testing.T) {
	t.Run("thesportsdb", func(t *testing.T) {
		recs, err := decodeFeed(Soccer, []byte(`{"livescore":[
			{"idEvent":"2052711","strHomeTeam":"Celtic","strAwayTeam":"Rangers","intHomeScore":"2","intAwayScore":null,"strProgress":"","strStatus":"2H"},
			"garbage",
			{"strHomeTeam":"Only Home"}
		]}`))
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, Record{
			Category:  Soccer,
			EventID:   "2052711",
			HomeTeam:  "Celtic",
			AwayTeam:  "Rangers",
			HomeScore: Points(2),
			AwayScore: Score{},
			Progress:  "2H",
		}, recs[0])
	})

	t.Run("numeric id and odd scores", func(t *testing.T) {
		recs, err := decodeFeed(Cricket, []byte(`{"data":[{"id":991,"home":"India","away":"Australia","homeScore":"245/6","awayScore":-1}]}`))
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "991", recs[0].EventID)
		assert.False(t, recs[0].HomeScore.Known)
		assert.False(t, recs[0].AwayScore.Known)
	})

	t.Run("nothing live", func(t *testing.T) {
		recs, err := decodeFeed(Soccer, []byte(`{"livescore":null}`))
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	t.Run("no event array", func(t *testing.T) {
		_, err := decodeFeed(Soccer, []byte(`{"error":"invalid key"}`))
		assert.Error(t, err)
		_, err = decodeFeed(Soccer, []byte(`"hello"`))
		assert.Error(t, err)
	})
}

func TestScoreJSON(t *testing.T) {
	b, err := json.Marshal(MatchScore{Home: Points(3), Away: Score{}, Progress: "FT"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"home":3,"away":"-","progress":"FT"}`, string(b))

	var s Score
	require.NoError(t, json.Unmarshal([]byte(`"4"`), &s))
	assert.Equal(t, Points(4), s)
	require.NoError(t, json.Unmarshal([]byte(`"-"`), &s))
	assert.False(t, s.Known)
	require.NoError(t, json.Unmarshal([]byte(`null`), &s))
	assert.False(t, s.Known)
}

func TestFeedURLs(t *testing.T) {
	urls := FeedURLs("https://api.example.test/livescore/", map[string]string{"cricket": "https://cricket.example.test/live"})
	assert.Equal(t, "https://api.example.test/livescore/icehockey", urls(Hockey))
	assert.Equal(t, "https://cricket.example.test/live", urls(Cricket))

	c, err := ParseCategory(" NFL ")
	require.NoError(t, err)
	assert.Equal(t, NFL, c)
	_, err = ParseCategory("curling")
	assert.Error(t, err)
}
