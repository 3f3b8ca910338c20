package tools

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonardcser/livescore-mcp/internal/cache"
	"github.com/leonardcser/livescore-mcp/internal/livescore"
)

type feedTransport struct {
	mu     sync.Mutex
	bodies map[string]string
}

func (f *feedTransport) Get(_ context.Context, url string, _ http.Header) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bodies[url]
	if !ok {
		return nil, errors.New("connection refused")
	}
	return []byte(b), nil
}

func feedURL(c livescore.Category) string { return "https://feeds.example.test/" + string(c) }

func newStack(t *testing.T) (*cache.Tiered, *livescore.Overlay) {
	t.Helper()
	tr := &feedTransport{bodies: map[string]string{
		"https://api.example.test/standings": `{"table":[1,2,3]}`,
	}}
	for _, c := range livescore.Categories {
		tr.bodies[feedURL(c)] = `[]`
	}
	tr.bodies[feedURL(livescore.Soccer)] = `[{"eventId":"e1","homeTeam":"Chelsea FC","awayTeam":"Arsenal","homeScore":1,"awayScore":0,"progress":"54'"}]`
	tr.bodies[feedURL(livescore.Cricket)] = `<html>down</html>`

	tc, err := cache.New(tr, nil, cache.TieredOptions{})
	require.NoError(t, err)
	o := livescore.New(tc, nil, livescore.Options{FeedURL: feedURL, Cooldown: time.Hour})
	return tc, o
}

func call(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text, res.IsError
}

func TestCacheTools(t *testing.T) {
	tc, _ := newStack(t)

	text, isErr := call(t, CachePeekHandler(tc), map[string]any{"url": "https://api.example.test/standings"})
	assert.False(t, isErr)
	assert.Equal(t, "Not cached.", text)

	text, isErr = call(t, CachedFetchHandler(tc), map[string]any{"url": "https://api.example.test/standings"})
	assert.False(t, isErr)
	assert.JSONEq(t, `{"table":[1,2,3]}`, text)

	text, _ = call(t, CachePeekHandler(tc), map[string]any{"url": "https://api.example.test/standings"})
	assert.JSONEq(t, `{"table":[1,2,3]}`, text)

	_, isErr = call(t, CachedFetchHandler(tc), map[string]any{"url": "https://api.example.test/missing"})
	assert.True(t, isErr)
	_, isErr = call(t, CachedFetchHandler(tc), map[string]any{})
	assert.True(t, isErr)

	call(t, CacheInvalidateHandler(tc), nil)
	text, _ = call(t, CachePeekHandler(tc), map[string]any{"url": "https://api.example.test/standings"})
	assert.Equal(t, "Not cached.", text)
}

func TestScoreTools(t *testing.T) {
	_, o := newStack(t)

	text, isErr := call(t, RefreshHandler(o), nil)
	assert.False(t, isErr)
	assert.Contains(t, text, "- soccer: 1 live")
	assert.Contains(t, text, "- cricket: unavailable")

	text, _ = call(t, RefreshHandler(o), nil)
	assert.Contains(t, text, "Skipped")

	text, isErr = call(t, ByEventHandler(o), map[string]any{"event_id": "e1"})
	assert.False(t, isErr)
	assert.JSONEq(t, `{"category":"soccer","eventId":"e1","homeTeam":"Chelsea FC","awayTeam":"Arsenal","homeScore":1,"awayScore":0,"progress":"54'"}`, text)

	text, _ = call(t, ByTeamsHandler(o), map[string]any{"home": "Chelsea", "away": "Arsenal"})
	assert.Contains(t, text, `"eventId":"e1"`)

	text, _ = call(t, ByTeamsHandler(o), map[string]any{"home": "Arsenal", "away": "Chelsea"})
	assert.Equal(t, "No live score.", text)

	_, isErr = call(t, ByTeamsHandler(o), map[string]any{"home": "Chelsea"})
	assert.True(t, isErr)

	text, _ = call(t, MatchScoreHandler(o), map[string]any{"home": "Chelsea", "away": "Arsenal"})
	assert.JSONEq(t, `{"home":1,"away":0,"progress":"54'"}`, text)

	text, _ = call(t, MatchScoreHandler(o), map[string]any{"home": "Chelsea", "away": "Arsenal", "is_live": false})
	assert.Equal(t, "null", text)
}
