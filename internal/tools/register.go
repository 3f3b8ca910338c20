package tools

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/leonardcser/livescore-mcp/internal/logger"
)

// Register adds every tool to s.
func Register(s *server.MCPServer, c Cache, scores Scores) {
	toolFetch := mcp.NewTool("cached-fetch",
		mcp.WithDescription(multiline(
			"Fetches JSON from a URL through the tiered cache",
			"\nFunctionality:",
			"- Serves from memory while fresh (60s), then from the durable tier (5m)",
			"- Otherwise fetches the URL, bounded by an 8s timeout",
			"- When the fetch fails, falls back to a cached copy of any age",
			"\nUsage notes:",
			"- The URL must be a fully-formed http(s) URL returning JSON",
			"- Fails only when the fetch fails and nothing was ever cached for the URL",
		)),
		mcp.WithString("url", mcp.Required(), mcp.Description("The URL to fetch")),
		mcp.WithBoolean("use_durable", mcp.DefaultBool(true), mcp.Description("Read and write the durable tier")),
	)
	s.AddTool(toolFetch, CachedFetchHandler(c))
	logger.Infof("Registered cached-fetch tool")

	toolPeek := mcp.NewTool("cache-peek",
		mcp.WithDescription("Returns whatever is cached for a URL, of any age, without touching the network"),
		mcp.WithString("url", mcp.Required(), mcp.Description("The URL to look up")),
	)
	s.AddTool(toolPeek, CachePeekHandler(c))

	toolInvalidate := mcp.NewTool("cache-invalidate",
		mcp.WithDescription("Clears the memory and durable cache tiers"),
	)
	s.AddTool(toolInvalidate, CacheInvalidateHandler(c))
	logger.Infof("Registered cache-peek and cache-invalidate tools")

	toolRefresh := mcp.NewTool("live-scores-refresh",
		mcp.WithDescription(multiline(
			"Polls every sport feed and updates the live score store",
			"\nUsage notes:",
			"- Calls within 30s of the previous refresh are skipped",
			"- A failing sport is reported but never blocks the others",
		)),
	)
	s.AddTool(toolRefresh, RefreshHandler(scores))

	toolByEvent := mcp.NewTool("live-score-by-event",
		mcp.WithDescription("Returns the live score stored under a provider event id"),
		mcp.WithString("event_id", mcp.Required(), mcp.Description("Provider event id")),
	)
	s.AddTool(toolByEvent, ByEventHandler(scores))

	toolByTeams := mcp.NewTool("live-score-by-teams",
		mcp.WithDescription(multiline(
			"Finds the live score of a fixture by team names",
			"\nUsage notes:",
			"- Names are matched loosely (\"Man United\" finds \"Manchester United\")",
			"- Home and away are not interchangeable",
			"- The first loose match wins; there is no ranking",
		)),
		mcp.WithString("home", mcp.Required(), mcp.Description("Home team")),
		mcp.WithString("away", mcp.Required(), mcp.Description("Away team")),
	)
	s.AddTool(toolByTeams, ByTeamsHandler(scores))

	toolMatch := mcp.NewTool("match-score",
		mcp.WithDescription("Returns {home, away, progress} for a fixture, or null when it is not live or not found"),
		mcp.WithString("home", mcp.Required(), mcp.Description("Home team")),
		mcp.WithString("away", mcp.Required(), mcp.Description("Away team")),
		mcp.WithBoolean("is_live", mcp.DefaultBool(true), mcp.Description("Whether the fixture is live; false always yields null")),
	)
	s.AddTool(toolMatch, MatchScoreHandler(scores))
	logger.Infof("Registered live score tools")
}

// multiline joins lines with newlines for tool descriptions.
func multiline(lines ...string) string { return strings.Join(lines, "\n") }
