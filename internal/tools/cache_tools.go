package tools

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/leonardcser/livescore-mcp/internal/cache"
)

// Cache is the part of *cache.Tiered the cache tools use.
type Cache interface {
	Fetch(ctx context.Context, url string, opts ...cache.FetchOption) (json.RawMessage, error)
	Peek(url string) (json.RawMessage, bool)
	InvalidateAll()
}

// CachedFetchHandler returns the MCP tool handler for the "cached-fetch" tool.
func CachedFetchHandler(c Cache) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if ctx.Err() != nil {
			return mcp.NewToolResultError(ctx.Err().Error()), nil
		}
		url, err := req.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		payload, err := c.Fetch(ctx, url, cache.WithDurable(req.GetBool("use_durable", true)))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(payload)), nil
	}
}

// CachePeekHandler returns the MCP tool handler for the "cache-peek" tool.
func CachePeekHandler(c Cache) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := req.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		payload, ok := c.Peek(url)
		if !ok {
			return mcp.NewToolResultText("Not cached."), nil
		}
		return mcp.NewToolResultText(string(payload)), nil
	}
}

// CacheInvalidateHandler returns the MCP tool handler for the
// "cache-invalidate" tool.
func CacheInvalidateHandler(c Cache) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		c.InvalidateAll()
		return mcp.NewToolResultText("All cache tiers cleared."), nil
	}
}
