package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/leonardcser/livescore-mcp/internal/livescore"
)

// Scores is the part of *livescore.Overlay the score tools use.
type Scores interface {
	Refresh(ctx context.Context) (livescore.RefreshResult, error)
	ByEventID(id string) (livescore.Record, bool)
	ByTeams(home, away string) (livescore.Record, bool)
	MatchScore(home, away string, isLive bool) *livescore.MatchScore
}

// RefreshHandler returns the MCP tool handler for the "live-scores-refresh"
// tool.
func RefreshHandler(s Scores) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := s.Refresh(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(formatRefresh(res)), nil
	}
}

// formatRefresh renders one line per category.
func formatRefresh(res livescore.RefreshResult) string {
	if res.Skipped {
		return fmt.Sprintf("Skipped: last refresh started at %s.", res.StartedAt.Format("15:04:05"))
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Refreshed at %s: %d keys written, %d pruned.\n", res.StartedAt.Format("15:04:05"), res.Written, res.Pruned)
	for _, c := range res.Categories {
		if c.Err != nil {
			fmt.Fprintf(&sb, "- %s: unavailable (%v)\n", c.Category, c.Err)
			continue
		}
		fmt.Fprintf(&sb, "- %s: %d live\n", c.Category, c.Records)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// ByEventHandler returns the MCP tool handler for the "live-score-by-event"
// tool.
func ByEventHandler(s Scores) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("event_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		rec, ok := s.ByEventID(id)
		if !ok {
			return mcp.NewToolResultText("No live score."), nil
		}
		return jsonResult(rec)
	}
}

// ByTeamsHandler returns the MCP tool handler for the "live-score-by-teams"
// tool.
func ByTeamsHandler(s Scores) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		home, away, err := teams(req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		rec, ok := s.ByTeams(home, away)
		if !ok {
			return mcp.NewToolResultText("No live score."), nil
		}
		return jsonResult(rec)
	}
}

// MatchScoreHandler returns the MCP tool handler for the "match-score" tool.
func MatchScoreHandler(s Scores) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		home, away, err := teams(req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(s.MatchScore(home, away, req.GetBool("is_live", true)))
	}
}

func teams(req mcp.CallToolRequest) (string, string, error) {
	home, err := req.RequireString("home")
	if err != nil {
		return "", "", err
	}
	away, err := req.RequireString("away")
	if err != nil {
		return "", "", err
	}
	return home, away, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}
