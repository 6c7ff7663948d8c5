package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// DBPinger reports whether the annotation store is reachable. *database.DB
// satisfies it via database/sql.
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// HealthToolDeps contains dependencies for the health tool.
type HealthToolDeps struct {
	Version string
	DB      DBPinger
}

type healthResult struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database,omitempty"`
}

// RegisterHealthTool adds a health check tool covering the server process and
// its SQLite store. Agents call it to confirm the companion server is the one
// their overlay is syncing to before acting on annotations.
func RegisterHealthTool(s *server.MCPServer, deps *HealthToolDeps) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns annotation server health, version and database reachability"),
		mcp.WithIdempotentHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := healthResult{Status: "ok", Version: deps.Version}
		if deps.DB != nil {
			result.Database = "ok"
			if err := deps.DB.PingContext(ctx); err != nil {
				result.Status = "degraded"
				result.Database = "unreachable"
			}
		}

		data, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal health result: %w", err)
		}
		return mcp.NewToolResultText(string(data)), nil
	})
}
