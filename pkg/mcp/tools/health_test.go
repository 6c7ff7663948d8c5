package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentation/agentation-server/pkg/database"
)

func callHealthTool(t *testing.T, deps *HealthToolDeps) string {
	t.Helper()
	mcpServer := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	RegisterHealthTool(mcpServer, deps)

	raw := mcpServer.HandleMessage(context.Background(),
		[]byte(`{"jsonrpc":"2.0","method":"tools/call","id":1,"params":{"name":"health","arguments":{}}}`))
	rawJSON, err := json.Marshal(raw)
	require.NoError(t, err)

	var response struct {
		Result struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rawJSON, &response))
	require.Len(t, response.Result.Content, 1)
	return response.Result.Content[0].Text
}

func TestHealthTool_ReportsDatabaseReachable(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	text := callHealthTool(t, &HealthToolDeps{Version: "1.2.3", DB: db})

	assert.JSONEq(t, `{"status":"ok","version":"1.2.3","database":"ok"}`, text)
}

func TestHealthTool_DegradedWhenDatabaseUnreachable(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	text := callHealthTool(t, &HealthToolDeps{Version: "1.2.3", DB: db})

	var result struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &result))
	assert.Equal(t, "degraded", result.Status)
	assert.Equal(t, "unreachable", result.Database)
}

func TestHealthTool_WithoutDatabase(t *testing.T) {
	text := callHealthTool(t, &HealthToolDeps{Version: "1.2.3"})

	assert.JSONEq(t, `{"status":"ok","version":"1.2.3"}`, text)
}
