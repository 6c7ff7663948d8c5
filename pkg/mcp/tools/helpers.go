// Package tools provides MCP tool implementations for the agentation server.
package tools

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/agentation/agentation-server/pkg/jsonutil"
)

// Argument extraction is deliberately lenient about value types: agent
// clients regularly send numbers as strings and strings as numbers.

// getOptionalString extracts an optional string argument from the request.
func getOptionalString(req mcp.CallToolRequest, key string) string {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return ""
	}
	return jsonutil.FlexibleString(args[key])
}

// getOptionalFloat extracts an optional numeric argument from the request.
func getOptionalFloat(req mcp.CallToolRequest, key string) (float64, bool) {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return 0, false
	}
	return jsonutil.FlexibleFloat(args[key])
}

// getRequiredString extracts a required string argument from the request.
func getRequiredString(req mcp.CallToolRequest, key string) (string, bool) {
	val := getOptionalString(req, key)
	return val, val != ""
}
