package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/agentation/agentation-server/pkg/apperrors"
	"github.com/agentation/agentation-server/pkg/models"
	"github.com/agentation/agentation-server/pkg/services"
)

// SessionToolDeps contains dependencies for session tools.
type SessionToolDeps struct {
	SessionService    services.SessionService
	AnnotationService services.AnnotationService
	Logger            *zap.Logger
}

// RegisterSessionTools registers session-browsing MCP tools.
func RegisterSessionTools(s *server.MCPServer, deps *SessionToolDeps) {
	registerListSessionsTool(s, deps)
	registerGetSessionTool(s, deps)
	registerGetPendingTool(s, deps)
	registerGetAllPendingTool(s, deps)
}

func registerListSessionsTool(s *server.MCPServer, deps *SessionToolDeps) {
	tool := mcp.NewTool(
		"list_sessions",
		mcp.WithDescription(
			"List feedback sessions, newest first. "+
				"Filter by status (active/approved/closed) and cap the result count with limit. "+
				"Each session groups the annotations made on one page or app screen.",
		),
		mcp.WithString(
			"status",
			mcp.Description("Optional - Filter by status: 'active', 'approved', or 'closed'"),
		),
		mcp.WithNumber(
			"limit",
			mcp.Description("Optional - Maximum number of sessions to return"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var status *models.SessionStatus
		if raw := getOptionalString(req, "status"); raw != "" {
			st := models.SessionStatus(raw)
			if !models.IsValidSessionStatus(st) {
				return NewErrorResult("invalid_status",
					fmt.Sprintf("unknown status %q (must be one of: active, approved, closed)", raw)), nil
			}
			status = &st
		}

		limit := 0
		if raw, ok := getOptionalFloat(req, "limit"); ok {
			limit = int(raw)
		}

		sessions, err := deps.SessionService.List(ctx, status, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to list sessions: %w", err)
		}
		if sessions == nil {
			sessions = []models.Session{}
		}
		return jsonResult(sessions)
	})
}

func registerGetSessionTool(s *server.MCPServer, deps *SessionToolDeps) {
	tool := mcp.NewTool(
		"get_session",
		mcp.WithDescription(
			"Get a feedback session with all of its annotations. "+
				"Returns the session metadata plus every annotation anchored to that page.",
		),
		mcp.WithString(
			"session_id",
			mcp.Required(),
			mcp.Description("The session id"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, ok := getRequiredString(req, "session_id")
		if !ok {
			return NewErrorResult("missing_parameter", "session_id is required"), nil
		}

		session, err := deps.SessionService.Get(ctx, id)
		if errors.Is(err, apperrors.ErrNotFound) {
			return NewErrorResult("session_not_found", fmt.Sprintf("no session with id %q", id)), nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get session: %w", err)
		}
		return jsonResult(session)
	})
}

func registerGetPendingTool(s *server.MCPServer, deps *SessionToolDeps) {
	tool := mcp.NewTool(
		"get_pending",
		mcp.WithDescription(
			"Get the annotations in one session that still await agent attention "+
				"(status pending or not yet set).",
		),
		mcp.WithString(
			"session_id",
			mcp.Required(),
			mcp.Description("The session id"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, ok := getRequiredString(req, "session_id")
		if !ok {
			return NewErrorResult("missing_parameter", "session_id is required"), nil
		}

		if _, err := deps.SessionService.Get(ctx, id); errors.Is(err, apperrors.ErrNotFound) {
			return NewErrorResult("session_not_found", fmt.Sprintf("no session with id %q", id)), nil
		} else if err != nil {
			return nil, fmt.Errorf("failed to get session: %w", err)
		}

		annotations, err := deps.AnnotationService.ListPending(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to list pending annotations: %w", err)
		}
		if annotations == nil {
			annotations = []models.Annotation{}
		}
		return jsonResult(annotations)
	})
}

func registerGetAllPendingTool(s *server.MCPServer, deps *SessionToolDeps) {
	tool := mcp.NewTool(
		"get_all_pending",
		mcp.WithDescription("Get pending annotations across all sessions."),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		annotations, err := deps.AnnotationService.ListAllPending(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list pending annotations: %w", err)
		}
		if annotations == nil {
			annotations = []models.Annotation{}
		}
		return jsonResult(annotations)
	})
}

// jsonResult marshals v into a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
