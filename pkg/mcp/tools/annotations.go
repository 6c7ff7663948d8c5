package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/agentation/agentation-server/pkg/apperrors"
	"github.com/agentation/agentation-server/pkg/models"
	"github.com/agentation/agentation-server/pkg/services"
)

// AnnotationToolDeps contains dependencies for annotation workflow tools.
type AnnotationToolDeps struct {
	AnnotationService services.AnnotationService
	Broker            *services.ActionBroker
	DefaultWait       time.Duration
	Logger            *zap.Logger
}

// RegisterAnnotationTools registers the annotation workflow MCP tools.
func RegisterAnnotationTools(s *server.MCPServer, deps *AnnotationToolDeps) {
	registerAcknowledgeTool(s, deps)
	registerResolveTool(s, deps)
	registerDismissTool(s, deps)
	registerReplyTool(s, deps)
	registerWaitForActionTool(s, deps)
}

func registerAcknowledgeTool(s *server.MCPServer, deps *AnnotationToolDeps) {
	tool := mcp.NewTool(
		"acknowledge",
		mcp.WithDescription("Mark an annotation as seen. Use before starting work on it."),
		mcp.WithString(
			"annotation_id",
			mcp.Required(),
			mcp.Description("The annotation id"),
		),
		mcp.WithIdempotentHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, ok := getRequiredString(req, "annotation_id")
		if !ok {
			return NewErrorResult("missing_parameter", "annotation_id is required"), nil
		}

		annotation, err := deps.AnnotationService.Acknowledge(ctx, id)
		if errors.Is(err, apperrors.ErrNotFound) {
			return annotationNotFound(id), nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to acknowledge annotation: %w", err)
		}
		return jsonResult(annotation)
	})
}

func registerResolveTool(s *server.MCPServer, deps *AnnotationToolDeps) {
	tool := mcp.NewTool(
		"resolve",
		mcp.WithDescription(
			"Mark an annotation resolved, optionally recording what was done "+
				"as an agent thread message.",
		),
		mcp.WithString(
			"annotation_id",
			mcp.Required(),
			mcp.Description("The annotation id"),
		),
		mcp.WithString(
			"message",
			mcp.Description("Optional - What was changed to resolve the feedback"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, ok := getRequiredString(req, "annotation_id")
		if !ok {
			return NewErrorResult("missing_parameter", "annotation_id is required"), nil
		}

		annotation, err := deps.AnnotationService.Resolve(ctx, id, getOptionalString(req, "message"), "agent")
		if errors.Is(err, apperrors.ErrNotFound) {
			return annotationNotFound(id), nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve annotation: %w", err)
		}
		return jsonResult(annotation)
	})
}

func registerDismissTool(s *server.MCPServer, deps *AnnotationToolDeps) {
	tool := mcp.NewTool(
		"dismiss",
		mcp.WithDescription("Dismiss an annotation that will not be acted on, with a reason."),
		mcp.WithString(
			"annotation_id",
			mcp.Required(),
			mcp.Description("The annotation id"),
		),
		mcp.WithString(
			"reason",
			mcp.Required(),
			mcp.Description("Why the feedback is being dismissed"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, ok := getRequiredString(req, "annotation_id")
		if !ok {
			return NewErrorResult("missing_parameter", "annotation_id is required"), nil
		}
		reason, ok := getRequiredString(req, "reason")
		if !ok {
			return NewErrorResult("missing_parameter", "reason is required"), nil
		}

		annotation, err := deps.AnnotationService.Dismiss(ctx, id, reason)
		if errors.Is(err, apperrors.ErrNotFound) {
			return annotationNotFound(id), nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to dismiss annotation: %w", err)
		}
		return jsonResult(annotation)
	})
}

func registerReplyTool(s *server.MCPServer, deps *AnnotationToolDeps) {
	tool := mcp.NewTool(
		"reply",
		mcp.WithDescription("Append an agent message to an annotation's thread without changing status."),
		mcp.WithString(
			"annotation_id",
			mcp.Required(),
			mcp.Description("The annotation id"),
		),
		mcp.WithString(
			"message",
			mcp.Required(),
			mcp.Description("The reply text"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, ok := getRequiredString(req, "annotation_id")
		if !ok {
			return NewErrorResult("missing_parameter", "annotation_id is required"), nil
		}
		message, ok := getRequiredString(req, "message")
		if !ok {
			return NewErrorResult("missing_parameter", "message is required"), nil
		}

		annotation, err := deps.AnnotationService.Reply(ctx, id, models.RoleAgent, message)
		if errors.Is(err, apperrors.ErrNotFound) {
			return annotationNotFound(id), nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to reply to annotation: %w", err)
		}
		return jsonResult(annotation)
	})
}

func registerWaitForActionTool(s *server.MCPServer, deps *AnnotationToolDeps) {
	tool := mcp.NewTool(
		"wait_for_action",
		mcp.WithDescription(
			"Block until a send-to-agent action is emitted for the session or the timeout "+
				"elapses. On expiry the result carries {\"timeout\": true} instead of an action.",
		),
		mcp.WithString(
			"session_id",
			mcp.Required(),
			mcp.Description("The session id to wait on"),
		),
		mcp.WithNumber(
			"timeoutMs",
			mcp.Description("Optional - Wait timeout in milliseconds (default 60000)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, ok := getRequiredString(req, "session_id")
		if !ok {
			return NewErrorResult("missing_parameter", "session_id is required"), nil
		}

		timeout := deps.DefaultWait
		if raw, ok := getOptionalFloat(req, "timeoutMs"); ok && raw > 0 {
			timeout = time.Duration(raw) * time.Millisecond
		}

		result, err := deps.Broker.WaitForAction(ctx, id, timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to wait for action: %w", err)
		}
		return jsonResult(result)
	})
}

func annotationNotFound(id string) *mcp.CallToolResult {
	return NewErrorResult("annotation_not_found", fmt.Sprintf("no annotation with id %q", id))
}
