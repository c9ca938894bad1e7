package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/faucetdb/frontdesk/internal/service"
)

// --------------------------------------------------------------------------
// Parameter extraction helpers
// --------------------------------------------------------------------------

// requireString extracts a required string argument from the tool request.
func requireString(request mcp.CallToolRequest, key string) (string, error) {
	val, err := request.RequireString(key)
	if err != nil || val == "" {
		return "", fmt.Errorf("missing required parameter %q", key)
	}
	return val, nil
}

// optionalString extracts an optional string argument from the tool request.
func optionalString(request mcp.CallToolRequest, key string) string {
	return request.GetString(key, "")
}

// requireID extracts a positive visitor ID.
func requireID(request mcp.CallToolRequest, key string) (int64, error) {
	val, err := request.RequireInt(key)
	if err != nil {
		return 0, fmt.Errorf("missing required parameter %q", key)
	}
	if val <= 0 {
		return 0, fmt.Errorf("parameter %q must be a positive integer", key)
	}
	return int64(val), nil
}

// optionalDate parses an optional RFC3339 timestamp or YYYY-MM-DD date.
func optionalDate(request mcp.CallToolRequest, key string) (time.Time, error) {
	raw := optionalString(request, key)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(time.DateOnly, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parameter %q must be RFC3339 or YYYY-MM-DD", key)
	}
	return t, nil
}

// --------------------------------------------------------------------------
// Response builders
// --------------------------------------------------------------------------

// successJSON marshals data to JSON and returns it as a tool result.
func successJSON(data interface{}) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

// toolError returns a tool-level error result. Errors returned this way are
// visible to the LLM so it can self-correct; they do NOT terminate the MCP
// session.
func toolError(format string, args ...interface{}) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(fmt.Sprintf(format, args...)), nil
}

// serviceError reports a service failure. Internal causes stay in the log.
func (s *MCPServer) serviceError(action string, err error) (*mcp.CallToolResult, error) {
	if errors.Is(err, service.ErrInternal) {
		s.logger.Error("mcp tool failed", "action", action, "error", err)
		return toolError("Failed to %s: internal error", action)
	}
	return toolError("Failed to %s: %v", action, err)
}
