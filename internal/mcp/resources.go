package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	dashboardURI       = "frontdesk://dashboard"
	visitorURIPrefix   = "frontdesk://visitors/"
	visitorURITemplate = visitorURIPrefix + "{id}"
)

// registerResources adds MCP resource definitions to the server. Resources
// provide read-only data that LLM clients can load into their context.
func (s *MCPServer) registerResources(srv *server.MCPServer) {
	srv.AddResource(
		mcp.NewResource(
			dashboardURI,
			"Visitor Dashboard",
			mcp.WithResourceDescription("Current visitor counts for the company."),
			mcp.WithMIMEType("application/json"),
		),
		s.handleDashboardResource,
	)

	srv.AddResourceTemplate(
		mcp.NewResourceTemplate(
			visitorURITemplate,
			"Visitor Record",
			mcp.WithTemplateDescription("A single visitor record with its derived status."),
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleVisitorResource,
	)
}

func (s *MCPServer) handleDashboardResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	counts, err := s.visitors.DashboardCounts(ctx, s.companyID, s.visitors.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to load dashboard: %w", err)
	}
	return jsonResource(dashboardURI, counts)
}

func (s *MCPServer) handleVisitorResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	uri := request.Params.URI
	raw := strings.TrimPrefix(uri, visitorURIPrefix)
	id, err := strconv.ParseInt(raw, 10, 64)
	if raw == uri || err != nil || id <= 0 {
		return nil, fmt.Errorf("invalid visitor URI %q: expected %s", uri, visitorURITemplate)
	}

	v, err := s.visitors.Get(ctx, s.companyID, id)
	if err != nil {
		return nil, fmt.Errorf("visitor %d: %w", id, err)
	}
	return jsonResource(uri, viewOf(v))
}

func jsonResource(uri string, v interface{}) ([]mcp.ResourceContents, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}
