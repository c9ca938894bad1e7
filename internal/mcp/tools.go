package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/faucetdb/frontdesk/internal/model"
)

// registerTools registers all front-desk MCP tools on the given server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {

	// ----- Read tools -----

	srv.AddTool(
		mcp.NewTool("frontdesk_dashboard",
			mcp.WithDescription(
				"Visitor counts for the company: total, checked in, checked out, "+
					"checked in today (UTC), pre-registered and notified.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleDashboard,
	)

	srv.AddTool(
		mcp.NewTool("frontdesk_list_visitors",
			mcp.WithDescription(
				"List the company's visitors ordered by id. All filters are optional. "+
					"Dates filter on the registration time and accept RFC3339 or YYYY-MM-DD; "+
					"'from' is inclusive, 'to' exclusive.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("status",
				mcp.Description("Derived visitor status"),
				mcp.Enum(model.StatusRegistered, model.StatusPreRegistered, model.StatusCheckedIn, model.StatusCheckedOut),
			),
			mcp.WithString("department",
				mcp.Description("Exact department name"),
			),
			mcp.WithString("from",
				mcp.Description("Earliest registration time (inclusive)"),
			),
			mcp.WithString("to",
				mcp.Description("Latest registration time (exclusive)"),
			),
		),
		s.handleListVisitors,
	)

	srv.AddTool(
		mcp.NewTool("frontdesk_get_visitor",
			mcp.WithDescription("Get a single visitor record by id, including its derived status."),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithNumber("id",
				mcp.Required(),
				mcp.Description("Visitor ID"),
			),
		),
		s.handleGetVisitor,
	)

	// ----- Mutation tools -----

	srv.AddTool(
		mcp.NewTool("frontdesk_pre_register",
			mcp.WithDescription(
				"Pre-register an expected visitor. Name, email and phone are required. "+
					"The visitor is sent a registration link by email and a text message.",
			),
			mcp.WithToolAnnotation(mutatingAnnotation()),
			mcp.WithString("name", mcp.Required(), mcp.Description("Visitor's full name")),
			mcp.WithString("email", mcp.Required(), mcp.Description("Visitor's email address")),
			mcp.WithString("phone", mcp.Required(), mcp.Description("Visitor's phone number")),
			mcp.WithString("visit_purpose", mcp.Description("e.g. Meeting, Interview, Repair & Maintenance")),
			mcp.WithString("person_to_meet", mcp.Description("Host the visitor is meeting")),
			mcp.WithString("department", mcp.Description("Host department")),
			mcp.WithString("company_name", mcp.Description("Visitor's own company")),
			mcp.WithString("visitor_location", mcp.Description("Where the visitor is coming from")),
		),
		s.handlePreRegister,
	)

	srv.AddTool(
		mcp.NewTool("frontdesk_check_out",
			mcp.WithDescription(
				"Check a visitor out. Fails if the visitor never checked in or already left.",
			),
			mcp.WithToolAnnotation(mutatingAnnotation()),
			mcp.WithNumber("id",
				mcp.Required(),
				mcp.Description("Visitor ID"),
			),
		),
		s.handleCheckOut,
	)
}

// visitorView adds the derived status to a visitor for tool output.
type visitorView struct {
	*model.Visitor
	Status string `json:"status"`
}

func viewOf(v *model.Visitor) visitorView {
	return visitorView{Visitor: v, Status: v.Status()}
}

func (s *MCPServer) handleDashboard(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	counts, err := s.visitors.DashboardCounts(ctx, s.companyID, s.visitors.Now())
	if err != nil {
		return s.serviceError("load dashboard", err)
	}
	return successJSON(counts)
}

func (s *MCPServer) handleListVisitors(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	from, err := optionalDate(request, "from")
	if err != nil {
		return toolError("%v", err)
	}
	to, err := optionalDate(request, "to")
	if err != nil {
		return toolError("%v", err)
	}

	visitors, err := s.visitors.Report(ctx, s.companyID, model.ReportQuery{
		From:       from,
		To:         to,
		Status:     optionalString(request, "status"),
		Department: optionalString(request, "department"),
	})
	if err != nil {
		return s.serviceError("list visitors", err)
	}

	items := make([]visitorView, len(visitors))
	for i := range visitors {
		items[i] = viewOf(&visitors[i])
	}
	return successJSON(map[string]interface{}{
		"visitors": items,
		"count":    len(items),
	})
}

func (s *MCPServer) handleGetVisitor(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	id, err := requireID(request, "id")
	if err != nil {
		return toolError("%v", err)
	}
	v, err := s.visitors.Get(ctx, s.companyID, id)
	if err != nil {
		return s.serviceError("get visitor", err)
	}
	return successJSON(viewOf(v))
}

func (s *MCPServer) handlePreRegister(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	name, err := requireString(request, "name")
	if err != nil {
		return toolError("%v", err)
	}

	in := model.VisitorInput{
		Name:            name,
		Email:           optionalString(request, "email"),
		Phone:           optionalString(request, "phone"),
		VisitPurpose:    optionalString(request, "visit_purpose"),
		PersonToMeet:    optionalString(request, "person_to_meet"),
		Department:      optionalString(request, "department"),
		CompanyName:     optionalString(request, "company_name"),
		VisitorLocation: optionalString(request, "visitor_location"),
	}
	v, err := s.visitors.PreRegister(ctx, s.companyID, in)
	if err != nil {
		return s.serviceError("pre-register visitor", err)
	}
	return successJSON(viewOf(v))
}

func (s *MCPServer) handleCheckOut(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	id, err := requireID(request, "id")
	if err != nil {
		return toolError("%v", err)
	}
	v, err := s.visitors.CheckOut(ctx, s.companyID, id)
	if err != nil {
		return s.serviceError("check out visitor", err)
	}
	return successJSON(viewOf(v))
}
