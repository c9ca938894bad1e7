package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/faucetdb/frontdesk/internal/face"
	"github.com/faucetdb/frontdesk/internal/model"
	"github.com/faucetdb/frontdesk/internal/notify"
	"github.com/faucetdb/frontdesk/internal/service"
	"github.com/faucetdb/frontdesk/internal/store"
)

var toolsNow = time.Date(2024, 3, 14, 10, 30, 0, 0, time.UTC)

type toolsEnv struct {
	visitors *service.VisitorService
	mcp      *MCPServer
}

// newToolsEnv serves company 1 over an in-memory store.
func newToolsEnv(t *testing.T) *toolsEnv {
	t.Helper()

	st, err := store.NewSQLite("")
	if err != nil {
		t.Fatalf("store.NewSQLite: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	visitors := service.NewVisitorService(st, face.AlwaysPass{}, notify.NewLogGateway(logger), logger,
		service.VisitorConfig{StrictCheckout: true, RegistrationBaseURL: "http://desk.test"},
		service.WithVisitorClock(func() time.Time { return toolsNow }),
	)
	return &toolsEnv{
		visitors: visitors,
		mcp:      NewMCPServer(visitors, 1, "test", logger),
	}
}

// call invokes a registered tool the way the protocol layer would.
func (e *toolsEnv) call(t *testing.T, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	tool := e.mcp.Server().GetTool(name)
	if tool == nil {
		t.Fatalf("tool %q not registered", name)
	}
	req := callRequest(args)
	req.Params.Name = name
	res, err := tool.Handler(context.Background(), req)
	if err != nil {
		t.Fatalf("%s: protocol error %v", name, err)
	}
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("content items = %d, want 1", len(res.Content))
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Content[0])
	}
	return text.Text
}

func decodeResult(t *testing.T, res *mcp.CallToolResult, v interface{}) {
	t.Helper()
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), v); err != nil {
		t.Fatalf("decode result: %v", err)
	}
}

func TestRegisteredTools(t *testing.T) {
	env := newToolsEnv(t)

	want := []string{
		"frontdesk_dashboard",
		"frontdesk_list_visitors",
		"frontdesk_get_visitor",
		"frontdesk_pre_register",
		"frontdesk_check_out",
	}
	tools := env.mcp.Server().ListTools()
	if len(tools) != len(want) {
		t.Errorf("registered %d tools, want %d", len(tools), len(want))
	}
	for _, name := range want {
		tool, ok := tools[name]
		if !ok {
			t.Errorf("missing tool %q", name)
			continue
		}
		if tool.Tool.Annotations.ReadOnlyHint == nil {
			t.Errorf("%s: ReadOnlyHint not set", name)
		}
	}
}

func TestPreRegisterThenGet(t *testing.T) {
	env := newToolsEnv(t)

	res := env.call(t, "frontdesk_pre_register", map[string]interface{}{
		"name":          "Asha",
		"email":         "asha@example.com",
		"phone":         "+15550101",
		"visit_purpose": "Interview",
	})
	var created struct {
		ID            int64  `json:"id"`
		Status        string `json:"status"`
		PreRegistered bool   `json:"pre_registered"`
		CompanyID     int64  `json:"company_id"`
	}
	decodeResult(t, res, &created)
	if created.ID == 0 || created.Status != model.StatusPreRegistered || created.CompanyID != 1 {
		t.Fatalf("created = %+v", created)
	}

	res = env.call(t, "frontdesk_get_visitor", map[string]interface{}{"id": float64(created.ID)})
	var got struct {
		Name   string `json:"name"`
		Status string `json:"status"`
	}
	decodeResult(t, res, &got)
	if got.Name != "Asha" || got.Status != model.StatusPreRegistered {
		t.Errorf("got = %+v", got)
	}
}

func TestPreRegister_ValidationIsToolError(t *testing.T) {
	env := newToolsEnv(t)

	res := env.call(t, "frontdesk_pre_register", map[string]interface{}{"name": "No Contact"})
	if !res.IsError {
		t.Fatal("expected tool error for missing email and phone")
	}
	if !strings.Contains(resultText(t, res), "invalid input") {
		t.Errorf("message = %q", resultText(t, res))
	}
}

func TestCheckOut(t *testing.T) {
	env := newToolsEnv(t)
	ctx := context.Background()

	v, err := env.visitors.PreRegister(ctx, 1, model.VisitorInput{Name: "Ravi", Email: "ravi@example.com", Phone: "1"})
	if err != nil {
		t.Fatalf("PreRegister: %v", err)
	}

	// Not checked in yet.
	res := env.call(t, "frontdesk_check_out", map[string]interface{}{"id": float64(v.ID)})
	if !res.IsError || !strings.Contains(resultText(t, res), "has not checked in") {
		t.Fatalf("check-out before check-in: %+v", res)
	}

	if _, err := env.visitors.CheckIn(ctx, 1, v.ID, model.CheckInInput{}); err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	res = env.call(t, "frontdesk_check_out", map[string]interface{}{"id": float64(v.ID)})
	var out struct {
		Status string `json:"status"`
	}
	decodeResult(t, res, &out)
	if out.Status != model.StatusCheckedOut {
		t.Errorf("status = %q", out.Status)
	}
}

func TestCompanyScoping(t *testing.T) {
	env := newToolsEnv(t)

	// A visitor of company 2 is invisible to a server bound to company 1.
	other, err := env.visitors.PreRegister(context.Background(), 2, model.VisitorInput{Name: "Elsewhere", Email: "e@example.com", Phone: "1"})
	if err != nil {
		t.Fatalf("PreRegister: %v", err)
	}

	res := env.call(t, "frontdesk_get_visitor", map[string]interface{}{"id": float64(other.ID)})
	if !res.IsError || !strings.Contains(resultText(t, res), "not found") {
		t.Errorf("get other company visitor: %s", resultText(t, res))
	}

	res = env.call(t, "frontdesk_list_visitors", nil)
	var list struct {
		Count int `json:"count"`
	}
	decodeResult(t, res, &list)
	if list.Count != 0 {
		t.Errorf("count = %d, want 0", list.Count)
	}
}

func TestListVisitorsAndDashboard(t *testing.T) {
	env := newToolsEnv(t)
	ctx := context.Background()

	for _, name := range []string{"One", "Two"} {
		if _, err := env.visitors.PreRegister(ctx, 1, model.VisitorInput{Name: name, Email: "x@example.com", Phone: "1", Department: "Ops"}); err != nil {
			t.Fatalf("PreRegister: %v", err)
		}
	}
	if _, err := env.visitors.WalkIn(ctx, 1, model.VisitorInput{Name: "Walk"}, model.CheckInInput{}); err != nil {
		t.Fatalf("WalkIn: %v", err)
	}

	res := env.call(t, "frontdesk_list_visitors", map[string]interface{}{"status": model.StatusCheckedIn})
	var list struct {
		Visitors []struct {
			Name string `json:"name"`
		} `json:"visitors"`
		Count int `json:"count"`
	}
	decodeResult(t, res, &list)
	if list.Count != 1 || list.Visitors[0].Name != "Walk" {
		t.Errorf("checked-in list = %+v", list)
	}

	res = env.call(t, "frontdesk_list_visitors", map[string]interface{}{"from": "tomorrow"})
	if !res.IsError {
		t.Error("expected tool error for bad date")
	}

	res = env.call(t, "frontdesk_dashboard", nil)
	var counts model.DashboardCounts
	decodeResult(t, res, &counts)
	want := model.DashboardCounts{Total: 3, CheckedIn: 1, Today: 1, PreRegistered: 2, Notified: 2}
	if counts != want {
		t.Errorf("counts = %+v, want %+v", counts, want)
	}
}

func TestVisitorResource(t *testing.T) {
	env := newToolsEnv(t)
	v, err := env.visitors.PreRegister(context.Background(), 1, model.VisitorInput{Name: "Res", Email: "r@example.com", Phone: "1"})
	if err != nil {
		t.Fatalf("PreRegister: %v", err)
	}

	var req mcp.ReadResourceRequest
	req.Params.URI = visitorURIPrefix + strconv.FormatInt(v.ID, 10)
	contents, err := env.mcp.handleVisitorResource(context.Background(), req)
	if err != nil {
		t.Fatalf("read resource: %v", err)
	}
	text := contents[0].(mcp.TextResourceContents)
	if text.URI != req.Params.URI || !strings.Contains(text.Text, `"name": "Res"`) {
		t.Errorf("resource = %+v", text)
	}

	req.Params.URI = visitorURIPrefix + "abc"
	if _, err := env.mcp.handleVisitorResource(context.Background(), req); err == nil {
		t.Error("expected error for malformed URI")
	}
}
