package openapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
)

func generate(t *testing.T) map[string]interface{} {
	t.Helper()
	doc, err := Generate("http://localhost:8080", "1.2.3")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestGenerateInfo(t *testing.T) {
	doc, err := Generate("http://desk.example.com", "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if doc.OpenAPI != "3.1.0" {
		t.Errorf("openapi = %q", doc.OpenAPI)
	}
	if doc.Info.Version != "dev" {
		t.Errorf("empty version should default to dev, got %q", doc.Info.Version)
	}
	if doc.Servers[0].URL != "http://desk.example.com" {
		t.Errorf("server url = %q", doc.Servers[0].URL)
	}
	if doc.Components.SecuritySchemes["bearerAuth"] == nil {
		t.Error("missing bearerAuth security scheme")
	}
}

func TestGeneratePaths(t *testing.T) {
	doc, err := Generate("http://localhost", "1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	tests := []struct {
		path   string
		method string
	}{
		{"/healthz", http.MethodGet},
		{"/readyz", http.MethodGet},
		{"/api/v1/session", http.MethodPost},
		{"/api/v1/session", http.MethodDelete},
		{"/api/v1/me", http.MethodGet},
		{"/api/v1/users", http.MethodGet},
		{"/api/v1/users", http.MethodPost},
		{"/api/v1/dashboard", http.MethodGet},
		{"/api/v1/visitors", http.MethodGet},
		{"/api/v1/visitors", http.MethodPost},
		{"/api/v1/visitors/walk-in", http.MethodPost},
		{"/api/v1/visitors/walk-in/face", http.MethodPost},
		{"/api/v1/visitors/walk-in/capture", http.MethodPost},
		{"/api/v1/visitors/{id}", http.MethodGet},
		{"/api/v1/visitors/{id}/check-in", http.MethodPost},
		{"/api/v1/visitors/{id}/check-out", http.MethodPost},
		{"/api/v1/visitors/{id}/face", http.MethodPost},
		{"/api/v1/visitors/{id}/capture", http.MethodPost},
		{"/api/v1/visitors/{id}/badge", http.MethodGet},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			item := doc.Paths.Find(tt.path)
			if item == nil {
				t.Fatalf("path %s missing", tt.path)
			}
			op := item.GetOperation(tt.method)
			if op == nil {
				t.Fatalf("%s %s missing", tt.method, tt.path)
			}
			if op.OperationID == "" {
				t.Error("operation has no id")
			}
			if op.Responses.Value("500") == nil {
				t.Error("missing 500 response")
			}
		})
	}
}

func TestPublicOperationsHaveNoSecurity(t *testing.T) {
	doc, err := Generate("http://localhost", "1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for _, path := range []string{"/healthz", "/readyz"} {
		op := doc.Paths.Find(path).Get
		if op.Security == nil || len(*op.Security) != 0 {
			t.Errorf("%s should override security with an empty list", path)
		}
	}
	login := doc.Paths.Find("/api/v1/session").Post
	if login.Security == nil || len(*login.Security) != 0 {
		t.Error("login should not require a token")
	}
	if doc.Paths.Find("/api/v1/me").Get.Security != nil {
		t.Error("/me should inherit the document security")
	}
}

func TestStateErrorsDocumented(t *testing.T) {
	doc, err := Generate("http://localhost", "1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	checkIn := doc.Paths.Find("/api/v1/visitors/{id}/check-in").Post
	for _, code := range []string{"409", "422"} {
		if checkIn.Responses.Value(code) == nil {
			t.Errorf("check-in missing %s", code)
		}
	}
	capture := doc.Paths.Find("/api/v1/visitors/{id}/capture").Post
	if capture.Responses.Value("504") == nil {
		t.Error("capture missing 504")
	}
	if checkIn.Responses.Value("default") != nil {
		t.Error("default response should be removed")
	}
}

func TestModelSchemas(t *testing.T) {
	out := generate(t)
	schemas := out["components"].(map[string]interface{})["schemas"].(map[string]interface{})

	for _, name := range []string{"User", "Visitor", "VisitorInput", "CheckInInput", "DashboardCounts", "ErrorResponse"} {
		if schemas[name] == nil {
			t.Errorf("missing component schema %s", name)
		}
	}

	user := schemas["User"].(map[string]interface{})["properties"].(map[string]interface{})
	if _, ok := user["password_hash"]; ok {
		t.Error("User schema must not expose password_hash")
	}
	if _, ok := user["username"]; !ok {
		t.Error("User schema missing username")
	}

	visitor := schemas["Visitor"].(map[string]interface{})["properties"].(map[string]interface{})
	checkIn := visitor["check_in"].(map[string]interface{})
	if checkIn["format"] != "date-time" {
		t.Errorf("check_in format = %v", checkIn["format"])
	}
	status := visitor["status"].(map[string]interface{})
	if len(status["enum"].([]interface{})) != 4 {
		t.Errorf("status enum = %v", status["enum"])
	}

	input := schemas["VisitorInput"].(map[string]interface{})
	if req, _ := input["required"].([]interface{}); len(req) != 1 || req[0] != "name" {
		t.Errorf("VisitorInput required = %v", input["required"])
	}
}

func TestReportParameters(t *testing.T) {
	doc, err := Generate("http://localhost", "1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	list := doc.Paths.Find("/api/v1/visitors").Get

	var names []string
	for _, p := range list.Parameters {
		names = append(names, p.Value.Name)
	}
	if got := strings.Join(names, ","); got != "from,to,status,department,format" {
		t.Errorf("parameters = %s", got)
	}
	if list.Responses.Value("200").Value.Content.Get("text/csv") == nil {
		t.Error("list should document the CSV variant")
	}
}
