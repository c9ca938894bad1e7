// Package openapi builds the OpenAPI 3.1 description of the frontdesk REST
// API.
package openapi

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3gen"

	"github.com/faucetdb/frontdesk/internal/model"
)

const apiPrefix = "/api/v1"

// Tags group operations in rendered docs.
const (
	tagSession  = "session"
	tagUsers    = "users"
	tagVisitors = "visitors"
	tagHealth   = "health"
)

// Generate returns the API description served at /openapi.json.
func Generate(baseURL, version string) (*openapi3.T, error) {
	if version == "" {
		version = "dev"
	}
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "frontdesk API",
			Description: "Visitor pre-registration, check-in, check-out and reporting for front-desk staff.",
			Version:     version,
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
		Tags: openapi3.Tags{
			{Name: tagSession, Description: "Staff login and logout"},
			{Name: tagUsers, Description: "Staff account administration"},
			{Name: tagVisitors, Description: "Visitor lifecycle, reports, badges and face images"},
			{Name: tagHealth, Description: "Liveness and readiness probes"},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}
	doc.Security = openapi3.SecurityRequirements{
		{"bearerAuth": {}},
	}

	doc.Paths = openapi3.NewPaths()

	doc.Components.Schemas["ErrorResponse"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"object"},
						Properties: openapi3.Schemas{
							"code":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
							"message": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
						},
					},
				},
			},
		},
	}

	if err := addModelSchemas(doc); err != nil {
		return nil, err
	}

	addHealthPaths(doc)
	addSessionPaths(doc)
	addUserPaths(doc)
	addVisitorPaths(doc)

	return doc, nil
}

// modelSchemas lists the Go types exposed as component schemas.
var modelSchemas = map[string]interface{}{
	"User":            model.User{},
	"Visitor":         model.Visitor{},
	"VisitorInput":    model.VisitorInput{},
	"CheckInInput":    model.CheckInInput{},
	"DashboardCounts": model.DashboardCounts{},
}

func addModelSchemas(doc *openapi3.T) error {
	names := make([]string, 0, len(modelSchemas))
	for name := range modelSchemas {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ref, err := openapi3gen.NewSchemaRefForValue(modelSchemas[name], doc.Components.Schemas)
		if err != nil {
			return fmt.Errorf("generate %s schema: %w", name, err)
		}
		doc.Components.Schemas[name] = ref
	}

	if visitor := doc.Components.Schemas["Visitor"].Value; visitor != nil {
		visitor.Properties["status"] = &openapi3.SchemaRef{Value: &openapi3.Schema{
			Type:        &openapi3.Types{"string"},
			Enum:        []interface{}{model.StatusRegistered, model.StatusPreRegistered, model.StatusCheckedIn, model.StatusCheckedOut},
			Description: "Derived from pre_registered, check_in and check_out.",
			ReadOnly:    true,
		}}
	}
	if input := doc.Components.Schemas["VisitorInput"].Value; input != nil {
		input.Required = []string{"name"}
		if purpose := input.Properties["visit_purpose"]; purpose != nil && purpose.Value != nil {
			purpose.Value.Description = fmt.Sprintf("Free text; the desk suggests %q.", model.VisitPurposes)
		}
	}
	return nil
}

// ─── Paths ──────────────────────────────────────────────────────────────────

func addHealthPaths(doc *openapi3.T) {
	status := objectSchema(openapi3.Schemas{"status": stringSchema()})
	doc.Paths.Set("/healthz", &openapi3.PathItem{
		Get: publicOperation(tagHealth, "healthz", "Liveness probe",
			newResponses(http.StatusOK, "Process is running", status)),
	})
	doc.Paths.Set("/readyz", &openapi3.PathItem{
		Get: publicOperation(tagHealth, "readyz", "Readiness probe; pings the store",
			newResponses(http.StatusOK, "Store reachable", status, http.StatusServiceUnavailable)),
	})
}

func addSessionPaths(doc *openapi3.T) {
	login := objectSchema(openapi3.Schemas{
		"username": stringSchema(),
		"password": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "password"}},
	}, "username", "password")
	session := objectSchema(openapi3.Schemas{
		"session_token": stringSchema(),
		"token_type":    stringSchema(),
		"expires_in":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}}},
		"expires_at":    dateTimeSchema(),
		"user":          componentRef("User"),
	})

	doc.Paths.Set(apiPrefix+"/session", &openapi3.PathItem{
		Post: withBody(publicOperation(tagSession, "login", "Log in and obtain a session token",
			newResponses(http.StatusOK, "Session issued", session, http.StatusTooManyRequests)), login),
		Delete: operation(tagSession, "logout", "Log out; clients discard their token",
			newResponses(http.StatusOK, "Logged out", objectSchema(openapi3.Schemas{"success": boolSchema()}))),
	})
	doc.Paths.Set(apiPrefix+"/me", &openapi3.PathItem{
		Get: operation(tagSession, "me", "The authenticated staff account",
			newResponses(http.StatusOK, "Current user", componentRef("User"))),
	})
}

func addUserPaths(doc *openapi3.T) {
	create := objectSchema(openapi3.Schemas{
		"username":     stringSchema(),
		"password":     &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "password"}},
		"company_id":   &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64", Description: "Ignored unless the caller is a superuser."}},
		"is_superuser": boolSchema(),
	}, "username", "password")

	doc.Paths.Set(apiPrefix+"/users", &openapi3.PathItem{
		Get: operation(tagUsers, "list_users", "List staff accounts visible to the caller",
			newResponses(http.StatusOK, "Accounts", listSchema("User"))),
		Post: withBody(operation(tagUsers, "create_user", "Create a staff account",
			newResponses(http.StatusCreated, "Created account", componentRef("User"), http.StatusForbidden, http.StatusConflict)), create),
	})
}

func addVisitorPaths(doc *openapi3.T) {
	visitor := componentRef("Visitor")
	idParam := &openapi3.ParameterRef{Value: openapi3.NewPathParameter("id").
		WithDescription("Visitor ID").
		WithSchema(openapi3.NewInt64Schema())}
	imageRef := objectSchema(openapi3.Schemas{"face_image_ref": stringSchema()})

	doc.Paths.Set(apiPrefix+"/dashboard", &openapi3.PathItem{
		Get: operation(tagVisitors, "dashboard", "Visitor counts for the caller's company",
			newResponses(http.StatusOK, "Counts", componentRef("DashboardCounts"))),
	})

	list := operation(tagVisitors, "list_visitors", "List or report visitors",
		newResponses(http.StatusOK, "Visitors ordered by id", listSchema("Visitor")))
	list.Parameters = reportParameters()
	csvDesc := "CSV report when format=csv"
	list.Responses.Value("200").Value.Content["text/csv"] = &openapi3.MediaType{
		Schema: &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Description: csvDesc}},
	}
	doc.Paths.Set(apiPrefix+"/visitors", &openapi3.PathItem{
		Get: list,
		Post: withBody(operation(tagVisitors, "pre_register", "Pre-register a visitor and send the registration link",
			newResponses(http.StatusCreated, "Pre-registered visitor", visitor)), componentRef("VisitorInput")),
	})

	walkIn := objectSchema(openapi3.Schemas{
		"visitor":  componentRef("VisitorInput"),
		"check_in": componentRef("CheckInInput"),
	}, "visitor")
	doc.Paths.Set(apiPrefix+"/visitors/walk-in", &openapi3.PathItem{
		Post: withBody(operation(tagVisitors, "walk_in", "Register and check in an unannounced visitor",
			newResponses(http.StatusCreated, "Checked-in visitor", visitor, http.StatusUnprocessableEntity)), walkIn),
	})

	doc.Paths.Set(apiPrefix+"/visitors/{id}", &openapi3.PathItem{
		Parameters: openapi3.Parameters{idParam},
		Get: operation(tagVisitors, "get_visitor", "Get a visitor",
			newResponses(http.StatusOK, "Visitor", visitor)),
	})

	checkedIn := objectSchema(openapi3.Schemas{"message": stringSchema(), "visitor": visitor})
	doc.Paths.Set(apiPrefix+"/visitors/{id}/check-in", &openapi3.PathItem{
		Parameters: openapi3.Parameters{idParam},
		Post: withBody(operation(tagVisitors, "check_in", "Check a visitor in after the face gate",
			newResponses(http.StatusOK, "Visitor checked in successfully", checkedIn, http.StatusConflict, http.StatusUnprocessableEntity)),
			componentRef("CheckInInput")),
	})
	doc.Paths.Set(apiPrefix+"/visitors/{id}/check-out", &openapi3.PathItem{
		Parameters: openapi3.Parameters{idParam},
		Post: operation(tagVisitors, "check_out", "Check a visitor out",
			newResponses(http.StatusOK, "Checked-out visitor", checkedIn, http.StatusConflict)),
	})

	upload := &openapi3.RequestBodyRef{Value: &openapi3.RequestBody{
		Required: true,
		Content: openapi3.Content{
			"multipart/form-data": &openapi3.MediaType{Schema: objectSchema(openapi3.Schemas{
				"image": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "binary"}},
			}, "image")},
		},
	}}
	face := operation(tagVisitors, "upload_face", "Upload a face image for check-in",
		newResponses(http.StatusCreated, "Stored image reference", imageRef, http.StatusNotImplemented))
	face.RequestBody = upload
	doc.Paths.Set(apiPrefix+"/visitors/{id}/face", &openapi3.PathItem{
		Parameters: openapi3.Parameters{idParam},
		Post:       face,
	})
	walkInFace := operation(tagVisitors, "upload_walk_in_face", "Stage a face image for a walk-in before the record exists",
		newResponses(http.StatusCreated, "Stored image reference", imageRef, http.StatusNotImplemented))
	walkInFace.RequestBody = upload
	doc.Paths.Set(apiPrefix+"/visitors/walk-in/face", &openapi3.PathItem{Post: walkInFace})
	doc.Paths.Set(apiPrefix+"/visitors/walk-in/capture", &openapi3.PathItem{
		Post: operation(tagVisitors, "capture_walk_in_face", "Capture a walk-in's face image from the desk camera",
			newResponses(http.StatusCreated, "Stored image reference", imageRef, http.StatusNotImplemented, http.StatusGatewayTimeout)),
	})
	doc.Paths.Set(apiPrefix+"/visitors/{id}/capture", &openapi3.PathItem{
		Parameters: openapi3.Parameters{idParam},
		Post: operation(tagVisitors, "capture_face", "Capture a face image from the desk camera",
			newResponses(http.StatusCreated, "Stored image reference", imageRef, http.StatusNotImplemented, http.StatusGatewayTimeout)),
	})

	badge := operation(tagVisitors, "badge", "Download the printable visitor badge",
		newResponses(http.StatusOK, "PDF badge", nil, http.StatusNotImplemented))
	badge.Responses.Value("200").Value.Content = openapi3.Content{
		"application/pdf": &openapi3.MediaType{Schema: &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "binary"}}},
	}
	doc.Paths.Set(apiPrefix+"/visitors/{id}/badge", &openapi3.PathItem{
		Parameters: openapi3.Parameters{idParam},
		Get:        badge,
	})
}

// ─── Operation Builders ─────────────────────────────────────────────────────

// operation builds an authenticated operation.
func operation(tag, id, summary string, responses *openapi3.Responses) *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{tag},
		Summary:     summary,
		OperationID: id,
		Responses:   responses,
	}
}

// publicOperation builds an operation that needs no token.
func publicOperation(tag, id, summary string, responses *openapi3.Responses) *openapi3.Operation {
	op := operation(tag, id, summary, responses)
	op.Security = &openapi3.SecurityRequirements{}
	return op
}

func withBody(op *openapi3.Operation, schema *openapi3.SchemaRef) *openapi3.Operation {
	op.RequestBody = &openapi3.RequestBodyRef{Value: &openapi3.RequestBody{
		Required: true,
		Content:  openapi3.NewContentWithJSONSchemaRef(schema),
	}}
	return op
}

// reportParameters returns the filters accepted by the visitor list.
func reportParameters() openapi3.Parameters {
	statuses := []interface{}{model.StatusRegistered, model.StatusPreRegistered, model.StatusCheckedIn, model.StatusCheckedOut}
	return openapi3.Parameters{
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("from").
				WithDescription("Only visitors created at or after this time (RFC3339 or YYYY-MM-DD).").
				WithSchema(openapi3.NewStringSchema()),
		},
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("to").
				WithDescription("Only visitors created before this time (RFC3339 or YYYY-MM-DD).").
				WithSchema(openapi3.NewStringSchema()),
		},
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("status").
				WithDescription("Derived visitor status.").
				WithSchema(openapi3.NewStringSchema().WithEnum(statuses...)),
		},
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("department").
				WithDescription("Exact department match.").
				WithSchema(openapi3.NewStringSchema()),
		},
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("format").
				WithDescription("\"json\" (default) or \"csv\".").
				WithSchema(openapi3.NewStringSchema().WithEnum("json", "csv")),
		},
	}
}

// ─── Response Helpers ───────────────────────────────────────────────────────

var errorDescriptions = map[int]string{
	http.StatusBadRequest:          "Bad request",
	http.StatusUnauthorized:        "Unauthorized",
	http.StatusForbidden:           "Forbidden",
	http.StatusNotFound:            "Not found",
	http.StatusConflict:            "Conflict with the visitor's current state",
	http.StatusUnprocessableEntity: "Face not detected",
	http.StatusTooManyRequests:     "Too many requests",
	http.StatusInternalServerError: "Internal server error",
	http.StatusNotImplemented:      "Feature not configured",
	http.StatusServiceUnavailable:  "Not ready",
	http.StatusGatewayTimeout:      "Camera capture timed out",
}

// newResponses builds a Responses map with a success response, the standard
// error responses and any extra error statuses the operation can return.
func newResponses(status int, description string, schema *openapi3.SchemaRef, extra ...int) *openapi3.Responses {
	responses := openapi3.NewResponses()
	responses.Delete("default")

	successDesc := description
	success := &openapi3.Response{Description: &successDesc}
	if schema != nil {
		success.Content = openapi3.NewContentWithJSONSchemaRef(schema)
	}
	responses.Set(fmt.Sprint(status), &openapi3.ResponseRef{Value: success})

	errorRef := openapi3.NewSchemaRef("#/components/schemas/ErrorResponse", nil)
	codes := append([]int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusInternalServerError}, extra...)
	for _, code := range codes {
		desc := errorDescriptions[code]
		responses.Set(fmt.Sprint(code), &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: &desc,
				Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
			},
		})
	}
	return responses
}

// ─── Schema Helpers ─────────────────────────────────────────────────────────

func componentRef(name string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
}

func stringSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: openapi3.NewStringSchema()}
}

func boolSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: openapi3.NewBoolSchema()}
}

func dateTimeSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: openapi3.NewDateTimeSchema()}
}

func objectSchema(props openapi3.Schemas, required ...string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: props,
		Required:   required,
	}}
}

// listSchema wraps a component in the {"resource": [...], "meta": {...}}
// list envelope.
func listSchema(component string) *openapi3.SchemaRef {
	return objectSchema(openapi3.Schemas{
		"resource": &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:  &openapi3.Types{"array"},
				Items: componentRef(component),
			},
		},
		"meta": metaSchema(),
	})
}

// metaSchema returns the schema for the "meta" field in list responses.
func metaSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"count": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:        &openapi3.Types{"integer"},
						Format:      "int64",
						Description: "Number of records returned.",
					},
				},
				"took_ms": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:        &openapi3.Types{"number"},
						Format:      "double",
						Description: "Time spent serving the request.",
					},
				},
			},
		},
	}
}
