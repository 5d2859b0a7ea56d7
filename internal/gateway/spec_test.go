package gateway

import (
	"regexp"
	"strings"
	"testing"

	"github.com/faucetdb/api-maker/internal/model"
)

func prop(name string, t model.APIType) *model.Property {
	return &model.Property{Name: name, ColumnName: name, APIType: t, ColumnType: t}
}

// testModel declares a versioned entity with a primary key, an unversioned
// entity with a primary key, and a keyless entity, covering every row of the
// path emission table.
func testModel(t *testing.T) *model.Model {
	t.Helper()

	invoice := &model.SchemaObject{
		Entity:    "invoice",
		Engine:    model.EnginePostgres,
		TableName: "invoice",
		Properties: map[string]*model.Property{
			"invoice_id":   prop("invoice_id", model.TypeInteger),
			"last_updated": prop("last_updated", model.TypeDateTime),
			"total":        prop("total", model.TypeNumber),
		},
		Relations: map[string]*model.Relation{
			"line_items": {
				Name:            "line_items",
				Cardinality:     model.CardinalityOneToMany,
				ChildEntityName: "invoice-line",
				ParentProperty:  "invoice_id",
				ChildProperty:   "invoice_id",
			},
		},
	}
	invoice.PrimaryKey = &model.Key{Property: *invoice.Properties["invoice_id"], KeyType: model.KeyAuto}
	invoice.ConcurrencyProperty = &model.VersionProperty{
		Property:    *invoice.Properties["last_updated"],
		VersionType: model.VersionTimestamp,
	}

	line := &model.SchemaObject{
		Entity:    "invoice-line",
		Engine:    model.EnginePostgres,
		TableName: "invoice_line",
		Properties: map[string]*model.Property{
			"invoice_id":      prop("invoice_id", model.TypeInteger),
			"invoice_line_id": prop("invoice_line_id", model.TypeInteger),
		},
		Relations: map[string]*model.Relation{},
	}
	line.PrimaryKey = &model.Key{Property: *line.Properties["invoice_line_id"], KeyType: model.KeyAuto}

	audit := &model.SchemaObject{
		Entity:    "audit-event",
		Engine:    model.EnginePostgres,
		TableName: "audit_event",
		Properties: map[string]*model.Property{
			"event": prop("event", model.TypeString),
		},
		Relations: map[string]*model.Relation{},
	}

	return model.NewModel(map[string]*model.SchemaObject{
		"invoice":      invoice,
		"invoice-line": line,
		"audit-event":  audit,
	})
}

func TestGeneratePathTable(t *testing.T) {
	doc := Generate(testModel(t), Config{})

	tests := []struct {
		path    string
		method  string
		present bool
	}{
		// Versioned entity with pk: mutations only through the version path.
		{"/invoice", "POST", true},
		{"/invoice", "GET", true},
		{"/invoice", "PUT", false},
		{"/invoice", "DELETE", false},
		{"/invoice/{invoice_id}", "GET", true},
		{"/invoice/{invoice_id}", "PUT", false},
		{"/invoice/{invoice_id}", "DELETE", false},
		{"/invoice/{invoice_id}/last_updated/{last_updated_value}", "PUT", true},
		{"/invoice/{invoice_id}/last_updated/{last_updated_value}", "DELETE", true},
		// Unversioned entity with pk: mutations on the pk path.
		{"/invoice-line/{invoice_line_id}", "PUT", true},
		{"/invoice-line/{invoice_line_id}", "DELETE", true},
		{"/invoice-line", "PUT", true},
		{"/invoice-line", "DELETE", true},
		// Keyless entity: collection paths only.
		{"/audit-event", "POST", true},
		{"/audit-event", "GET", true},
		{"/audit-event/{event}", "GET", false},
	}
	for _, tt := range tests {
		item := doc.Paths.Find(tt.path)
		if item == nil {
			if tt.present {
				t.Errorf("path %s missing", tt.path)
			}
			continue
		}
		op := item.GetOperation(tt.method)
		if (op != nil) != tt.present {
			t.Errorf("%s %s present = %v, want %v", tt.method, tt.path, op != nil, tt.present)
		}
	}
}

func TestGenerateSchemaNamesSanitized(t *testing.T) {
	doc := Generate(testModel(t), Config{})

	if doc.Components.Schemas["Invoiceline"] == nil {
		names := make([]string, 0, len(doc.Components.Schemas))
		for name := range doc.Components.Schemas {
			names = append(names, name)
		}
		t.Fatalf("sanitized schema Invoiceline missing; have %v", names)
	}
	invoice := doc.Components.Schemas["Invoice"]
	if invoice == nil {
		t.Fatal("schema Invoice missing")
	}
	rel := invoice.Value.Properties["line_items"]
	if rel == nil || rel.Value.Items == nil || rel.Value.Items.Ref != "#/components/schemas/Invoiceline" {
		t.Errorf("line_items relation ref = %+v, want rewritten sanitized ref", rel)
	}
}

func TestQueryParamPatternAdmitsOperators(t *testing.T) {
	pattern := queryParamPattern(prop("invoice_id", model.TypeInteger))
	re := regexp.MustCompile(pattern)

	valid := []string{"5", "eq::5", "ne::5", "lt::10", "between::1200,1300", "in::1,2,3", "not-in::4,5"}
	for _, v := range valid {
		if !re.MatchString(v) {
			t.Errorf("pattern rejects %q", v)
		}
	}
	invalid := []string{"abc", "between::1", "almost::5", "eq::x"}
	for _, v := range invalid {
		if re.MatchString(v) {
			t.Errorf("pattern admits %q", v)
		}
	}
}

func TestQueryParamPatternDateTime(t *testing.T) {
	pattern := queryParamPattern(prop("last_updated", model.TypeDateTime))
	re := regexp.MustCompile(pattern)
	if !re.MatchString("2025-01-15T10:00:00") {
		t.Error("pattern rejects ISO date-time")
	}
	if !re.MatchString("ge::2025-01-15T10:00:00.123") {
		t.Error("pattern rejects operator-encoded date-time")
	}
	if re.MatchString("2025-01-15") {
		t.Error("date-time pattern admits a bare date")
	}
}

func TestGenerateCORSAndAuthorizer(t *testing.T) {
	doc := Generate(testModel(t), Config{
		EnableCORS:    true,
		CORSOrigins:   []string{"https://app.example.com"},
		AuthorizerURI: "arn:aws:lambda:us-east-1:1:function:authorizer",
	})

	proxy := doc.Paths.Find("/{proxy+}")
	if proxy == nil || proxy.Options == nil {
		t.Error("CORS preflight path missing")
	}

	scheme := doc.Components.SecuritySchemes["tokenAuthorizer"]
	if scheme == nil {
		t.Fatal("tokenAuthorizer security scheme missing")
	}
	if uri := scheme.Value.Extensions["x-am-authorizer-uri"]; uri != "arn:aws:lambda:us-east-1:1:function:authorizer" {
		t.Errorf("authorizer uri = %v", uri)
	}
	if len(doc.Security) != 1 {
		t.Errorf("document security requirements = %d, want 1", len(doc.Security))
	}
}

func TestGenerateOmitsOptionalSections(t *testing.T) {
	doc := Generate(testModel(t), Config{})
	if doc.Paths.Find("/{proxy+}") != nil {
		t.Error("preflight path emitted without CORS enabled")
	}
	if len(doc.Components.SecuritySchemes) != 0 {
		t.Error("security schemes emitted without an authorizer")
	}
	if strings.Contains(doc.Info.Title, "Faucet") {
		t.Errorf("unexpected title %q", doc.Info.Title)
	}
}
