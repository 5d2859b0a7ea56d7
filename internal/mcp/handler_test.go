package mcp

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/faucetdb/api-maker/internal/apierr"
	"github.com/faucetdb/api-maker/internal/model"
	"github.com/faucetdb/api-maker/internal/operation"
)

type fakeExecutor struct {
	lastOp  operation.Operation
	records []map[string]any
	err     error
}

func (f *fakeExecutor) Execute(_ context.Context, op operation.Operation) ([]map[string]any, error) {
	f.lastOp = op
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func testModel(t *testing.T) *model.Model {
	t.Helper()
	idProp := &model.Property{Name: "invoice_id", ColumnName: "invoice_id", APIType: model.TypeInteger, ColumnType: model.TypeInteger}
	invoice := &model.SchemaObject{
		Entity:     "invoice",
		Engine:     model.EnginePostgres,
		TableName:  "invoice",
		Properties: map[string]*model.Property{"invoice_id": idProp},
		Relations:  map[string]*model.Relation{},
	}
	invoice.PrimaryKey = &model.Key{Property: *idProp, KeyType: model.KeyAuto}
	return model.NewModel(map[string]*model.SchemaObject{"invoice": invoice})
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func TestHandleOperationRead(t *testing.T) {
	exec := &fakeExecutor{records: []map[string]any{{"invoice_id": int64(5)}}}
	s := NewMCPServer(exec, testModel(t), nil)

	handler := s.handleOperation("invoice", operation.ActionRead)
	result, err := handler(context.Background(), callRequest(map[string]any{
		"query_params": map[string]any{"invoice_id": "5"},
		"properties":   ".*",
	}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if result.IsError {
		t.Fatalf("result = %+v", result)
	}
	if exec.lastOp.Entity != "invoice" || exec.lastOp.Action != operation.ActionRead {
		t.Errorf("op = %+v", exec.lastOp)
	}
	if exec.lastOp.QueryParams["invoice_id"] != "5" || exec.lastOp.Metadata.Properties != ".*" {
		t.Errorf("op = %+v", exec.lastOp)
	}
}

func TestHandleOperationErrorIsToolError(t *testing.T) {
	exec := &fakeExecutor{err: apierr.NoRecordsModified("delete matched no rows on entity %q", "invoice")}
	s := NewMCPServer(exec, testModel(t), nil)

	handler := s.handleOperation("invoice", operation.ActionDelete)
	result, err := handler(context.Background(), callRequest(map[string]any{
		"query_params": map[string]any{"invoice_id": "5"},
	}))
	if err != nil {
		t.Fatalf("tool errors must not terminate the session: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result")
	}
}

func TestToolToken(t *testing.T) {
	tests := map[string]string{
		"invoice":      "invoice",
		"invoice-line": "invoice_line",
		"InvoiceLine":  "invoiceline",
	}
	for in, want := range tests {
		if got := toolToken(in); got != want {
			t.Errorf("toolToken(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDescribeEntity(t *testing.T) {
	m := testModel(t)
	schema, err := m.SchemaObject("invoice")
	if err != nil {
		t.Fatal(err)
	}
	detail := describeEntity(schema)
	if detail.Entity != "invoice" || detail.Table != "invoice" {
		t.Errorf("detail = %+v", detail)
	}
	if len(detail.Properties) != 1 || detail.Properties[0].Key != "auto" {
		t.Errorf("properties = %+v", detail.Properties)
	}
	if !strings.EqualFold(detail.Engine, "postgres") {
		t.Errorf("engine = %q", detail.Engine)
	}
}
