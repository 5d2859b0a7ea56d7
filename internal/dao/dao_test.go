package dao

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/faucetdb/api-maker/internal/apierr"
	"github.com/faucetdb/api-maker/internal/connection"
	"github.com/faucetdb/api-maker/internal/model"
	"github.com/faucetdb/api-maker/internal/operation"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeDialect struct {
	returning bool
}

func (fakeDialect) Name() string { return "postgres" }
func (fakeDialect) Placeholder(_ *model.Property, name string) string {
	return fmt.Sprintf("%%(%s)s", name)
}
func (fakeDialect) NewUUID() string               { return "gen_random_uuid()" }
func (fakeDialect) Now() string                   { return "CURRENT_TIMESTAMP" }
func (d fakeDialect) SupportsReturning() bool     { return d.returning }
func (fakeDialect) SequenceExpr(n string) string  { return "nextval('" + n + "')" }
func (fakeDialect) Quote(identifier string) string { return `"` + identifier + `"` }

type fakeRows struct {
	rows []map[string]any
	pos  int
}

func (r *fakeRows) Next() bool { return r.pos < len(r.rows) }
func (r *fakeRows) MapScan(dest map[string]any) error {
	for k, v := range r.rows[r.pos] {
		dest[k] = v
	}
	r.pos++
	return nil
}
func (r *fakeRows) Close() error { return nil }
func (r *fakeRows) Err() error   { return nil }

type fakeResult struct {
	affected int64
	insertID int64
}

func (r fakeResult) RowsAffected() (int64, error) { return r.affected, nil }
func (r fakeResult) LastInsertId() (int64, error) { return r.insertID, nil }

// fakeConn records every statement and answers cursors through onCursor.
type fakeConn struct {
	dialect  connection.Dialect
	onCursor func(sql string, params map[string]any) []map[string]any
	result   fakeResult

	cursors []string
	execs   []string
}

func (c *fakeConn) Open(context.Context, connection.ConnectionConfig) error { return nil }
func (c *fakeConn) Cursor(_ context.Context, sqlText string, params map[string]any) (connection.Rows, error) {
	c.cursors = append(c.cursors, sqlText)
	return &fakeRows{rows: c.onCursor(sqlText, params)}, nil
}
func (c *fakeConn) Exec(_ context.Context, sqlText string, _ map[string]any) (connection.Result, error) {
	c.execs = append(c.execs, sqlText)
	return c.result, nil
}
func (c *fakeConn) Commit() error               { return nil }
func (c *fakeConn) Rollback() error             { return nil }
func (c *fakeConn) Close() error                { return nil }
func (c *fakeConn) Dialect() connection.Dialect { return c.dialect }

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

func prop(name string, t model.APIType) *model.Property {
	return &model.Property{Name: name, ColumnName: name, APIType: t, ColumnType: t}
}

func testModel(t *testing.T) *model.Model {
	t.Helper()

	line := &model.SchemaObject{
		Entity:    "invoice-line",
		Engine:    model.EnginePostgres,
		TableName: "invoice_line",
		Properties: map[string]*model.Property{
			"invoice_id": prop("invoice_id", model.TypeInteger),
			"track_id":   prop("track_id", model.TypeInteger),
		},
		Relations: map[string]*model.Relation{},
	}
	line.PrimaryKey = &model.Key{Property: *line.Properties["track_id"], KeyType: model.KeyAuto}

	invoice := &model.SchemaObject{
		Entity:    "invoice",
		Engine:    model.EnginePostgres,
		TableName: "invoice",
		Properties: map[string]*model.Property{
			"invoice_id": prop("invoice_id", model.TypeInteger),
			"total":      prop("total", model.TypeNumber),
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

	return model.NewModel(map[string]*model.SchemaObject{
		"invoice":      invoice,
		"invoice-line": line,
	})
}

func schemaObject(t *testing.T, m *model.Model, entity string) *model.SchemaObject {
	t.Helper()
	s, err := m.SchemaObject(entity)
	if err != nil {
		t.Fatalf("SchemaObject(%q): %v", entity, err)
	}
	return s
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestReadStitchesChildren(t *testing.T) {
	m := testModel(t)
	conn := &fakeConn{dialect: fakeDialect{returning: true}}
	conn.onCursor = func(sqlText string, _ map[string]any) []map[string]any {
		if strings.Contains(sqlText, `FROM "invoice_line"`) {
			return []map[string]any{
				{"invoice_id": int64(5), "track_id": int64(298)},
				{"invoice_id": int64(5), "track_id": int64(299)},
			}
		}
		return []map[string]any{
			{"i_invoice_id": int64(5), "i_total": 9.9},
			{"i_invoice_id": int64(6), "i_total": 1.0},
		}
	}

	records, err := Execute(context.Background(), conn, schemaObject(t, m, "invoice"), operation.Operation{
		Entity:   "invoice",
		Action:   operation.ActionRead,
		Metadata: operation.Metadata{Properties: ".* line_items:.*"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}

	first, ok := records[0]["line_items"].([]map[string]any)
	if !ok {
		t.Fatalf("line_items = %#v, want slice", records[0]["line_items"])
	}
	if len(first) != 2 || first[0]["track_id"] != int64(298) {
		t.Errorf("stitched children = %#v", first)
	}
	if first[0]["invoice_id"] != int64(5) {
		t.Errorf("child join key = %#v, want 5", first[0]["invoice_id"])
	}

	second, ok := records[1]["line_items"].([]map[string]any)
	if !ok || len(second) != 0 {
		t.Errorf("childless parent should carry an empty array, got %#v", records[1]["line_items"])
	}
}

func TestReadCountShortCircuits(t *testing.T) {
	m := testModel(t)
	conn := &fakeConn{dialect: fakeDialect{returning: true}}
	conn.onCursor = func(string, map[string]any) []map[string]any {
		return []map[string]any{{"count": int64(7)}}
	}

	records, err := Execute(context.Background(), conn, schemaObject(t, m, "invoice"), operation.Operation{
		Entity:   "invoice",
		Action:   operation.ActionRead,
		Metadata: operation.Metadata{Count: true, Properties: ".* line_items:.*"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(records) != 1 || records[0]["count"] != int64(7) {
		t.Errorf("records = %#v", records)
	}
	if len(conn.cursors) != 1 {
		t.Errorf("count must not run subselects, ran %d statements", len(conn.cursors))
	}
}

func TestUpdateNoRowsRaisesNoRecordsModified(t *testing.T) {
	m := testModel(t)
	conn := &fakeConn{dialect: fakeDialect{returning: true}}
	conn.onCursor = func(string, map[string]any) []map[string]any { return nil }

	_, err := Execute(context.Background(), conn, schemaObject(t, m, "invoice"), operation.Operation{
		Entity:      "invoice",
		Action:      operation.ActionUpdate,
		QueryParams: map[string]any{"invoice_id": 5},
		StoreParams: map[string]any{"total": 10},
	})
	var ae *apierr.Error
	if !errors.As(err, &ae) || ae.Kind != apierr.KindNoRecordsModified {
		t.Fatalf("err = %v, want no-records-modified", err)
	}
}

func TestValidationFailureRunsNoSQL(t *testing.T) {
	m := testModel(t)
	conn := &fakeConn{dialect: fakeDialect{returning: true}}
	conn.onCursor = func(string, map[string]any) []map[string]any { return nil }

	_, err := Execute(context.Background(), conn, schemaObject(t, m, "invoice"), operation.Operation{
		Entity:      "invoice",
		Action:      operation.ActionUpdate,
		QueryParams: map[string]any{"no_such_property": 5},
		StoreParams: map[string]any{"total": 10},
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(conn.cursors)+len(conn.execs) != 0 {
		t.Errorf("validation failure must not execute SQL, ran %d statements", len(conn.cursors)+len(conn.execs))
	}
}

func TestCreateReturnsInsertedRow(t *testing.T) {
	m := testModel(t)
	conn := &fakeConn{dialect: fakeDialect{returning: true}}
	conn.onCursor = func(sqlText string, _ map[string]any) []map[string]any {
		if !strings.Contains(sqlText, "RETURNING") {
			t.Errorf("insert should use RETURNING: %s", sqlText)
		}
		return []map[string]any{{"invoice_id": int64(413), "total": 9.9}}
	}

	records, err := Execute(context.Background(), conn, schemaObject(t, m, "invoice"), operation.Operation{
		Entity:      "invoice",
		Action:      operation.ActionCreate,
		StoreParams: map[string]any{"total": 9.9},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(records) != 1 || records[0]["invoice_id"] != int64(413) {
		t.Errorf("records = %#v", records)
	}
}

func TestCreateWithoutReturningReReadsByInsertID(t *testing.T) {
	m := testModel(t)
	conn := &fakeConn{dialect: fakeDialect{returning: false}, result: fakeResult{affected: 1, insertID: 413}}
	conn.onCursor = func(sqlText string, params map[string]any) []map[string]any {
		if params["pk"] != int64(413) {
			t.Errorf("post-select key = %#v, want 413", params["pk"])
		}
		return []map[string]any{{"invoice_id": int64(413), "total": 9.9}}
	}

	records, err := Execute(context.Background(), conn, schemaObject(t, m, "invoice"), operation.Operation{
		Entity:      "invoice",
		Action:      operation.ActionCreate,
		StoreParams: map[string]any{"total": 9.9},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(conn.execs) != 1 || !strings.HasPrefix(conn.execs[0], "INSERT INTO") {
		t.Errorf("execs = %v", conn.execs)
	}
	if len(records) != 1 || records[0]["invoice_id"] != int64(413) {
		t.Errorf("records = %#v", records)
	}
}

func TestDeleteWithoutReturningReportsCapturedRows(t *testing.T) {
	m := testModel(t)
	conn := &fakeConn{dialect: fakeDialect{returning: false}, result: fakeResult{affected: 1}}
	conn.onCursor = func(sqlText string, _ map[string]any) []map[string]any {
		if !strings.HasPrefix(sqlText, "SELECT") {
			t.Errorf("expected pre-select, got %s", sqlText)
		}
		return []map[string]any{{"invoice_id": int64(5), "total": 9.9}}
	}

	records, err := Execute(context.Background(), conn, schemaObject(t, m, "invoice"), operation.Operation{
		Entity:      "invoice",
		Action:      operation.ActionDelete,
		QueryParams: map[string]any{"invoice_id": 5},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(conn.execs) != 1 || !strings.HasPrefix(conn.execs[0], "DELETE FROM") {
		t.Errorf("execs = %v", conn.execs)
	}
	if len(records) != 1 || records[0]["invoice_id"] != int64(5) {
		t.Errorf("records = %#v", records)
	}
}
