// Package dao orchestrates query execution for one operation: it builds the
// matching sqlgen handler, runs the parent statement, runs one subselect per
// selected one-to-many relation, stitches child rows onto their parents, and
// raises no-records-modified when a mutation touches nothing.
package dao

import (
	"context"

	"github.com/faucetdb/api-maker/internal/apierr"
	"github.com/faucetdb/api-maker/internal/connection"
	"github.com/faucetdb/api-maker/internal/model"
	"github.com/faucetdb/api-maker/internal/operation"
	"github.com/faucetdb/api-maker/internal/sqlgen"
)

// Execute runs op against schema over an open, transaction-bound connection
// and returns the API-shaped result records. The caller owns the
// transaction: Execute never commits or rolls back.
func Execute(ctx context.Context, conn connection.Connection, schema *model.SchemaObject, op operation.Operation) ([]map[string]any, error) {
	switch op.Action {
	case operation.ActionRead:
		return executeRead(ctx, conn, schema, op)
	case operation.ActionCreate:
		return executeCreate(ctx, conn, schema, op)
	case operation.ActionUpdate:
		return executeUpdate(ctx, conn, schema, op)
	case operation.ActionDelete:
		return executeDelete(ctx, conn, schema, op)
	default:
		return nil, apierr.BadRequest("unknown action %q", op.Action)
	}
}

func executeRead(ctx context.Context, conn connection.Connection, schema *model.SchemaObject, op operation.Operation) ([]map[string]any, error) {
	h := sqlgen.NewSelect(schema, conn.Dialect(), op)
	compiled, err := h.Compile()
	if err != nil {
		return nil, err
	}

	records, err := fetchAll(ctx, conn, compiled)
	if err != nil {
		return nil, err
	}
	if op.Metadata.Count {
		return records, nil
	}

	for _, child := range h.ChildSelects() {
		sub := sqlgen.NewSubselect(h, child)
		subCompiled, err := sub.Compile()
		if err != nil {
			return nil, err
		}
		if subCompiled.SQL == "" {
			continue
		}
		childRecords, err := fetchAll(ctx, conn, subCompiled)
		if err != nil {
			return nil, err
		}

		// Group children by the join-key value, then hand each parent its
		// slice; parents with no children get an empty array, never nil.
		grouped := map[any][]map[string]any{}
		for _, cr := range childRecords {
			key := cr[child.ChildProperty.Name]
			grouped[key] = append(grouped[key], cr)
		}
		for _, parent := range records {
			key := parent[child.ParentProperty.Name]
			children := grouped[key]
			if children == nil {
				children = []map[string]any{}
			}
			parent[child.Relation.Name] = children
		}
	}

	return records, nil
}

func executeCreate(ctx context.Context, conn connection.Connection, schema *model.SchemaObject, op operation.Operation) ([]map[string]any, error) {
	h := sqlgen.NewInsert(schema, conn.Dialect(), op)
	compiled, err := h.Compile()
	if err != nil {
		return nil, err
	}

	if conn.Dialect().SupportsReturning() {
		return fetchAll(ctx, conn, compiled)
	}

	res, err := conn.Exec(ctx, compiled.SQL, compiled.Params)
	if err != nil {
		return nil, err
	}
	if compiled.PostSelectSQL == "" {
		return []map[string]any{op.StoreParams}, nil
	}

	var keyValue any
	key := schema.PrimaryKey
	if key != nil && key.KeyType == model.KeyAuto {
		id, err := res.LastInsertId()
		if err != nil {
			return nil, apierr.DBError(err, "reading generated key for entity %q", schema.Entity)
		}
		keyValue = id
	} else if key != nil {
		keyValue, err = key.ToDB(op.StoreParams[key.Name])
		if err != nil {
			return nil, apierr.BadRequest("%v", err)
		}
	}

	return fetchAllWith(ctx, conn, compiled, compiled.PostSelectSQL,
		map[string]any{compiled.PostSelectKeyParam: keyValue})
}

func executeUpdate(ctx context.Context, conn connection.Connection, schema *model.SchemaObject, op operation.Operation) ([]map[string]any, error) {
	h := sqlgen.NewUpdate(schema, conn.Dialect(), op)
	compiled, err := h.Compile()
	if err != nil {
		return nil, err
	}

	if conn.Dialect().SupportsReturning() {
		records, err := fetchAll(ctx, conn, compiled)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, apierr.NoRecordsModified("update matched no rows on entity %q", schema.Entity)
		}
		return records, nil
	}

	// No RETURNING: find the affected keys first, mutate, then re-read each
	// row for its post-update values.
	keys, err := scanKeys(ctx, conn, compiled.PreSelectSQL, compiled.Params, schema.PrimaryKey.ColumnName)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, apierr.NoRecordsModified("update matched no rows on entity %q", schema.Entity)
	}
	if _, err := conn.Exec(ctx, compiled.SQL, compiled.Params); err != nil {
		return nil, err
	}
	var records []map[string]any
	for _, key := range keys {
		rows, err := fetchAllWith(ctx, conn, compiled, compiled.PostSelectSQL,
			map[string]any{compiled.PostSelectKeyParam: key})
		if err != nil {
			return nil, err
		}
		records = append(records, rows...)
	}
	return records, nil
}

func executeDelete(ctx context.Context, conn connection.Connection, schema *model.SchemaObject, op operation.Operation) ([]map[string]any, error) {
	h := sqlgen.NewDelete(schema, conn.Dialect(), op)
	compiled, err := h.Compile()
	if err != nil {
		return nil, err
	}

	if conn.Dialect().SupportsReturning() {
		records, err := fetchAll(ctx, conn, compiled)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, apierr.NoRecordsModified("delete matched no rows on entity %q", schema.Entity)
		}
		return records, nil
	}

	// No RETURNING: capture the doomed rows, then delete them. The captured
	// rows are what the caller gets back.
	records, err := fetchAllWith(ctx, conn, compiled, compiled.PreSelectSQL, compiled.Params)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, apierr.NoRecordsModified("delete matched no rows on entity %q", schema.Entity)
	}
	if _, err := conn.Exec(ctx, compiled.SQL, compiled.Params); err != nil {
		return nil, err
	}
	return records, nil
}

// fetchAll runs the compiled statement as a cursor and marshals every row.
func fetchAll(ctx context.Context, conn connection.Connection, compiled sqlgen.Compiled) ([]map[string]any, error) {
	return fetchAllWith(ctx, conn, compiled, compiled.SQL, compiled.Params)
}

// fetchAllWith runs sqlText (one of the compiled statement's variants) with
// params and marshals every row through the compiled column map.
func fetchAllWith(ctx context.Context, conn connection.Connection, compiled sqlgen.Compiled, sqlText string, params map[string]any) ([]map[string]any, error) {
	rows, err := conn.Cursor(ctx, sqlText, params)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []map[string]any{}
	for rows.Next() {
		raw := map[string]any{}
		if err := rows.MapScan(raw); err != nil {
			return nil, apierr.DBError(err, "scanning row")
		}
		record, err := compiled.Marshal(raw)
		if err != nil {
			return nil, apierr.DBError(err, "converting row")
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, apierr.DBError(err, "iterating rows")
	}
	return records, nil
}

// scanKeys runs a single-column key query and returns the raw key values.
func scanKeys(ctx context.Context, conn connection.Connection, sqlText string, params map[string]any, keyColumn string) ([]any, error) {
	rows, err := conn.Cursor(ctx, sqlText, params)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []any
	for rows.Next() {
		raw := map[string]any{}
		if err := rows.MapScan(raw); err != nil {
			return nil, apierr.DBError(err, "scanning key row")
		}
		keys = append(keys, raw[keyColumn])
	}
	if err := rows.Err(); err != nil {
		return nil, apierr.DBError(err, "iterating key rows")
	}
	return keys, nil
}
