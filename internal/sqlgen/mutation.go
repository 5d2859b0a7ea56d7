package sqlgen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/faucetdb/api-maker/internal/apierr"
	"github.com/faucetdb/api-maker/internal/connection"
	"github.com/faucetdb/api-maker/internal/model"
)

// sortedStoreParamNames validates every store-parameter name against the
// schema object and returns the names in stable order. Relation-path names
// are rejected outright: values can only be stored on the entity itself.
func sortedStoreParamNames(root *model.SchemaObject, storeParams map[string]any) ([]string, error) {
	names := make([]string, 0, len(storeParams))
	for name := range storeParams {
		if strings.Contains(name, ".") {
			return nil, apierr.BadRequest("cannot store through relation path %q", name)
		}
		if _, ok := root.Relation(name); ok {
			return nil, apierr.BadRequest("cannot store relation %q directly", name)
		}
		if _, ok := root.Property(name); !ok {
			return nil, apierr.SpecError("unknown property %q on entity %q", name, root.Entity)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// versionExpr renders the SQL expression that produces a fresh concurrency
// token: an engine-specific UUID for uuid versions, the current timestamp
// for timestamp versions, and col + 1 (or the literal 1 on insert) for
// serial versions.
func versionExpr(dialect connection.Dialect, vp *model.VersionProperty, insert bool) string {
	switch vp.VersionType {
	case model.VersionUUID:
		return dialect.NewUUID()
	case model.VersionTimestamp:
		return dialect.Now()
	case model.VersionSerial:
		if insert {
			return "1"
		}
		return fmt.Sprintf("%s + 1", dialect.Quote(vp.ColumnName))
	}
	return dialect.Now()
}

// checkMutationConcurrency enforces the optimistic-locking rules shared by
// update and delete: the current version value must be supplied as an
// equality filter, it may not be stored directly, and no range operator may
// appear anywhere in the search condition.
func checkMutationConcurrency(root *model.SchemaObject, queryParams, storeParams map[string]any) error {
	vp := root.ConcurrencyProperty
	if vp == nil {
		return nil
	}
	if _, present := storeParams[vp.Name]; present {
		return apierr.ConcurrencyViolation("version property %q is generated and cannot be stored directly", vp.Name)
	}
	raw, present := queryParams[vp.Name]
	if !present {
		return apierr.ConcurrencyViolation("missing current value for version property %q", vp.Name)
	}
	operand, err := ParseOperand(fmt.Sprint(raw))
	if err != nil {
		return err
	}
	if !operand.Equality() {
		return apierr.ConcurrencyViolation("version property %q only supports equality", vp.Name)
	}
	nonEq, err := HasNonEquality(queryParams)
	if err != nil {
		return err
	}
	if nonEq {
		return apierr.ConcurrencyViolation("range operators are not allowed when entity %q carries version property %q", root.Entity, vp.Name)
	}
	return nil
}

// fullSelectList renders every property of the schema object as a bare
// quoted column (mutating statements are always single-table), returning
// both the RETURNING list and the result-column map for marshalling.
func fullSelectList(b *Base) ([]string, map[string]ResultColumn) {
	columns := map[string]ResultColumn{}
	var list []string
	for _, name := range sortedPropertyNames(b.Root) {
		prop := b.Root.Properties[name]
		columns[prop.ColumnName] = ResultColumn{Property: prop}
		list = append(list, b.Dialect.Quote(prop.ColumnName))
	}
	return list, columns
}
