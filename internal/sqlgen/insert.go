package sqlgen

import (
	"fmt"
	"strings"

	"github.com/faucetdb/api-maker/internal/apierr"
	"github.com/faucetdb/api-maker/internal/connection"
	"github.com/faucetdb/api-maker/internal/model"
	"github.com/faucetdb/api-maker/internal/operation"
)

// InsertHandler compiles a create operation into a single INSERT returning
// the stored row. Key columns are filled according to their key type and
// the concurrency column is always populated by the engine-side generator.
type InsertHandler struct {
	*Base
	Op operation.Operation
}

// NewInsert constructs an insert handler for op against root. Inserts are
// always single-table.
func NewInsert(root *model.SchemaObject, dialect connection.Dialect, op operation.Operation) *InsertHandler {
	h := &InsertHandler{
		Base: NewBase(root, dialect, ParseSelection("")),
		Op:   op,
	}
	h.SingleTable = true
	return h
}

// Compile validates the store parameters against the schema's key and
// version declarations, then builds the INSERT statement.
func (h *InsertHandler) Compile() (Compiled, error) {
	root := h.Root
	names, err := sortedStoreParamNames(root, h.Op.StoreParams)
	if err != nil {
		return Compiled{}, err
	}

	if key := root.PrimaryKey; key != nil {
		_, present := h.Op.StoreParams[key.Name]
		switch key.KeyType {
		case model.KeyAuto:
			if present {
				return Compiled{}, apierr.BadRequest("key property %q is auto-generated and cannot be supplied", key.Name)
			}
		case model.KeySequence:
			if present {
				return Compiled{}, apierr.BadRequest("key property %q is sequence-generated and cannot be supplied", key.Name)
			}
			if h.Dialect.SequenceExpr(key.SequenceName) == "" {
				return Compiled{}, apierr.SpecError("engine %q does not support sequence keys", root.Engine)
			}
		case model.KeyRequired:
			if !present {
				return Compiled{}, apierr.BadRequest("key property %q is required", key.Name)
			}
		}
	}
	for _, required := range root.Required() {
		if _, present := h.Op.StoreParams[required]; !present {
			return Compiled{}, apierr.BadRequest("required property %q is missing", required)
		}
	}
	if vp := root.ConcurrencyProperty; vp != nil {
		if _, present := h.Op.StoreParams[vp.Name]; present {
			return Compiled{}, apierr.ConcurrencyViolation("version property %q is generated and cannot be supplied", vp.Name)
		}
	}

	var cols, vals []string
	for _, name := range names {
		prop, _ := root.Property(name)
		v, err := prop.ToDB(h.Op.StoreParams[name])
		if err != nil {
			return Compiled{}, apierr.BadRequest("%v", err)
		}
		pname := h.bindParam(prop.Name, v)
		cols = append(cols, h.Dialect.Quote(prop.ColumnName))
		vals = append(vals, h.Dialect.Placeholder(prop, pname))
	}
	if key := root.PrimaryKey; key != nil && key.KeyType == model.KeySequence {
		cols = append(cols, h.Dialect.Quote(key.ColumnName))
		vals = append(vals, h.Dialect.SequenceExpr(key.SequenceName))
	}
	if vp := root.ConcurrencyProperty; vp != nil {
		cols = append(cols, h.Dialect.Quote(vp.ColumnName))
		vals = append(vals, versionExpr(h.Dialect, vp, true))
	}
	if len(cols) == 0 {
		return Compiled{}, apierr.BadRequest("create requires at least one store parameter")
	}

	selectList, columns := fullSelectList(h.Base)
	table := h.TableExpression(root)

	var sql strings.Builder
	sql.WriteString(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(vals, ", ")))

	compiled := Compiled{Params: h.Params, Columns: columns}
	if h.Dialect.SupportsReturning() {
		sql.WriteString(" RETURNING " + strings.Join(selectList, ", "))
		compiled.SQL = sql.String()
		return compiled, nil
	}

	// Without RETURNING the inserted row is re-read by primary key: the
	// driver-reported insert id for auto keys, the caller-supplied value
	// otherwise. With no primary key there is nothing to re-read by and the
	// statement stands alone.
	compiled.SQL = sql.String()
	if key := root.PrimaryKey; key != nil {
		compiled.PostSelectKeyParam = "pk"
		compiled.PostSelectSQL = fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
			strings.Join(selectList, ", "), table,
			h.Dialect.Quote(key.ColumnName),
			h.Dialect.Placeholder(&key.Property, "pk"))
	}
	return compiled, nil
}
