package sqlgen

import (
	"fmt"
	"strings"

	"github.com/faucetdb/api-maker/internal/apierr"
	"github.com/faucetdb/api-maker/internal/connection"
	"github.com/faucetdb/api-maker/internal/model"
	"github.com/faucetdb/api-maker/internal/operation"
)

// UpdateHandler compiles an update operation into a single UPDATE returning
// the rows it touched. When the schema carries a concurrency property the
// search condition must include its current value and the SET list rolls it
// forward to a freshly generated one.
type UpdateHandler struct {
	*Base
	Op operation.Operation
}

// NewUpdate constructs an update handler for op against root. Updates are
// always single-table.
func NewUpdate(root *model.SchemaObject, dialect connection.Dialect, op operation.Operation) *UpdateHandler {
	h := &UpdateHandler{
		Base: NewBase(root, dialect, ParseSelection("")),
		Op:   op,
	}
	h.SingleTable = true
	return h
}

// Compile validates the store and query parameters, then builds the UPDATE
// statement.
func (h *UpdateHandler) Compile() (Compiled, error) {
	root := h.Root
	if len(h.Op.StoreParams) == 0 {
		return Compiled{}, apierr.BadRequest("update requires at least one store parameter")
	}
	names, err := sortedStoreParamNames(root, h.Op.StoreParams)
	if err != nil {
		return Compiled{}, err
	}
	if err := checkMutationConcurrency(root, h.Op.QueryParams, h.Op.StoreParams); err != nil {
		return Compiled{}, err
	}

	var sets []string
	for _, name := range names {
		prop, _ := root.Property(name)
		v, err := prop.ToDB(h.Op.StoreParams[name])
		if err != nil {
			return Compiled{}, apierr.BadRequest("%v", err)
		}
		pname := h.bindParam(prop.Name, v)
		sets = append(sets, fmt.Sprintf("%s = %s", h.Dialect.Quote(prop.ColumnName), h.Dialect.Placeholder(prop, pname)))
	}
	if vp := root.ConcurrencyProperty; vp != nil {
		sets = append(sets, fmt.Sprintf("%s = %s", h.Dialect.Quote(vp.ColumnName), versionExpr(h.Dialect, vp, false)))
	}

	where, err := h.BuildSearchCondition(root, rootKey, h.Op.QueryParams)
	if err != nil {
		return Compiled{}, err
	}

	selectList, columns := fullSelectList(h.Base)
	table := h.TableExpression(root)

	var sql strings.Builder
	sql.WriteString(fmt.Sprintf("UPDATE %s SET %s", table, strings.Join(sets, ", ")))
	if where != "" {
		sql.WriteString(" WHERE " + where)
	}

	compiled := Compiled{Params: h.Params, Columns: columns}
	if h.Dialect.SupportsReturning() {
		sql.WriteString(" RETURNING " + strings.Join(selectList, ", "))
		compiled.SQL = sql.String()
		return compiled, nil
	}

	// Without RETURNING the affected rows are found by primary key before
	// the mutation, then re-read afterwards for their fresh values.
	key := root.PrimaryKey
	if key == nil {
		return Compiled{}, apierr.SpecError("update on engine %q requires entity %q to declare a primary key", root.Engine, root.Entity)
	}
	compiled.SQL = sql.String()
	compiled.PreSelectSQL = fmt.Sprintf("SELECT %s FROM %s", h.Dialect.Quote(key.ColumnName), table)
	if where != "" {
		compiled.PreSelectSQL += " WHERE " + where
	}
	compiled.PostSelectKeyParam = "pk"
	compiled.PostSelectSQL = fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		strings.Join(selectList, ", "), table,
		h.Dialect.Quote(key.ColumnName),
		h.Dialect.Placeholder(&key.Property, "pk"))
	return compiled, nil
}
