package sqlgen

import (
	"fmt"
	"strings"

	"github.com/faucetdb/api-maker/internal/connection"
	"github.com/faucetdb/api-maker/internal/model"
	"github.com/faucetdb/api-maker/internal/operation"
)

// DeleteHandler compiles a delete operation into a single DELETE returning
// the removed rows, under the same concurrency rules as update.
type DeleteHandler struct {
	*Base
	Op operation.Operation
}

// NewDelete constructs a delete handler for op against root.
func NewDelete(root *model.SchemaObject, dialect connection.Dialect, op operation.Operation) *DeleteHandler {
	h := &DeleteHandler{
		Base: NewBase(root, dialect, ParseSelection("")),
		Op:   op,
	}
	h.SingleTable = true
	return h
}

// Compile validates the query parameters and builds the DELETE statement.
func (h *DeleteHandler) Compile() (Compiled, error) {
	root := h.Root
	if err := checkMutationConcurrency(root, h.Op.QueryParams, nil); err != nil {
		return Compiled{}, err
	}

	where, err := h.BuildSearchCondition(root, rootKey, h.Op.QueryParams)
	if err != nil {
		return Compiled{}, err
	}

	selectList, columns := fullSelectList(h.Base)
	table := h.TableExpression(root)

	var sql strings.Builder
	sql.WriteString("DELETE FROM " + table)
	if where != "" {
		sql.WriteString(" WHERE " + where)
	}

	compiled := Compiled{Params: h.Params, Columns: columns}
	if h.Dialect.SupportsReturning() {
		sql.WriteString(" RETURNING " + strings.Join(selectList, ", "))
		compiled.SQL = sql.String()
		return compiled, nil
	}

	// Without RETURNING the rows are captured before deletion; they are the
	// rows reported back to the caller.
	compiled.SQL = sql.String()
	compiled.PreSelectSQL = fmt.Sprintf("SELECT %s FROM %s", strings.Join(selectList, ", "), table)
	if where != "" {
		compiled.PreSelectSQL += " WHERE " + where
	}
	return compiled, nil
}
