package sqlgen

import (
	"fmt"
	"strings"

	"github.com/faucetdb/api-maker/internal/apierr"
	"github.com/faucetdb/api-maker/internal/model"
)

// SubselectHandler compiles the child query for one one-to-many relation a
// parent select asked for. The child table is filtered to rows whose join
// column falls inside the parent's own row-set:
//
//	SELECT <child cols> FROM <child table>
//	WHERE <child join col> IN (SELECT <parent join col> FROM <parent from> [WHERE ...])
//
// Bind parameters are inherited from the parent, which must be compiled
// before the subselect.
type SubselectHandler struct {
	parent *SelectHandler
	sel    ChildSelect
}

// NewSubselect constructs a subselect handler for one of the parent's child
// selections.
func NewSubselect(parent *SelectHandler, sel ChildSelect) *SubselectHandler {
	return &SubselectHandler{parent: parent, sel: sel}
}

// Compile builds the child statement. A zero-valued Compiled (empty SQL)
// means the selection picked no child columns beyond the join key and the
// relation contributes an empty array to every parent; callers skip
// execution.
func (h *SubselectHandler) Compile() (Compiled, error) {
	child, err := h.sel.Relation.Child()
	if err != nil {
		return Compiled{}, apierr.SpecError("%v", err)
	}

	pattern, err := compilePattern(h.parent.Selection, h.sel.Relation.Name)
	if err != nil {
		return Compiled{}, err
	}

	dialect := h.parent.Dialect
	columns := map[string]ResultColumn{}
	var selectList []string
	matchedBeyondKey := false

	appendColumn := func(prop *model.Property) {
		if _, dup := columns[prop.ColumnName]; dup {
			return
		}
		columns[prop.ColumnName] = ResultColumn{Property: prop}
		selectList = append(selectList, dialect.Quote(prop.ColumnName))
	}

	// The join column is always fetched so rows can be stitched onto their
	// parents; it doesn't count toward the "anything actually selected"
	// test below.
	appendColumn(h.sel.ChildProperty)

	for _, name := range sortedPropertyNames(child) {
		if !pattern.MatchString(name) {
			continue
		}
		prop := child.Properties[name]
		if prop.Name != h.sel.ChildProperty.Name {
			matchedBeyondKey = true
		}
		appendColumn(prop)
	}
	if !matchedBeyondKey {
		return Compiled{}, nil
	}

	var sql strings.Builder
	sql.WriteString("SELECT " + strings.Join(selectList, ", "))
	sql.WriteString(" FROM " + h.parent.TableExpression(child))
	sql.WriteString(fmt.Sprintf(" WHERE %s IN (SELECT %s FROM %s",
		dialect.Quote(h.sel.ChildProperty.ColumnName),
		h.parent.ColumnRef(rootKey, h.sel.ParentProperty),
		h.parent.fromClause,
	))
	if h.parent.whereClause != "" {
		sql.WriteString(" WHERE " + h.parent.whereClause)
	}
	sql.WriteString(")")

	return Compiled{SQL: sql.String(), Params: h.parent.Params, Columns: columns}, nil
}
