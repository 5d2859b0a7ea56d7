package sqlgen

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/faucetdb/api-maker/internal/apierr"
	"github.com/faucetdb/api-maker/internal/connection"
	"github.com/faucetdb/api-maker/internal/model"
	"github.com/faucetdb/api-maker/internal/operation"
)

// ChildSelect names a one-to-many relation the parent query selected, along
// with the parent-side join property whose values stitch child rows back
// onto parent records.
type ChildSelect struct {
	Relation       *model.Relation
	ParentProperty *model.Property
	ChildProperty  *model.Property
}

// SelectHandler compiles a read operation into a single SELECT, joining
// one-to-one relations referenced by the selection or the search condition
// and recording which one-to-many relations need a follow-up subselect.
type SelectHandler struct {
	*Base
	Op operation.Operation

	children []ChildSelect

	// retained after Compile for subselect construction
	fromClause  string
	whereClause string
}

// NewSelect constructs a select handler for op against root.
func NewSelect(root *model.SchemaObject, dialect connection.Dialect, op operation.Operation) *SelectHandler {
	h := &SelectHandler{
		Base: NewBase(root, dialect, ParseSelection(op.Metadata.Properties)),
		Op:   op,
	}
	h.SingleTable = h.isSingleTable()
	return h
}

// isSingleTable reports whether the statement can omit aliases and joins:
// the selection names no relation and no query parameter uses a dotted
// relation path.
func (h *SelectHandler) isSingleTable() bool {
	if hasRelationToken(h.Op.Metadata.Properties) {
		return false
	}
	for name := range h.Op.QueryParams {
		if strings.Contains(name, ".") {
			return false
		}
	}
	return true
}

// ChildSelects returns the one-to-many relations the selection asked for,
// valid after Compile.
func (h *SelectHandler) ChildSelects() []ChildSelect {
	return h.children
}

// Compile builds the SELECT statement, its bound parameters, and the
// result-column map.
func (h *SelectHandler) Compile() (Compiled, error) {
	rootPattern, err := compilePattern(h.Selection, rootKey)
	if err != nil {
		return Compiled{}, err
	}

	columns := map[string]ResultColumn{}
	var selectList []string

	appendColumn := func(aliasKey, relName string, prop *model.Property) {
		label := h.ColumnLabel(aliasKey, prop)
		if _, dup := columns[label]; dup {
			return
		}
		columns[label] = ResultColumn{Property: prop, Relation: relName}
		if h.SingleTable {
			selectList = append(selectList, h.ColumnRef(aliasKey, prop))
			return
		}
		selectList = append(selectList, fmt.Sprintf("%s AS %s", h.ColumnRef(aliasKey, prop), h.Dialect.Quote(label)))
	}

	for _, name := range sortedPropertyNames(h.Root) {
		if rootPattern.MatchString(name) {
			appendColumn(rootKey, "", h.Root.Properties[name])
		}
	}

	// Relations named in the selection: one-to-one targets join into this
	// statement, one-to-many targets are recorded for a follow-up subselect
	// and only contribute their parent-side join column here.
	type joinSpec struct {
		rel        *model.Relation
		child      *model.SchemaObject
		parent     *model.Property
		childProp  *model.Property
		fromFilter bool
	}
	joins := map[string]joinSpec{}

	relNames := h.Selection.Relations()
	sort.Strings(relNames)
	for _, relName := range relNames {
		rel, ok := h.Root.Relation(relName)
		if !ok {
			return Compiled{}, apierr.SpecError("unknown relation %q on entity %q", relName, h.Root.Entity)
		}
		child, err := rel.Child()
		if err != nil {
			return Compiled{}, apierr.SpecError("%v", err)
		}
		parentProp, childProp, err := rel.JoinProperties(h.Root)
		if err != nil {
			return Compiled{}, apierr.SpecError("%v", err)
		}

		if rel.Cardinality == model.CardinalityOneToMany {
			appendColumn(rootKey, "", parentProp)
			h.children = append(h.children, ChildSelect{Relation: rel, ParentProperty: parentProp, ChildProperty: childProp})
			continue
		}

		childPattern, err := compilePattern(h.Selection, relName)
		if err != nil {
			return Compiled{}, err
		}
		h.assignAlias(relName, child.Entity)
		joins[relName] = joinSpec{rel: rel, child: child, parent: parentProp, childProp: childProp}
		for _, name := range sortedPropertyNames(child) {
			if childPattern.MatchString(name) {
				appendColumn(relName, relName, child.Properties[name])
			}
		}
	}

	// Partition query params into root-level and relation-scoped filters.
	rootParams := map[string]any{}
	type dottedFilter struct {
		relName  string
		propName string
		raw      string
	}
	var dotted []dottedFilter
	dottedNames := make([]string, 0)
	for name := range h.Op.QueryParams {
		if idx := strings.Index(name, "."); idx >= 0 {
			dottedNames = append(dottedNames, name)
			continue
		}
		rootParams[name] = h.Op.QueryParams[name]
	}
	sort.Strings(dottedNames)
	for _, name := range dottedNames {
		idx := strings.Index(name, ".")
		dotted = append(dotted, dottedFilter{
			relName:  name[:idx],
			propName: name[idx+1:],
			raw:      fmt.Sprint(h.Op.QueryParams[name]),
		})
	}

	var conditions []string
	rootCond, err := h.BuildSearchCondition(h.Root, rootKey, rootParams)
	if err != nil {
		return Compiled{}, err
	}
	if rootCond != "" {
		conditions = append(conditions, rootCond)
	}

	for _, f := range dotted {
		rel, ok := h.Root.Relation(f.relName)
		if !ok {
			return Compiled{}, apierr.SpecError("unknown relation %q on entity %q", f.relName, h.Root.Entity)
		}
		child, err := rel.Child()
		if err != nil {
			return Compiled{}, apierr.SpecError("%v", err)
		}
		prop, ok := child.Property(f.propName)
		if !ok {
			return Compiled{}, apierr.SpecError("unknown property %q on entity %q", f.propName, child.Entity)
		}
		parentProp, childProp, err := rel.JoinProperties(h.Root)
		if err != nil {
			return Compiled{}, apierr.SpecError("%v", err)
		}

		if rel.Cardinality == model.CardinalityOneToOne {
			// Filtering through a one-to-one relation joins the child table
			// into the statement, reusing the selection's join when present.
			h.assignAlias(f.relName, child.Entity)
			j, present := joins[f.relName]
			if !present {
				j = joinSpec{rel: rel, child: child, parent: parentProp, childProp: childProp}
			}
			j.fromFilter = true
			joins[f.relName] = j
			clause, err := h.RenderOperand(prop, f.relName, f.raw)
			if err != nil {
				return Compiled{}, err
			}
			conditions = append(conditions, clause)
			continue
		}

		// One-to-many filters become an EXISTS subquery so matching several
		// child rows can't duplicate the parent in the result set.
		h.assignAlias(f.relName, child.Entity)
		inner := h.Alias(f.relName)
		clause, err := h.RenderOperand(prop, f.relName, f.raw)
		if err != nil {
			return Compiled{}, err
		}
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM %s AS %s WHERE %s.%s = %s AND %s)",
			h.TableExpression(child), inner,
			inner, h.Dialect.Quote(childProp.ColumnName),
			h.ColumnRef(rootKey, parentProp),
			clause,
		))
	}

	// FROM clause with the joins the selection or the filters demanded. In
	// count mode only filter-required joins survive, so COUNT(*) reflects
	// parent rows rather than join-expanded ones.
	buildFrom := func(filterJoinsOnly bool) string {
		var from strings.Builder
		from.WriteString(h.TableExpression(h.Root))
		if h.SingleTable {
			return from.String()
		}
		from.WriteString(" AS " + h.Alias(rootKey))
		joinNames := make([]string, 0, len(joins))
		for name := range joins {
			if filterJoinsOnly && !joins[name].fromFilter {
				continue
			}
			joinNames = append(joinNames, name)
		}
		sort.Strings(joinNames)
		for _, name := range joinNames {
			j := joins[name]
			kind := j.rel.JoinKind
			if kind == "" {
				kind = model.JoinLeft
			}
			from.WriteString(fmt.Sprintf(" %s JOIN %s AS %s ON %s = %s.%s",
				kind,
				h.TableExpression(j.child), h.Alias(name),
				h.ColumnRef(rootKey, j.parent),
				h.Alias(name), h.Dialect.Quote(j.childProp.ColumnName),
			))
		}
		return from.String()
	}
	h.fromClause = buildFrom(false)
	h.whereClause = strings.Join(conditions, " AND ")

	if h.Op.Metadata.Count {
		h.fromClause = buildFrom(true)
		return h.compileCount()
	}

	if len(selectList) == 0 {
		return Compiled{}, apierr.BadRequest("selection %q matches no properties on entity %q", h.Op.Metadata.Properties, h.Root.Entity)
	}

	var sql strings.Builder
	sql.WriteString("SELECT " + strings.Join(selectList, ", "))
	sql.WriteString(" FROM " + h.fromClause)
	if h.whereClause != "" {
		sql.WriteString(" WHERE " + h.whereClause)
	}

	return Compiled{SQL: sql.String(), Params: h.Params, Columns: columns}, nil
}

// compileCount emits the COUNT(*) form: the select list collapses to a
// single counter and the result is one record. Joins stay only where a
// filter requires them, so the count reflects parent rows.
func (h *SelectHandler) compileCount() (Compiled, error) {
	countProp := &model.Property{Name: "count", ColumnName: "count", APIType: model.TypeInteger, ColumnType: model.TypeInteger}

	var sql strings.Builder
	sql.WriteString("SELECT COUNT(*) AS " + h.Dialect.Quote("count"))
	sql.WriteString(" FROM " + h.fromClause)
	if h.whereClause != "" {
		sql.WriteString(" WHERE " + h.whereClause)
	}

	h.children = nil
	return Compiled{
		SQL:     sql.String(),
		Params:  h.Params,
		Columns: map[string]ResultColumn{"count": {Property: countProp}},
	}, nil
}

func compilePattern(sel Selection, key string) (*regexp.Regexp, error) {
	pattern, ok := sel.Pattern(key)
	if !ok {
		pattern = ".*"
	}
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, apierr.BadRequest("invalid selector pattern %q: %v", pattern, err)
	}
	return re, nil
}

func sortedPropertyNames(s *model.SchemaObject) []string {
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
