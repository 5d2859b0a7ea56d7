package sqlgen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/faucetdb/api-maker/internal/apierr"
	"github.com/faucetdb/api-maker/internal/connection"
	"github.com/faucetdb/api-maker/internal/model"
)

// Base holds the state every query handler variant shares: the root schema
// object and dialect, the prefix-alias map, the bound-parameter set under
// construction, and the parsed selection.
type Base struct {
	Root      *model.SchemaObject
	Dialect   connection.Dialect
	Selection Selection

	// SingleTable controls rendering: when true, column references are bare
	// quoted names and bind parameters are named after the property alone;
	// when false, references are alias-qualified and parameters carry the
	// alias prefix.
	SingleTable bool

	// Params accumulates every bound value keyed by the placeholder name
	// handed to Dialect.Placeholder, ready to pass to connection.Connection.
	Params map[string]any

	aliases  map[string]string
	used     map[string]bool
	bound    map[string]bool
}

// NewBase constructs a Base for root, reserving the root's own alias under
// rootKey before any relation aliases are assigned.
func NewBase(root *model.SchemaObject, dialect connection.Dialect, sel Selection) *Base {
	b := &Base{
		Root:      root,
		Dialect:   dialect,
		Selection: sel,
		Params:    map[string]any{},
		aliases:   map[string]string{},
		used:      map[string]bool{},
		bound:     map[string]bool{},
	}
	b.assignAlias(rootKey, root.Entity)
	return b
}

// assignAlias reserves and returns a short alias for key (rootKey or a
// relation name), trying entity[:1], entity[:2], ... until it finds one that
// is neither already in use nor a SQL reserved word.
func (b *Base) assignAlias(key, entityName string) string {
	if alias, ok := b.aliases[key]; ok {
		return alias
	}
	runes := []rune(strings.ToLower(entityName))
	if len(runes) == 0 {
		runes = []rune("t")
	}
	var candidate string
	for n := 1; n <= len(runes); n++ {
		candidate = string(runes[:n])
		if !b.used[candidate] && !ReservedWords[strings.ToUpper(candidate)] {
			break
		}
		candidate = ""
	}
	if candidate == "" {
		for i := 1; ; i++ {
			candidate = fmt.Sprintf("%s%d", string(runes[:1]), i)
			if !b.used[candidate] {
				break
			}
		}
	}
	b.used[candidate] = true
	b.aliases[key] = candidate
	return candidate
}

// Alias returns the alias reserved for key, panicking if none was ever
// assigned: a programmer error, since every handler must assignAlias before
// referencing an entity.
func (b *Base) Alias(key string) string {
	alias, ok := b.aliases[key]
	if !ok {
		panic(fmt.Sprintf("sqlgen: no alias assigned for %q", key))
	}
	return alias
}

// HasAlias reports whether an alias was assigned for key.
func (b *Base) HasAlias(key string) bool {
	_, ok := b.aliases[key]
	return ok
}

// ColumnRef renders a quoted column reference, alias-qualified unless the
// handler is in single-table mode.
func (b *Base) ColumnRef(aliasKey string, prop *model.Property) string {
	if b.SingleTable {
		return b.Dialect.Quote(prop.ColumnName)
	}
	return fmt.Sprintf("%s.%s", b.Alias(aliasKey), b.Dialect.Quote(prop.ColumnName))
}

// ColumnLabel is the result-set label a selected column is aliased to: the
// bare column name in single-table mode, alias_column otherwise.
func (b *Base) ColumnLabel(aliasKey string, prop *model.Property) string {
	if b.SingleTable {
		return prop.ColumnName
	}
	return fmt.Sprintf("%s_%s", b.Alias(aliasKey), prop.ColumnName)
}

// paramBase is the stem bind parameters for a property are named after:
// the property name alone in single-table mode, alias_property otherwise.
func (b *Base) paramBase(aliasKey string, prop *model.Property) string {
	if b.SingleTable {
		return prop.Name
	}
	return fmt.Sprintf("%s_%s", b.Alias(aliasKey), prop.Name)
}

// bindParam records value under name, appending a numeric disambiguator if
// the name was already bound (the same column filtered twice).
func (b *Base) bindParam(name string, value any) string {
	final := name
	for i := 1; b.bound[final]; i++ {
		final = fmt.Sprintf("%s_%d", name, i)
	}
	b.bound[final] = true
	b.Params[final] = value
	return final
}

// TableExpression renders the database-qualified, quoted table a schema
// object maps to.
func (b *Base) TableExpression(s *model.SchemaObject) string {
	table := b.Dialect.Quote(s.TableName)
	if s.Database != "" {
		return b.Dialect.Quote(s.Database) + "." + table
	}
	return table
}

// BuildSearchCondition compiles the non-dotted entries of queryParams into a
// SQL boolean expression ANDing every entry together, resolving each name
// against target's own properties. Dotted "relation.property" keys are
// rejected here: only the select handler supports relation-scoped filters
// and it resolves them itself before calling this for the remaining
// root-level keys. Returns "" when queryParams is empty.
func (b *Base) BuildSearchCondition(target *model.SchemaObject, targetKey string, queryParams map[string]any) (string, error) {
	names := make([]string, 0, len(queryParams))
	for name := range queryParams {
		names = append(names, name)
	}
	sort.Strings(names)

	var clauses []string
	for _, name := range names {
		if strings.Contains(name, ".") {
			return "", apierr.BadRequest("relation-scoped filter %q is only supported on read operations", name)
		}
		prop, ok := target.Property(name)
		if !ok {
			return "", apierr.SpecError("unknown property %q on entity %q", name, target.Entity)
		}
		clause, err := b.RenderOperand(prop, targetKey, fmt.Sprint(queryParams[name]))
		if err != nil {
			return "", err
		}
		clauses = append(clauses, clause)
	}
	return strings.Join(clauses, " AND "), nil
}

// RenderOperand parses raw and emits the comparison SQL for one property,
// binding one or more parameters as it goes. Multi-valued operators get
// suffixed parameter names: _1/_2 for the bounds of a BETWEEN, _<idx> for
// the members of an IN list.
func (b *Base) RenderOperand(prop *model.Property, aliasKey, raw string) (string, error) {
	operand, err := ParseOperand(raw)
	if err != nil {
		return "", err
	}
	col := b.ColumnRef(aliasKey, prop)
	base := b.paramBase(aliasKey, prop)

	switch operand.Kind {
	case OpIn, OpNotIn:
		placeholders := make([]string, 0, len(operand.Args))
		for i, arg := range operand.Args {
			v, err := prop.ToDB(arg)
			if err != nil {
				return "", apierr.BadRequest("%v", err)
			}
			pname := b.bindParam(fmt.Sprintf("%s_%d", base, i), v)
			placeholders = append(placeholders, b.Dialect.Placeholder(prop, pname))
		}
		kw := "IN"
		if operand.Kind == OpNotIn {
			kw = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", col, kw, strings.Join(placeholders, ", ")), nil

	case OpBetween, OpNotBetween:
		loV, err := prop.ToDB(operand.Args[0])
		if err != nil {
			return "", apierr.BadRequest("%v", err)
		}
		hiV, err := prop.ToDB(operand.Args[1])
		if err != nil {
			return "", apierr.BadRequest("%v", err)
		}
		lo := b.bindParam(base+"_1", loV)
		hi := b.bindParam(base+"_2", hiV)
		kw := "BETWEEN"
		if operand.Kind == OpNotBetween {
			kw = "NOT BETWEEN"
		}
		return fmt.Sprintf("%s %s %s AND %s", col, kw, b.Dialect.Placeholder(prop, lo), b.Dialect.Placeholder(prop, hi)), nil

	default:
		opSym, err := operand.Kind.sqlOperator()
		if err != nil {
			return "", apierr.BadRequest("%v", err)
		}
		v, err := prop.ToDB(operand.Args[0])
		if err != nil {
			return "", apierr.BadRequest("%v", err)
		}
		pname := b.bindParam(base, v)
		return fmt.Sprintf("%s %s %s", col, opSym, b.Dialect.Placeholder(prop, pname)), nil
	}
}

// HasNonEquality reports whether queryParams contains any operator other
// than implicit or explicit equality. Mutating actions against a schema
// with a concurrency property reject such filters.
func HasNonEquality(queryParams map[string]any) (bool, error) {
	for _, v := range queryParams {
		operand, err := ParseOperand(fmt.Sprint(v))
		if err != nil {
			return false, err
		}
		if !operand.Equality() {
			return true, nil
		}
	}
	return false, nil
}
