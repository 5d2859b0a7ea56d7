package sqlgen

import (
	"github.com/faucetdb/api-maker/internal/model"
)

// ResultColumn describes one column of a compiled statement's result set:
// the property it carries and where its converted value lands in the
// marshalled record. Relation is empty for root-entity columns and holds the
// relation name for columns pulled in through a one-to-one join, which
// Marshal nests under that name.
type ResultColumn struct {
	Property *model.Property
	Relation string
}

// Compiled is what every query handler produces: parameterized SQL text, the
// bound-value map the connection executes it with, and the result-column map
// used to translate scanned rows back onto API property names.
type Compiled struct {
	SQL     string
	Params  map[string]any
	Columns map[string]ResultColumn

	// PreSelectSQL is set for UPDATE/DELETE against a dialect without native
	// RETURNING support (MySQL): a SELECT sharing the mutation's WHERE
	// clause, run inside the same transaction before the mutation so the
	// affected rows can be reported back.
	PreSelectSQL string

	// PostSelectSQL is set alongside PreSelectSQL for statements that must
	// re-read rows after the mutation (INSERT and UPDATE on MySQL). It
	// selects one row by primary key through the single bind parameter named
	// PostSelectKeyParam.
	PostSelectSQL      string
	PostSelectKeyParam string
}

// Marshal converts one scanned row into an API-shaped record, running each
// recognized column through its property's ToAPI conversion. Columns the
// statement didn't declare are dropped.
func (c Compiled) Marshal(row map[string]any) (map[string]any, error) {
	out := map[string]any{}
	for label, raw := range row {
		rc, ok := c.Columns[label]
		if !ok {
			continue
		}
		v, err := rc.Property.ToAPI(raw)
		if err != nil {
			return nil, err
		}
		if rc.Relation == "" {
			out[rc.Property.Name] = v
			continue
		}
		nested, ok := out[rc.Relation].(map[string]any)
		if !ok {
			nested = map[string]any{}
			out[rc.Relation] = nested
		}
		nested[rc.Property.Name] = v
	}
	return out, nil
}

// Handler compiles one operation, against one schema object and dialect,
// into executable SQL. The five variants (select, subselect, insert, update,
// delete) share Base by composition.
type Handler interface {
	Compile() (Compiled, error)
}
