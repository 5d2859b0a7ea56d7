// Package model holds the typed, immutable data model derived from an
// augmented OpenAPI document: schema objects, properties, keys, version
// columns and relations. A Model is built once at startup and never mutated
// afterward; Operations consume it read-only.
package model

import "fmt"

// Engine identifies a supported relational database backend.
type Engine string

const (
	EnginePostgres Engine = "postgres"
	EngineMySQL    Engine = "mysql"
	EngineOracle   Engine = "oracle"
)

// ValidEngine reports whether e is one of the three supported engines.
func ValidEngine(e string) bool {
	switch Engine(e) {
	case EnginePostgres, EngineMySQL, EngineOracle:
		return true
	}
	return false
}

// APIType enumerates the scalar types recognized on the API surface.
type APIType string

const (
	TypeString   APIType = "string"
	TypeInteger  APIType = "integer"
	TypeNumber   APIType = "number"
	TypeBoolean  APIType = "boolean"
	TypeDate     APIType = "date"
	TypeDateTime APIType = "date-time"
	TypeTime     APIType = "time"
)

// KeyType enumerates how a primary key's value is produced.
type KeyType string

const (
	KeyRequired KeyType = "required"
	KeyAuto     KeyType = "auto"
	KeySequence KeyType = "sequence"
)

// VersionType enumerates how a concurrency token is generated.
type VersionType string

const (
	VersionUUID      VersionType = "uuid"
	VersionTimestamp VersionType = "timestamp"
	VersionSerial    VersionType = "serial"
)

// Cardinality describes the shape of a Relation.
type Cardinality string

const (
	CardinalityOneToOne  Cardinality = "1:1"
	CardinalityOneToMany Cardinality = "1:m"
)

// Property is a scalar field of an entity, with an API-facing name/type and
// a (possibly different) database column name/type.
type Property struct {
	Name       string
	ColumnName string
	APIType    APIType
	ColumnType APIType
	MaxLength  *int
	MinLength  *int
	Pattern    string
	Required   bool
}

// Key specializes a Property with primary-key semantics.
type Key struct {
	Property
	KeyType      KeyType
	SequenceName string
}

// VersionProperty specializes a Property with optimistic-concurrency
// semantics.
type VersionProperty struct {
	Property
	VersionType VersionType
}

// Relation is a named association from one SchemaObject to another. The
// child is resolved lazily, by name, through the owning Model (never by
// direct object reference) so that cyclic relation graphs between schema
// objects never become Go reference cycles.
type Relation struct {
	Name            string
	Cardinality     Cardinality
	ChildEntityName string
	ParentProperty  string
	ChildProperty   string
	// JoinKind controls whether the generated join is INNER or LEFT. It is
	// configurable per relation via the x-am-join extension and defaults to
	// LEFT.
	JoinKind JoinKind

	model *Model // set by Model.addSchemaObject; used to resolve Child()
}

// JoinKind selects the SQL join type emitted for a relation.
type JoinKind string

const (
	JoinInner JoinKind = "INNER"
	JoinLeft  JoinKind = "LEFT"
)

// Child resolves the relation's target SchemaObject against the owning
// Model. It is safe to call at any time after the Model finishes loading,
// including from within the target's own relations (breaking cycles that
// eager pointer resolution would otherwise create).
func (r *Relation) Child() (*SchemaObject, error) {
	if r.model == nil {
		return nil, fmt.Errorf("relation %q is not bound to a model", r.Name)
	}
	return r.model.SchemaObject(r.ChildEntityName)
}

// SchemaObject is the typed representation of one entity declared in the
// augmented OpenAPI document.
type SchemaObject struct {
	Entity              string
	Engine              Engine
	Database            string
	TableName           string
	Properties          map[string]*Property
	Relations           map[string]*Relation
	PrimaryKey          *Key
	ConcurrencyProperty *VersionProperty
}

// Required returns the declared-required property names, in no particular
// order.
func (s *SchemaObject) Required() []string {
	var out []string
	for name, p := range s.Properties {
		if p.Required {
			out = append(out, name)
		}
	}
	return out
}

// Property looks up a property by API name.
func (s *SchemaObject) Property(name string) (*Property, bool) {
	p, ok := s.Properties[name]
	return p, ok
}

// Relation looks up a relation by name.
func (s *SchemaObject) Relation(name string) (*Relation, bool) {
	r, ok := s.Relations[name]
	return r, ok
}

// OneToManyRelations returns the subset of Relations with 1:m cardinality.
func (s *SchemaObject) OneToManyRelations() []*Relation {
	var out []*Relation
	for _, r := range s.Relations {
		if r.Cardinality == CardinalityOneToMany {
			out = append(out, r)
		}
	}
	return out
}

// Model is the immutable collection of all SchemaObjects parsed from one
// augmented OpenAPI document.
type Model struct {
	schemas map[string]*SchemaObject
}

// NewModel constructs a Model from a set of already-built schema objects,
// binding each relation back to the model for lazy child resolution.
func NewModel(schemas map[string]*SchemaObject) *Model {
	m := &Model{schemas: schemas}
	for _, s := range schemas {
		for _, r := range s.Relations {
			r.model = m
		}
	}
	return m
}

// SchemaObject returns the named entity, normalizing the lookup key the
// same way the factory normalizes declaration names (lowercase, underscores
// to dashes).
func (m *Model) SchemaObject(entity string) (*SchemaObject, error) {
	key := NormalizeName(entity)
	s, ok := m.schemas[key]
	if !ok {
		return nil, fmt.Errorf("unknown entity %q", entity)
	}
	return s, nil
}

// SchemaObjects returns every entity in the model, for callers (GatewaySpec)
// that must enumerate the whole surface.
func (m *Model) SchemaObjects() []*SchemaObject {
	out := make([]*SchemaObject, 0, len(m.schemas))
	for _, s := range m.schemas {
		out = append(out, s)
	}
	return out
}
