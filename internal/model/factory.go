package model

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/faucetdb/api-maker/internal/apierr"
)

// Vendor extension names recognized on schema objects and properties.
const (
	extEngine    = "x-am-engine"
	extDatabase  = "x-am-database"
	extTable     = "x-am-table"
	extColumn    = "x-am-column-name"
	extColType   = "x-am-column-type"
	extPK        = "x-am-primary-key"
	extSeqName   = "x-am-sequence-name"
	extVersion   = "x-am-version"
	extSchemaObj = "x-am-schema-object"
	extCard      = "x-am-cardinality"
	extParentKey = "x-am-parent-property"
	extChildKey  = "x-am-child-property"
	extJoin      = "x-am-join" // "inner"|"left"; overrides the LEFT default
)

// NormalizeName lowercases an entity/schema name and replaces underscores
// with dashes, so that "invoice_line" and "InvoiceLine" resolve to the same
// key.
func NormalizeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "_", "-")
}

// Factory loads augmented OpenAPI documents into a Model.
type Factory struct{}

// NewFactory constructs a Factory. It holds no state: the resulting Model
// is the only artifact a caller needs to keep.
func NewFactory() *Factory { return &Factory{} }

// Load reads an augmented OpenAPI document (YAML or JSON) from r and builds
// an immutable Model. Any declaration invariant violation produces a
// *apierr.Error of KindSpecError.
func (f *Factory) Load(ctx context.Context, r io.Reader) (*Model, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindSpecError, err, "reading spec document")
	}

	// Decode via yaml.v3 first (it also accepts JSON, which is a YAML
	// subset) into a generic tree, then re-marshal to JSON so kin-openapi's
	// loader, which only speaks JSON internally, can parse it and resolve
	// $ref pointers.
	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, apierr.Wrap(apierr.KindSpecError, err, "parsing spec document")
	}
	jsonBytes, err := json.Marshal(convertYAMLMaps(generic))
	if err != nil {
		return nil, apierr.Wrap(apierr.KindSpecError, err, "normalizing spec document")
	}

	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false
	doc, err := loader.LoadFromData(jsonBytes)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindSpecError, err, "loading OpenAPI document")
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, apierr.Wrap(apierr.KindSpecError, err, "invalid OpenAPI document")
	}
	if doc.Components == nil {
		return nil, apierr.SpecError("spec has no components.schemas")
	}

	schemas := make(map[string]*SchemaObject, len(doc.Components.Schemas))
	for rawName, ref := range doc.Components.Schemas {
		if ref == nil || ref.Value == nil {
			continue
		}
		obj, err := f.buildSchemaObject(rawName, ref.Value)
		if err != nil {
			return nil, err
		}
		key := NormalizeName(obj.Entity)
		if _, exists := schemas[key]; exists {
			return nil, apierr.SpecError("duplicate entity name %q after normalization", obj.Entity)
		}
		schemas[key] = obj
	}

	model := NewModel(schemas)

	// Second pass: resolve relation targets eagerly enough to fail fast on a
	// bad reference, without keeping the pointer (Child() re-resolves by
	// name on every call).
	for _, s := range model.SchemaObjects() {
		for _, r := range s.Relations {
			if _, err := r.Child(); err != nil {
				return nil, apierr.SpecError("entity %q: relation %q references unknown entity %q", s.Entity, r.Name, r.ChildEntityName)
			}
		}
	}

	return model, nil
}

func (f *Factory) buildSchemaObject(rawName string, schema *openapi3.Schema) (*SchemaObject, error) {
	obj := &SchemaObject{
		Entity:     rawName,
		TableName:  rawName,
		Properties: map[string]*Property{},
		Relations:  map[string]*Relation{},
	}

	if v, ok := stringExt(schema.Extensions, extEngine); ok {
		if !ValidEngine(v) {
			return nil, apierr.SpecError("entity %q: unknown engine %q", rawName, v)
		}
		obj.Engine = Engine(v)
	} else {
		return nil, apierr.SpecError("entity %q: missing required %s extension", rawName, extEngine)
	}
	if v, ok := stringExt(schema.Extensions, extDatabase); ok {
		obj.Database = v
	}
	if v, ok := stringExt(schema.Extensions, extTable); ok {
		obj.TableName = v
	}

	for propName, propRef := range schema.Properties {
		if propRef == nil || propRef.Value == nil {
			continue
		}
		ps := propRef.Value

		// A property carrying x-am-schema-object is a Relation, not a
		// scalar Property.
		if childName, ok := stringExt(ps.Extensions, extSchemaObj); ok {
			rel, err := f.buildRelation(rawName, propName, childName, ps)
			if err != nil {
				return nil, err
			}
			if err := f.addRelation(obj, rawName, propName, rel); err != nil {
				return nil, err
			}
			continue
		}

		prop, err := f.buildProperty(rawName, propName, ps)
		if err != nil {
			return nil, err
		}
		for _, required := range schema.Required {
			if required == propName {
				prop.Required = true
			}
		}

		if pkKind, ok := stringExt(ps.Extensions, extPK); ok {
			key, err := f.buildKey(rawName, propName, *prop, pkKind, ps)
			if err != nil {
				return nil, err
			}
			if obj.PrimaryKey != nil {
				return nil, apierr.SpecError("entity %q: more than one primary key declared", rawName)
			}
			obj.PrimaryKey = key
		}
		if verKind, ok := stringExt(ps.Extensions, extVersion); ok {
			switch VersionType(verKind) {
			case VersionUUID, VersionTimestamp, VersionSerial:
			default:
				return nil, apierr.SpecError("entity %q: unknown version type %q", rawName, verKind)
			}
			if obj.ConcurrencyProperty != nil {
				return nil, apierr.SpecError("entity %q: more than one version property declared", rawName)
			}
			obj.ConcurrencyProperty = &VersionProperty{Property: *prop, VersionType: VersionType(verKind)}
		}

		if err := f.addProperty(obj, rawName, propName, prop); err != nil {
			return nil, err
		}
	}

	return obj, nil
}

// addRelation inserts a relation, rejecting any name already taken by a
// property or another relation. Checking both maps keeps the collision
// invariant independent of the order properties are walked in.
func (f *Factory) addRelation(obj *SchemaObject, entity, name string, rel *Relation) error {
	if _, clash := obj.Properties[name]; clash {
		return apierr.SpecError("entity %q: relation name %q collides with a property", entity, name)
	}
	if _, dup := obj.Relations[name]; dup {
		return apierr.SpecError("entity %q: duplicate relation %q", entity, name)
	}
	obj.Relations[name] = rel
	return nil
}

// addProperty inserts a scalar property under the same combined-name-set
// rule as addRelation.
func (f *Factory) addProperty(obj *SchemaObject, entity, name string, prop *Property) error {
	if _, clash := obj.Relations[name]; clash {
		return apierr.SpecError("entity %q: relation name %q collides with a property", entity, name)
	}
	if _, dup := obj.Properties[name]; dup {
		return apierr.SpecError("entity %q: duplicate property %q", entity, name)
	}
	obj.Properties[name] = prop
	return nil
}

func (f *Factory) buildProperty(entity, name string, ps *openapi3.Schema) (*Property, error) {
	apiType, err := inferAPIType(ps)
	if err != nil {
		return nil, apierr.SpecError("entity %q property %q: %v", entity, name, err)
	}
	colType := apiType
	if v, ok := stringExt(ps.Extensions, extColType); ok {
		ct := APIType(v)
		switch ct {
		case TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeDate, TypeDateTime, TypeTime:
			colType = ct
		default:
			return nil, apierr.SpecError("entity %q property %q: unknown column type %q", entity, name, v)
		}
	}
	colName := name
	if v, ok := stringExt(ps.Extensions, extColumn); ok {
		colName = v
	}

	p := &Property{
		Name:       name,
		ColumnName: colName,
		APIType:    apiType,
		ColumnType: colType,
	}
	if apiType == TypeString {
		if ps.MaxLength != nil {
			v := int(*ps.MaxLength)
			p.MaxLength = &v
		}
		if ps.MinLength > 0 {
			v := int(ps.MinLength)
			p.MinLength = &v
		}
		p.Pattern = ps.Pattern
	}
	return p, nil
}

func (f *Factory) buildKey(entity, name string, base Property, kind string, ps *openapi3.Schema) (*Key, error) {
	kt := KeyType(kind)
	switch kt {
	case KeyRequired, KeyAuto, KeySequence:
	default:
		return nil, apierr.SpecError("entity %q key %q: unknown key type %q", entity, name, kind)
	}
	k := &Key{Property: base, KeyType: kt}
	if kt == KeySequence {
		seq, ok := stringExt(ps.Extensions, extSeqName)
		if !ok || seq == "" {
			return nil, apierr.SpecError("entity %q key %q: sequence key requires %s", entity, name, extSeqName)
		}
		k.SequenceName = seq
	}
	return k, nil
}

func (f *Factory) buildRelation(entity, propName, childEntity string, ps *openapi3.Schema) (*Relation, error) {
	cardStr, ok := stringExt(ps.Extensions, extCard)
	if !ok {
		return nil, apierr.SpecError("entity %q relation %q: missing %s", entity, propName, extCard)
	}
	card := Cardinality(cardStr)
	switch card {
	case CardinalityOneToOne, CardinalityOneToMany:
	default:
		return nil, apierr.SpecError("entity %q relation %q: inconsistent cardinality marker %q", entity, propName, cardStr)
	}

	rel := &Relation{
		Name:            propName,
		Cardinality:     card,
		ChildEntityName: childEntity,
		JoinKind:        JoinLeft,
	}
	if v, ok := stringExt(ps.Extensions, extParentKey); ok {
		rel.ParentProperty = v
	}
	if v, ok := stringExt(ps.Extensions, extChildKey); ok {
		rel.ChildProperty = v
	}
	if v, ok := stringExt(ps.Extensions, extJoin); ok {
		switch strings.ToUpper(v) {
		case string(JoinInner):
			rel.JoinKind = JoinInner
		case string(JoinLeft):
			rel.JoinKind = JoinLeft
		default:
			return nil, apierr.SpecError("entity %q relation %q: unknown join kind %q", entity, propName, v)
		}
	}
	return rel, nil
}

// inferAPIType derives an APIType from a plain OpenAPI type/format pair, so
// a document without x-am-column-type overrides still loads.
func inferAPIType(ps *openapi3.Schema) (APIType, error) {
	if ps.Type == nil || len(*ps.Type) == 0 {
		return "", fmt.Errorf("property has no type")
	}
	t := (*ps.Type)[0]
	switch t {
	case "string":
		switch ps.Format {
		case "date":
			return TypeDate, nil
		case "date-time":
			return TypeDateTime, nil
		case "time":
			return TypeTime, nil
		default:
			return TypeString, nil
		}
	case "integer":
		return TypeInteger, nil
	case "number":
		return TypeNumber, nil
	case "boolean":
		return TypeBoolean, nil
	default:
		return "", fmt.Errorf("unsupported property type %q", t)
	}
}

func stringExt(ext map[string]any, key string) (string, bool) {
	v, ok := ext[key]
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return fmt.Sprintf("%v", t), true
	}
}

// convertYAMLMaps recursively rewrites the decoded tree into a purely
// JSON-marshalable one. yaml.v3 produces map[string]interface{} for mapping
// nodes, but a pre-decoded document can still carry
// map[interface{}]interface{} from older decoders.
func convertYAMLMaps(in any) any {
	switch v := in.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = convertYAMLMaps(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[fmt.Sprintf("%v", k)] = convertYAMLMaps(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = convertYAMLMaps(val)
		}
		return out
	default:
		return v
	}
}
