// Package gateway expands a loaded model into the full OpenAPI document
// describing the derived CRUD surface: one path set per entity, with the
// primary-key and version-token variants the entity's declarations call for,
// query-parameter patterns that admit both plain values and operator-encoded
// ones, and optional CORS and token-authorizer sections.
package gateway

import (
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/faucetdb/api-maker/internal/model"
)

// Config controls the optional parts of the emitted document.
type Config struct {
	Title   string
	Version string
	BaseURL string

	// EnableCORS emits an OPTIONS preflight on /{proxy+} and the response
	// headers that go with it.
	EnableCORS  bool
	CORSOrigins []string

	// AuthorizerURI, when set, emits a custom token-authorizer security
	// scheme pointing at the given invoke URI and requires it on every
	// operation.
	AuthorizerURI string
}

// Generate builds the gateway document for every entity in the model.
func Generate(m *model.Model, cfg Config) *openapi3.T {
	if cfg.Title == "" {
		cfg.Title = "Generated CRUD API"
	}
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}

	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       cfg.Title,
			Description: "Auto-generated CRUD API derived from an annotated schema document.",
			Version:     cfg.Version,
		},
	}
	if cfg.BaseURL != "" {
		doc.Servers = openapi3.Servers{{URL: cfg.BaseURL}}
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components
	doc.Paths = openapi3.NewPaths()

	doc.Components.Schemas["Error"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"status":  &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
				"message": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
			},
		},
	}

	if cfg.AuthorizerURI != "" {
		scheme := &openapi3.SecurityScheme{
			Type: "apiKey",
			In:   "header",
			Name: "Authorization",
			Extensions: map[string]any{
				"x-am-authorizer-uri": cfg.AuthorizerURI,
			},
		}
		doc.Components.SecuritySchemes["tokenAuthorizer"] = &openapi3.SecuritySchemeRef{Value: scheme}
		doc.Security = openapi3.SecurityRequirements{{"tokenAuthorizer": {}}}
	}

	schemas := m.SchemaObjects()
	sort.Slice(schemas, func(i, j int) bool { return schemas[i].Entity < schemas[j].Entity })
	for _, s := range schemas {
		addEntitySchemas(doc, s)
	}
	for _, s := range schemas {
		addEntityPaths(doc, s)
	}

	if cfg.EnableCORS {
		doc.Paths.Set("/{proxy+}", &openapi3.PathItem{
			Options: corsPreflightOperation(cfg.CORSOrigins),
		})
	}

	return doc
}

// addEntitySchemas registers the component schema for one entity, with
// relations expressed as references to the (sanitized) child schema names.
func addEntitySchemas(doc *openapi3.T, s *model.SchemaObject) {
	props := openapi3.Schemas{}
	for _, name := range sortedPropertyNames(s) {
		props[name] = &openapi3.SchemaRef{Value: propertySchema(s.Properties[name])}
	}

	relNames := make([]string, 0, len(s.Relations))
	for name := range s.Relations {
		relNames = append(relNames, name)
	}
	sort.Strings(relNames)
	for _, name := range relNames {
		rel := s.Relations[name]
		childRef := fmt.Sprintf("#/components/schemas/%s", sanitizeSchemaName(rel.ChildEntityName))
		if rel.Cardinality == model.CardinalityOneToMany {
			props[name] = &openapi3.SchemaRef{
				Value: &openapi3.Schema{
					Type:  &openapi3.Types{"array"},
					Items: openapi3.NewSchemaRef(childRef, nil),
				},
			}
			continue
		}
		props[name] = openapi3.NewSchemaRef(childRef, nil)
	}

	doc.Components.Schemas[sanitizeSchemaName(s.Entity)] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:       &openapi3.Types{"object"},
			Properties: props,
			Required:   s.Required(),
		},
	}
}

// addEntityPaths emits the CRUD path set for one entity. Which mutation
// paths appear depends on whether the entity declares a primary key and a
// version property: versioned entities only mutate through the
// /{entity}/{pk}/{version}/{value} form.
func addEntityPaths(doc *openapi3.T, s *model.SchemaObject) {
	entityPath := "/" + s.Entity
	schemaRef := fmt.Sprintf("#/components/schemas/%s", sanitizeSchemaName(s.Entity))
	hasPK := s.PrimaryKey != nil
	hasVersion := s.ConcurrencyProperty != nil

	rootItem := &openapi3.PathItem{
		Post: createOperation(s, schemaRef),
		Get:  listOperation(s, schemaRef),
	}
	if !hasVersion {
		rootItem.Put = updateOperation(s, schemaRef, nil)
		rootItem.Delete = deleteOperation(s, nil)
	}
	doc.Paths.Set(entityPath, rootItem)

	if !hasPK {
		return
	}

	pk := s.PrimaryKey
	pkParam := pathParameter(pk.Name, &pk.Property)
	pkPath := fmt.Sprintf("%s/{%s}", entityPath, pk.Name)

	pkItem := &openapi3.PathItem{
		Get: readByKeyOperation(s, schemaRef, pkParam),
	}
	if !hasVersion {
		pkItem.Put = updateOperation(s, schemaRef, openapi3.Parameters{pkParam})
		pkItem.Delete = deleteOperation(s, openapi3.Parameters{pkParam})
	}
	doc.Paths.Set(pkPath, pkItem)

	if hasVersion {
		vp := s.ConcurrencyProperty
		versionParam := pathParameter(vp.Name+"_value", &vp.Property)
		versionPath := fmt.Sprintf("%s/%s/{%s_value}", pkPath, vp.Name, vp.Name)
		params := openapi3.Parameters{pkParam, versionParam}
		doc.Paths.Set(versionPath, &openapi3.PathItem{
			Put:    updateOperation(s, schemaRef, params),
			Delete: deleteOperation(s, params),
		})
	}
}

// ─── Operation Builders ─────────────────────────────────────────────────────

func listOperation(s *model.SchemaObject, schemaRef string) *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{s.Entity},
		Summary:     fmt.Sprintf("Query %s records", s.Entity),
		Description: fmt.Sprintf("Retrieve %s records. Query parameter values accept either a plain value or an operator-encoded one (e.g. \"between::1200,1300\").", s.Entity),
		OperationID: fmt.Sprintf("read_%s", operationName(s.Entity)),
		Parameters:  append(entityQueryParameters(s), metadataParameters()...),
		Responses: newResponses("200", fmt.Sprintf("Matching %s records", s.Entity), &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:  &openapi3.Types{"array"},
				Items: openapi3.NewSchemaRef(schemaRef, nil),
			},
		}),
	}
}

func readByKeyOperation(s *model.SchemaObject, schemaRef string, pkParam *openapi3.ParameterRef) *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{s.Entity},
		Summary:     fmt.Sprintf("Read one %s record", s.Entity),
		OperationID: fmt.Sprintf("read_%s_by_key", operationName(s.Entity)),
		Parameters:  append(openapi3.Parameters{pkParam}, metadataParameters()...),
		Responses: newResponses("200", fmt.Sprintf("The requested %s record", s.Entity), &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:  &openapi3.Types{"array"},
				Items: openapi3.NewSchemaRef(schemaRef, nil),
			},
		}),
	}
}

func createOperation(s *model.SchemaObject, schemaRef string) *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{s.Entity},
		Summary:     fmt.Sprintf("Create a %s record", s.Entity),
		OperationID: fmt.Sprintf("create_%s", operationName(s.Entity)),
		RequestBody: &openapi3.RequestBodyRef{
			Value: &openapi3.RequestBody{
				Description: fmt.Sprintf("The %s record to create", s.Entity),
				Required:    true,
				Content:     openapi3.NewContentWithJSONSchemaRef(openapi3.NewSchemaRef(schemaRef, nil)),
			},
		},
		Responses: newResponses("201", fmt.Sprintf("The created %s record", s.Entity), &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:  &openapi3.Types{"array"},
				Items: openapi3.NewSchemaRef(schemaRef, nil),
			},
		}),
	}
}

func updateOperation(s *model.SchemaObject, schemaRef string, params openapi3.Parameters) *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{s.Entity},
		Summary:     fmt.Sprintf("Update %s records", s.Entity),
		OperationID: fmt.Sprintf("update_%s%s", operationName(s.Entity), operationSuffix(params)),
		Parameters:  append(params, entityQueryParameters(s)...),
		RequestBody: &openapi3.RequestBodyRef{
			Value: &openapi3.RequestBody{
				Description: fmt.Sprintf("Property values to store on the matched %s records", s.Entity),
				Required:    true,
				Content:     openapi3.NewContentWithJSONSchemaRef(openapi3.NewSchemaRef(schemaRef, nil)),
			},
		},
		Responses: newResponses("200", fmt.Sprintf("The updated %s records", s.Entity), &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:  &openapi3.Types{"array"},
				Items: openapi3.NewSchemaRef(schemaRef, nil),
			},
		}),
	}
}

func deleteOperation(s *model.SchemaObject, params openapi3.Parameters) *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{s.Entity},
		Summary:     fmt.Sprintf("Delete %s records", s.Entity),
		OperationID: fmt.Sprintf("delete_%s%s", operationName(s.Entity), operationSuffix(params)),
		Parameters:  append(params, entityQueryParameters(s)...),
		Responses: newResponses("200", fmt.Sprintf("The deleted %s records", s.Entity), &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type: &openapi3.Types{"array"},
				Items: &openapi3.SchemaRef{
					Value: &openapi3.Schema{Type: &openapi3.Types{"object"}},
				},
			},
		}),
	}
}

func corsPreflightOperation(origins []string) *openapi3.Operation {
	origin := "*"
	if len(origins) > 0 {
		origin = strings.Join(origins, ",")
	}
	desc := "CORS preflight"
	okDesc := "Preflight response"
	responses := openapi3.NewResponses()
	responses.Set("200", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &okDesc,
			Headers: openapi3.Headers{
				"Access-Control-Allow-Origin": &openapi3.HeaderRef{
					Value: &openapi3.Header{Parameter: openapi3.Parameter{
						Schema: &openapi3.SchemaRef{Value: &openapi3.Schema{
							Type:    &openapi3.Types{"string"},
							Default: origin,
						}},
					}},
				},
				"Access-Control-Allow-Methods": &openapi3.HeaderRef{
					Value: &openapi3.Header{Parameter: openapi3.Parameter{
						Schema: &openapi3.SchemaRef{Value: &openapi3.Schema{
							Type:    &openapi3.Types{"string"},
							Default: "GET,POST,PUT,DELETE,OPTIONS",
						}},
					}},
				},
				"Access-Control-Allow-Headers": &openapi3.HeaderRef{
					Value: &openapi3.Header{Parameter: openapi3.Parameter{
						Schema: &openapi3.SchemaRef{Value: &openapi3.Schema{
							Type:    &openapi3.Types{"string"},
							Default: "Content-Type,Authorization",
						}},
					}},
				},
			},
		},
	})
	return &openapi3.Operation{
		Summary:     desc,
		OperationID: "cors_preflight",
		Responses:   responses,
	}
}

// ─── Parameter Builders ─────────────────────────────────────────────────────

// entityQueryParameters emits one query parameter per scalar property, each
// with a pattern admitting a plain value or any operator-encoded form.
func entityQueryParameters(s *model.SchemaObject) openapi3.Parameters {
	var params openapi3.Parameters
	for _, name := range sortedPropertyNames(s) {
		prop := s.Properties[name]
		params = append(params, &openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter(name).
				WithDescription(fmt.Sprintf("Filter on %s; accepts a plain value or <op>::<value>.", name)).
				WithSchema(&openapi3.Schema{
					Type:    &openapi3.Types{"string"},
					Pattern: queryParamPattern(prop),
				}),
		})
	}
	return params
}

func metadataParameters() openapi3.Parameters {
	return openapi3.Parameters{
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("properties").
				WithDescription("Selector choosing which properties and relations to return (e.g. \".* customer:.* line_items:.*\").").
				WithSchema(openapi3.NewStringSchema()),
		},
		&openapi3.ParameterRef{
			Value: func() *openapi3.Parameter {
				p := openapi3.NewQueryParameter("count")
				p.Description = "Return {\"count\": n} instead of records."
				p.Schema = &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}}
				return p
			}(),
		},
	}
}

func pathParameter(name string, prop *model.Property) *openapi3.ParameterRef {
	p := openapi3.NewPathParameter(name).
		WithSchema(&openapi3.Schema{
			Type:    &openapi3.Types{"string"},
			Pattern: "^" + basePattern(prop.APIType) + "$",
		})
	return &openapi3.ParameterRef{Value: p}
}

// queryParamPattern builds the full filter regex for a property: a bare
// value, a single-valued operator form, a comma list for in/not-in, or a
// two-value range for between/not-between.
func queryParamPattern(prop *model.Property) string {
	base := basePattern(prop.APIType)
	return fmt.Sprintf(
		"^(%s|(eq|ne|lt|le|gt|ge)::%s|(in|not-in)::%s(,%s)*|(between|not-between)::%s,%s)$",
		base, base, base, base, base, base,
	)
}

// basePattern is the type-specific value pattern a single operand must match.
func basePattern(t model.APIType) string {
	switch t {
	case model.TypeInteger:
		return `\d+`
	case model.TypeNumber:
		return `\d+(\.\d+)?`
	case model.TypeBoolean:
		return `(true|false|TRUE|FALSE)`
	case model.TypeDate:
		return `\d{4}-\d{2}-\d{2}`
	case model.TypeDateTime:
		return `\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?`
	case model.TypeTime:
		return `\d{2}:\d{2}:\d{2}(\.\d+)?`
	default:
		return `[^,]*`
	}
}

func propertySchema(prop *model.Property) *openapi3.Schema {
	s := &openapi3.Schema{}
	switch prop.APIType {
	case model.TypeInteger:
		s.Type = &openapi3.Types{"integer"}
	case model.TypeNumber:
		s.Type = &openapi3.Types{"number"}
	case model.TypeBoolean:
		s.Type = &openapi3.Types{"boolean"}
	case model.TypeDate:
		s.Type = &openapi3.Types{"string"}
		s.Format = "date"
	case model.TypeDateTime:
		s.Type = &openapi3.Types{"string"}
		s.Format = "date-time"
	case model.TypeTime:
		s.Type = &openapi3.Types{"string"}
		s.Format = "time"
	default:
		s.Type = &openapi3.Types{"string"}
	}
	if prop.MaxLength != nil {
		ml := uint64(*prop.MaxLength)
		s.MaxLength = &ml
	}
	if prop.MinLength != nil {
		s.MinLength = uint64(*prop.MinLength)
	}
	if prop.Pattern != "" {
		s.Pattern = prop.Pattern
	}
	return s
}

// ─── Response Helpers ───────────────────────────────────────────────────────

// newResponses builds a Responses map with one success response and the
// standard error responses pointing at the shared Error schema.
func newResponses(statusCode, description string, schema *openapi3.SchemaRef) *openapi3.Responses {
	responses := openapi3.NewResponses()

	successDesc := description
	responses.Set(statusCode, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &successDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	})

	errorRef := openapi3.NewSchemaRef("#/components/schemas/Error", nil)

	badReqDesc := "Bad request"
	responses.Set("400", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &badReqDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
		},
	})

	serverErrDesc := "Internal server error"
	responses.Set("500", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &serverErrDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
		},
	})

	return responses
}

// ─── Naming Helpers ─────────────────────────────────────────────────────────

// sanitizeSchemaName strips non-alphanumeric characters from an entity name
// and capitalizes it into a valid component schema reference.
func sanitizeSchemaName(entity string) string {
	var b strings.Builder
	for _, r := range entity {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return capitalize(b.String())
}

// operationName flattens an entity name into an operation-id-safe token.
func operationName(entity string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(entity) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// operationSuffix keeps operation ids unique between the collection-level
// and key-addressed variants of the same verb.
func operationSuffix(params openapi3.Parameters) string {
	switch len(params) {
	case 0:
		return ""
	case 1:
		return "_by_key"
	default:
		return "_by_key_and_version"
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func sortedPropertyNames(s *model.SchemaObject) []string {
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
