package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/faucetdb/api-maker/internal/model"
)

// registerResources adds MCP resource definitions to the server. Resources
// provide read-only data that LLM clients can load into their context.
func (s *MCPServer) registerResources(srv *server.MCPServer) {

	srv.AddResource(
		mcp.NewResource(
			"apimaker://entities",
			"Entities",
			mcp.WithResourceDescription(
				"List of every entity in the loaded model, with its engine, "+
					"primary key, version property, and relation names.",
			),
			mcp.WithMIMEType("application/json"),
		),
		s.handleEntitiesResource,
	)

	srv.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"apimaker://entity/{entity}",
			"Entity Schema",
			mcp.WithTemplateDescription(
				"Full declaration of one entity: properties with their API "+
					"types and constraints, key and version markers, and relations.",
			),
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleEntityResource,
	)
}

type entitySummary struct {
	Entity     string   `json:"entity"`
	Engine     string   `json:"engine"`
	PrimaryKey string   `json:"primary_key,omitempty"`
	Version    string   `json:"version,omitempty"`
	Relations  []string `json:"relations,omitempty"`
}

// handleEntitiesResource returns a JSON list of every entity in the model.
func (s *MCPServer) handleEntitiesResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	schemas := s.model.SchemaObjects()
	sort.Slice(schemas, func(i, j int) bool { return schemas[i].Entity < schemas[j].Entity })

	items := make([]entitySummary, 0, len(schemas))
	for _, schema := range schemas {
		item := entitySummary{
			Entity: schema.Entity,
			Engine: string(schema.Engine),
		}
		if schema.PrimaryKey != nil {
			item.PrimaryKey = schema.PrimaryKey.Name
		}
		if schema.ConcurrencyProperty != nil {
			item.Version = schema.ConcurrencyProperty.Name
		}
		for name := range schema.Relations {
			item.Relations = append(item.Relations, name)
		}
		sort.Strings(item.Relations)
		items = append(items, item)
	}

	b, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entities: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "apimaker://entities",
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

// handleEntityResource returns the full declaration of one entity.
func (s *MCPServer) handleEntityResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	uri := request.Params.URI
	entity := strings.TrimPrefix(uri, "apimaker://entity/")
	if entity == "" || entity == uri {
		return nil, fmt.Errorf("invalid entity URI %q: expected apimaker://entity/{entity}", uri)
	}

	schema, err := s.model.SchemaObject(entity)
	if err != nil {
		return nil, fmt.Errorf("entity %q not found: %w", entity, err)
	}

	b, err := json.MarshalIndent(describeEntity(schema), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

type propertyInfo struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Required  bool   `json:"required,omitempty"`
	Key       string `json:"key,omitempty"`
	Version   string `json:"version,omitempty"`
	MaxLength *int   `json:"max_length,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
}

type relationInfo struct {
	Name        string `json:"name"`
	Cardinality string `json:"cardinality"`
	Child       string `json:"child"`
}

type entityDetail struct {
	Entity     string         `json:"entity"`
	Engine     string         `json:"engine"`
	Table      string         `json:"table"`
	Properties []propertyInfo `json:"properties"`
	Relations  []relationInfo `json:"relations,omitempty"`
}

func describeEntity(schema *model.SchemaObject) entityDetail {
	detail := entityDetail{
		Entity: schema.Entity,
		Engine: string(schema.Engine),
		Table:  schema.TableName,
	}
	for _, name := range propertyNames(schema) {
		prop := schema.Properties[name]
		info := propertyInfo{
			Name:      prop.Name,
			Type:      string(prop.APIType),
			Required:  prop.Required,
			MaxLength: prop.MaxLength,
			Pattern:   prop.Pattern,
		}
		if schema.PrimaryKey != nil && schema.PrimaryKey.Name == prop.Name {
			info.Key = string(schema.PrimaryKey.KeyType)
		}
		if schema.ConcurrencyProperty != nil && schema.ConcurrencyProperty.Name == prop.Name {
			info.Version = string(schema.ConcurrencyProperty.VersionType)
		}
		detail.Properties = append(detail.Properties, info)
	}
	relNames := make([]string, 0, len(schema.Relations))
	for name := range schema.Relations {
		relNames = append(relNames, name)
	}
	sort.Strings(relNames)
	for _, name := range relNames {
		rel := schema.Relations[name]
		detail.Relations = append(detail.Relations, relationInfo{
			Name:        name,
			Cardinality: string(rel.Cardinality),
			Child:       rel.ChildEntityName,
		})
	}
	return detail
}
