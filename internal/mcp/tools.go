package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/faucetdb/api-maker/internal/model"
	"github.com/faucetdb/api-maker/internal/operation"
)

// registerTools registers four CRUD tools per entity.
func (s *MCPServer) registerTools(srv *server.MCPServer) {
	schemas := s.model.SchemaObjects()
	sort.Slice(schemas, func(i, j int) bool { return schemas[i].Entity < schemas[j].Entity })

	for _, schema := range schemas {
		entity := schema.Entity
		token := toolToken(entity)
		properties := strings.Join(propertyNames(schema), ", ")

		srv.AddTool(
			mcp.NewTool("read_"+token,
				mcp.WithDescription(fmt.Sprintf(
					"Query %s records. query_params maps property names to values; a value "+
						"is either a plain scalar or an operator-encoded string such as "+
						"\"between::1200,1300\" or \"in::1,2,3\". Dotted names like "+
						"\"relation.property\" filter through a relation. Properties: %s.",
					entity, properties,
				)),
				mcp.WithToolAnnotation(readOnlyAnnotation()),
				mcp.WithObject("query_params",
					mcp.Description("Property filters; omit for all records"),
				),
				mcp.WithString("properties",
					mcp.Description("Selector expression choosing returned properties and relations (e.g. \".* customer:.* line_items:.*\")"),
				),
				mcp.WithBoolean("count",
					mcp.Description("Return {\"count\": n} instead of records"),
				),
			),
			s.handleOperation(entity, operation.ActionRead),
		)

		srv.AddTool(
			mcp.NewTool("create_"+token,
				mcp.WithDescription(fmt.Sprintf(
					"Create one %s record. store_params maps property names to values; "+
						"generated key and version properties must be omitted. Properties: %s.",
					entity, properties,
				)),
				mcp.WithToolAnnotation(mutatingAnnotation()),
				mcp.WithObject("store_params",
					mcp.Required(),
					mcp.Description("Property values for the new record"),
				),
			),
			s.handleOperation(entity, operation.ActionCreate),
		)

		srv.AddTool(
			mcp.NewTool("update_"+token,
				mcp.WithDescription(fmt.Sprintf(
					"Update %s records matching query_params, setting the values in "+
						"store_params. A versioned entity requires its current version value "+
						"in query_params; the update fails if it is stale.",
					entity,
				)),
				mcp.WithToolAnnotation(mutatingAnnotation()),
				mcp.WithObject("query_params",
					mcp.Required(),
					mcp.Description("Equality filters selecting the records to update"),
				),
				mcp.WithObject("store_params",
					mcp.Required(),
					mcp.Description("Property values to store"),
				),
			),
			s.handleOperation(entity, operation.ActionUpdate),
		)

		srv.AddTool(
			mcp.NewTool("delete_"+token,
				mcp.WithDescription(fmt.Sprintf(
					"Delete %s records matching query_params. A versioned entity requires "+
						"its current version value in query_params.",
					entity,
				)),
				mcp.WithToolAnnotation(mutatingAnnotation()),
				mcp.WithObject("query_params",
					mcp.Required(),
					mcp.Description("Equality filters selecting the records to delete"),
				),
			),
			s.handleOperation(entity, operation.ActionDelete),
		)
	}
}

// handleOperation returns the tool handler for one (entity, action) pair.
func (s *MCPServer) handleOperation(entity string, action operation.Action) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		op := operation.Operation{
			Entity:      entity,
			Action:      action,
			QueryParams: getObjectArg(request, "query_params"),
			StoreParams: getObjectArg(request, "store_params"),
		}
		if op.QueryParams == nil {
			op.QueryParams = map[string]any{}
		}
		if op.StoreParams == nil {
			op.StoreParams = map[string]any{}
		}
		op.Metadata.Properties = request.GetString("properties", "")
		op.Metadata.Count = request.GetBool("count", false)

		records, err := s.exec.Execute(ctx, op)
		if err != nil {
			return toolError("%s %s failed: %v", action, entity, err)
		}
		if op.Metadata.Count && len(records) == 1 {
			return successJSON(records[0])
		}
		return successJSON(records)
	}
}

// toolToken flattens an entity name into a tool-name-safe token.
func toolToken(entity string) string {
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

func propertyNames(s *model.SchemaObject) []string {
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
