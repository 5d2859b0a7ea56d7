// Package operation defines Operation, the inert request value: an entity
// name, an action, and three parameter maps. An Operation carries no
// behavior of its own; it is parsed once at the adapter boundary and
// consumed by exactly one DAO call.
package operation

import (
	"fmt"

	"github.com/faucetdb/api-maker/internal/apierr"
)

// Action enumerates the four CRUD verbs an Operation can carry.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

func validAction(a string) bool {
	switch Action(a) {
	case ActionRead, ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// Metadata holds the recognized metadata_params keys.
type Metadata struct {
	// Properties is the raw selector expression, e.g. ".* customer:.*
	// line_items:.*". Empty means "root only, all properties" (sqlgen
	// defaults the root token to ".*").
	Properties string
	// Count, when true, short-circuits a read into a COUNT(*) query.
	Count bool
}

// Operation is the wire-shape request object parsed into a typed value.
// QueryParams and StoreParams hold raw values exactly as received;
// operator-encoded strings in QueryParams are parsed later by sqlgen, which
// is the only component that needs to know about the operator grammar.
type Operation struct {
	Entity      string
	Action      Action
	QueryParams map[string]any
	StoreParams map[string]any
	Metadata    Metadata
}

// Parse validates and converts a generic wire-shape map (as an HTTP or MCP
// adapter would decode from JSON) into an Operation. It performs structural
// validation only; entity/property existence and action-specific rules are
// sqlgen's job.
func Parse(raw map[string]any) (Operation, error) {
	entity, _ := raw["entity"].(string)
	if entity == "" {
		return Operation{}, apierr.BadRequest("operation requires a non-empty entity")
	}

	actionRaw, _ := raw["action"].(string)
	if !validAction(actionRaw) {
		return Operation{}, apierr.BadRequest("unknown action %q", actionRaw)
	}

	qp, err := toStringAnyMap(raw["query_params"])
	if err != nil {
		return Operation{}, apierr.BadRequest("query_params: %v", err)
	}
	sp, err := toStringAnyMap(raw["store_params"])
	if err != nil {
		return Operation{}, apierr.BadRequest("store_params: %v", err)
	}

	md := Metadata{}
	if rawMD, ok := raw["metadata_params"]; ok && rawMD != nil {
		mdMap, err := toStringAnyMap(rawMD)
		if err != nil {
			return Operation{}, apierr.BadRequest("metadata_params: %v", err)
		}
		if v, ok := mdMap["properties"]; ok {
			s, ok := v.(string)
			if !ok {
				return Operation{}, apierr.BadRequest("metadata_params.properties must be a string")
			}
			md.Properties = s
		}
		if v, ok := mdMap["count"]; ok {
			b, ok := v.(bool)
			if !ok {
				return Operation{}, apierr.BadRequest("metadata_params.count must be a bool")
			}
			md.Count = b
		}
	}

	return Operation{
		Entity:      entity,
		Action:      Action(actionRaw),
		QueryParams: qp,
		StoreParams: sp,
		Metadata:    md,
	}, nil
}

func toStringAnyMap(raw any) (map[string]any, error) {
	if raw == nil {
		return map[string]any{}, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected an object, got %T", raw)
	}
	return m, nil
}
