package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/faucetdb/api-maker/internal/apierr"
	"github.com/faucetdb/api-maker/internal/operation"
)

// handleEntity returns the handler for one (action, path-shape) pair. byKey
// routes carry the primary-key value as a path segment; byVersion routes
// additionally carry the version property name and its expected value.
func (s *Server) handleEntity(action operation.Action, byKey, byVersion bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		op, err := s.buildOperation(r, action, byKey, byVersion)
		if err != nil {
			writeError(w, err)
			return
		}

		records, err := s.exec.Execute(r.Context(), op)
		if err != nil {
			writeError(w, err)
			return
		}

		status := http.StatusOK
		if action == operation.ActionCreate {
			status = http.StatusCreated
		}
		if op.Metadata.Count && len(records) == 1 {
			writeJSON(w, status, records[0])
			return
		}
		writeJSON(w, status, records)
	}
}

// buildOperation maps one HTTP request onto one operation: URL query
// parameters become query_params (with the reserved properties/count keys
// diverted into metadata), the JSON body becomes store_params, and path
// segments become equality filters.
func (s *Server) buildOperation(r *http.Request, action operation.Action, byKey, byVersion bool) (operation.Operation, error) {
	entity := chi.URLParam(r, "entity")

	op := operation.Operation{
		Entity:      entity,
		Action:      action,
		QueryParams: map[string]any{},
		StoreParams: map[string]any{},
	}

	for name, values := range r.URL.Query() {
		if len(values) == 0 {
			continue
		}
		switch name {
		case "properties":
			op.Metadata.Properties = values[0]
		case "count":
			op.Metadata.Count = values[0] == "true" || values[0] == "1"
		default:
			op.QueryParams[name] = values[0]
		}
	}

	if byKey {
		schema, err := s.model.SchemaObject(entity)
		if err != nil {
			return operation.Operation{}, apierr.BadRequest("%v", err)
		}
		if schema.PrimaryKey == nil {
			return operation.Operation{}, apierr.BadRequest("entity %q has no primary key", entity)
		}
		op.QueryParams[schema.PrimaryKey.Name] = chi.URLParam(r, "key")
	}
	if byVersion {
		op.QueryParams[chi.URLParam(r, "versionName")] = chi.URLParam(r, "versionValue")
	}

	if action == operation.ActionCreate || action == operation.ActionUpdate {
		if r.Body != nil && r.ContentLength != 0 {
			body := http.MaxBytesReader(nil, r.Body, s.cfg.MaxBodySize)
			store, err := decodeJSONObject(body)
			if err != nil {
				return operation.Operation{}, apierr.BadRequest("invalid request body: %v", err)
			}
			op.StoreParams = store
		}
	}

	return op, nil
}
