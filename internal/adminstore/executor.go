package adminstore

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/faucetdb/api-maker/internal/apierr"
	"github.com/faucetdb/api-maker/internal/operation"
)

// Executor matches the transactional service's execute surface.
type Executor interface {
	Execute(ctx context.Context, op operation.Operation) ([]map[string]any, error)
}

// AuditingExecutor decorates an Executor, appending one audit-log row per
// operation: entity, action, parameter names (never values), outcome, and
// duration. Audit failures are swallowed; bookkeeping must not fail the
// request.
type AuditingExecutor struct {
	Store *Store
	Next  Executor

	// RequestID extracts a request id from the context, when the adapter
	// put one there. Optional.
	RequestID func(ctx context.Context) string
}

// Execute implements Executor.
func (a AuditingExecutor) Execute(ctx context.Context, op operation.Operation) ([]map[string]any, error) {
	start := time.Now()
	records, err := a.Next.Execute(ctx, op)

	entry := AuditEntry{
		Entity:      op.Entity,
		Action:      string(op.Action),
		ParamNames:  paramNames(op),
		RecordCount: len(records),
		Status:      "ok",
		DurationMs:  float64(time.Since(start).Microseconds()) / 1000.0,
	}
	if a.RequestID != nil {
		entry.RequestID = a.RequestID(ctx)
	}
	if err != nil {
		entry.Status = "error"
		if ae, ok := apierr.As(err); ok {
			entry.Status = string(ae.Kind)
		}
	}
	_ = a.Store.AppendAudit(ctx, entry)

	return records, err
}

func paramNames(op operation.Operation) string {
	names := make([]string, 0, len(op.QueryParams)+len(op.StoreParams))
	for name := range op.QueryParams {
		names = append(names, "query."+name)
	}
	for name := range op.StoreParams {
		names = append(names, "store."+name)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}
