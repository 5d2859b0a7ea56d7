// Package txservice drives one operation end to end: it resolves the target
// schema object from the model, acquires an engine-appropriate connection
// with resolved credentials, and runs the DAO inside a single transaction
// that commits on success and rolls back on any error.
package txservice

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/faucetdb/api-maker/internal/apierr"
	"github.com/faucetdb/api-maker/internal/connection"
	"github.com/faucetdb/api-maker/internal/dao"
	"github.com/faucetdb/api-maker/internal/model"
	"github.com/faucetdb/api-maker/internal/operation"
)

// Service executes operations against the immutable model. It holds no
// per-request state; one Service serves every request for the process
// lifetime.
type Service struct {
	model    *model.Model
	provider connection.ConnectionProvider
	resolver connection.SecretResolver

	// secrets maps a schema object's logical database name to the secret
	// name handed to the resolver. A database with no entry resolves under
	// its own name.
	secrets map[string]string

	logger *slog.Logger
}

// New constructs a Service.
func New(m *model.Model, provider connection.ConnectionProvider, resolver connection.SecretResolver, secrets map[string]string, logger *slog.Logger) *Service {
	if secrets == nil {
		secrets = map[string]string{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{model: m, provider: provider, resolver: resolver, secrets: secrets, logger: logger}
}

// Model returns the model the service executes against.
func (s *Service) Model() *model.Model { return s.model }

// Execute runs one operation in one transaction and returns the resulting
// records. Validation failures surface before any SQL runs; execution
// failures roll the transaction back.
func (s *Service) Execute(ctx context.Context, op operation.Operation) (records []map[string]any, err error) {
	start := time.Now()

	schema, err := s.model.SchemaObject(op.Entity)
	if err != nil {
		return nil, apierr.BadRequest("%v", err)
	}

	conn, err := s.provider.Provide(ctx, schema.Engine)
	if err != nil {
		return nil, apierr.DBError(err, "no connection available for engine %q", schema.Engine)
	}

	secretName := s.secrets[schema.Database]
	if secretName == "" {
		secretName = schema.Database
	}
	cfg, err := s.resolver.Resolve(ctx, secretName)
	if err != nil {
		return nil, apierr.DBError(err, "resolving credentials for database %q", schema.Database)
	}

	if err := conn.Open(ctx, cfg); err != nil {
		return nil, err
	}
	defer conn.Close()

	defer func() {
		if err != nil {
			if rbErr := conn.Rollback(); rbErr != nil {
				s.logger.Error("rollback failed", "entity", op.Entity, "action", op.Action, "error", rbErr)
			}
		}
	}()

	records, err = dao.Execute(ctx, conn, schema, op)
	if err != nil {
		s.logger.Warn("operation failed",
			"entity", op.Entity,
			"action", op.Action,
			"params", redactParams(op),
			"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
			"error", err,
		)
		return nil, err
	}
	if err = conn.Commit(); err != nil {
		err = apierr.DBError(err, "committing transaction")
		return nil, err
	}

	s.logger.Info("operation executed",
		"entity", op.Entity,
		"action", op.Action,
		"params", redactParams(op),
		"records", len(records),
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	return records, nil
}

// redactParams summarizes an operation's parameters for logging without
// leaking values: parameter names only, sorted.
func redactParams(op operation.Operation) []string {
	names := make([]string, 0, len(op.QueryParams)+len(op.StoreParams))
	for name := range op.QueryParams {
		names = append(names, "query."+name)
	}
	for name := range op.StoreParams {
		names = append(names, "store."+name)
	}
	sort.Strings(names)
	return names
}
