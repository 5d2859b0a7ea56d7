// Package engines wires the per-engine connection packages into a default
// ConnectionProvider keyed by the model's engine names.
package engines

import (
	"context"
	"fmt"

	"github.com/faucetdb/api-maker/internal/connection"
	"github.com/faucetdb/api-maker/internal/connection/mysql"
	"github.com/faucetdb/api-maker/internal/connection/oracle"
	"github.com/faucetdb/api-maker/internal/connection/postgres"
	"github.com/faucetdb/api-maker/internal/model"
)

type provider struct{}

// DefaultProvider returns a ConnectionProvider backed by the built-in
// Postgres, MySQL and Oracle connections. Every Provide call hands back a
// fresh, unopened connection; the caller opens it with resolved credentials
// and owns the resulting transaction.
func DefaultProvider() connection.ConnectionProvider {
	return provider{}
}

func (provider) Provide(_ context.Context, engine model.Engine) (connection.Connection, error) {
	switch engine {
	case model.EnginePostgres:
		return postgres.New(), nil
	case model.EngineMySQL:
		return mysql.New(), nil
	case model.EngineOracle:
		return oracle.New(), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", engine)
	}
}
