// Package postgres implements the connection.Dialect and
// connection.Connection for engine "postgres" on top of pgx.
package postgres

import (
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/faucetdb/api-maker/internal/connection"
	"github.com/faucetdb/api-maker/internal/model"
)

type dialect struct{}

func (dialect) Name() string { return "postgres" }

// Placeholder renders the "%(name)s" form. Postgres needs no type-specific
// wrapper: date/time values are bound as ISO-8601 strings and cast
// implicitly by the driver.
func (dialect) Placeholder(_ *model.Property, name string) string {
	return fmt.Sprintf("%%(%s)s", name)
}

func (dialect) NewUUID() string         { return "gen_random_uuid()" }
func (dialect) Now() string             { return "CURRENT_TIMESTAMP" }
func (dialect) SupportsReturning() bool { return true }

func (dialect) SequenceExpr(name string) string {
	return fmt.Sprintf("nextval('%s')", strings.ReplaceAll(name, "'", "''"))
}

func (dialect) Quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

func dsn(cfg connection.ConnectionConfig) string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s",
		cfg.Host, cfg.Port, cfg.DBName, cfg.Username, cfg.Password)
}

// New constructs an unopened Postgres Connection. Call Open with a resolved
// ConnectionConfig to acquire a pooled connection and begin the
// request-scoped transaction.
func New() connection.Connection {
	return connection.NewSQLConnection("pgx", dialect{}, dsn)
}
