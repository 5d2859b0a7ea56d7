// Package connection implements the uniform connection abstraction over
// Postgres, MySQL, and Oracle (open, cursor, commit, rollback, close),
// plus the per-engine Dialect: placeholder rendering, UUID and timestamp
// generators, RETURNING support, identifier quoting. SQL generation lives
// in sqlgen; this package only binds and executes.
package connection

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/faucetdb/api-maker/internal/apierr"
	"github.com/faucetdb/api-maker/internal/model"
)

// ConnectionConfig is the resolved shape a SecretResolver hands back.
type ConnectionConfig struct {
	Engine   string
	Host     string
	Port     int
	DBName   string
	Username string
	Password string
}

// SecretResolver abstracts retrieval of database credentials from whatever
// external secret store the deployment uses.
type SecretResolver interface {
	Resolve(ctx context.Context, name string) (ConnectionConfig, error)
}

// Rows is the minimal row-cursor surface QueryHandlers need: iterate and
// scan each row into a column-name-keyed map, mirroring sqlx's MapScan.
type Rows interface {
	Next() bool
	MapScan(dest map[string]any) error
	Close() error
	Err() error
}

// Result reports how many rows a mutating statement affected, and the
// auto-generated primary key for engines (MySQL) where InsertHandler must
// fall back to a driver-assigned last-insert-id instead of RETURNING.
type Result interface {
	RowsAffected() (int64, error)
	LastInsertId() (int64, error)
}

// Dialect renders the per-engine differences: placeholders, UUID/now
// generators, RETURNING support, identifier quoting.
type Dialect interface {
	// Name identifies the dialect for Rebind's placeholder-syntax switch.
	Name() string
	// Placeholder renders the bind-parameter token for a property, wrapping
	// date/time columns in the engine's conversion function where the
	// engine needs one.
	Placeholder(prop *model.Property, name string) string
	// NewUUID renders the SQL expression generating a fresh concurrency
	// token for uuid versions.
	NewUUID() string
	// Now renders the SQL expression for the current timestamp
	// (versionType "timestamp").
	Now() string
	// SupportsReturning reports whether INSERT/UPDATE/DELETE ... RETURNING
	// is available natively (false for MySQL).
	SupportsReturning() bool
	// SequenceExpr renders the next-value expression for a named sequence,
	// or "" when the engine has no sequence objects.
	SequenceExpr(name string) string
	// Quote wraps an identifier in the engine's quoting convention.
	Quote(identifier string) string
}

// Connection is the per-request, per-transaction handle query handlers and
// the DAO execute statements against. One Connection spans exactly one
// transaction: Open begins it, Commit/Rollback end it, Close releases the
// pooled connection back.
type Connection interface {
	Open(ctx context.Context, cfg ConnectionConfig) error
	Cursor(ctx context.Context, sqlText string, params map[string]any) (Rows, error)
	Exec(ctx context.Context, sqlText string, params map[string]any) (Result, error)
	Commit() error
	Rollback() error
	Close() error
	Dialect() Dialect
}

// ConnectionProvider hands the core a fresh, unopened Connection for a
// given engine. Cloud wiring, pooling strategy, and DSN assembly all live
// behind it.
type ConnectionProvider interface {
	Provide(ctx context.Context, engine model.Engine) (Connection, error)
}

// SQLConnection is the shared implementation every per-engine package
// (connection/postgres, connection/mysql, connection/oracle) builds on top
// of database/sql via sqlx. Each engine package supplies its own DSN
// assembly since the three drivers speak three different connection-string
// grammars.
type SQLConnection struct {
	driverName string
	dialect    Dialect
	dsn        func(ConnectionConfig) string
	db         *sqlx.DB
	tx         *sqlx.Tx
}

// NewSQLConnection constructs an unopened connection for the given
// database/sql driver name, Dialect, and DSN builder. Per-engine packages
// call this from their own New() constructor after registering any
// driver-specific side-effect imports.
func NewSQLConnection(driverName string, dialect Dialect, dsn func(ConnectionConfig) string) *SQLConnection {
	return &SQLConnection{driverName: driverName, dialect: dialect, dsn: dsn}
}

// Open opens a pooled connection and immediately begins the single
// transaction that will span this request. Autocommit stays off for reads
// and writes alike so child subselects see the same snapshot as their
// parent query.
func (c *SQLConnection) Open(ctx context.Context, cfg ConnectionConfig) error {
	db, err := sqlx.ConnectContext(ctx, c.driverName, c.dsn(cfg))
	if err != nil {
		return apierr.DBError(err, "opening %s connection", cfg.Engine)
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		db.Close()
		return apierr.DBError(err, "beginning transaction")
	}
	c.db = db
	c.tx = tx
	return nil
}

// Cursor runs a read statement and returns an iterable row cursor.
func (c *SQLConnection) Cursor(ctx context.Context, sqlText string, params map[string]any) (Rows, error) {
	rebound, args, err := Rebind(c.dialect.Name(), sqlText, params)
	if err != nil {
		return nil, apierr.DBError(err, "binding query parameters")
	}
	rows, err := c.tx.QueryxContext(ctx, rebound, args...)
	if err != nil {
		return nil, apierr.DBError(err, "executing query")
	}
	return &sqlxRows{rows}, nil
}

// Exec runs a mutating statement and returns its affected-row count.
func (c *SQLConnection) Exec(ctx context.Context, sqlText string, params map[string]any) (Result, error) {
	rebound, args, err := Rebind(c.dialect.Name(), sqlText, params)
	if err != nil {
		return nil, apierr.DBError(err, "binding statement parameters")
	}
	res, err := c.tx.ExecContext(ctx, rebound, args...)
	if err != nil {
		return nil, apierr.DBError(err, "executing statement")
	}
	return res, nil
}

func (c *SQLConnection) Commit() error {
	if c.tx == nil {
		return nil
	}
	return c.tx.Commit()
}

func (c *SQLConnection) Rollback() error {
	if c.tx == nil {
		return nil
	}
	return c.tx.Rollback()
}

func (c *SQLConnection) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *SQLConnection) Dialect() Dialect { return c.dialect }

// sqlxRows adapts *sqlx.Rows to the narrower Rows interface.
type sqlxRows struct {
	rows *sqlx.Rows
}

func (r *sqlxRows) Next() bool                         { return r.rows.Next() }
func (r *sqlxRows) MapScan(dest map[string]any) error  { return r.rows.MapScan(dest) }
func (r *sqlxRows) Close() error                       { return r.rows.Close() }
func (r *sqlxRows) Err() error                         { return r.rows.Err() }
