// Package mysql implements the connection.Dialect and connection.Connection
// for engine "mysql". MySQL lacks a native RETURNING clause, so the insert,
// update and delete handlers compile companion SELECT statements and the
// DAO runs the statement pair inside the request transaction.
package mysql

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/faucetdb/api-maker/internal/connection"
	"github.com/faucetdb/api-maker/internal/model"
)

type dialect struct{}

func (dialect) Name() string { return "mysql" }

func (dialect) Placeholder(_ *model.Property, name string) string {
	return fmt.Sprintf("%%(%s)s", name)
}

func (dialect) NewUUID() string         { return "UUID()" }
func (dialect) Now() string             { return "CURRENT_TIMESTAMP" }
func (dialect) SupportsReturning() bool { return false }

// SequenceExpr returns "" since MySQL has no sequence objects; schema
// documents targeting MySQL must use auto keys instead.
func (dialect) SequenceExpr(string) string { return "" }

func (dialect) Quote(identifier string) string {
	return "`" + identifier + "`"
}

// dsn builds the go-sql-driver connection string. parseTime makes the
// driver hand DATE/DATETIME columns back as time.Time, which the property
// conversion layer expects.
func dsn(cfg connection.ConnectionConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)
}

// New constructs an unopened MySQL Connection.
func New() connection.Connection {
	return connection.NewSQLConnection("mysql", dialect{}, dsn)
}
