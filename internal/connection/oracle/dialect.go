// Package oracle implements the connection.Dialect and
// connection.Connection for engine "oracle" on top of sijms/go-ora/v2.
// Oracle is the one engine whose placeholders wrap date, date-time and time
// columns in conversion functions.
package oracle

import (
	"fmt"

	_ "github.com/sijms/go-ora/v2"

	"github.com/faucetdb/api-maker/internal/connection"
	"github.com/faucetdb/api-maker/internal/model"
)

type dialect struct{}

func (dialect) Name() string { return "oracle" }

// Placeholder renders ":name", wrapped in the engine's date/time
// conversion function when the property's column type calls for one.
func (dialect) Placeholder(prop *model.Property, name string) string {
	token := ":" + name
	if prop == nil {
		return token
	}
	switch prop.ColumnType {
	case model.TypeDate:
		return fmt.Sprintf("TO_DATE(%s,'YYYY-MM-DD')", token)
	case model.TypeDateTime:
		return fmt.Sprintf(`TO_TIMESTAMP(%s,'YYYY-MM-DD"T"HH24:MI:SS.FF')`, token)
	case model.TypeTime:
		return fmt.Sprintf("TO_TIME(%s,'HH24:MI:SS.FF')", token)
	default:
		return token
	}
}

func (dialect) NewUUID() string         { return "SYS_GUID()" }
func (dialect) Now() string             { return "CURRENT_TIMESTAMP" }
func (dialect) SupportsReturning() bool { return true }

func (dialect) SequenceExpr(name string) string {
	return fmt.Sprintf("%q.NEXTVAL", name)
}

func (dialect) Quote(identifier string) string {
	return `"` + identifier + `"`
}

// dsn builds the go-ora connection URL, treating the configured database
// name as the service name.
func dsn(cfg connection.ConnectionConfig) string {
	return fmt.Sprintf("oracle://%s:%s@%s:%d/%s",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)
}

// New constructs an unopened Oracle Connection.
func New() connection.Connection {
	return connection.NewSQLConnection("oracle", dialect{}, dsn)
}
