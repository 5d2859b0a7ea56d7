// Package sqlgen compiles an operation.Operation against a model.SchemaObject
// into a single parameterized SQL statement: SELECT with joins and child
// subselects for reads, INSERT/UPDATE/DELETE with returning clauses and
// optimistic-concurrency enforcement for mutations.
package sqlgen

// ReservedWords blocks SQL keywords from being used as table aliases. The
// alias assignment walks growing prefixes of the entity name and skips any
// prefix found here.
var ReservedWords = map[string]bool{
	"SELECT": true, "INSERT": true, "UPDATE": true, "DELETE": true,
	"DROP": true, "CREATE": true, "ALTER": true, "TRUNCATE": true,
	"EXEC": true, "EXECUTE": true, "UNION": true, "INTO": true,
	"FROM": true, "WHERE": true, "TABLE": true, "DATABASE": true,
	"GRANT": true, "REVOKE": true, "INDEX": true, "VIEW": true,
	"PROCEDURE": true, "FUNCTION": true, "TRIGGER": true, "SCHEMA": true,
	"AS": true, "ON": true, "IN": true, "IS": true, "AND": true, "OR": true,
	"NOT": true, "NULL": true, "BETWEEN": true, "LIKE": true, "JOIN": true,
	"LEFT": true, "RIGHT": true, "INNER": true, "OUTER": true, "CROSS": true,
	"GROUP": true, "ORDER": true, "BY": true, "HAVING": true, "LIMIT": true,
	"OFFSET": true, "SET": true, "VALUES": true, "RETURNING": true,
	"EXISTS": true, "DISTINCT": true, "ALL": true, "ANY": true, "CASE": true,
	"WHEN": true, "THEN": true, "ELSE": true, "END": true, "DESC": true,
	"ASC": true, "TO": true, "DO": true, "FOR": true, "IF": true, "OF": true,
}
