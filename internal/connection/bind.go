package connection

import (
	"database/sql"
	"fmt"
	"regexp"
)

// pgMySQLPlaceholder matches the "%(name)s" placeholder syntax the
// Postgres and MySQL dialects emit.
var pgMySQLPlaceholder = regexp.MustCompile(`%\(([A-Za-z_][A-Za-z0-9_]*)\)s`)

// oracleNames extracts the ":name" bind tokens from Oracle SQL text in
// order of first appearance. Colons inside single-quoted literals are
// skipped: the TO_TIMESTAMP/TO_TIME wrappers the Oracle dialect emits carry
// format strings like 'HH24:MI:SS.FF' whose colons are not binds.
func oracleNames(sqlText string) []string {
	var names []string
	inQuote := false
	for i := 0; i < len(sqlText); i++ {
		c := sqlText[i]
		if c == '\'' {
			inQuote = !inQuote
			continue
		}
		if inQuote || c != ':' {
			continue
		}
		j := i + 1
		for j < len(sqlText) && (isIdentByte(sqlText[j]) || (j > i+1 && sqlText[j] >= '0' && sqlText[j] <= '9')) {
			j++
		}
		if j > i+1 {
			names = append(names, sqlText[i+1:j])
			i = j - 1
		}
	}
	return names
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Rebind rewrites SQL text written in the dialect's own named-placeholder
// syntax into the positional form the underlying database/sql driver
// expects, returning the ordered argument list pulled from params. Oracle's go-ora driver accepts named binds
// directly, so its SQL text passes through unchanged and args are built as
// sql.NamedArg values instead.
func Rebind(dialectName, sqlText string, params map[string]any) (string, []any, error) {
	switch dialectName {
	case "oracle":
		return rebindOracle(sqlText, params)
	default:
		return rebindPositional(dialectName, sqlText, params)
	}
}

func rebindOracle(sqlText string, params map[string]any) (string, []any, error) {
	var args []any
	seen := map[string]bool{}
	var missing error
	for _, name := range oracleNames(sqlText) {
		if seen[name] {
			continue
		}
		seen[name] = true
		v, ok := params[name]
		if !ok {
			missing = fmt.Errorf("no bound value for placeholder %q", name)
			continue
		}
		args = append(args, sql.Named(name, v))
	}
	if missing != nil {
		return "", nil, missing
	}
	return sqlText, args, nil
}

func rebindPositional(dialectName, sqlText string, params map[string]any) (string, []any, error) {
	var args []any
	idx := 0
	var missing error
	out := pgMySQLPlaceholder.ReplaceAllStringFunc(sqlText, func(tok string) string {
		name := pgMySQLPlaceholder.FindStringSubmatch(tok)[1]
		v, ok := params[name]
		if !ok {
			missing = fmt.Errorf("no bound value for placeholder %q", name)
			return tok
		}
		args = append(args, v)
		idx++
		if dialectName == "postgres" {
			return fmt.Sprintf("$%d", idx)
		}
		return "?"
	})
	if missing != nil {
		return "", nil, missing
	}
	return out, args, nil
}
