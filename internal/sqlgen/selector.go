package sqlgen

import "strings"

// Selection is the parsed form of metadata_params.properties: a regex
// pattern per entity, keyed by relation name, with the root schema object
// keyed under rootKey. Regexes match property names; a relation with no
// entry is omitted from the result shape entirely.
type Selection struct {
	patterns map[string]string
}

// rootKey is the internal key Selection and Base use for the root schema
// object, a sentinel that cannot collide with any relation name.
const rootKey = "$default$"

// hasRelationToken reports whether expr uses the "<name>:<regex>" form at
// all. A selector with no relation token keeps the statement single-table.
func hasRelationToken(expr string) bool {
	return strings.Contains(expr, ":")
}

// ParseSelection decodes metadata_params.properties. An empty expr selects
// every property of the root. A bare token with no ':' overrides the root
// regex; any other token is split on the first ':' into a relation name
// (or "." / "" for the root) and its regex.
func ParseSelection(expr string) Selection {
	s := Selection{patterns: map[string]string{rootKey: ".*"}}
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return s
	}
	for _, tok := range strings.Fields(expr) {
		if !strings.Contains(tok, ":") {
			s.patterns[rootKey] = tok
			continue
		}
		idx := strings.Index(tok, ":")
		name, pattern := tok[:idx], tok[idx+1:]
		if name == "" || name == "." {
			name = rootKey
		}
		s.patterns[name] = pattern
	}
	return s
}

// Pattern returns the regex pattern for the given entity key (rootKey for
// the root schema object, a relation name otherwise), and whether one was
// specified at all.
func (s Selection) Pattern(key string) (string, bool) {
	p, ok := s.patterns[key]
	return p, ok
}

// Relations returns every relation name explicitly present in the selection,
// used to decide which 1:m relations need a subselect versus being entirely
// excluded from the result shape.
func (s Selection) Relations() []string {
	out := make([]string, 0, len(s.patterns))
	for k := range s.patterns {
		if k != rootKey {
			out = append(out, k)
		}
	}
	return out
}
