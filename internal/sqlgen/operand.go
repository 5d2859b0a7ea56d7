package sqlgen

import (
	"fmt"
	"strings"

	"github.com/faucetdb/api-maker/internal/apierr"
)

// OperandKind enumerates the comparison operators a query parameter value
// can encode, either implicitly (a bare value is an equality) or explicitly
// through the "<op>::<arg>" form.
type OperandKind string

const (
	OpEq         OperandKind = "eq"
	OpNe         OperandKind = "ne"
	OpLt         OperandKind = "lt"
	OpLe         OperandKind = "le"
	OpGt         OperandKind = "gt"
	OpGe         OperandKind = "ge"
	OpIn         OperandKind = "in"
	OpNotIn      OperandKind = "not-in"
	OpBetween    OperandKind = "between"
	OpNotBetween OperandKind = "not-between"
)

var operandKinds = map[string]OperandKind{
	"eq": OpEq, "ne": OpNe, "lt": OpLt, "le": OpLe, "gt": OpGt, "ge": OpGe,
	"in": OpIn, "not-in": OpNotIn, "between": OpBetween, "not-between": OpNotBetween,
}

// Operand is one parsed query parameter value: an operator plus its
// argument(s), split on "," for the multi-valued operators
// (in/not-in/between/not-between).
type Operand struct {
	Kind OperandKind
	Args []string
}

// Equality reports whether the operand is an equality comparison. Mutating
// actions against a schema with a concurrency property forbid anything else.
func (o Operand) Equality() bool { return o.Kind == OpEq }

// ParseOperand decodes a raw query parameter value into an Operand. A value
// with no "::" separator is an implicit equality against the whole string.
func ParseOperand(raw string) (Operand, error) {
	idx := strings.Index(raw, "::")
	if idx < 0 {
		return Operand{Kind: OpEq, Args: []string{raw}}, nil
	}
	opToken, arg := raw[:idx], raw[idx+2:]
	kind, ok := operandKinds[strings.ToLower(opToken)]
	if !ok {
		return Operand{}, apierr.BadRequest("unknown operator %q", opToken)
	}
	switch kind {
	case OpIn, OpNotIn:
		return Operand{Kind: kind, Args: splitArgs(arg)}, nil
	case OpBetween, OpNotBetween:
		args := splitArgs(arg)
		if len(args) != 2 {
			return Operand{}, apierr.BadRequest("%s requires exactly two comma-separated arguments", opToken)
		}
		return Operand{Kind: kind, Args: args}, nil
	default:
		return Operand{Kind: kind, Args: []string{arg}}, nil
	}
}

func splitArgs(arg string) []string {
	parts := strings.Split(arg, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

// sqlOperator renders the binary comparison token for single-argument
// operands. Multi-valued operands (IN/BETWEEN) are rendered by their own
// handler logic in base.go since they don't fit a single "col OP :bind" shape.
func (k OperandKind) sqlOperator() (string, error) {
	switch k {
	case OpEq:
		return "=", nil
	case OpNe:
		return "<>", nil
	case OpLt:
		return "<", nil
	case OpLe:
		return "<=", nil
	case OpGt:
		return ">", nil
	case OpGe:
		return ">=", nil
	default:
		return "", fmt.Errorf("operand kind %q has no binary operator", k)
	}
}
