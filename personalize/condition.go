package personalize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/vm"
)

// ErrInvalidCondition wraps every condition compile failure.
var ErrInvalidCondition = errors.New("invalid condition")

// allowedOperators are the binary operators a complex condition may use.
var allowedOperators = map[string]bool{
	"and": true, "or": true, "&&": true, "||": true,
	"==": true, "!=": true,
}

// grammarCheck restricts compiled conditions to comparisons of field names
// against string literals joined by and/or.
type grammarCheck struct {
	err error
	// root is the last node visited; walks are post-order.
	root ast.Node
}

func (g *grammarCheck) Visit(node *ast.Node) {
	g.root = *node
	if g.err != nil {
		return
	}
	switch n := (*node).(type) {
	case *ast.BinaryNode:
		if !allowedOperators[n.Operator] {
			g.err = fmt.Errorf("operator %q is not allowed", n.Operator)
		}
	case *ast.UnaryNode:
		if n.Operator != "not" && n.Operator != "!" {
			g.err = fmt.Errorf("operator %q is not allowed", n.Operator)
		}
	case *ast.IdentifierNode, *ast.StringNode, *ast.BoolNode:
	default:
		g.err = fmt.Errorf("unsupported expression %q", n.String())
	}
}

// CheckCondition reports whether cond is a valid complex condition.
func CheckCondition(cond string) error {
	_, err := compileCondition(cond)
	return err
}

func compileCondition(cond string) (*vm.Program, error) {
	normalized := normalizeCondition(cond)
	if strings.TrimSpace(normalized) == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidCondition)
	}
	check := &grammarCheck{}
	program, err := expr.Compile(normalized,
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
		expr.Patch(check),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCondition, err)
	}
	if check.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCondition, check.err)
	}
	switch check.root.(type) {
	case *ast.BinaryNode, *ast.UnaryNode, *ast.BoolNode:
	default:
		return nil, fmt.Errorf("%w: not a comparison", ErrInvalidCondition)
	}
	return program, nil
}

// normalizeCondition lowercases everything outside string literals, so
// field names and the AND/OR keywords match regardless of case. Literals
// may be quoted with ", ' or ` as expr accepts all three.
func normalizeCondition(cond string) string {
	var b strings.Builder
	b.Grow(len(cond))
	var quote byte
	for i := 0; i < len(cond); i++ {
		c := cond[i]
		switch {
		case quote != 0 && quote != '`' && c == '\\' && i+1 < len(cond):
			b.WriteByte(c)
			i++
			b.WriteByte(cond[i])
			continue
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'' || c == '`':
			quote = c
		case c >= 'A' && c <= 'Z':
			c += 'a' - 'A'
		}
		b.WriteByte(c)
	}
	return b.String()
}
