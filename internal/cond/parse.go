package cond

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

// DefaultMaxSeconds is the window upper bound of a ["name"] leaf.
const DefaultMaxSeconds = 1

// ParseError reports an expression that cannot become a condition tree.
type ParseError struct {
	Expr    string
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("condition %q: %s", e.Expr, e.Message)
}

// Parse converts a condition expression into a tree. An empty (or blank)
// expression yields a nil tree, which always evaluates true.
func Parse(expr string) (*Node, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}

	tree, err := parser.Parse(expr)
	if err != nil {
		return nil, &ParseError{Expr: expr, Message: err.Error()}
	}

	n, err := convert(tree.Node)
	if err != nil {
		return nil, &ParseError{Expr: expr, Message: err.Error()}
	}
	return n, nil
}

// MustParse is Parse for fixtures; it panics on error.
func MustParse(expr string) *Node {
	n, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return n
}

func convert(node ast.Node) (*Node, error) {
	switch n := node.(type) {
	case *ast.BinaryNode:
		var op OpType
		switch n.Operator {
		case "and", "&&":
			op = And
		case "or", "||":
			op = Or
		default:
			return nil, fmt.Errorf("unsupported operator %q (use and/or)", n.Operator)
		}
		left, err := convert(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := convert(n.Right)
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindOp, Op: op, Left: left, Right: right}, nil

	case *ast.ArrayNode:
		return convertLeaf(n)

	default:
		return nil, fmt.Errorf("unexpected %T: a condition is [\"state\", min, max] joined by and/or", node)
	}
}

func convertLeaf(n *ast.ArrayNode) (*Node, error) {
	if len(n.Nodes) != 1 && len(n.Nodes) != 3 {
		return nil, fmt.Errorf("state check needs 1 or 3 elements, got %d", len(n.Nodes))
	}

	var name string
	switch v := n.Nodes[0].(type) {
	case *ast.StringNode:
		name = v.Value
	case *ast.IdentifierNode:
		name = v.Value
	default:
		return nil, fmt.Errorf("state name must be a string, got %T", n.Nodes[0])
	}
	if name == "" {
		return nil, fmt.Errorf("state name is empty")
	}

	if len(n.Nodes) == 1 {
		return Leaf(name, 0, DefaultMaxSeconds), nil
	}

	lo, err := number(n.Nodes[1])
	if err != nil {
		return nil, fmt.Errorf("state %q min: %w", name, err)
	}
	hi, err := number(n.Nodes[2])
	if err != nil {
		return nil, fmt.Errorf("state %q max: %w", name, err)
	}
	if lo > hi {
		return nil, fmt.Errorf("state %q: min %v greater than max %v", name, lo, hi)
	}
	return Leaf(name, lo, hi), nil
}

func number(node ast.Node) (float64, error) {
	switch v := node.(type) {
	case *ast.IntegerNode:
		return float64(v.Value), nil
	case *ast.FloatNode:
		return v.Value, nil
	case *ast.UnaryNode:
		if v.Operator != "-" && v.Operator != "+" {
			break
		}
		x, err := number(v.Node)
		if err != nil {
			return 0, err
		}
		if v.Operator == "-" {
			return -x, nil
		}
		return x, nil
	}
	return 0, fmt.Errorf("expected a number, got %T", node)
}
