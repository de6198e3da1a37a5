package sandbox

import (
	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
)

// Kind tells what an expression evaluates to.
type Kind int

const (
	KindLiteral Kind = iota
	KindArrowFn
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindArrowFn:
		return "arrow"
	case KindFunction:
		return "function"
	default:
		return "literal"
	}
}

// Classification is computed once per compiled expression.
type Classification struct {
	Kind       Kind
	ParamCount int
}

// IsFunction reports whether the expression evaluates to something callable.
func (c Classification) IsFunction() bool {
	return c.Kind != KindLiteral
}

// classify parses source as a single expression. The source starts on line 2 of the
// parsed text, so reported lines are one ahead.
func classify(source string) (Classification, error) {
	program, err := parser.ParseFile(nil, programName, "(\n"+source+"\n)", 0)
	if err != nil {
		return Classification{}, err
	}

	if len(program.Body) != 1 {
		return Classification{Kind: KindLiteral}, nil
	}

	statement, ok := program.Body[0].(*ast.ExpressionStatement)
	if !ok {
		return Classification{Kind: KindLiteral}, nil
	}

	switch expression := statement.Expression.(type) {
	case *ast.ArrowFunctionLiteral:
		return Classification{Kind: KindArrowFn, ParamCount: paramCount(expression.ParameterList)}, nil
	case *ast.FunctionLiteral:
		return Classification{Kind: KindFunction, ParamCount: paramCount(expression.ParameterList)}, nil
	default:
		return Classification{Kind: KindLiteral}, nil
	}
}

func paramCount(params *ast.ParameterList) int {
	if params == nil {
		return 0
	}

	count := len(params.List)
	if params.Rest != nil {
		count++
	}

	return count
}
