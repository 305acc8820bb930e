package tools

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"

	"coreconvo/domain"
)

// CalculatorParams is the reflected parameter shape for the calculator tool.
type CalculatorParams struct {
	Expression string `json:"expression" jsonschema:"description=An arithmetic expression using +, -, *, /, and parentheses, e.g. (2 + 3) * 4,required"`
}

// calculatorTool evaluates simple arithmetic expressions. It is a pure-
// function reference implementation with no domain-specific third-party
// dependency to ground on (see DESIGN.md); the expression grammar is parsed
// with go/parser rather than a hand-rolled tokenizer, reusing the standard
// library's own arithmetic-expression grammar instead of reinventing one.
type calculatorTool struct {
	Definition
}

func NewCalculatorTool() Tool {
	return &calculatorTool{Definition: NewDefinition(
		"calculator", "calculator", "utility",
		"Evaluates an arithmetic expression and returns the numeric result.",
		&CalculatorParams{},
	)}
}

func (c *calculatorTool) Invoke(ctx context.Context, params map[string]any) (string, error) {
	var p CalculatorParams
	if err := ValidateAgainstSchema(params, &p); err != nil {
		return "", err
	}
	if p.Expression == "" {
		return "", domain.NewError(domain.ErrInvalidParameters, "expression must not be empty", nil)
	}

	expr, err := parser.ParseExpr(p.Expression)
	if err != nil {
		return "", domain.NewError(domain.ErrToolFailure, "could not parse expression: "+p.Expression, err)
	}
	value, err := evalArith(expr)
	if err != nil {
		return "", domain.NewError(domain.ErrToolFailure, "could not evaluate expression: "+p.Expression, err)
	}
	return fmt.Sprintf("%g", value), nil
}

func evalArith(expr ast.Expr) (float64, error) {
	switch e := expr.(type) {
	case *ast.BasicLit:
		var f float64
		if _, err := fmt.Sscanf(e.Value, "%g", &f); err != nil {
			return 0, fmt.Errorf("not a number: %s", e.Value)
		}
		return f, nil
	case *ast.ParenExpr:
		return evalArith(e.X)
	case *ast.UnaryExpr:
		x, err := evalArith(e.X)
		if err != nil {
			return 0, err
		}
		switch e.Op {
		case token.SUB:
			return -x, nil
		case token.ADD:
			return x, nil
		}
		return 0, fmt.Errorf("unsupported unary operator: %s", e.Op)
	case *ast.BinaryExpr:
		x, err := evalArith(e.X)
		if err != nil {
			return 0, err
		}
		y, err := evalArith(e.Y)
		if err != nil {
			return 0, err
		}
		switch e.Op {
		case token.ADD:
			return x + y, nil
		case token.SUB:
			return x - y, nil
		case token.MUL:
			return x * y, nil
		case token.QUO:
			if y == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			return x / y, nil
		}
		return 0, fmt.Errorf("unsupported operator: %s", e.Op)
	default:
		return 0, fmt.Errorf("unsupported expression")
	}
}
