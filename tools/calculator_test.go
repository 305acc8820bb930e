package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coreconvo/domain"
)

func TestCalculatorEvaluatesExpression(t *testing.T) {
	tool := NewCalculatorTool()
	tests := []struct {
		expr string
		want string
	}{
		{"2 + 3", "5"},
		{"(2 + 3) * 4", "20"},
		{"10 / 4", "2.5"},
		{"-5 + 2", "-3"},
	}
	for _, tt := range tests {
		out, err := tool.Invoke(context.Background(), map[string]any{"expression": tt.expr})
		require.NoError(t, err, tt.expr)
		assert.Equal(t, tt.want, out, tt.expr)
	}
}

func TestCalculatorRejectsEmptyExpression(t *testing.T) {
	tool := NewCalculatorTool()
	_, err := tool.Invoke(context.Background(), map[string]any{"expression": ""})
	require.Error(t, err)
	kind, ok := domain.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.ErrInvalidParameters, kind)
}

func TestCalculatorRejectsDivisionByZero(t *testing.T) {
	tool := NewCalculatorTool()
	_, err := tool.Invoke(context.Background(), map[string]any{"expression": "1 / 0"})
	require.Error(t, err)
	kind, ok := domain.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.ErrToolFailure, kind)
}

func TestCalculatorRejectsUnparsableExpression(t *testing.T) {
	tool := NewCalculatorTool()
	_, err := tool.Invoke(context.Background(), map[string]any{"expression": "2 +"})
	require.Error(t, err)
}
