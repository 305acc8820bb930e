package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoreErrorIsMatchesByKind(t *testing.T) {
	base := NewError(ErrDialogueNotFound, "no such dialogue", nil)
	wrapped := fmt.Errorf("lookup failed: %w", base)

	assert.True(t, errors.Is(wrapped, &CoreError{Kind: ErrDialogueNotFound}))
	assert.False(t, errors.Is(wrapped, &CoreError{Kind: ErrTurnClosed}))
}

func TestCoreErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	ce := NewError(ErrStorageFailure, "write failed", cause)

	assert.Equal(t, cause, errors.Unwrap(ce))
	assert.ErrorIs(t, ce, cause)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind ErrorKind
		wantOk   bool
	}{
		{"nil error", nil, "", false},
		{"plain error", errors.New("boom"), "", false},
		{"direct CoreError", NewError(ErrToolTimeout, "slow tool", nil), ErrToolTimeout, true},
		{
			"wrapped CoreError",
			fmt.Errorf("outer: %w", NewError(ErrLLMFailure, "model down", nil)),
			ErrLLMFailure,
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := KindOf(tt.err)
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.wantKind, kind)
		})
	}
}

func TestCoreErrorMessageIncludesCause(t *testing.T) {
	cause := errors.New("timeout")
	ce := NewError(ErrToolTimeout, "calculator tool", cause)
	assert.Contains(t, ce.Error(), "timeout")
	assert.Contains(t, ce.Error(), "calculator tool")
	assert.Contains(t, ce.Error(), string(ErrToolTimeout))
}
