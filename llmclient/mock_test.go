package llmclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEchoMockAcknowledgesLastUserMessage(t *testing.T) {
	m := NewEchoMock()
	result, err := m.Complete(context.Background(), CompletionParams{
		Messages: []ChatMessage{
			{Role: RoleSystem, Content: "be helpful"},
			{Role: RoleUser, Content: "hello"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Acknowledged: hello", result.Text)
}

func TestScriptedMockAdvancesPerRound(t *testing.T) {
	m := NewScriptedMock(
		CompletionResult{ToolRequests: []ToolCall{{Id: "1", Name: "weather"}}},
		CompletionResult{Text: "It's sunny."},
	)

	first, err := m.Complete(context.Background(), CompletionParams{})
	require.NoError(t, err)
	assert.Len(t, first.ToolRequests, 1)

	second, err := m.Complete(context.Background(), CompletionParams{})
	require.NoError(t, err)
	assert.Equal(t, "It's sunny.", second.Text)
}

func TestScriptedMockRepeatsLastEntryPastEnd(t *testing.T) {
	m := NewScriptedMock(CompletionResult{Text: "only"})
	_, _ = m.Complete(context.Background(), CompletionParams{})
	second, err := m.Complete(context.Background(), CompletionParams{})
	require.NoError(t, err)
	assert.Equal(t, "only", second.Text)
}

func TestMockClientRecordsCalls(t *testing.T) {
	m := NewEchoMock()
	_, _ = m.Complete(context.Background(), CompletionParams{Model: "test-model"})
	_, _ = m.Complete(context.Background(), CompletionParams{Model: "test-model"})
	assert.Len(t, m.Calls(), 2)
}

func TestMockClientStreamSendsSingleFinalDelta(t *testing.T) {
	m := NewEchoMock()
	deltas := make(chan ChatMessageDelta, 1)
	result, err := m.Stream(context.Background(), CompletionParams{}, deltas)
	require.NoError(t, err)
	delta := <-deltas
	assert.True(t, delta.IsFinal)
	assert.Equal(t, result.Text, delta.Content)
}
