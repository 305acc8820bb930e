package tools

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coreconvo/domain"
	"coreconvo/repository"
)

func TestInvokerRunsToolAndRecordsCall(t *testing.T) {
	repo := repository.NewMemoryRepository()
	registry := NewRegistry()
	registry.Register(NewCalculatorTool())
	inv := NewInvoker(registry, repo, time.Second)

	result := inv.Invoke(context.Background(), Invocation{
		DialogueId: "dlg_1",
		TurnId:     "trn_1",
		ToolId:     "calculator",
		Parameters: map[string]any{"expression": "2 + 2"},
	})
	require.True(t, result.Success)
	assert.Equal(t, "4", result.Output)

	calls, err := repo.ListToolCalls(context.Background(), "dlg_1", "trn_1")
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Success)
}

func TestInvokerUnknownToolFails(t *testing.T) {
	repo := repository.NewMemoryRepository()
	inv := NewInvoker(NewRegistry(), repo, time.Second)

	result := inv.Invoke(context.Background(), Invocation{DialogueId: "dlg_1", ToolId: "nonexistent"})
	assert.False(t, result.Success)
	require.Error(t, result.Err)
	kind, ok := domain.KindOf(result.Err)
	require.True(t, ok)
	assert.Equal(t, domain.ErrInvalidParameters, kind)
}

func TestInvokerDeduplicatesConcurrentIdenticalCalls(t *testing.T) {
	repo := repository.NewMemoryRepository()
	registry := NewRegistry()
	var executions int64
	registry.Register(&countingTool{Definition: NewDefinition("slow", "slow", "test", "", &struct{}{}), counter: &executions})
	inv := NewInvoker(registry, repo, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inv.Invoke(context.Background(), Invocation{
				DialogueId: "dlg_1",
				ToolId:     "slow",
				Parameters: map[string]any{"x": 1},
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&executions), "concurrent identical invocations must collapse to one execution")
}

type countingTool struct {
	Definition
	counter *int64
}

func (c *countingTool) Invoke(ctx context.Context, params map[string]any) (string, error) {
	atomic.AddInt64(c.counter, 1)
	time.Sleep(20 * time.Millisecond)
	return "done", nil
}
