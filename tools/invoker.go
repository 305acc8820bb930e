package tools

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"coreconvo/domain"
)

// Invocation is the ToolInvoker input of §4.5.
type Invocation struct {
	DialogueId string
	TurnId     string
	ToolId     string
	Parameters map[string]any
}

// Result is the structured outcome ToolInvoker returns and persists as a
// ToolCall log entry.
type Result struct {
	Success   bool
	Output    string
	Err       error
	LatencyMs int64
}

// Invoker dispatches validated tool invocations against the Registry,
// enforcing a per-invocation timeout and at-most-one-concurrent execution per
// (dialogue_id, tool_id, parameter-hash) via golang.org/x/sync/singleflight,
// following §4.5's "recommended contract to prevent duplicate side-effecting
// calls during the tool loop".
type Invoker struct {
	registry *Registry
	calls    domain.ToolCallRepository
	timeout  time.Duration
	group    singleflight.Group
}

func NewInvoker(registry *Registry, calls domain.ToolCallRepository, timeout time.Duration) *Invoker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Invoker{registry: registry, calls: calls, timeout: timeout}
}

// Invoke validates parameters against the tool's declared schema, runs the
// tool under a per-tool timeout, writes a ToolCall record regardless of
// outcome, and returns the structured Result.
func (inv *Invoker) Invoke(ctx context.Context, in Invocation) Result {
	t, err := inv.registry.require(in.ToolId)
	if err != nil {
		return Result{Success: false, Err: err}
	}

	key := in.DialogueId + "|" + in.ToolId + "|" + paramsHash(in.Parameters)
	start := time.Now()
	v, err, _ := inv.group.Do(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, inv.timeout)
		defer cancel()
		output, invokeErr := t.Invoke(callCtx, in.Parameters)
		if invokeErr == nil && callCtx.Err() != nil {
			invokeErr = domain.NewError(domain.ErrToolTimeout, "tool invocation timed out: "+in.ToolId, callCtx.Err())
		}
		return output, invokeErr
	})
	latency := time.Since(start).Milliseconds()

	result := Result{LatencyMs: latency}
	if err != nil {
		result.Success = false
		result.Err = err
	} else {
		result.Success = true
		result.Output, _ = v.(string)
	}

	record := domain.ToolCall{
		DialogueId: in.DialogueId,
		TurnId:     in.TurnId,
		ToolId:     in.ToolId,
		Parameters: in.Parameters,
		Success:    result.Success,
		Result:     result.Output,
		LatencyMs:  latency,
	}
	if result.Err != nil {
		record.Error = result.Err.Error()
	}
	_, _ = inv.calls.CreateToolCall(ctx, record)

	return result
}

func (inv *Invoker) Registry() *Registry { return inv.registry }
