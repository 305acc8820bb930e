package llmclient

import (
	"context"
	"fmt"
	"sync"
)

// MockResponder produces a CompletionResult for one round of a conversation,
// given the params the orchestrator built for that round and the zero-based
// round number (0 on the client's first call, 1 on its second, ...; the count
// runs over the client's whole lifetime and is not reset between Turns). Scripted per-test via NewScriptedMock, or replaced entirely
// for ad hoc behavior via NewFuncMock.
type MockResponder func(params CompletionParams, round int) CompletionResult

// MockClient is the deterministic, in-process LLM backend selected by
// LLM_PROVIDER=mock. It never performs network I/O, making it the backend
// exercised by every orchestrator-level test.
type MockClient struct {
	mu        sync.Mutex
	responder MockResponder
	round     int
	calls     []CompletionParams
}

var _ Client = (*MockClient)(nil)

// NewFuncMock builds a MockClient driven by an arbitrary responder function.
func NewFuncMock(responder MockResponder) *MockClient {
	return &MockClient{responder: responder}
}

// NewScriptedMock builds a MockClient that returns each of `script` in order,
// one per round, repeating the last entry once the script is exhausted. This
// is the shape end-to-end scenario 2 (tool loop) scripts: round 0 requests
// the weather tool, round 1 returns the final answer.
func NewScriptedMock(script ...CompletionResult) *MockClient {
	return NewFuncMock(func(_ CompletionParams, round int) CompletionResult {
		if len(script) == 0 {
			return CompletionResult{Text: "ok"}
		}
		if round >= len(script) {
			round = len(script) - 1
		}
		return script[round]
	})
}

// NewEchoMock builds a MockClient that simply echoes the last user message's
// content back, prefixed, with no tool requests -- a reasonable zero-config
// default for scenario 1 style exchanges.
func NewEchoMock() *MockClient {
	return NewFuncMock(func(params CompletionParams, _ int) CompletionResult {
		last := ""
		for i := len(params.Messages) - 1; i >= 0; i-- {
			if params.Messages[i].Role == RoleUser {
				last = params.Messages[i].Content
				break
			}
		}
		return CompletionResult{Text: fmt.Sprintf("Acknowledged: %s", last), StopReason: "stop"}
	})
}

func (m *MockClient) Complete(_ context.Context, params CompletionParams) (CompletionResult, error) {
	m.mu.Lock()
	round := m.round
	m.round++
	m.calls = append(m.calls, params)
	m.mu.Unlock()
	return m.responder(params, round), nil
}

func (m *MockClient) Stream(ctx context.Context, params CompletionParams, deltas chan<- ChatMessageDelta) (CompletionResult, error) {
	result, err := m.Complete(ctx, params)
	if err != nil {
		return result, err
	}
	if deltas != nil {
		deltas <- ChatMessageDelta{Role: RoleAssistant, Content: result.Text, Usage: result.Usage, IsFinal: true}
	}
	return result, nil
}

// Calls returns every CompletionParams this mock has been invoked with, in
// order, for test assertions on round count and prompt contents.
func (m *MockClient) Calls() []CompletionParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CompletionParams, len(m.calls))
	copy(out, m.calls)
	return out
}
