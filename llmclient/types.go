// Package llmclient defines the abstract chat-completion contract the
// orchestrator drives, plus a deterministic mock backend and thin adapters
// over the OpenAI and Anthropic SDKs, following the shape of the teacher's
// llm package (ToolChatter / ToolChatParams / ChatMessage).
package llmclient

import "context"

type ChatMessageRole string

const (
	RoleUser      ChatMessageRole = "user"
	RoleAssistant ChatMessageRole = "assistant"
	RoleSystem    ChatMessageRole = "system"
	RoleTool      ChatMessageRole = "tool"
)

// ChatMessage is one prompt segment handed to the model.
type ChatMessage struct {
	Role       ChatMessageRole `json:"role"`
	Content    string          `json:"content"`
	ToolCalls  []ToolCall      `json:"toolCalls,omitempty"`
	Name       string          `json:"name,omitempty"`
	ToolCallId string          `json:"toolCallId,omitempty"`
	IsError    bool            `json:"isError,omitempty"`
}

// ToolCall is a model-requested function invocation, matching the teacher's
// common.ToolCall shape (arguments travel as a raw JSON string).
type ToolCall struct {
	Id        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool is the wire shape of a tool definition passed to the model, built from
// ToolRegistry entries.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  any    `json:"parameters"`
}

type ToolChoiceType string

const (
	ToolChoiceAuto     ToolChoiceType = "auto"
	ToolChoiceNone     ToolChoiceType = ""
	ToolChoiceTool     ToolChoiceType = "tool"
	ToolChoiceRequired ToolChoiceType = "required"
)

type ToolChoice struct {
	Type ToolChoiceType `json:"type"`
	Name string         `json:"name,omitempty"`
}

type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// ChatMessageDelta is one streamed chunk, modeled after OpenAI's delta shape
// exactly as the teacher's common.ChatMessageDelta is.
type ChatMessageDelta struct {
	Role      ChatMessageRole `json:"role"`
	Content   string          `json:"content"`
	ToolCalls []ToolCall      `json:"toolCalls,omitempty"`
	Usage     Usage           `json:"usage"`
	IsFinal   bool            `json:"isFinal"`
}

// CompletionParams is the request shape for a single chat-completion round.
type CompletionParams struct {
	Messages    []ChatMessage `json:"messages"`
	Tools       []Tool        `json:"tools,omitempty"`
	ToolChoice  ToolChoice    `json:"toolChoice"`
	Temperature *float32      `json:"temperature,omitempty"`
	Model       string        `json:"model"`
}

// CompletionResult is the response shape of a completed round: Text is the
// model's natural-language output (possibly empty if it only requested
// tools); ToolRequests is non-empty when the model wants one or more tool
// invocations before it will produce a final answer.
type CompletionResult struct {
	Text         string     `json:"text"`
	ToolRequests []ToolCall `json:"toolRequests,omitempty"`
	Usage        Usage      `json:"usage"`
	Model        string     `json:"model"`
	StopReason   string     `json:"stopReason"`
}

// Client is the abstract contract for chat-completion calls every backend
// implements: a deterministic mock for tests, and adapters over real vendor
// SDKs for production use.
type Client interface {
	Complete(ctx context.Context, params CompletionParams) (CompletionResult, error)
	Stream(ctx context.Context, params CompletionParams, deltas chan<- ChatMessageDelta) (CompletionResult, error)
}
