package llmclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicDefaultModel mirrors the teacher's AnthropicToolChat default.
const AnthropicDefaultModel = "claude-opus-4-5"

// AnthropicClient adapts llmclient.Client to the Anthropic Messages API,
// following the request/response translation of the teacher's
// llm/anthropic_tool_chat.go, trimmed to non-streaming plus a
// streamed-text-only Stream implementation (no OAuth, no cache-control
// hints -- those are IDE-agent specific concerns this orchestration core
// doesn't need).
type AnthropicClient struct {
	APIKey string
	Model  string
}

var _ Client = (*AnthropicClient)(nil)

func (a *AnthropicClient) client() anthropic.Client {
	return anthropic.NewClient(option.WithAPIKey(a.APIKey))
}

func (a *AnthropicClient) model(params CompletionParams) string {
	if params.Model != "" {
		return params.Model
	}
	if a.Model != "" {
		return a.Model
	}
	return AnthropicDefaultModel
}

func (a *AnthropicClient) newMessageParams(params CompletionParams) (anthropic.MessageNewParams, error) {
	var temperature float32 = 0.1
	if params.Temperature != nil {
		temperature = *params.Temperature
	}

	var system string
	var messages []anthropic.MessageParam
	for _, m := range params.Messages {
		if m.Role == RoleSystem {
			system += m.Content + "\n"
			continue
		}
		messages = append(messages, anthropicFromMessage(m))
	}

	tools, err := anthropicFromTools(params.Tools)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	mp := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model(params)),
		MaxTokens:   4096,
		Temperature: anthropic.Opt(float64(temperature)),
		Messages:    messages,
		Tools:       tools,
	}
	if system != "" {
		mp.System = []anthropic.TextBlockParam{{Text: system}}
	}
	switch params.ToolChoice.Type {
	case ToolChoiceAuto:
		mp.ToolChoice = anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
	case ToolChoiceRequired:
		mp.ToolChoice = anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{}}
	case ToolChoiceTool:
		mp.ToolChoice = anthropic.ToolChoiceUnionParam{OfTool: &anthropic.ToolChoiceToolParam{Name: params.ToolChoice.Name}}
	}
	return mp, nil
}

func (a *AnthropicClient) Complete(ctx context.Context, params CompletionParams) (CompletionResult, error) {
	mp, err := a.newMessageParams(params)
	if err != nil {
		return CompletionResult{}, err
	}
	msg, err := a.client().Messages.New(ctx, mp)
	if err != nil {
		return CompletionResult{}, err
	}
	return anthropicToResult(*msg), nil
}

func (a *AnthropicClient) Stream(ctx context.Context, params CompletionParams, deltas chan<- ChatMessageDelta) (CompletionResult, error) {
	mp, err := a.newMessageParams(params)
	if err != nil {
		return CompletionResult{}, err
	}
	stream := a.client().Messages.NewStreaming(ctx, mp)
	var final anthropic.Message
	for stream.Next() {
		event := stream.Current()
		if err := final.Accumulate(event); err != nil {
			return CompletionResult{}, fmt.Errorf("accumulating anthropic stream: %w", err)
		}
		if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if textDelta, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok && deltas != nil {
				deltas <- ChatMessageDelta{Role: RoleAssistant, Content: textDelta.Text}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return CompletionResult{}, fmt.Errorf("anthropic stream error: %w", err)
	}
	if deltas != nil {
		deltas <- ChatMessageDelta{IsFinal: true}
	}
	return anthropicToResult(final), nil
}

func anthropicToResult(msg anthropic.Message) CompletionResult {
	var text string
	var toolRequests []ToolCall
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text += b.Text
		case anthropic.ToolUseBlock:
			toolRequests = append(toolRequests, ToolCall{Id: b.ID, Name: b.Name, Arguments: string(b.Input)})
		}
	}
	return CompletionResult{
		Text:         text,
		ToolRequests: toolRequests,
		Usage:        Usage{InputTokens: int(msg.Usage.InputTokens), OutputTokens: int(msg.Usage.OutputTokens)},
		Model:        string(msg.Model),
		StopReason:   string(msg.StopReason),
	}
}

func anthropicFromMessage(m ChatMessage) anthropic.MessageParam {
	role := anthropic.MessageParamRoleUser
	if m.Role == RoleAssistant {
		role = anthropic.MessageParamRoleAssistant
	}

	var blocks []anthropic.ContentBlockParamUnion
	if m.Role == RoleTool {
		blocks = append(blocks, anthropic.NewToolResultBlock(m.ToolCallId, m.Content, m.IsError))
	} else if m.Content != "" {
		blocks = append(blocks, anthropic.NewTextBlock(m.Content))
	}
	for _, tc := range m.ToolCalls {
		args := map[string]any{}
		_ = json.Unmarshal([]byte(tc.Arguments), &args)
		blocks = append(blocks, anthropic.NewToolUseBlock(tc.Id, args, tc.Name))
	}
	return anthropic.MessageParam{Role: role, Content: blocks}
}

func anthropicFromTools(tools []Tool) ([]anthropic.ToolUnionParam, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		raw, err := json.Marshal(t.Parameters)
		if err != nil {
			return nil, fmt.Errorf("marshaling schema for tool %s: %w", t.Name, err)
		}
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(raw, &schema); err != nil {
			return nil, fmt.Errorf("converting schema for tool %s: %w", t.Name, err)
		}
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: schema,
			},
		})
	}
	return out, nil
}
