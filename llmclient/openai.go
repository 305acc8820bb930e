package llmclient

import (
	"context"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIDefaultModel mirrors the teacher's OpenaiToolChat default-model
// fallback.
const OpenAIDefaultModel = "gpt-4o-mini"

// OpenAIClient adapts llmclient.Client to the OpenAI chat-completion API,
// following the request/response translation of the teacher's
// llm/openai_tool_chat.go.
type OpenAIClient struct {
	APIKey  string
	BaseURL string
	Model   string
}

var _ Client = (*OpenAIClient)(nil)

func (o *OpenAIClient) client() *openai.Client {
	cfg := openai.DefaultConfig(o.APIKey)
	if o.BaseURL != "" {
		cfg.BaseURL = o.BaseURL
	}
	return openai.NewClientWithConfig(cfg)
}

func (o *OpenAIClient) model(params CompletionParams) string {
	if params.Model != "" {
		return params.Model
	}
	if o.Model != "" {
		return o.Model
	}
	return OpenAIDefaultModel
}

func (o *OpenAIClient) request(params CompletionParams) openai.ChatCompletionRequest {
	var temperature float32
	if params.Temperature != nil {
		temperature = *params.Temperature
	}
	req := openai.ChatCompletionRequest{
		Model:       o.model(params),
		Messages:    openaiFromMessages(params.Messages),
		Tools:       openaiFromTools(params.Tools),
		Temperature: temperature,
	}
	if choice := openaiFromToolChoice(params.ToolChoice, params.Tools); choice != nil {
		req.ToolChoice = choice
	}
	return req
}

func (o *OpenAIClient) Complete(ctx context.Context, params CompletionParams) (CompletionResult, error) {
	req := o.request(params)
	resp, err := o.client().CreateChatCompletion(ctx, req)
	if err != nil {
		return CompletionResult{}, err
	}
	if len(resp.Choices) == 0 {
		return CompletionResult{}, errors.New("openai: empty choices in response")
	}
	choice := resp.Choices[0]
	return CompletionResult{
		Text:         choice.Message.Content,
		ToolRequests: openaiToToolCalls(choice.Message.ToolCalls),
		Usage:        Usage{InputTokens: resp.Usage.PromptTokens, OutputTokens: resp.Usage.CompletionTokens},
		Model:        resp.Model,
		StopReason:   string(choice.FinishReason),
	}, nil
}

func (o *OpenAIClient) Stream(ctx context.Context, params CompletionParams, deltas chan<- ChatMessageDelta) (CompletionResult, error) {
	req := o.request(params)
	req.Stream = true
	stream, err := o.client().CreateChatCompletionStream(ctx, req)
	if err != nil {
		return CompletionResult{}, err
	}
	defer stream.Close()

	var text string
	var toolCalls []ToolCall
	var stopReason string
	var usage Usage
	for {
		res, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return CompletionResult{}, err
		}
		if len(res.Choices) == 0 {
			continue
		}
		choice := res.Choices[0]
		if choice.FinishReason != "" {
			stopReason = string(choice.FinishReason)
		}
		text += choice.Delta.Content
		newCalls := openaiToToolCalls(choice.Delta.ToolCalls)
		toolCalls = append(toolCalls, newCalls...)
		if deltas != nil {
			deltas <- ChatMessageDelta{Role: RoleAssistant, Content: choice.Delta.Content, ToolCalls: newCalls}
		}
	}
	if deltas != nil {
		deltas <- ChatMessageDelta{IsFinal: true, Usage: usage}
	}
	return CompletionResult{Text: text, ToolRequests: toolCalls, Usage: usage, StopReason: stopReason}, nil
}

func openaiFromMessages(messages []ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallId,
			ToolCalls:  openaiFromToolCalls(m.ToolCalls),
		}
	}
	return out
}

func openaiFromToolCalls(calls []ToolCall) []openai.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]openai.ToolCall, len(calls))
	for i, c := range calls {
		out[i] = openai.ToolCall{
			ID:   c.Id,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      c.Name,
				Arguments: c.Arguments,
			},
		}
	}
	return out
}

func openaiToToolCalls(calls []openai.ToolCall) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]ToolCall, len(calls))
	for i, c := range calls {
		out[i] = ToolCall{Id: c.ID, Name: c.Function.Name, Arguments: c.Function.Arguments}
	}
	return out
}

func openaiFromTools(tools []Tool) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.Tool, len(tools))
	for i, t := range tools {
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return out
}

func openaiFromToolChoice(choice ToolChoice, tools []Tool) any {
	if len(tools) == 0 {
		return nil
	}
	switch choice.Type {
	case ToolChoiceAuto, ToolChoiceNone:
		return "auto"
	case ToolChoiceRequired:
		return "required"
	case ToolChoiceTool:
		return openai.ToolChoice{Type: openai.ToolTypeFunction, Function: openai.ToolFunction{Name: choice.Name}}
	default:
		return nil
	}
}
