// Package contextbuilder implements §4.2: assembling an ordered prompt from
// recent Messages of a Session plus system instructions, budgeted by token
// count. Token counting is grounded on the pack's tiktoken-go TokenCounter
// (teradata-labs-loom/pkg/agent/token_counter.go): a package-level
// cl100k_base encoder with a character-based fallback if the tokenizer
// cannot be loaded, so tests stay hermetic and independent of network access
// to tiktoken's vocabulary files.
package contextbuilder

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"

	"coreconvo/domain"
	"coreconvo/inputparser"
)

// Segment is one entry of the ordered prompt ContextBuilder hands to
// LLMClient.
type Segment struct {
	Role    domain.ParticipantRole
	Content string
	// IsToolResult labels Messages sourced from a tool_output Message with a
	// structured marker, per §4.2 point 3, so the LLM can distinguish them
	// from organic turns.
	IsToolResult bool
}

const fallbackEncoding = "cl100k_base"

var (
	encoderOnce sync.Once
	encoder     *tiktoken.Tiktoken
)

func getEncoder(model string) *tiktoken.Tiktoken {
	if model != "" {
		if enc, err := tiktoken.EncodingForModel(model); err == nil {
			return enc
		}
	}
	encoderOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			log.Debug().Err(err).Msg("contextbuilder: tiktoken encoder unavailable, using character-based budget fallback")
			return
		}
		encoder = enc
	})
	return encoder
}

// countTokens counts text against model's encoding, falling back to a
// character-based estimate (len/4) when no tokenizer is available.
func countTokens(text, model string) int {
	enc := getEncoder(model)
	if enc == nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// Builder assembles ContextBuilder prompts.
type Builder struct {
	messages domain.MessageRepository
	parser   *inputparser.Parser
	model    string
	// SystemInstructions are persistent system-instruction segments (e.g. AI
	// persona) prepended in a fixed header slot.
	SystemInstructions []string
}

func New(messages domain.MessageRepository, parser *inputparser.Parser, model string) *Builder {
	return &Builder{messages: messages, parser: parser, model: model}
}

// Build assembles the ordered prompt for sessionId within budget tokens (if
// budget <= 0, MAX_CONTEXT_LENGTH's default of 4000 is used as a character
// budget interpreted in tokens, mirroring the distilled spec's default).
func (b *Builder) Build(ctx context.Context, sessionId string, budget int) ([]Segment, error) {
	if budget <= 0 {
		budget = 4000
	}

	var header []Segment
	for _, instr := range b.SystemInstructions {
		header = append(header, Segment{Role: domain.RoleSystem, Content: instr})
	}
	used := 0
	for _, seg := range header {
		used += countTokens(seg.Content, b.model)
	}

	// Fetch the most recent Messages in reverse-chronological order until the
	// budget is exhausted, per §4.2 step 1; ListSessionMessages already
	// returns them newest-first.
	recent, err := b.messages.ListSessionMessages(ctx, sessionId, 0)
	if err != nil {
		return nil, err
	}

	var reversed []Segment
	for _, m := range recent {
		seg, tokens, err := b.project(ctx, m)
		if err != nil {
			return nil, err
		}
		if used+tokens > budget {
			// Drop oldest first: since recent is newest-first, stopping here
			// keeps everything already accumulated (the most recent
			// messages) and discards the remainder (the oldest), never
			// splitting a single Message.
			break
		}
		used += tokens
		reversed = append(reversed, seg)
	}

	// reversed is newest-first; restore chronological order.
	ordered := make([]Segment, len(reversed))
	for i, seg := range reversed {
		ordered[len(reversed)-1-i] = seg
	}

	return append(header, ordered...), nil
}

func (b *Builder) project(ctx context.Context, m domain.Message) (Segment, int, error) {
	env := inputparser.Envelope{
		ContentType: m.ContentType,
		Content:     m.Content,
		Metadata:    m.Metadata,
		SenderRole:  m.SenderRole,
		SenderId:    m.SenderId,
		DialogueId:  m.DialogueId,
		SessionId:   m.SessionId,
		TurnId:      m.TurnId,
	}
	block, err := b.parser.Parse(ctx, env)
	if err != nil {
		return Segment{}, 0, err
	}
	content := block.Text
	isToolResult := m.ContentType == domain.ContentTypeToolOutput
	if isToolResult {
		content = fmt.Sprintf("[tool_result]%s[/tool_result]", content)
	}
	seg := Segment{Role: m.SenderRole, Content: content, IsToolResult: isToolResult}
	return seg, countTokens(content, b.model), nil
}
