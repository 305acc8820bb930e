// Package inputparser implements §4.1: normalizing a heterogeneous inbound
// envelope into a canonical SemanticBlock via a small per-content_type
// dispatch table, mirroring the teacher's tagged-union dispatch in
// domain.UnmarshalFlowEvent (switch on a discriminator field to the right
// parser) generalized from flow events to inbound conversational Messages.
package inputparser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"coreconvo/domain"
)

// Envelope is the raw inbound unit §4.1 ingests.
type Envelope struct {
	ContentType domain.ContentType
	Content     string
	Metadata    map[string]any
	SenderRole  domain.ParticipantRole
	SenderId    string
	DialogueId  string
	SessionId   string
	TurnId      string
}

// SemanticBlock is the canonical text-projected form of a Message used for
// context assembly (glossary).
type SemanticBlock struct {
	Text     string
	Tags     []string
	Emotions []string
	Origin   domain.ParticipantRole
	Ts       time.Time
	// Visible is false for prompt-typed envelopes, which are system
	// instructions never shown to human consumers.
	Visible bool
}

type subParser func(ctx context.Context, p *Parser, env Envelope) (SemanticBlock, error)

// Parser dispatches an Envelope to its per-modality projection. It holds a
// MessageRepository so the quote_reply sub-parser can resolve reply_to.
type Parser struct {
	messages domain.MessageRepository
	dispatch map[domain.ContentType]subParser
}

func New(messages domain.MessageRepository) *Parser {
	p := &Parser{messages: messages}
	p.dispatch = map[domain.ContentType]subParser{
		domain.ContentTypeText:          parseText,
		domain.ContentTypeImage:         parseImage,
		domain.ContentTypeAudio:         parseAudio,
		domain.ContentTypeToolOutput:    parseToolOutput,
		domain.ContentTypeQuoteReply:    parseQuoteReply,
		domain.ContentTypePrompt:        parsePrompt,
		domain.ContentTypeToolInput:     parsePassthrough,
		domain.ContentTypeSystemContext: parsePassthrough,
		domain.ContentTypeMarkdown:      parsePassthrough,
		domain.ContentTypeCommand:       parsePassthrough,
	}
	return p
}

// Parse dispatches env to its content_type's sub-parser.
func (p *Parser) Parse(ctx context.Context, env Envelope) (SemanticBlock, error) {
	fn, ok := p.dispatch[env.ContentType]
	if !ok {
		if caption, hasCaption := metaString(env.Metadata, "caption"); hasCaption {
			return SemanticBlock{Text: caption, Origin: env.SenderRole, Ts: time.Now().UTC(), Visible: true}, nil
		}
		return SemanticBlock{}, domain.NewError(domain.ErrUnsupportedModality,
			fmt.Sprintf("unsupported content_type: %s", env.ContentType), nil)
	}
	return fn(ctx, p, env)
}

func metaString(metadata map[string]any, key string) (string, bool) {
	if metadata == nil {
		return "", false
	}
	v, ok := metadata[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func parseText(ctx context.Context, p *Parser, env Envelope) (SemanticBlock, error) {
	block := SemanticBlock{Text: env.Content, Origin: env.SenderRole, Ts: time.Now().UTC(), Visible: true}
	block.Tags = detectIntentTags(env.Content)
	block.Emotions = detectSentiment(env.Content)
	return block, nil
}

// detectIntentTags is a lightweight heuristic classifier, not an NLP model:
// it flags questions and commands by surface punctuation, matching the
// "detected intent tags" contract of §4.1 without pulling in a classifier
// dependency this core has no other use for.
func detectIntentTags(content string) []string {
	var tags []string
	trimmed := strings.TrimSpace(content)
	if strings.HasSuffix(trimmed, "?") {
		tags = append(tags, "question")
	}
	if strings.HasPrefix(trimmed, "/") || strings.HasPrefix(strings.ToLower(trimmed), "please ") {
		tags = append(tags, "request")
	}
	return tags
}

var positiveWords = []string{"thanks", "great", "awesome", "love", "happy", "good"}
var negativeWords = []string{"bad", "hate", "angry", "sad", "terrible", "sorry"}

func detectSentiment(content string) []string {
	lower := strings.ToLower(content)
	var emotions []string
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			emotions = append(emotions, "positive")
			break
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			emotions = append(emotions, "negative")
			break
		}
	}
	return emotions
}

func parseImage(ctx context.Context, p *Parser, env Envelope) (SemanticBlock, error) {
	caption, ok := metaString(env.Metadata, "caption")
	if !ok || caption == "" {
		caption = "[image]"
	}
	return SemanticBlock{Text: caption, Origin: env.SenderRole, Ts: time.Now().UTC(), Visible: true}, nil
}

func parseAudio(ctx context.Context, p *Parser, env Envelope) (SemanticBlock, error) {
	transcription, ok := metaString(env.Metadata, "transcription")
	if !ok || transcription == "" {
		transcription = "[audio]"
	}
	return SemanticBlock{Text: transcription, Origin: env.SenderRole, Ts: time.Now().UTC(), Visible: true}, nil
}

func parseToolOutput(ctx context.Context, p *Parser, env Envelope) (SemanticBlock, error) {
	toolUsed, _ := metaString(env.Metadata, "tool_used")
	if toolUsed == "" {
		toolUsed = "tool"
	}
	text := fmt.Sprintf("%s returned: %s", toolUsed, env.Content)
	return SemanticBlock{Text: text, Origin: env.SenderRole, Ts: time.Now().UTC(), Visible: true}, nil
}

func parseQuoteReply(ctx context.Context, p *Parser, env Envelope) (SemanticBlock, error) {
	replyTo, _ := metaString(env.Metadata, "reply_to")
	if replyTo == "" {
		return SemanticBlock{}, domain.NewError(domain.ErrInvalidReference, "quote_reply requires metadata.reply_to", nil)
	}
	quoted, err := p.messages.GetMessage(ctx, replyTo)
	if err != nil {
		return SemanticBlock{}, domain.NewError(domain.ErrInvalidReference, "reply_to does not reference an existing message: "+replyTo, err)
	}
	if quoted.DialogueId != env.DialogueId {
		return SemanticBlock{}, domain.NewError(domain.ErrInvalidReference, "reply_to references a message from another dialogue", nil)
	}
	text := fmt.Sprintf("> %s\n%s", quoted.Content, env.Content)
	return SemanticBlock{Text: text, Origin: env.SenderRole, Ts: time.Now().UTC(), Visible: true}, nil
}

func parsePrompt(ctx context.Context, p *Parser, env Envelope) (SemanticBlock, error) {
	return SemanticBlock{Text: env.Content, Origin: env.SenderRole, Ts: time.Now().UTC(), Visible: false}, nil
}

func parsePassthrough(ctx context.Context, p *Parser, env Envelope) (SemanticBlock, error) {
	return SemanticBlock{Text: env.Content, Origin: env.SenderRole, Ts: time.Now().UTC(), Visible: true}, nil
}
