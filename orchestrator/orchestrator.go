// Package orchestrator implements §4.6: the DialogueCore pipeline engine
// that routes an inbound envelope by dialogue type, drives the Turn
// lifecycle, coordinates the bounded tool loop, commits records, and emits
// notifications. It is the composition root the teacher's Controller plays
// for the API layer, generalized from an IDE-coding-agent flow runner to the
// conversational processInput pipeline of §4.6.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"coreconvo/config"
	"coreconvo/contextbuilder"
	"coreconvo/domain"
	"coreconvo/inputparser"
	"coreconvo/llmclient"
	"coreconvo/notificationhub"
	"coreconvo/responsemixer"
	"coreconvo/sessionmanager"
	"coreconvo/tools"
	"coreconvo/turnmanager"
)

// AssistantResult is processInput's return value: the resulting Message,
// surfaced to the REST caller as {message_id, status, content, content_type}.
type AssistantResult struct {
	MessageId   string
	Status      domain.TurnStatus
	Content     string
	ContentType domain.ContentType
	TurnId      string
	SessionId   string
}

// Orchestrator is DialogueCore.
type Orchestrator struct {
	repo       domain.Repository
	parser     *inputparser.Parser
	builder    *contextbuilder.Builder
	llm        llmclient.Client
	invoker    *tools.Invoker
	turns      *turnmanager.Manager
	sessions   *sessionmanager.Manager
	mixer      *responsemixer.Mixer
	hub        *notificationhub.Hub
	cfg        *config.Config
	locks      *dialogueLocks
}

func New(
	repo domain.Repository,
	parser *inputparser.Parser,
	builder *contextbuilder.Builder,
	llm llmclient.Client,
	invoker *tools.Invoker,
	turns *turnmanager.Manager,
	sessions *sessionmanager.Manager,
	mixer *responsemixer.Mixer,
	hub *notificationhub.Hub,
	cfg *config.Config,
) *Orchestrator {
	return &Orchestrator{
		repo: repo, parser: parser, builder: builder, llm: llm, invoker: invoker,
		turns: turns, sessions: sessions, mixer: mixer, hub: hub, cfg: cfg,
		locks: newDialogueLocks(),
	}
}

// CreateDialogue validates participants by type and persists a new Dialogue.
func (o *Orchestrator) CreateDialogue(ctx context.Context, d domain.Dialogue) (domain.Dialogue, error) {
	if !d.DialogueType.Valid() {
		return domain.Dialogue{}, domain.NewError(domain.ErrInvalidInput, "unknown dialogue_type: "+string(d.DialogueType), nil)
	}
	if err := validateParticipants(d); err != nil {
		return domain.Dialogue{}, err
	}
	return o.repo.CreateDialogue(ctx, d)
}

func validateParticipants(d domain.Dialogue) error {
	switch d.DialogueType {
	case domain.DialogueTypeHumanAI:
		if d.HumanId == "" || d.AiId == "" {
			return domain.NewError(domain.ErrInvalidInput, "human_ai dialogues require human_id and ai_id", nil)
		}
	case domain.DialogueTypeAISelf:
		if d.AiId == "" {
			return domain.NewError(domain.ErrInvalidInput, "ai_self dialogues require ai_id", nil)
		}
	case domain.DialogueTypeAIAI:
		if d.AiId == "" {
			return domain.NewError(domain.ErrInvalidInput, "ai_ai dialogues require ai_id", nil)
		}
	case domain.DialogueTypeHumanHumanPrivate:
		if d.HumanId == "" {
			return domain.NewError(domain.ErrInvalidInput, "human_human_private dialogues require human_id", nil)
		}
	}
	return nil
}

// CloseDialogue marks is_active=false and closes the Dialogue's open Session.
// Pending Turns are not closed here; they stay pending until the sweeper
// expires them at their deadline.
func (o *Orchestrator) CloseDialogue(ctx context.Context, id string) error {
	lock := o.locks.get(id)
	lock.Lock()
	defer lock.Unlock()
	return o.repo.CloseDialogue(ctx, id)
}

// counterpartyRole implements §4.6's counterparty rules. ok is false for
// group types, which have no implicit responder (broadcast Turn).
func counterpartyRole(dialogueType domain.DialogueType, initiator domain.ParticipantRole) (responder domain.ParticipantRole, ok bool) {
	switch dialogueType {
	case domain.DialogueTypeHumanAI:
		if initiator == domain.RoleHuman {
			return domain.RoleAI, true
		}
		return domain.RoleHuman, true
	case domain.DialogueTypeAISelf, domain.DialogueTypeAIAI:
		return domain.RoleAI, true
	case domain.DialogueTypeHumanHumanPrivate:
		return domain.RoleHuman, true
	default: // human_human_group, human_ai_group, ai_multi_human
		return "", false
	}
}

// ProcessInput is the main pipeline of §4.6.
func (o *Orchestrator) ProcessInput(ctx context.Context, env inputparser.Envelope) (AssistantResult, error) {
	deadline := o.cfg.PipelineDeadline
	if deadline <= 0 {
		deadline = 120 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	// Turn-sweeper is also triggered lazily at the start of any processInput,
	// per §4.3/§5.
	_, _ = o.turns.Sweep(ctx)

	block, err := o.parser.Parse(ctx, env)
	if err != nil {
		return AssistantResult{}, err
	}

	dialogue, err := o.repo.GetDialogue(ctx, env.DialogueId)
	if err != nil {
		return AssistantResult{}, err
	}
	if !dialogue.IsActive {
		return AssistantResult{}, domain.NewError(domain.ErrDialogueClosed, "dialogue is closed: "+dialogue.Id, nil)
	}

	lock := o.locks.get(dialogue.Id)
	lock.Lock()
	defer lock.Unlock()

	idleThreshold, _ := dialogue.SessionIdleThreshold()
	sessionType := domain.SessionTypeDialogue
	session, err := o.sessions.EnsureActiveSession(ctx, dialogue.Id, idleThreshold, sessionType)
	if err != nil {
		return AssistantResult{}, err
	}

	responseWindow, _ := dialogue.ResponseWindow()

	turn, isResponse, err := o.resolveTurn(ctx, dialogue, session, env, responseWindow)
	if err != nil {
		return AssistantResult{}, err
	}

	inbound, err := o.repo.CreateMessage(ctx, domain.Message{
		DialogueId:  dialogue.Id,
		SessionId:   session.Id,
		TurnId:      turn.Id,
		SenderRole:  env.SenderRole,
		SenderId:    env.SenderId,
		Content:     env.Content,
		ContentType: env.ContentType,
		Metadata:    env.Metadata,
	})
	if err != nil {
		return AssistantResult{}, err
	}

	if isResponse {
		turn, err = o.turns.AttachResponse(ctx, turn, inbound)
		if err != nil {
			return AssistantResult{}, err
		}
	}

	dialogue.LastActivityAt = inbound.CreatedAt
	_ = o.repo.UpdateDialogue(ctx, dialogue)

	o.hub.Broadcast(notificationhub.Event{Type: notificationhub.EventKindMessage, Data: inbound})

	if !block.Visible && env.ContentType == domain.ContentTypePrompt {
		// A prompt is a system instruction, not something that itself
		// expects a model response.
		return AssistantResult{MessageId: inbound.Id, Status: turn.Status, Content: inbound.Content, ContentType: inbound.ContentType, TurnId: turn.Id, SessionId: session.Id}, nil
	}

	responderRole, hasResponder := counterpartyRole(dialogue.DialogueType, env.SenderRole)
	if !hasResponder {
		// Broadcast/group turn: no automatic model response is driven.
		return AssistantResult{MessageId: inbound.Id, Status: turn.Status, Content: inbound.Content, ContentType: inbound.ContentType, TurnId: turn.Id, SessionId: session.Id}, nil
	}
	if responderRole != domain.RoleAI {
		// The counterparty is another human; no model round is driven.
		return AssistantResult{MessageId: inbound.Id, Status: turn.Status, Content: inbound.Content, ContentType: inbound.ContentType, TurnId: turn.Id, SessionId: session.Id}, nil
	}

	assistantMsg, err := o.driveModelResponse(ctx, dialogue, session, turn)
	if err != nil {
		return AssistantResult{}, err
	}

	turn, err = o.turns.AttachResponse(ctx, turn, assistantMsg)
	if err != nil {
		return AssistantResult{}, err
	}

	o.hub.Broadcast(notificationhub.Event{Type: notificationhub.EventKindMessage, Data: assistantMsg})
	o.hub.Broadcast(notificationhub.Event{Type: notificationhub.EventKindDialogueUpdate, Data: dialogue})

	return AssistantResult{
		MessageId:   assistantMsg.Id,
		Status:      turn.Status,
		Content:     assistantMsg.Content,
		ContentType: assistantMsg.ContentType,
		TurnId:      turn.Id,
		SessionId:   session.Id,
	}, nil
}

// resolveTurn implements step 2 of §4.6's pipeline: reuse an explicitly
// named Turn, reuse a pending Turn awaiting a response from this sender, or
// open a new one.
func (o *Orchestrator) resolveTurn(ctx context.Context, dialogue domain.Dialogue, session domain.Session, env inputparser.Envelope, responseWindow time.Duration) (domain.Turn, bool, error) {
	if env.TurnId != "" {
		t, err := o.repo.GetTurn(ctx, env.TurnId)
		if err != nil {
			return domain.Turn{}, false, err
		}
		return t, true, nil
	}

	pending, err := o.repo.ListTurns(ctx, domain.TurnFilter{SessionId: session.Id, Status: domain.TurnStatusPending, PageSize: 100})
	if err != nil {
		return domain.Turn{}, false, err
	}
	for _, t := range pending.Items {
		if t.ResponderRole == env.SenderRole || t.ResponderRole == "" {
			return t, true, nil
		}
	}

	responderRole, hasResponder := counterpartyRole(dialogue.DialogueType, env.SenderRole)
	if !hasResponder {
		responderRole = "" // broadcast Turn; responder_role assigned on demand
	}
	turn, err := o.turns.OpenTurn(ctx, dialogue.Id, session.Id, env.SenderRole, responderRole, responseWindow)
	return turn, false, err
}

// driveModelResponse runs LLM round(s), looping through tool invocations up
// to cfg.MaxToolLoopDepth, per §4.6 step 5, and persists the final assistant
// Message.
func (o *Orchestrator) driveModelResponse(ctx context.Context, dialogue domain.Dialogue, session domain.Session, turn domain.Turn) (domain.Message, error) {
	maxDepth := o.cfg.MaxToolLoopDepth
	if maxDepth <= 0 {
		maxDepth = 4
	}

	var toolSummaries []string
	var result llmclient.CompletionResult
	var lastErr error

	for round := 0; round <= maxDepth; round++ {
		segments, err := o.builder.Build(ctx, session.Id, o.cfg.MaxContextLength)
		if err != nil {
			return o.finalizeWithError(ctx, dialogue, turn, domain.ErrContextOverflow, err)
		}
		params := llmclient.CompletionParams{Messages: toLLMMessages(segments), Tools: o.availableTools(), Model: o.cfg.LLMModel}

		result, lastErr = o.llm.Complete(ctx, params)
		if lastErr != nil {
			return o.finalizeWithError(ctx, dialogue, turn, domain.ErrLLMFailure, lastErr)
		}

		if len(result.ToolRequests) == 0 || round == maxDepth {
			break
		}

		for _, req := range result.ToolRequests {
			toolParams := decodeToolArguments(req.Arguments)
			outcome := o.invoker.Invoke(ctx, tools.Invocation{DialogueId: dialogue.Id, TurnId: turn.Id, ToolId: req.Name, Parameters: toolParams})

			content := outcome.Output
			if !outcome.Success {
				content = fmt.Sprintf("error: %v", outcome.Err)
			} else {
				toolSummaries = append(toolSummaries, fmt.Sprintf("%s: %s", req.Name, outcome.Output))
			}

			_, err := o.repo.CreateMessage(ctx, domain.Message{
				DialogueId:  dialogue.Id,
				SessionId:   session.Id,
				TurnId:      turn.Id,
				SenderRole:  domain.RoleSystem,
				Content:     content,
				ContentType: domain.ContentTypeToolOutput,
				Metadata:    map[string]any{"tool_used": req.Name},
			})
			if err != nil {
				return domain.Message{}, err
			}
		}
	}

	finalText := o.mixer.Mix(responsemixer.Input{ModelText: result.Text, ToolSummaries: toolSummaries})
	return o.repo.CreateMessage(ctx, domain.Message{
		DialogueId:  dialogue.Id,
		SessionId:   session.Id,
		TurnId:      turn.Id,
		SenderRole:  domain.RoleAI,
		SenderId:    dialogue.AiId,
		Content:     finalText,
		ContentType: domain.ContentTypeText,
	})
}

// finalizeWithError recovers a tool/LLM failure locally per §7: the Turn is
// finalized with a user-facing assistant Message carrying
// metadata.error_kind, and the internal failure detail is written to
// event_log.
func (o *Orchestrator) finalizeWithError(ctx context.Context, dialogue domain.Dialogue, turn domain.Turn, kind domain.ErrorKind, cause error) (domain.Message, error) {
	_ = o.repo.AppendEvent(ctx, domain.EventLog{
		DialogueId: dialogue.Id,
		TurnId:     turn.Id,
		Kind:       domain.EventKindError,
		Stage:      "driveModelResponse",
		Message:    cause.Error(),
		ErrorKind:  kind,
	})
	return o.repo.CreateMessage(ctx, domain.Message{
		DialogueId:  dialogue.Id,
		SessionId:   turn.SessionId,
		TurnId:      turn.Id,
		SenderRole:  domain.RoleAI,
		SenderId:    dialogue.AiId,
		Content:     "Sorry, something went wrong while producing a response.",
		ContentType: domain.ContentTypeText,
		Metadata:    map[string]any{"error_kind": string(kind)},
	})
}

func (o *Orchestrator) availableTools() []llmclient.Tool {
	regTools := o.invoker.Registry().List()
	out := make([]llmclient.Tool, 0, len(regTools))
	for _, t := range regTools {
		out = append(out, llmclient.Tool{Name: t.ID(), Description: t.Description(), Parameters: t.ParameterSchema()})
	}
	return out
}

func toLLMMessages(segments []contextbuilder.Segment) []llmclient.ChatMessage {
	out := make([]llmclient.ChatMessage, 0, len(segments))
	for _, s := range segments {
		role := llmclient.RoleUser
		switch s.Role {
		case domain.RoleAI:
			role = llmclient.RoleAssistant
		case domain.RoleSystem:
			role = llmclient.RoleSystem
		}
		out = append(out, llmclient.ChatMessage{Role: role, Content: s.Content})
	}
	return out
}

func decodeToolArguments(raw string) map[string]any {
	params := map[string]any{}
	if raw == "" {
		return params
	}
	_ = json.Unmarshal([]byte(raw), &params)
	return params
}
