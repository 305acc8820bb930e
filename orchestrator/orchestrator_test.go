package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coreconvo/config"
	"coreconvo/contextbuilder"
	"coreconvo/domain"
	"coreconvo/inputparser"
	"coreconvo/llmclient"
	"coreconvo/notificationhub"
	"coreconvo/repository"
	"coreconvo/responsemixer"
	"coreconvo/sessionmanager"
	"coreconvo/tools"
	"coreconvo/turnmanager"
)

// harness wires a full Orchestrator against the in-memory Repository and a
// pluggable LLM backend, mirroring how cmd/coreserver wires the real thing.
type harness struct {
	repo *repository.MemoryRepository
	orch *Orchestrator
	hub  *notificationhub.Hub
}

func newHarness(t *testing.T, llm llmclient.Client) *harness {
	t.Helper()
	repo := repository.NewMemoryRepository()
	parser := inputparser.New(repo)
	builder := contextbuilder.New(repo, parser, "")
	registry := tools.NewRegistry()
	tools.RegisterDefaults(registry)
	invoker := tools.NewInvoker(registry, repo, 5*time.Second)
	turns := turnmanager.New(repo, time.Hour)
	sessions := sessionmanager.New(repo, repo, time.Hour)
	mixer := responsemixer.New()
	hub := notificationhub.New(16)
	cfg := &config.Config{
		PipelineDeadline: 5 * time.Second,
		MaxToolLoopDepth: 4,
		MaxContextLength: 4000,
	}
	orch := New(repo, parser, builder, llm, invoker, turns, sessions, mixer, hub, cfg)
	return &harness{repo: repo, orch: orch, hub: hub}
}

func mustCreateDialogue(t *testing.T, h *harness, d domain.Dialogue) domain.Dialogue {
	t.Helper()
	created, err := h.orch.CreateDialogue(context.Background(), d)
	require.NoError(t, err)
	return created
}

// Scenario 1: a simple human->AI exchange gets a single assistant reply and
// closes the opened Turn as responded.
func TestSimpleHumanAIExchange(t *testing.T) {
	h := newHarness(t, llmclient.NewEchoMock())
	dlg := mustCreateDialogue(t, h, domain.Dialogue{DialogueType: domain.DialogueTypeHumanAI, HumanId: "human_1", AiId: "ai_1"})

	result, err := h.orch.ProcessInput(context.Background(), inputparser.Envelope{
		DialogueId:  dlg.Id,
		ContentType: domain.ContentTypeText,
		Content:     "hello there",
		SenderRole:  domain.RoleHuman,
		SenderId:    "human_1",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TurnStatusResponded, result.Status)
	assert.Contains(t, result.Content, "hello there")

	turn, err := h.repo.GetTurn(context.Background(), result.TurnId)
	require.NoError(t, err)
	assert.Equal(t, domain.TurnStatusResponded, turn.Status)
}

// Scenario 2: the model requests a tool before answering; the tool loop
// invokes it and the final reply cites the tool result.
func TestToolLoopInvokesToolBeforeFinalAnswer(t *testing.T) {
	llm := llmclient.NewScriptedMock(
		llmclient.CompletionResult{ToolRequests: []llmclient.ToolCall{{Id: "1", Name: "calculator", Arguments: `{"expression":"2 + 2"}`}}},
		llmclient.CompletionResult{Text: "The answer is 4."},
	)
	h := newHarness(t, llm)
	dlg := mustCreateDialogue(t, h, domain.Dialogue{DialogueType: domain.DialogueTypeHumanAI, HumanId: "human_1", AiId: "ai_1"})

	result, err := h.orch.ProcessInput(context.Background(), inputparser.Envelope{
		DialogueId:  dlg.Id,
		ContentType: domain.ContentTypeText,
		Content:     "what is 2 + 2?",
		SenderRole:  domain.RoleHuman,
		SenderId:    "human_1",
	})
	require.NoError(t, err)
	assert.Contains(t, result.Content, "The answer is 4.")

	calls, err := h.repo.ListToolCalls(context.Background(), dlg.Id, result.TurnId)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "calculator", calls[0].ToolId)
	assert.True(t, calls[0].Success)

	msgs, err := h.repo.ListTurnMessages(context.Background(), result.TurnId)
	require.NoError(t, err)
	var sawToolOutput bool
	for _, m := range msgs {
		if m.ContentType == domain.ContentTypeToolOutput {
			sawToolOutput = true
		}
	}
	assert.True(t, sawToolOutput, "a tool_output message must be persisted in the turn")
}

// Scenario 3: a Turn past its response window is swept to unresponded by the
// next processInput call, without needing the background goroutine to run.
func TestUnrespondedTurnIsSweptOnNextInput(t *testing.T) {
	h := newHarness(t, llmclient.NewEchoMock())
	dlg := mustCreateDialogue(t, h, domain.Dialogue{DialogueType: domain.DialogueTypeHumanAI, HumanId: "human_1", AiId: "ai_1"})
	ctx := context.Background()

	session, err := h.repo.CreateSession(ctx, domain.Session{DialogueId: dlg.Id, SessionType: domain.SessionTypeDialogue})
	require.NoError(t, err)

	stale, err := h.repo.CreateTurn(ctx, domain.Turn{
		DialogueId:     dlg.Id,
		SessionId:      session.Id,
		InitiatorRole:  domain.RoleHuman,
		ResponderRole:  domain.RoleAI,
		Status:         domain.TurnStatusPending,
		StartedAt:      time.Now().UTC().Add(-4 * time.Hour),
		ResponseWindow: time.Hour,
	})
	require.NoError(t, err)

	_, err = h.orch.ProcessInput(ctx, inputparser.Envelope{
		DialogueId:  dlg.Id,
		ContentType: domain.ContentTypeText,
		Content:     "a brand new message",
		SenderRole:  domain.RoleHuman,
		SenderId:    "human_1",
	})
	require.NoError(t, err)

	reloaded, err := h.repo.GetTurn(ctx, stale.Id)
	require.NoError(t, err)
	assert.Equal(t, domain.TurnStatusUnresponded, reloaded.Status)
}

// Scenario 4: a Session idle past its threshold rolls over to a new Session
// on the next inbound message, rather than being reused.
func TestSessionRollsOverAfterIdlePeriod(t *testing.T) {
	h := newHarness(t, llmclient.NewEchoMock())
	dlg := mustCreateDialogue(t, h, domain.Dialogue{
		DialogueType: domain.DialogueTypeHumanAI, HumanId: "human_1", AiId: "ai_1",
		Metadata: map[string]any{"session_idle_threshold_seconds": float64(60)},
	})
	ctx := context.Background()

	first, err := h.orch.ProcessInput(ctx, inputparser.Envelope{
		DialogueId: dlg.Id, ContentType: domain.ContentTypeText, Content: "first message",
		SenderRole: domain.RoleHuman, SenderId: "human_1",
	})
	require.NoError(t, err)

	firstTurn, err := h.repo.GetTurn(ctx, first.TurnId)
	require.NoError(t, err)
	staleClose := time.Now().UTC().Add(-2 * time.Minute)
	firstTurn.ClosedAt = &staleClose
	require.NoError(t, h.repo.UpdateTurn(ctx, firstTurn))

	second, err := h.orch.ProcessInput(ctx, inputparser.Envelope{
		DialogueId: dlg.Id, ContentType: domain.ContentTypeText, Content: "second message",
		SenderRole: domain.RoleHuman, SenderId: "human_1",
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionId, second.SessionId, "an idle-past-threshold dialogue must open a new session")
}

// Scenario 6: concurrent inbound messages on the same Dialogue are serialized
// by the per-Dialogue lock, so the second input observes the first's Turn
// having already closed rather than racing it.
func TestConcurrentInputsOnSameDialogueAreSerialized(t *testing.T) {
	h := newHarness(t, llmclient.NewEchoMock())
	dlg := mustCreateDialogue(t, h, domain.Dialogue{DialogueType: domain.DialogueTypeHumanAI, HumanId: "human_1", AiId: "ai_1"})

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.orch.ProcessInput(context.Background(), inputparser.Envelope{
				DialogueId: dlg.Id, ContentType: domain.ContentTypeText, Content: "concurrent message",
				SenderRole: domain.RoleHuman, SenderId: "human_1",
			})
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}

	page, err := h.repo.ListMessages(context.Background(), domain.MessageFilter{DialogueId: dlg.Id, PageSize: 100})
	require.NoError(t, err)
	// n human messages + n assistant replies, each on its own distinct Turn.
	assert.Equal(t, 2*n, page.Total)
}

func TestGroupDialogueOpensBroadcastTurnWithoutAutoReply(t *testing.T) {
	h := newHarness(t, llmclient.NewEchoMock())
	dlg := mustCreateDialogue(t, h, domain.Dialogue{DialogueType: domain.DialogueTypeHumanHumanGroup})

	result, err := h.orch.ProcessInput(context.Background(), inputparser.Envelope{
		DialogueId: dlg.Id, ContentType: domain.ContentTypeText, Content: "hi everyone",
		SenderRole: domain.RoleHuman, SenderId: "human_1",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TurnStatusPending, result.Status)
	assert.Equal(t, "hi everyone", result.Content, "no model reply is driven for a group broadcast turn")

	turn, err := h.repo.GetTurn(context.Background(), result.TurnId)
	require.NoError(t, err)
	assert.Equal(t, domain.ParticipantRole(""), turn.ResponderRole)
}

func TestPromptEnvelopeIsInvisibleAndDrivesNoReply(t *testing.T) {
	h := newHarness(t, llmclient.NewEchoMock())
	dlg := mustCreateDialogue(t, h, domain.Dialogue{DialogueType: domain.DialogueTypeHumanAI, HumanId: "human_1", AiId: "ai_1"})

	result, err := h.orch.ProcessInput(context.Background(), inputparser.Envelope{
		DialogueId: dlg.Id, ContentType: domain.ContentTypePrompt, Content: "always answer in haiku",
		SenderRole: domain.RoleSystem, SenderId: "system",
	})
	require.NoError(t, err)
	assert.Equal(t, "always answer in haiku", result.Content)

	page, err := h.repo.ListMessages(context.Background(), domain.MessageFilter{DialogueId: dlg.Id, PageSize: 100})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total, "a prompt envelope must not trigger a model round")
}

func TestCreateDialogueRejectsMissingParticipants(t *testing.T) {
	h := newHarness(t, llmclient.NewEchoMock())
	_, err := h.orch.CreateDialogue(context.Background(), domain.Dialogue{DialogueType: domain.DialogueTypeHumanAI, HumanId: "human_1"})
	require.Error(t, err)
	kind, ok := domain.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.ErrInvalidInput, kind)
}

func TestProcessInputRejectsClosedDialogue(t *testing.T) {
	h := newHarness(t, llmclient.NewEchoMock())
	dlg := mustCreateDialogue(t, h, domain.Dialogue{DialogueType: domain.DialogueTypeHumanAI, HumanId: "human_1", AiId: "ai_1"})
	require.NoError(t, h.orch.CloseDialogue(context.Background(), dlg.Id))

	_, err := h.orch.ProcessInput(context.Background(), inputparser.Envelope{
		DialogueId: dlg.Id, ContentType: domain.ContentTypeText, Content: "hello?",
		SenderRole: domain.RoleHuman, SenderId: "human_1",
	})
	require.Error(t, err)
	kind, ok := domain.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.ErrDialogueClosed, kind)
}

func TestLLMFailureFinalizesTurnWithErrorMetadata(t *testing.T) {
	// MockResponder cannot itself return an error, so a tiny adapter client
	// simulates an LLM backend failure.
	h := newHarness(t, failingClient{})
	dlg := mustCreateDialogue(t, h, domain.Dialogue{DialogueType: domain.DialogueTypeHumanAI, HumanId: "human_1", AiId: "ai_1"})

	result, err := h.orch.ProcessInput(context.Background(), inputparser.Envelope{
		DialogueId: dlg.Id, ContentType: domain.ContentTypeText, Content: "hello",
		SenderRole: domain.RoleHuman, SenderId: "human_1",
	})
	require.NoError(t, err)
	assert.Contains(t, result.Content, "Sorry, something went wrong")

	msg, err := h.repo.GetMessage(context.Background(), result.MessageId)
	require.NoError(t, err)
	kind, ok := msg.MetaString("error_kind")
	require.True(t, ok)
	assert.Equal(t, string(domain.ErrLLMFailure), kind)
}

type failingClient struct{}

func (failingClient) Complete(ctx context.Context, params llmclient.CompletionParams) (llmclient.CompletionResult, error) {
	return llmclient.CompletionResult{}, assertErr
}
func (failingClient) Stream(ctx context.Context, params llmclient.CompletionParams, deltas chan<- llmclient.ChatMessageDelta) (llmclient.CompletionResult, error) {
	return llmclient.CompletionResult{}, assertErr
}

var assertErr = domain.NewError(domain.ErrLLMFailure, "simulated model outage", nil)
