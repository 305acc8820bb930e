package introspection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coreconvo/domain"
	"coreconvo/repository"
	"coreconvo/sessionmanager"
	"coreconvo/tools"
	"coreconvo/turnmanager"
)

func newEngine(t *testing.T) (*Engine, *repository.MemoryRepository) {
	t.Helper()
	repo := repository.NewMemoryRepository()
	sessions := sessionmanager.New(repo, repo, time.Hour)
	turns := turnmanager.New(repo, time.Hour)
	registry := tools.NewRegistry()
	tools.RegisterDefaults(registry)
	invoker := tools.NewInvoker(registry, repo, 5*time.Second)
	return New(repo, sessions, turns, invoker), repo
}

func TestRunCompletesToolFreeSteps(t *testing.T) {
	engine, repo := newEngine(t)
	ctx := context.Background()

	plan := []StepPlan{
		{Purpose: "review the last conversation", MoodShift: "curious"},
		{Purpose: "note what went well", MoodShift: "content"},
	}

	session, err := engine.Run(ctx, "dlg_1", "ai_1", "daily reflection", plan)
	require.NoError(t, err)
	require.Len(t, session.Steps, 2)
	for _, step := range session.Steps {
		assert.Equal(t, domain.StepStatusDone, step.Status)
	}
	assert.Contains(t, session.Summary, "2 step(s) completed")
	assert.Contains(t, session.Summary, "0 failed")

	msgs, err := repo.ListSessionMessages(ctx, session.SessionId, 0)
	require.NoError(t, err)
	// 2 step messages + 1 summary message
	assert.Len(t, msgs, 3)
}

func TestRunRecordsToolMediatedStep(t *testing.T) {
	engine, _ := newEngine(t)
	plan := []StepPlan{
		{Purpose: "compute a mood score", ToolId: "calculator", ToolInput: map[string]any{"expression": "3 + 4"}},
	}

	session, err := engine.Run(context.Background(), "dlg_1", "ai_1", "mood check", plan)
	require.NoError(t, err)
	require.Len(t, session.Steps, 1)
	assert.Equal(t, domain.StepStatusDone, session.Steps[0].Status)
	assert.Equal(t, "calculator", session.Steps[0].ToolUsed)
	assert.Contains(t, session.Steps[0].GeneratedEntry, "7")
}

func TestRunContinuesAfterFailedStep(t *testing.T) {
	engine, _ := newEngine(t)
	plan := []StepPlan{
		{Purpose: "divide by zero on purpose", ToolId: "calculator", ToolInput: map[string]any{"expression": "1 / 0"}},
		{Purpose: "recover and continue", MoodShift: "steady"},
	}

	session, err := engine.Run(context.Background(), "dlg_1", "ai_1", "resilience check", plan)
	require.NoError(t, err)
	require.Len(t, session.Steps, 2)
	assert.Equal(t, domain.StepStatusFailed, session.Steps[0].Status)
	assert.Equal(t, domain.StepStatusDone, session.Steps[1].Status, "a failed step must not abort the remaining plan")
	assert.Contains(t, session.Summary, "1 step(s) completed")
	assert.Contains(t, session.Summary, "1 failed")
}

func TestRunOpensSelfReflectionSession(t *testing.T) {
	engine, repo := newEngine(t)
	session, err := engine.Run(context.Background(), "dlg_1", "ai_1", "goal", nil)
	require.NoError(t, err)

	reloaded, err := repo.GetSession(context.Background(), session.SessionId)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionTypeSelfReflection, reloaded.SessionType)
}
