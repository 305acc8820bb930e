// Package introspection implements §4.8: the IntrospectionEngine that drives
// a self_reflection Session within an ai_self Dialogue, generalized from the
// teacher's multi-step dev-agent workflow (dev/basic_dev_workflow.go) --
// sequential steps, a failure in one step is recorded and the run continues
// with the next rather than rolling back, and a final summary closes it out.
package introspection

import (
	"context"
	"fmt"

	"coreconvo/domain"
	"coreconvo/sessionmanager"
	"coreconvo/tools"
	"coreconvo/turnmanager"
)

// StepPlan is one planned reflection step: a purpose, and optionally a tool
// to mediate it. ToolId == "" runs a tool-free reflection step whose
// generated entry is just the purpose restated; the engine does not itself
// call an LLM.
type StepPlan struct {
	Purpose   string
	ToolId    string
	ToolInput map[string]any
	MoodShift string
}

// Engine drives self-reflection runs.
type Engine struct {
	repo     domain.Repository
	sessions *sessionmanager.Manager
	turns    *turnmanager.Manager
	invoker  *tools.Invoker
}

func New(repo domain.Repository, sessions *sessionmanager.Manager, turns *turnmanager.Manager, invoker *tools.Invoker) *Engine {
	return &Engine{repo: repo, sessions: sessions, turns: turns, invoker: invoker}
}

// Run opens (or reuses) the ai_self Dialogue's self_reflection Session,
// executes each planned step sequentially -- a step that fails is marked
// failed and execution continues with the next step, per §4.8 -- and closes
// with a summary Turn aggregating the run.
func (e *Engine) Run(ctx context.Context, dialogueId, aiId, goal string, plan []StepPlan) (domain.IntrospectionSession, error) {
	session, err := e.sessions.EnsureActiveSession(ctx, dialogueId, sessionmanager.DefaultIdleThreshold, domain.SessionTypeSelfReflection)
	if err != nil {
		return domain.IntrospectionSession{}, err
	}

	intro, err := e.repo.CreateIntrospectionSession(ctx, domain.IntrospectionSession{
		DialogueId: dialogueId,
		SessionId:  session.Id,
		Goal:       goal,
	})
	if err != nil {
		return domain.IntrospectionSession{}, err
	}

	steps := make([]domain.IntrospectionTurn, 0, len(plan))
	for _, step := range plan {
		it := e.runStep(ctx, dialogueId, aiId, session.Id, step)
		steps = append(steps, it)
	}
	intro.Steps = steps
	intro.Summary = summarize(goal, steps)

	if err := e.repo.UpdateIntrospectionSession(ctx, intro); err != nil {
		return domain.IntrospectionSession{}, err
	}

	if err := e.closeWithSummary(ctx, dialogueId, aiId, session.Id, intro.Summary); err != nil {
		return domain.IntrospectionSession{}, err
	}

	return intro, nil
}

// runStep executes one reflection step as an ordinary Turn/Message pair in
// the self_reflection Session, so the existing persistence machinery is
// reused rather than duplicated; IntrospectionTurn is the read-side
// projection returned to the caller.
func (e *Engine) runStep(ctx context.Context, dialogueId, aiId, sessionId string, step StepPlan) domain.IntrospectionTurn {
	turn, err := e.turns.OpenTurn(ctx, dialogueId, sessionId, domain.RoleAI, domain.RoleAI, 0)
	if err != nil {
		return domain.IntrospectionTurn{Purpose: step.Purpose, Status: domain.StepStatusFailed, GeneratedEntry: err.Error()}
	}

	it := domain.IntrospectionTurn{TurnId: turn.Id, Purpose: step.Purpose, MoodShift: step.MoodShift}

	var toolOutput string
	var stepErr error
	if step.ToolId != "" {
		outcome := e.invoker.Invoke(ctx, tools.Invocation{DialogueId: dialogueId, TurnId: turn.Id, ToolId: step.ToolId, Parameters: step.ToolInput})
		it.ToolUsed = step.ToolId
		it.ToolInput = step.ToolInput
		toolOutput = outcome.Output
		if !outcome.Success {
			stepErr = outcome.Err
		}
	}

	if stepErr != nil {
		it.Status = domain.StepStatusFailed
		it.GeneratedEntry = fmt.Sprintf("step %q failed: %v", step.Purpose, stepErr)
	} else {
		it.ToolOutput = toolOutput
		it.Status = domain.StepStatusDone
		it.GeneratedEntry = generateEntry(step, toolOutput)
	}

	msg, err := e.repo.CreateMessage(ctx, domain.Message{
		DialogueId:  dialogueId,
		SessionId:   sessionId,
		TurnId:      turn.Id,
		SenderRole:  domain.RoleAI,
		SenderId:    aiId,
		Content:     it.GeneratedEntry,
		ContentType: domain.ContentTypeText,
		Metadata:    map[string]any{"emotion": it.MoodShift, "introspection_status": string(it.Status)},
	})
	if err == nil {
		_, _ = e.turns.AttachResponse(ctx, turn, msg)
	}

	return it
}

func generateEntry(step StepPlan, toolOutput string) string {
	if toolOutput == "" {
		return step.Purpose
	}
	return fmt.Sprintf("%s -- %s", step.Purpose, toolOutput)
}

func summarize(goal string, steps []domain.IntrospectionTurn) string {
	done, failed := 0, 0
	for _, s := range steps {
		if s.Status == domain.StepStatusDone {
			done++
		} else if s.Status == domain.StepStatusFailed {
			failed++
		}
	}
	return fmt.Sprintf("Reflection on %q: %d step(s) completed, %d failed.", goal, done, failed)
}

func (e *Engine) closeWithSummary(ctx context.Context, dialogueId, aiId, sessionId, summary string) error {
	turn, err := e.turns.OpenTurn(ctx, dialogueId, sessionId, domain.RoleAI, domain.RoleAI, 0)
	if err != nil {
		return err
	}
	msg, err := e.repo.CreateMessage(ctx, domain.Message{
		DialogueId:  dialogueId,
		SessionId:   sessionId,
		TurnId:      turn.Id,
		SenderRole:  domain.RoleAI,
		SenderId:    aiId,
		Content:     summary,
		ContentType: domain.ContentTypeText,
		Metadata:    map[string]any{"introspection_summary": true},
	})
	if err != nil {
		return err
	}
	_, err = e.turns.AttachResponse(ctx, turn, msg)
	return err
}
