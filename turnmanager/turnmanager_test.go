package turnmanager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coreconvo/domain"
	"coreconvo/repository"
)

func TestOpenTurnDefaultsWindow(t *testing.T) {
	repo := repository.NewMemoryRepository()
	m := New(repo, 0)

	turn, err := m.OpenTurn(context.Background(), "dlg_1", "ses_1", domain.RoleHuman, domain.RoleAI, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultResponseWindow, turn.ResponseWindow)
	assert.Equal(t, domain.TurnStatusPending, turn.Status)
}

func TestAttachResponseClosesMatchingTurn(t *testing.T) {
	repo := repository.NewMemoryRepository()
	m := New(repo, time.Hour)
	ctx := context.Background()

	turn, err := m.OpenTurn(ctx, "dlg_1", "ses_1", domain.RoleHuman, domain.RoleAI, time.Hour)
	require.NoError(t, err)

	msg := domain.Message{SenderRole: domain.RoleAI, CreatedAt: turn.StartedAt.Add(time.Minute)}
	updated, err := m.AttachResponse(ctx, turn, msg)
	require.NoError(t, err)
	assert.Equal(t, domain.TurnStatusResponded, updated.Status)
	require.NotNil(t, updated.ClosedAt)
	assert.True(t, updated.ClosedAt.Equal(msg.CreatedAt))
}

func TestAttachResponseIgnoresWrongRole(t *testing.T) {
	repo := repository.NewMemoryRepository()
	m := New(repo, time.Hour)
	ctx := context.Background()

	turn, err := m.OpenTurn(ctx, "dlg_1", "ses_1", domain.RoleAI, domain.RoleHuman, time.Hour)
	require.NoError(t, err)

	msg := domain.Message{SenderRole: domain.RoleAI, CreatedAt: turn.StartedAt.Add(time.Minute)}
	updated, err := m.AttachResponse(ctx, turn, msg)
	require.NoError(t, err)
	assert.Equal(t, domain.TurnStatusPending, updated.Status)
}

func TestAttachResponseBroadcastTurnAcceptsAnyRole(t *testing.T) {
	repo := repository.NewMemoryRepository()
	m := New(repo, time.Hour)
	ctx := context.Background()

	turn, err := m.OpenTurn(ctx, "dlg_1", "ses_1", domain.RoleHuman, "", time.Hour)
	require.NoError(t, err)

	msg := domain.Message{SenderRole: domain.RoleAI, CreatedAt: turn.StartedAt.Add(time.Minute)}
	updated, err := m.AttachResponse(ctx, turn, msg)
	require.NoError(t, err)
	assert.Equal(t, domain.TurnStatusResponded, updated.Status)
}

func TestAttachResponseIgnoresPastDeadline(t *testing.T) {
	repo := repository.NewMemoryRepository()
	m := New(repo, time.Hour)
	ctx := context.Background()

	turn, err := m.OpenTurn(ctx, "dlg_1", "ses_1", domain.RoleHuman, domain.RoleAI, time.Minute)
	require.NoError(t, err)

	msg := domain.Message{SenderRole: domain.RoleAI, CreatedAt: turn.StartedAt.Add(time.Hour)}
	updated, err := m.AttachResponse(ctx, turn, msg)
	require.NoError(t, err)
	assert.Equal(t, domain.TurnStatusPending, updated.Status, "a late response must not close the turn")
}

func TestAttachResponseNoOpOnTerminalTurn(t *testing.T) {
	repo := repository.NewMemoryRepository()
	m := New(repo, time.Hour)
	ctx := context.Background()

	turn, err := m.OpenTurn(ctx, "dlg_1", "ses_1", domain.RoleHuman, domain.RoleAI, time.Hour)
	require.NoError(t, err)
	turn.Status = domain.TurnStatusUnresponded

	updated, err := m.AttachResponse(ctx, turn, domain.Message{SenderRole: domain.RoleAI, CreatedAt: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, domain.TurnStatusUnresponded, updated.Status)
}

func TestSweepExpiresPastDeadlineTurns(t *testing.T) {
	repo := repository.NewMemoryRepository()
	m := New(repo, time.Hour)
	ctx := context.Background()

	turn, err := repo.CreateTurn(ctx, domain.Turn{
		DialogueId:     "dlg_1",
		SessionId:      "ses_1",
		InitiatorRole:  domain.RoleHuman,
		ResponderRole:  domain.RoleAI,
		Status:         domain.TurnStatusPending,
		StartedAt:      time.Now().UTC().Add(-2 * time.Hour),
		ResponseWindow: time.Hour,
	})
	require.NoError(t, err)

	count, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	reloaded, err := repo.GetTurn(ctx, turn.Id)
	require.NoError(t, err)
	assert.Equal(t, domain.TurnStatusUnresponded, reloaded.Status)
}

func TestSweepLeavesFreshTurnsPending(t *testing.T) {
	repo := repository.NewMemoryRepository()
	m := New(repo, time.Hour)
	ctx := context.Background()

	_, err := m.OpenTurn(ctx, "dlg_1", "ses_1", domain.RoleHuman, domain.RoleAI, time.Hour)
	require.NoError(t, err)

	count, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
