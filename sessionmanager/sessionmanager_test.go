package sessionmanager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coreconvo/domain"
	"coreconvo/repository"
)

func TestEnsureActiveSessionCreatesWhenNoneExists(t *testing.T) {
	repo := repository.NewMemoryRepository()
	m := New(repo, repo, time.Hour)

	session, err := m.EnsureActiveSession(context.Background(), "dlg_1", 0, domain.SessionTypeDialogue)
	require.NoError(t, err)
	assert.Equal(t, "dlg_1", session.DialogueId)
	assert.True(t, session.IsOpen())
	assert.Equal(t, domain.SessionTypeDialogue, session.SessionType)
}

func TestEnsureActiveSessionReusesOpenSession(t *testing.T) {
	repo := repository.NewMemoryRepository()
	m := New(repo, repo, time.Hour)
	ctx := context.Background()

	first, err := m.EnsureActiveSession(ctx, "dlg_1", 0, domain.SessionTypeDialogue)
	require.NoError(t, err)

	second, err := m.EnsureActiveSession(ctx, "dlg_1", 0, domain.SessionTypeDialogue)
	require.NoError(t, err)
	assert.Equal(t, first.Id, second.Id)
}

func TestEnsureActiveSessionRollsOverAfterIdleTurn(t *testing.T) {
	repo := repository.NewMemoryRepository()
	m := New(repo, repo, time.Hour)
	ctx := context.Background()

	first, err := m.EnsureActiveSession(ctx, "dlg_1", 0, domain.SessionTypeDialogue)
	require.NoError(t, err)

	staleClose := time.Now().UTC().Add(-2 * time.Hour)
	_, err = repo.CreateTurn(ctx, domain.Turn{
		DialogueId: "dlg_1",
		SessionId:  first.Id,
		Status:     domain.TurnStatusResponded,
		StartedAt:  staleClose.Add(-time.Minute),
		ClosedAt:   &staleClose,
	})
	require.NoError(t, err)

	second, err := m.EnsureActiveSession(ctx, "dlg_1", time.Hour, domain.SessionTypeDialogue)
	require.NoError(t, err)
	assert.NotEqual(t, first.Id, second.Id, "a session idle past threshold must roll over")

	reloadedFirst, err := repo.GetSession(ctx, first.Id)
	require.NoError(t, err)
	assert.False(t, reloadedFirst.IsOpen())
}

func TestEnsureActiveSessionKeepsFreshTurnOpen(t *testing.T) {
	repo := repository.NewMemoryRepository()
	m := New(repo, repo, time.Hour)
	ctx := context.Background()

	first, err := m.EnsureActiveSession(ctx, "dlg_1", 0, domain.SessionTypeDialogue)
	require.NoError(t, err)

	recentClose := time.Now().UTC().Add(-time.Minute)
	_, err = repo.CreateTurn(ctx, domain.Turn{
		DialogueId: "dlg_1",
		SessionId:  first.Id,
		Status:     domain.TurnStatusResponded,
		StartedAt:  recentClose.Add(-time.Minute),
		ClosedAt:   &recentClose,
	})
	require.NoError(t, err)

	second, err := m.EnsureActiveSession(ctx, "dlg_1", time.Hour, domain.SessionTypeDialogue)
	require.NoError(t, err)
	assert.Equal(t, first.Id, second.Id)
}
