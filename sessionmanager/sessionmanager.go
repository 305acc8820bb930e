// Package sessionmanager implements §4.4: opening/closing Sessions within a
// Dialogue based on idle thresholds or explicit triggers.
package sessionmanager

import (
	"context"
	"time"

	"coreconvo/domain"
)

const DefaultIdleThreshold = time.Hour

// Manager owns Session lifecycle within a Dialogue.
type Manager struct {
	sessions      domain.SessionRepository
	turns         domain.TurnRepository
	defaultIdle   time.Duration
}

func New(sessions domain.SessionRepository, turns domain.TurnRepository, defaultIdle time.Duration) *Manager {
	if defaultIdle <= 0 {
		defaultIdle = DefaultIdleThreshold
	}
	return &Manager{sessions: sessions, turns: turns, defaultIdle: defaultIdle}
}

// EnsureActiveSession returns the Dialogue's current open Session, creating
// one when none exists or when the last Turn's closed_at is older than the
// idle threshold. An open Session with no closed Turn yet is always reused.
func (m *Manager) EnsureActiveSession(ctx context.Context, dialogueId string, idleThreshold time.Duration, sessionType domain.SessionType) (domain.Session, error) {
	if idleThreshold <= 0 {
		idleThreshold = m.defaultIdle
	}

	open, found, err := m.sessions.GetOpenSession(ctx, dialogueId)
	if err != nil {
		return domain.Session{}, err
	}
	if found {
		stale, err := m.isStale(ctx, open, idleThreshold)
		if err != nil {
			return domain.Session{}, err
		}
		if !stale {
			return open, nil
		}
		if err := m.CloseSession(ctx, open.Id, time.Now().UTC()); err != nil {
			return domain.Session{}, err
		}
	}

	return m.sessions.CreateSession(ctx, domain.Session{
		DialogueId:  dialogueId,
		SessionType: sessionType,
		CreatedBy:   domain.CreatedBySystem,
	})
}

// isStale reports whether session's last Turn ended more than idleThreshold
// ago; a session with no closed Turn yet is never stale on that basis alone.
func (m *Manager) isStale(ctx context.Context, session domain.Session, idleThreshold time.Duration) (bool, error) {
	page, err := m.turns.ListTurns(ctx, domain.TurnFilter{SessionId: session.Id, PageSize: 100})
	if err != nil {
		return false, err
	}
	var lastClosed *time.Time
	for _, t := range page.Items {
		if t.ClosedAt == nil {
			continue
		}
		if lastClosed == nil || t.ClosedAt.After(*lastClosed) {
			lastClosed = t.ClosedAt
		}
	}
	if lastClosed == nil {
		return false, nil
	}
	return time.Since(*lastClosed) > idleThreshold, nil
}

// CloseSession closes a Session by setting its end_at to endAt. The Session's
// description is left unchanged; no summary is appended.
func (m *Manager) CloseSession(ctx context.Context, sessionId string, endAt time.Time) error {
	return m.sessions.CloseSession(ctx, sessionId, endAt)
}
