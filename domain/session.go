package domain

import (
	"context"
	"time"
)

type SessionType string

const (
	SessionTypeDialogue      SessionType = "dialogue"
	SessionTypeSelfReflection SessionType = "self_reflection"
)

type CreatorRole string

const (
	CreatedBySystem CreatorRole = "system"
	CreatedByAI     CreatorRole = "ai"
	CreatedByHuman  CreatorRole = "human"
)

// Session is a contiguous context segment inside a Dialogue, bounded by idle
// time or by explicit creation.
type Session struct {
	Id          string      `json:"id"`
	DialogueId  string      `json:"dialogueId"`
	SessionType SessionType `json:"sessionType"`
	StartAt     time.Time   `json:"startAt"`
	EndAt       *time.Time  `json:"endAt,omitempty"`
	Description string      `json:"description,omitempty"`
	CreatedBy   CreatorRole `json:"createdBy"`
}

func (s Session) IsOpen() bool { return s.EndAt == nil }

type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	CloseSession(ctx context.Context, id string, endAt time.Time) error
	GetOpenSession(ctx context.Context, dialogueId string) (Session, bool, error)
	ListSessions(ctx context.Context, filter SessionFilter) (Page[Session], error)
}

type SessionFilter struct {
	DialogueId string
	Page       int
	PageSize   int
}
