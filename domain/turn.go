package domain

import (
	"context"
	"time"
)

type ParticipantRole string

const (
	RoleHuman  ParticipantRole = "human"
	RoleAI     ParticipantRole = "ai"
	RoleSystem ParticipantRole = "system"
)

type TurnStatus string

const (
	TurnStatusPending     TurnStatus = "pending"
	TurnStatusResponded   TurnStatus = "responded"
	TurnStatusUnresponded TurnStatus = "unresponded"
)

// Turn is a single initiator->responder interaction attempt with a bounded
// response window.
type Turn struct {
	Id             string          `json:"id"`
	DialogueId     string          `json:"dialogueId"`
	SessionId      string          `json:"sessionId"`
	InitiatorRole  ParticipantRole `json:"initiatorRole"`
	ResponderRole  ParticipantRole `json:"responderRole"`
	StartedAt      time.Time       `json:"startedAt"`
	ClosedAt       *time.Time      `json:"closedAt,omitempty"`
	Status         TurnStatus      `json:"status"`
	ResponseWindow time.Duration   `json:"-"`
}

// Deadline is the instant at which a pending Turn becomes unresponded absent
// a matching response.
func (t Turn) Deadline() time.Time { return t.StartedAt.Add(t.ResponseWindow) }

// ResponseTime is the derived latency between a Turn's start and its close,
// present only once the Turn has left the pending state.
func (t Turn) ResponseTime() (time.Duration, bool) {
	if t.ClosedAt == nil {
		return 0, false
	}
	return t.ClosedAt.Sub(t.StartedAt), true
}

func (t Turn) Terminal() bool {
	return t.Status == TurnStatusResponded || t.Status == TurnStatusUnresponded
}

type TurnRepository interface {
	CreateTurn(ctx context.Context, turn Turn) (Turn, error)
	GetTurn(ctx context.Context, id string) (Turn, error)
	UpdateTurn(ctx context.Context, turn Turn) error
	ListTurns(ctx context.Context, filter TurnFilter) (Page[Turn], error)
	// ListPendingBefore returns pending turns whose deadline has passed
	// `asOf`, for the sweeper.
	ListPendingBefore(ctx context.Context, asOf time.Time) ([]Turn, error)
}

type TurnFilter struct {
	DialogueId string
	SessionId  string
	Status     TurnStatus
	Page       int
	PageSize   int
}
