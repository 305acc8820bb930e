package domain

import (
	"context"
	"time"
)

type IntrospectionStepStatus string

const (
	StepStatusPending IntrospectionStepStatus = "pending"
	StepStatusDone    IntrospectionStepStatus = "done"
	StepStatusFailed  IntrospectionStepStatus = "failed"
)

// IntrospectionTurn is one step of a self-reflection pass: a purpose, an
// optional tool mediating it, and the observed mood shift. It is backed by an
// ordinary Turn/Message pair in the introspection Session -- this struct is
// the read-side projection the IntrospectionEngine hands back to callers, not
// a separate storage representation.
type IntrospectionTurn struct {
	TurnId         string                  `json:"turnId"`
	Purpose        string                  `json:"purpose"`
	ToolUsed       string                  `json:"toolUsed,omitempty"`
	ToolInput      map[string]any          `json:"toolInput,omitempty"`
	ToolOutput     string                  `json:"toolOutput,omitempty"`
	MoodShift      string                  `json:"moodShift,omitempty"`
	GeneratedEntry string                  `json:"generatedEntry,omitempty"`
	Status         IntrospectionStepStatus `json:"status"`
}

// IntrospectionSession indexes the ordered steps of a self_reflection Session
// by goal.
type IntrospectionSession struct {
	Id         string              `json:"id"`
	DialogueId string              `json:"dialogueId"`
	SessionId  string              `json:"sessionId"`
	Goal       string              `json:"goal"`
	Steps      []IntrospectionTurn `json:"steps"`
	Summary    string              `json:"summary,omitempty"`
	CreatedAt  time.Time           `json:"createdAt"`
}

type IntrospectionRepository interface {
	CreateIntrospectionSession(ctx context.Context, s IntrospectionSession) (IntrospectionSession, error)
	GetIntrospectionSession(ctx context.Context, id string) (IntrospectionSession, error)
	UpdateIntrospectionSession(ctx context.Context, s IntrospectionSession) error
}

// CollaborationSession is a multi-agent task plus its participant list, used
// by ai_ai and ai_multi_human dialogues to record sub-turns exchanged between
// collaborating agents without overloading the primary Message table.
type CollaborationSession struct {
	Id           string    `json:"id"`
	DialogueId   string    `json:"dialogueId"`
	Goal         string    `json:"goal"`
	Participants []string  `json:"participants"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CollaborationMessage is one exchange within a CollaborationSession.
type CollaborationMessage struct {
	Id                     string    `json:"id"`
	CollaborationSessionId string    `json:"collaborationSessionId"`
	FromParticipant        string    `json:"fromParticipant"`
	ToParticipant          string    `json:"toParticipant,omitempty"`
	Content                string    `json:"content"`
	CreatedAt              time.Time `json:"createdAt"`
}

type CollaborationRepository interface {
	CreateCollaborationSession(ctx context.Context, s CollaborationSession) (CollaborationSession, error)
	AppendCollaborationMessage(ctx context.Context, m CollaborationMessage) (CollaborationMessage, error)
	ListCollaborationMessages(ctx context.Context, collaborationSessionId string) ([]CollaborationMessage, error)
}
