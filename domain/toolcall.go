package domain

import (
	"context"
	"time"
)

// ToolCall is the per-invocation record the ToolInvoker writes for every
// dispatched tool, win or lose.
type ToolCall struct {
	Id          string         `json:"id"`
	DialogueId  string         `json:"dialogueId"`
	TurnId      string         `json:"turnId"`
	ToolId      string         `json:"toolId"`
	Parameters  map[string]any `json:"parameters"`
	Success     bool           `json:"success"`
	Result      string         `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	LatencyMs   int64          `json:"latencyMs"`
	CreatedAt   time.Time      `json:"createdAt"`
}

type ToolCallRepository interface {
	CreateToolCall(ctx context.Context, call ToolCall) (ToolCall, error)
	ListToolCalls(ctx context.Context, dialogueId, turnId string) ([]ToolCall, error)
}

// EventKind enumerates the append-only pipeline trace's entry kinds.
type EventKind string

const (
	EventKindInfo    EventKind = "info"
	EventKindWarning EventKind = "warning"
	EventKindError   EventKind = "error"
)

// EventLog is an append-only pipeline trace entry, written for internal
// failure details that should not be surfaced verbatim to end users (see §7).
type EventLog struct {
	Id         string         `json:"id"`
	DialogueId string         `json:"dialogueId"`
	TurnId     string         `json:"turnId,omitempty"`
	Kind       EventKind      `json:"kind"`
	Stage      string         `json:"stage"`
	Message    string         `json:"message"`
	ErrorKind  ErrorKind      `json:"errorKind,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

type EventLogRepository interface {
	AppendEvent(ctx context.Context, event EventLog) error
	ListEvents(ctx context.Context, dialogueId string, limit int) ([]EventLog, error)
}
