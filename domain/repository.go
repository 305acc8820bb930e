package domain

import "context"

// Repository composes every per-entity persistence interface into the one
// façade the orchestrator and API layer are injected with, mirroring the
// teacher's DatabaseAccessor composition of per-entity interfaces.
type Repository interface {
	DialogueRepository
	SessionRepository
	TurnRepository
	MessageRepository
	ToolCallRepository
	EventLogRepository
	IntrospectionRepository
	CollaborationRepository

	CheckConnection(ctx context.Context) error
}
