package domain

import (
	"context"
	"time"
)

// DialogueType identifies one of the seven supported participant topologies.
type DialogueType string

const (
	DialogueTypeHumanAI           DialogueType = "human_ai"
	DialogueTypeAISelf            DialogueType = "ai_self"
	DialogueTypeAIAI              DialogueType = "ai_ai"
	DialogueTypeHumanHumanPrivate DialogueType = "human_human_private"
	DialogueTypeHumanHumanGroup   DialogueType = "human_human_group"
	DialogueTypeHumanAIGroup      DialogueType = "human_ai_group"
	DialogueTypeAIMultiHuman      DialogueType = "ai_multi_human"
)

func (t DialogueType) Valid() bool {
	switch t {
	case DialogueTypeHumanAI, DialogueTypeAISelf, DialogueTypeAIAI,
		DialogueTypeHumanHumanPrivate, DialogueTypeHumanHumanGroup,
		DialogueTypeHumanAIGroup, DialogueTypeAIMultiHuman:
		return true
	}
	return false
}

// Dialogue is the unique persistent container for an interaction line between
// a fixed set of participants.
type Dialogue struct {
	Id             string         `json:"id"`
	DialogueType   DialogueType   `json:"dialogueType"`
	HumanId        string         `json:"humanId,omitempty"`
	AiId           string         `json:"aiId,omitempty"`
	RelationId     string         `json:"relationId,omitempty"`
	Title          string         `json:"title"`
	Description    string         `json:"description,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	LastActivityAt time.Time      `json:"lastActivityAt"`
	IsActive       bool           `json:"isActive"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// ResponseWindow returns the per-Dialogue response-window override from
// metadata, or ok=false when no override is present, per the §9 Open
// Question: metadata overrides take precedence over configuration.
func (d Dialogue) ResponseWindow() (time.Duration, bool) {
	return durationOverride(d.Metadata, "response_window_seconds")
}

// SessionIdleThreshold returns the per-Dialogue session-idle override.
func (d Dialogue) SessionIdleThreshold() (time.Duration, bool) {
	return durationOverride(d.Metadata, "session_idle_threshold_seconds")
}

func durationOverride(metadata map[string]any, key string) (time.Duration, bool) {
	if metadata == nil {
		return 0, false
	}
	v, ok := metadata[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return time.Duration(n) * time.Second, true
	case int:
		return time.Duration(n) * time.Second, true
	case int64:
		return time.Duration(n) * time.Second, true
	default:
		return 0, false
	}
}

// DialogueRepository is the persistence façade for Dialogue records.
type DialogueRepository interface {
	CreateDialogue(ctx context.Context, dialogue Dialogue) (Dialogue, error)
	GetDialogue(ctx context.Context, id string) (Dialogue, error)
	UpdateDialogue(ctx context.Context, dialogue Dialogue) error
	ListDialogues(ctx context.Context, filter DialogueFilter) (Page[Dialogue], error)
	CloseDialogue(ctx context.Context, id string) error
}

// DialogueFilter narrows a paginated dialogue listing.
type DialogueFilter struct {
	DialogueType DialogueType
	HumanId      string
	AiId         string
	IsActive     *bool
	Page         int
	PageSize     int
}

// Page is the pagination envelope returned by every query endpoint.
type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
}
