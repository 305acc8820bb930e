// Package repository implements domain.Repository against two backends: an
// in-process memory store (selected by DB_URL=memory, and what every
// orchestrator-level test runs against) and a durable SQLite store, following
// the teacher's two parallel srv/redis and srv/sqlite backends behind one
// db.DatabaseAccessor interface.
package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"

	"coreconvo/domain"
)

// MemoryRepository is the in-process, non-durable Repository implementation.
// It is the default backend (DB_URL=memory) and the only backend exercised
// by the orchestrator's own test suite.
type MemoryRepository struct {
	mu sync.RWMutex

	dialogues map[string]domain.Dialogue
	sessions  map[string]domain.Session
	turns     map[string]domain.Turn
	messages  map[string]domain.Message
	// messageOrder preserves insertion sequence for the monotonic tiebreak
	// required by §3 and §8's ordering invariant.
	messageOrder []string
	seq          int64

	toolCalls     map[string][]domain.ToolCall
	events        map[string][]domain.EventLog
	introspection map[string]domain.IntrospectionSession
	collabSess    map[string]domain.CollaborationSession
	collabMsgs    map[string][]domain.CollaborationMessage
}

var _ domain.Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		dialogues:     make(map[string]domain.Dialogue),
		sessions:      make(map[string]domain.Session),
		turns:         make(map[string]domain.Turn),
		messages:      make(map[string]domain.Message),
		toolCalls:     make(map[string][]domain.ToolCall),
		events:        make(map[string][]domain.EventLog),
		introspection: make(map[string]domain.IntrospectionSession),
		collabSess:    make(map[string]domain.CollaborationSession),
		collabMsgs:    make(map[string][]domain.CollaborationMessage),
	}
}

func (r *MemoryRepository) CheckConnection(ctx context.Context) error { return nil }

func newID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// newLogID assigns a ksuid-derived id to append-only log entities (ToolCall,
// EventLog) instead of newID's uuid, since ksuid's embedded timestamp keeps
// ids sortable by creation order -- pagination cursors over these two
// entities can then be a plain id comparison rather than a separate
// timestamp column.
func newLogID(prefix string) string {
	return prefix + "_" + ksuid.New().String()
}

// now returns the Repository-assigned creation instant, truncated to
// microseconds so that `sequenceNum`, not sub-microsecond jitter, is what
// breaks ties -- the Repository MUST assign creation timestamps, not trust
// client clocks, per §5.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// --- Dialogue ---

func (r *MemoryRepository) CreateDialogue(ctx context.Context, d domain.Dialogue) (domain.Dialogue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.Id == "" {
		d.Id = newID("dlg")
	}
	d.CreatedAt = now()
	d.LastActivityAt = d.CreatedAt
	d.IsActive = true
	r.dialogues[d.Id] = d
	return d, nil
}

func (r *MemoryRepository) GetDialogue(ctx context.Context, id string) (domain.Dialogue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.dialogues[id]
	if !ok {
		return domain.Dialogue{}, domain.NewError(domain.ErrDialogueNotFound, "dialogue not found: "+id, nil)
	}
	return d, nil
}

func (r *MemoryRepository) UpdateDialogue(ctx context.Context, d domain.Dialogue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.dialogues[d.Id]
	if !ok {
		return domain.NewError(domain.ErrDialogueNotFound, "dialogue not found: "+d.Id, nil)
	}
	// last_activity_at is monotonically non-decreasing
	if d.LastActivityAt.Before(existing.LastActivityAt) {
		d.LastActivityAt = existing.LastActivityAt
	}
	r.dialogues[d.Id] = d
	return nil
}

func (r *MemoryRepository) ListDialogues(ctx context.Context, filter domain.DialogueFilter) (domain.Page[domain.Dialogue], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []domain.Dialogue
	for _, d := range r.dialogues {
		if filter.DialogueType != "" && d.DialogueType != filter.DialogueType {
			continue
		}
		if filter.HumanId != "" && d.HumanId != filter.HumanId {
			continue
		}
		if filter.AiId != "" && d.AiId != filter.AiId {
			continue
		}
		if filter.IsActive != nil && d.IsActive != *filter.IsActive {
			continue
		}
		all = append(all, d)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return paginate(all, filter.Page, filter.PageSize), nil
}

func (r *MemoryRepository) CloseDialogue(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.dialogues[id]
	if !ok {
		return domain.NewError(domain.ErrDialogueNotFound, "dialogue not found: "+id, nil)
	}
	if !d.IsActive {
		return nil // closing an already-closed dialogue is a no-op, per §8
	}
	d.IsActive = false
	r.dialogues[id] = d
	for sid, s := range r.sessions {
		if s.DialogueId == id && s.IsOpen() {
			end := now()
			s.EndAt = &end
			r.sessions[sid] = s
		}
	}
	return nil
}

// --- Session ---

func (r *MemoryRepository) CreateSession(ctx context.Context, s domain.Session) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.Id == "" {
		s.Id = newID("ses")
	}
	if s.StartAt.IsZero() {
		s.StartAt = now()
	}
	r.sessions[s.Id] = s
	return s, nil
}

func (r *MemoryRepository) GetSession(ctx context.Context, id string) (domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return domain.Session{}, domain.NewError(domain.ErrNotFound, "session not found: "+id, nil)
	}
	return s, nil
}

func (r *MemoryRepository) CloseSession(ctx context.Context, id string, endAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return domain.NewError(domain.ErrNotFound, "session not found: "+id, nil)
	}
	s.EndAt = &endAt
	r.sessions[id] = s
	return nil
}

func (r *MemoryRepository) GetOpenSession(ctx context.Context, dialogueId string) (domain.Session, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best domain.Session
	found := false
	for _, s := range r.sessions {
		if s.DialogueId == dialogueId && s.IsOpen() {
			if !found || s.StartAt.After(best.StartAt) {
				best = s
				found = true
			}
		}
	}
	return best, found, nil
}

func (r *MemoryRepository) ListSessions(ctx context.Context, filter domain.SessionFilter) (domain.Page[domain.Session], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []domain.Session
	for _, s := range r.sessions {
		if filter.DialogueId != "" && s.DialogueId != filter.DialogueId {
			continue
		}
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartAt.Before(all[j].StartAt) })
	return paginate(all, filter.Page, filter.PageSize), nil
}

// --- Turn ---

func (r *MemoryRepository) CreateTurn(ctx context.Context, t domain.Turn) (domain.Turn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.Id == "" {
		t.Id = newID("trn")
	}
	if t.StartedAt.IsZero() {
		t.StartedAt = now()
	}
	if t.Status == "" {
		t.Status = domain.TurnStatusPending
	}
	r.turns[t.Id] = t
	return t, nil
}

func (r *MemoryRepository) GetTurn(ctx context.Context, id string) (domain.Turn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.turns[id]
	if !ok {
		return domain.Turn{}, domain.NewError(domain.ErrNotFound, "turn not found: "+id, nil)
	}
	return t, nil
}

func (r *MemoryRepository) UpdateTurn(ctx context.Context, t domain.Turn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.turns[t.Id]
	if !ok {
		return domain.NewError(domain.ErrNotFound, "turn not found: "+t.Id, nil)
	}
	if existing.Terminal() && existing.Status != t.Status {
		return domain.NewError(domain.ErrTurnClosed, "terminal turn status is immutable: "+t.Id, nil)
	}
	r.turns[t.Id] = t
	return nil
}

func (r *MemoryRepository) ListTurns(ctx context.Context, filter domain.TurnFilter) (domain.Page[domain.Turn], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []domain.Turn
	for _, t := range r.turns {
		if filter.DialogueId != "" && t.DialogueId != filter.DialogueId {
			continue
		}
		if filter.SessionId != "" && t.SessionId != filter.SessionId {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartedAt.Before(all[j].StartedAt) })
	return paginate(all, filter.Page, filter.PageSize), nil
}

func (r *MemoryRepository) ListPendingBefore(ctx context.Context, asOf time.Time) ([]domain.Turn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Turn
	for _, t := range r.turns {
		if t.Status == domain.TurnStatusPending && !t.Deadline().After(asOf) {
			out = append(out, t)
		}
	}
	return out, nil
}

// --- Message ---

func (r *MemoryRepository) CreateMessage(ctx context.Context, m domain.Message) (domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.Id == "" {
		m.Id = newID("msg")
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now()
	}
	r.seq++
	m.SequenceNum = r.seq
	r.messages[m.Id] = m
	r.messageOrder = append(r.messageOrder, m.Id)
	return m, nil
}

func (r *MemoryRepository) GetMessage(ctx context.Context, id string) (domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.messages[id]
	if !ok {
		return domain.Message{}, domain.NewError(domain.ErrNotFound, "message not found: "+id, nil)
	}
	return m, nil
}

func (r *MemoryRepository) ListMessages(ctx context.Context, filter domain.MessageFilter) (domain.Page[domain.Message], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []domain.Message
	for _, id := range r.messageOrder {
		m := r.messages[id]
		if filter.DialogueId != "" && m.DialogueId != filter.DialogueId {
			continue
		}
		if filter.SessionId != "" && m.SessionId != filter.SessionId {
			continue
		}
		if filter.TurnId != "" && m.TurnId != filter.TurnId {
			continue
		}
		if filter.SenderRole != "" && m.SenderRole != filter.SenderRole {
			continue
		}
		if filter.ContentType != "" && m.ContentType != filter.ContentType {
			continue
		}
		if filter.Since != nil && m.CreatedAt.Before(*filter.Since) {
			continue
		}
		if filter.Until != nil && m.CreatedAt.After(*filter.Until) {
			continue
		}
		if filter.Query != "" && !strings.Contains(strings.ToLower(m.Content), strings.ToLower(filter.Query)) {
			continue
		}
		all = append(all, m)
	}
	return paginate(all, filter.Page, filter.PageSize), nil
}

func (r *MemoryRepository) ListTurnMessages(ctx context.Context, turnId string) ([]domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Message
	for _, id := range r.messageOrder {
		m := r.messages[id]
		if m.TurnId == turnId {
			out = append(out, m)
		}
	}
	sortMessages(out)
	return out, nil
}

func (r *MemoryRepository) ListSessionMessages(ctx context.Context, sessionId string, limit int) ([]domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []domain.Message
	for _, id := range r.messageOrder {
		m := r.messages[id]
		if m.SessionId == sessionId {
			matched = append(matched, m)
		}
	}
	sortMessages(matched)
	// reverse-chronological, most recent first, capped at limit
	out := make([]domain.Message, 0, len(matched))
	for i := len(matched) - 1; i >= 0; i-- {
		out = append(out, matched[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func sortMessages(msgs []domain.Message) {
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].SequenceNum < msgs[j].SequenceNum
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}

// --- ToolCall ---

func (r *MemoryRepository) CreateToolCall(ctx context.Context, c domain.ToolCall) (domain.ToolCall, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.Id == "" {
		c.Id = newLogID("tc")
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now()
	}
	r.toolCalls[c.DialogueId] = append(r.toolCalls[c.DialogueId], c)
	return c, nil
}

func (r *MemoryRepository) ListToolCalls(ctx context.Context, dialogueId, turnId string) ([]domain.ToolCall, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.ToolCall
	for _, c := range r.toolCalls[dialogueId] {
		if turnId == "" || c.TurnId == turnId {
			out = append(out, c)
		}
	}
	return out, nil
}

// --- EventLog ---

func (r *MemoryRepository) AppendEvent(ctx context.Context, e domain.EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.Id == "" {
		e.Id = newLogID("evt")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now()
	}
	r.events[e.DialogueId] = append(r.events[e.DialogueId], e)
	return nil
}

func (r *MemoryRepository) ListEvents(ctx context.Context, dialogueId string, limit int) ([]domain.EventLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.events[dialogueId]
	if limit <= 0 || limit >= len(all) {
		out := make([]domain.EventLog, len(all))
		copy(out, all)
		return out, nil
	}
	return append([]domain.EventLog{}, all[len(all)-limit:]...), nil
}

// --- IntrospectionSession ---

func (r *MemoryRepository) CreateIntrospectionSession(ctx context.Context, s domain.IntrospectionSession) (domain.IntrospectionSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.Id == "" {
		s.Id = newID("intro")
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now()
	}
	r.introspection[s.Id] = s
	return s, nil
}

func (r *MemoryRepository) GetIntrospectionSession(ctx context.Context, id string) (domain.IntrospectionSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.introspection[id]
	if !ok {
		return domain.IntrospectionSession{}, domain.NewError(domain.ErrNotFound, "introspection session not found: "+id, nil)
	}
	return s, nil
}

func (r *MemoryRepository) UpdateIntrospectionSession(ctx context.Context, s domain.IntrospectionSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.introspection[s.Id]; !ok {
		return domain.NewError(domain.ErrNotFound, "introspection session not found: "+s.Id, nil)
	}
	r.introspection[s.Id] = s
	return nil
}

// --- CollaborationSession ---

func (r *MemoryRepository) CreateCollaborationSession(ctx context.Context, s domain.CollaborationSession) (domain.CollaborationSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.Id == "" {
		s.Id = newID("collab")
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now()
	}
	r.collabSess[s.Id] = s
	return s, nil
}

func (r *MemoryRepository) AppendCollaborationMessage(ctx context.Context, m domain.CollaborationMessage) (domain.CollaborationMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.Id == "" {
		m.Id = newID("cmsg")
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now()
	}
	r.collabMsgs[m.CollaborationSessionId] = append(r.collabMsgs[m.CollaborationSessionId], m)
	return m, nil
}

func (r *MemoryRepository) ListCollaborationMessages(ctx context.Context, collaborationSessionId string) ([]domain.CollaborationMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := r.collabMsgs[collaborationSessionId]
	cp := make([]domain.CollaborationMessage, len(out))
	copy(cp, out)
	return cp, nil
}

// paginate applies page/page_size defaults (default 20, max 100) and builds
// the pagination envelope of §6.
func paginate[T any](all []T, page, pageSize int) domain.Page[T] {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	total := len(all)
	totalPages := (total + pageSize - 1) / pageSize
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	items := append([]T{}, all[start:end]...)
	return domain.Page[T]{Items: items, Total: total, Page: page, PageSize: pageSize, TotalPages: totalPages}
}
