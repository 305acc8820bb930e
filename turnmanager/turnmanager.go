// Package turnmanager implements §4.3's Turn state machine: openTurn,
// attachResponse, and a sweep that expires pending Turns past their
// response-window deadline. The sweeper follows the teacher's
// container/heap-backed scheduling idiom (a min-heap of deadlines woken by a
// timer reset to the earliest one) generalized from workflow-timer
// scheduling to Turn deadlines.
package turnmanager

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"coreconvo/domain"
)

const DefaultResponseWindow = 3 * time.Hour

// Manager owns Turn state transitions.
type Manager struct {
	turns domain.TurnRepository

	mu            sync.Mutex
	deadlineHeap  deadlineHeap
	indexedTurns  map[string]bool
	defaultWindow time.Duration
}

func New(turns domain.TurnRepository, defaultWindow time.Duration) *Manager {
	if defaultWindow <= 0 {
		defaultWindow = DefaultResponseWindow
	}
	return &Manager{turns: turns, indexedTurns: make(map[string]bool), defaultWindow: defaultWindow}
}

// OpenTurn creates a pending Turn and schedules its deadline into the
// sweeper's heap.
func (m *Manager) OpenTurn(ctx context.Context, dialogueId, sessionId string, initiator, responder domain.ParticipantRole, window time.Duration) (domain.Turn, error) {
	if window <= 0 {
		window = m.defaultWindow
	}
	turn := domain.Turn{
		DialogueId:     dialogueId,
		SessionId:      sessionId,
		InitiatorRole:  initiator,
		ResponderRole:  responder,
		Status:         domain.TurnStatusPending,
		ResponseWindow: window,
	}
	created, err := m.turns.CreateTurn(ctx, turn)
	if err != nil {
		return domain.Turn{}, err
	}
	m.schedule(created)
	return created, nil
}

// AttachResponse transitions a pending Turn to responded iff message.SenderRole
// matches the Turn's responder role and the message arrives within the
// deadline, per §4.3.
func (m *Manager) AttachResponse(ctx context.Context, turn domain.Turn, message domain.Message) (domain.Turn, error) {
	if turn.Status != domain.TurnStatusPending {
		return turn, nil
	}
	// A broadcast Turn (group dialogue types) has no responder_role fixed
	// upfront; any reply closes it, assigning the role on demand.
	if turn.ResponderRole != "" && message.SenderRole != turn.ResponderRole {
		return turn, nil
	}
	if message.CreatedAt.After(turn.Deadline()) {
		return turn, nil
	}
	turn.Status = domain.TurnStatusResponded
	closedAt := message.CreatedAt
	turn.ClosedAt = &closedAt
	if err := m.turns.UpdateTurn(ctx, turn); err != nil {
		return domain.Turn{}, err
	}
	return turn, nil
}

// Sweep transitions all expired pending Turns to unresponded. It is invoked
// both by the background goroutine (Run) and synchronously and inline at the
// top of every processInput call per SPEC_FULL.md §4.3, so a single-process
// test never depends on the background goroutine's scheduling.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	expired, err := m.turns.ListPendingBefore(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	count := 0
	for _, t := range expired {
		deadline := t.Deadline()
		t.Status = domain.TurnStatusUnresponded
		t.ClosedAt = &deadline
		if err := m.turns.UpdateTurn(ctx, t); err != nil {
			continue
		}
		count++
	}
	return count, nil
}

// Run starts the background sweeper goroutine, woken by a timer reset to the
// earliest scheduled deadline (or a coarse fallback poll interval when the
// heap is empty), until ctx is canceled.
func (m *Manager) Run(ctx context.Context) {
	const fallbackPoll = 30 * time.Second
	timer := time.NewTimer(fallbackPoll)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			_, _ = m.Sweep(ctx)
			timer.Reset(m.nextWakeInterval(fallbackPoll))
		}
	}
}

func (m *Manager) schedule(t domain.Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexedTurns[t.Id] {
		return
	}
	m.indexedTurns[t.Id] = true
	heap.Push(&m.deadlineHeap, deadlineEntry{turnId: t.Id, deadline: t.Deadline()})
}

func (m *Manager) nextWakeInterval(fallback time.Duration) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.deadlineHeap.Len() > 0 && m.deadlineHeap[0].deadline.Before(time.Now().UTC()) {
		entry := heap.Pop(&m.deadlineHeap).(deadlineEntry)
		delete(m.indexedTurns, entry.turnId)
	}
	if m.deadlineHeap.Len() == 0 {
		return fallback
	}
	wait := time.Until(m.deadlineHeap[0].deadline)
	if wait < 0 {
		return 0
	}
	if wait > fallback {
		return fallback
	}
	return wait
}

type deadlineEntry struct {
	turnId   string
	deadline time.Time
}

// deadlineHeap is a container/heap min-heap ordered by deadline.
type deadlineHeap []deadlineEntry

func (h deadlineHeap) Len() int            { return len(h) }
func (h deadlineHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h deadlineHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *deadlineHeap) Push(x any)         { *h = append(*h, x.(deadlineEntry)) }
func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
