package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTurnDeadline(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	turn := Turn{StartedAt: start, ResponseWindow: 3 * time.Hour}
	assert.Equal(t, start.Add(3*time.Hour), turn.Deadline())
}

func TestTurnResponseTime(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	turn := Turn{StartedAt: start}

	_, ok := turn.ResponseTime()
	assert.False(t, ok, "pending turn has no response time")

	closed := start.Add(90 * time.Second)
	turn.ClosedAt = &closed
	rt, ok := turn.ResponseTime()
	assert.True(t, ok)
	assert.Equal(t, 90*time.Second, rt)
}

func TestTurnTerminal(t *testing.T) {
	tests := []struct {
		status TurnStatus
		want   bool
	}{
		{TurnStatusPending, false},
		{TurnStatusResponded, true},
		{TurnStatusUnresponded, true},
	}
	for _, tt := range tests {
		turn := Turn{Status: tt.status}
		assert.Equal(t, tt.want, turn.Terminal(), tt.status)
	}
}
