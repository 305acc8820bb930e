package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDialogueTypeValid(t *testing.T) {
	valid := []DialogueType{
		DialogueTypeHumanAI, DialogueTypeAISelf, DialogueTypeAIAI,
		DialogueTypeHumanHumanPrivate, DialogueTypeHumanHumanGroup,
		DialogueTypeHumanAIGroup, DialogueTypeAIMultiHuman,
	}
	for _, dt := range valid {
		assert.True(t, dt.Valid(), dt)
	}
	assert.False(t, DialogueType("bogus").Valid())
}

func TestDialogueResponseWindowOverride(t *testing.T) {
	tests := []struct {
		name     string
		metadata map[string]any
		wantOk   bool
		want     time.Duration
	}{
		{"no metadata", nil, false, 0},
		{"missing key", map[string]any{"other": 1}, false, 0},
		{"float64 from JSON decode", map[string]any{"response_window_seconds": float64(7200)}, true, 2 * time.Hour},
		{"int literal", map[string]any{"response_window_seconds": 60}, true, time.Minute},
		{"wrong type ignored", map[string]any{"response_window_seconds": "soon"}, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Dialogue{Metadata: tt.metadata}
			got, ok := d.ResponseWindow()
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDialogueSessionIdleThresholdOverride(t *testing.T) {
	d := Dialogue{Metadata: map[string]any{"session_idle_threshold_seconds": float64(1800)}}
	got, ok := d.SessionIdleThreshold()
	assert.True(t, ok)
	assert.Equal(t, 30*time.Minute, got)
}
