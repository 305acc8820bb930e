package responsemixer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMixPlainText(t *testing.T) {
	m := New()
	got := m.Mix(Input{ModelText: "  hello there  "})
	assert.Equal(t, "hello there", got)
}

func TestMixInjectsToolCitations(t *testing.T) {
	m := New()
	got := m.Mix(Input{ModelText: "It's 72F.", ToolSummaries: []string{"weather(Paris)"}})
	assert.Contains(t, got, "It's 72F.")
	assert.Contains(t, got, "[tool: weather(Paris)]")
}

func TestMixAppliesEmotionTag(t *testing.T) {
	m := New()
	got := m.Mix(Input{ModelText: "Sure thing.", EmotionTag: "cheerful"})
	assert.Equal(t, "Sure thing. {emotion:cheerful}", got)
}

func TestMixRunsDecorationPlugins(t *testing.T) {
	m := New(func(text string) string { return strings.ToUpper(text) })
	got := m.Mix(Input{ModelText: "shout this"})
	assert.Equal(t, "SHOUT THIS", got)
}

func TestMixEnforcesMaxLength(t *testing.T) {
	m := New()
	got := m.Mix(Input{ModelText: strings.Repeat("a", 50), MaxLength: 10})
	assert.Len(t, got, 10)
}

func TestMixDefaultMaxLength(t *testing.T) {
	m := New()
	got := m.Mix(Input{ModelText: strings.Repeat("b", DefaultMaxLength+100)})
	assert.Len(t, got, DefaultMaxLength)
}
