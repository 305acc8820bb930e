// Package responsemixer implements §4.7: composing the final assistant
// Message content from raw model output plus optional tool result summaries
// and an emotional style tag.
package responsemixer

import (
	"fmt"
	"strings"
)

const DefaultMaxLength = 8000

// Input is what ResponseMixer composes a final Message from.
type Input struct {
	ModelText     string
	ToolSummaries []string
	EmotionTag    string
	MaxLength     int
}

// DecorationPlugin is a translation/decoration hook applied after tool
// citations are injected; the default plugin set is empty (no-op), per §4.7.
type DecorationPlugin func(text string) string

// Mixer composes ResponseMixer output.
type Mixer struct {
	Plugins []DecorationPlugin
}

func New(plugins ...DecorationPlugin) *Mixer {
	return &Mixer{Plugins: plugins}
}

// Mix injects tool citations, runs decoration plugins, and enforces a
// maximum length.
func (m *Mixer) Mix(in Input) string {
	text := strings.TrimSpace(in.ModelText)

	if len(in.ToolSummaries) > 0 {
		var cited []string
		for _, s := range in.ToolSummaries {
			cited = append(cited, fmt.Sprintf("[tool: %s]", s))
		}
		text = text + "\n\n" + strings.Join(cited, "\n")
	}

	if in.EmotionTag != "" {
		text = fmt.Sprintf("%s {emotion:%s}", text, in.EmotionTag)
	}

	for _, plugin := range m.Plugins {
		text = plugin(text)
	}

	maxLength := in.MaxLength
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	if len(text) > maxLength {
		text = text[:maxLength]
	}

	return text
}
