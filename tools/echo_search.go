package tools

import (
	"context"
	"fmt"
	"strings"
)

// EchoSearchParams is the reflected parameter shape for the echo_search tool.
type EchoSearchParams struct {
	Query string `json:"query" jsonschema:"description=Keyword query to search the fixture corpus for.,required"`
}

// fixtureCorpus is the small in-memory document set echo_search runs
// keyword matching over; a production deployment swaps this for a real
// search backend behind the same Tool interface (§4.10).
var fixtureCorpus = []string{
	"The core orchestration pipeline routes inbound Messages through parsing, context assembly, and response mixing.",
	"A Turn transitions from pending to responded when a matching reply arrives inside the response window.",
	"Sessions roll over once the idle threshold between Turns has elapsed.",
	"The NotificationHub fans out message, dialogue_update, and stream_chunk events to connected clients.",
}

// echoSearchTool is a trivial in-memory keyword search over a small fixture
// corpus (§4.10).
type echoSearchTool struct {
	Definition
}

func NewEchoSearchTool() Tool {
	return &echoSearchTool{Definition: NewDefinition(
		"echo_search", "echo_search", "information",
		"Searches a small fixture corpus for documents containing the query keywords.",
		&EchoSearchParams{},
	)}
}

func (e *echoSearchTool) Invoke(ctx context.Context, params map[string]any) (string, error) {
	var p EchoSearchParams
	if err := ValidateAgainstSchema(params, &p); err != nil {
		return "", err
	}
	query := strings.ToLower(strings.TrimSpace(p.Query))
	if query == "" {
		return "no matches found", nil
	}
	var matches []string
	for _, doc := range fixtureCorpus {
		if strings.Contains(strings.ToLower(doc), query) {
			matches = append(matches, doc)
		}
	}
	if len(matches) == 0 {
		return "no matches found", nil
	}
	return fmt.Sprintf("%d match(es):\n%s", len(matches), strings.Join(matches, "\n")), nil
}
