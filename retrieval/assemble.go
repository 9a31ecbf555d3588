package retrieval

import (
	"fmt"
	"strings"

	"github.com/RuokeZhang/IntelliFlow/core"
)

// Section headers for the assembled context. Precedence is fixed: live
// window first, then session summaries, then document chunks.
const (
	headerConversation = "=== CONVERSATION ==="
	headerMemory       = "=== MEMORY ==="
	headerKnowledge    = "=== KNOWLEDGE ==="
)

// assemble renders the context under the character budget. When the
// combined size exceeds the budget, whole items are dropped from the
// lowest-precedence end first: worst-scored chunks, then worst-scored
// summaries, then the oldest window messages. Items are never cut
// mid-message.
func assemble(window []core.Message, summaries []SummaryHit, chunks []Candidate, budget int) (string, bool) {
	windowLines := make([]string, len(window))
	for i, m := range window {
		windowLines[i] = fmt.Sprintf("%s: %s", m.Role, m.Content)
	}
	summaryLines := make([]string, len(summaries))
	for i, s := range summaries {
		summaryLines[i] = fmt.Sprintf("[%d] %s", i+1, s.Text)
	}
	chunkLines := make([]string, len(chunks))
	for i, c := range chunks {
		chunkLines[i] = fmt.Sprintf("[%d] %s", i+1, c.Content)
	}

	truncated := false
	for budget < rendered(windowLines, summaryLines, chunkLines) {
		switch {
		case len(chunkLines) > 0:
			// Chunks arrive best-first, so the tail is the worst score.
			chunkLines = chunkLines[:len(chunkLines)-1]
		case len(summaryLines) > 0:
			summaryLines = summaryLines[:len(summaryLines)-1]
		case len(windowLines) > 1:
			// Keep at least the newest message; drop oldest first.
			windowLines = windowLines[1:]
		default:
			// A single over-budget message is kept whole rather than cut.
			return render(windowLines, summaryLines, chunkLines), true
		}
		truncated = true
	}
	return render(windowLines, summaryLines, chunkLines), truncated
}

func render(window, summaries, chunks []string) string {
	var parts []string
	if len(window) > 0 {
		parts = append(parts, headerConversation+"\n"+strings.Join(window, "\n"))
	}
	if len(summaries) > 0 {
		parts = append(parts, headerMemory+"\n"+strings.Join(summaries, "\n"))
	}
	if len(chunks) > 0 {
		parts = append(parts, headerKnowledge+"\n"+strings.Join(chunks, "\n"))
	}
	return strings.Join(parts, "\n\n")
}

func rendered(window, summaries, chunks []string) int {
	return len(render(window, summaries, chunks))
}
