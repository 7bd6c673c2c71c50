// Package handlers implements the turn capabilities: the urgent safety alert,
// the evidence-grounded medical answer, the baby-voice diary, and the casual
// reply that terminates most turns.
package handlers

import (
	"strings"

	"taedam/internal/engine"
	"taedam/internal/history"
)

// historyBlock reads the snapshot the orchestrator populated, nil when the
// build failed and the turn is running degraded.
func historyBlock(st *engine.TurnState) *history.Block {
	block, _ := st.Scratch[engine.ScratchHistory].(*history.Block)
	return block
}

// contextSection renders the shared prompt context: persona, weekly
// summaries, and recent conversation within the token budget.
func contextSection(block *history.Block, recentBudget int) string {
	if block == nil {
		return ""
	}
	var b strings.Builder
	if persona := block.PersonaJSON(); persona != "" {
		b.WriteString("아기 페르소나:\n")
		b.WriteString(persona)
		b.WriteString("\n\n")
	}
	if summaries := block.SummaryLines(); len(summaries) > 0 {
		b.WriteString("주간 요약:\n")
		b.WriteString(strings.Join(summaries, "\n"))
		b.WriteString("\n\n")
	}
	if recent := block.RecentLines(recentBudget); len(recent) > 0 {
		b.WriteString("최근 대화:\n")
		b.WriteString(strings.Join(recent, "\n"))
		b.WriteString("\n\n")
	}
	return b.String()
}
