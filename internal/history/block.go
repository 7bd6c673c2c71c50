// Package history builds and memoizes the per-(session, day) snapshot of
// recent conversation, weekly summary, and latest persona that seasons every
// prompt in a turn.
package history

import (
	"fmt"
	"time"

	"taedam/internal/shared/tokenutil"
	"taedam/internal/store"
)

// Block is the cached composite snapshot. Read-only after construction and
// shared across handlers and future turns hitting the same key.
type Block struct {
	RecentChats     []store.Message
	WeeklySummaries []store.WeeklySummary
	Persona         *store.PersonaRecord
}

// RecentLines renders the recent conversation as "[role] text" lines, dropping
// the oldest lines until the block fits the token budget.
func (b *Block) RecentLines(budget int) []string {
	if b == nil || len(b.RecentChats) == 0 {
		return nil
	}
	lines := make([]string, 0, len(b.RecentChats))
	for _, m := range b.RecentChats {
		lines = append(lines, fmt.Sprintf("[%s] %s", m.Role, m.Text))
	}
	return tokenutil.TruncateLines(lines, budget)
}

// SummaryLines renders the weekly summaries as "- week_start: summary" lines.
func (b *Block) SummaryLines() []string {
	if b == nil {
		return nil
	}
	lines := make([]string, 0, len(b.WeeklySummaries))
	for _, w := range b.WeeklySummaries {
		if w.Summary == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", w.WeekStart, w.Summary))
	}
	return lines
}

// PersonaJSON returns the latest persona snapshot, empty when none exists.
func (b *Block) PersonaJSON() string {
	if b == nil || b.Persona == nil {
		return ""
	}
	return b.Persona.PersonaJSON
}

// WeekStart returns the Monday of the week containing the YYYY-MM-DD date.
func WeekStart(date string) (string, error) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "", fmt.Errorf("bad date %q: %w", date, err)
	}
	offset := (int(t.Weekday()) + 6) % 7 // Monday = 0
	return t.AddDate(0, 0, -offset).Format("2006-01-02"), nil
}

// WeekEnd returns the Sunday of the week starting at weekStart.
func WeekEnd(weekStart string) string {
	t, err := time.Parse("2006-01-02", weekStart)
	if err != nil {
		return weekStart
	}
	return t.AddDate(0, 0, 6).Format("2006-01-02")
}
