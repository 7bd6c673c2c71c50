package maintenance

import (
	"context"
	"errors"
	"strings"

	"taedam/internal/history"
	"taedam/internal/llm"
	"taedam/internal/shared/jsonx"
	"taedam/internal/store"
)

const recentBudgetTokens = 1500

const personaSystem = `너는 태아 페르소나 생성기야. 아래 대화 기록과 기존 페르소나를 참고해서
뱃속 아기의 페르소나를 갱신해. 말투는 다정하고 아이다운 반말이어야 해.
JSON만 반환해: {"name": "...", "speech_style": "...", "traits": ["..."], "recent_topics": ["..."]}`

// refreshPersona synthesizes a new persona version from the history snapshot.
// A turn that finds no usable conversation leaves the persona untouched.
func (c *Coordinator) refreshPersona(ctx context.Context, sessionID string, block *history.Block) error {
	lines := block.RecentLines(recentBudgetTokens)
	if len(lines) == 0 {
		return nil
	}

	var prompt strings.Builder
	prompt.WriteString("대화 기록:\n")
	prompt.WriteString(strings.Join(lines, "\n"))
	if summaries := block.SummaryLines(); len(summaries) > 0 {
		prompt.WriteString("\n\n주간 요약:\n")
		prompt.WriteString(strings.Join(summaries, "\n"))
	}
	if current := block.PersonaJSON(); current != "" {
		prompt.WriteString("\n\n기존 페르소나:\n")
		prompt.WriteString(current)
	}

	var persona map[string]any
	err := llm.CompleteStructured(ctx, c.model, llm.CompletionRequest{
		Messages: []llm.Message{
			llm.System(personaSystem),
			llm.User(prompt.String()),
		},
		Temperature: 0.4,
	}, &persona)
	if err != nil {
		c.logger.Warn("persona refresh failed (session=%s): %v", sessionID, err)
		return err
	}
	if len(persona) == 0 {
		return nil
	}

	raw, err := jsonx.Marshal(persona)
	if err != nil {
		c.logger.Warn("persona refresh marshal failed (session=%s): %v", sessionID, err)
		return err
	}
	version, err := c.personas.InsertPersonaVersion(ctx, sessionID, string(raw))
	if err != nil {
		c.logger.Warn("persona refresh persist failed (session=%s): %v", sessionID, err)
		return err
	}
	c.logger.Info("persona refreshed (session=%s, version=%d)", sessionID, version)
	return nil
}

const profileSystem = `너는 대화에서 프로필 정보를 추출하는 도구야. 대화 기록에서 명시적으로 언급된
정보만 추출해. 언급되지 않은 필드는 생략해. 추측하지 마.
JSON만 반환해: {"baby": {"name": "...", "week": 0, "gender": "M|F"}, "mother": {"name": "...", "age": 0}}`

type profileFacts struct {
	Baby struct {
		Name   string `json:"name"`
		Week   int    `json:"week"`
		Gender string `json:"gender"`
	} `json:"baby"`
	Mother struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	} `json:"mother"`
}

// extractProfileFacts mines the recent conversation for profile fields and
// merges non-empty candidates into the stored profiles.
func (c *Coordinator) extractProfileFacts(ctx context.Context, sessionID string, block *history.Block) error {
	lines := block.RecentLines(recentBudgetTokens)
	if len(lines) == 0 {
		return nil
	}

	var facts profileFacts
	err := llm.CompleteStructured(ctx, c.model, llm.CompletionRequest{
		Messages: []llm.Message{
			llm.System(profileSystem),
			llm.User("대화 기록:\n" + strings.Join(lines, "\n")),
		},
		Temperature: 0,
	}, &facts)
	if err != nil {
		c.logger.Warn("profile extraction failed (session=%s): %v", sessionID, err)
		return err
	}

	return errors.Join(
		c.mergeBaby(ctx, sessionID, facts),
		c.mergeMother(ctx, sessionID, facts),
	)
}

func (c *Coordinator) mergeBaby(ctx context.Context, sessionID string, facts profileFacts) error {
	if facts.Baby.Name == "" && facts.Baby.Week <= 0 && facts.Baby.Gender == "" {
		return nil
	}
	existing, err := c.profiles.GetBaby(ctx, sessionID)
	if err != nil {
		c.logger.Warn("baby profile read failed (session=%s): %v", sessionID, err)
		return err
	}
	merged := store.BabyProfile{SessionID: sessionID}
	if existing != nil {
		merged = *existing
	}
	if facts.Baby.Name != "" {
		merged.Name = facts.Baby.Name
	}
	if facts.Baby.Week > 0 {
		merged.Week = facts.Baby.Week
	}
	if g := strings.ToUpper(facts.Baby.Gender); g == "M" || g == "F" {
		merged.Gender = g
	}
	if err := c.profiles.UpsertBaby(ctx, merged); err != nil {
		c.logger.Warn("baby profile persist failed (session=%s): %v", sessionID, err)
		return err
	}
	return nil
}

func (c *Coordinator) mergeMother(ctx context.Context, sessionID string, facts profileFacts) error {
	if facts.Mother.Name == "" && facts.Mother.Age <= 0 {
		return nil
	}
	existing, err := c.profiles.GetMother(ctx, sessionID)
	if err != nil {
		c.logger.Warn("mother profile read failed (session=%s): %v", sessionID, err)
		return err
	}
	merged := store.MotherProfile{SessionID: sessionID}
	if existing != nil {
		merged = *existing
	}
	if facts.Mother.Name != "" {
		merged.Name = facts.Mother.Name
	}
	if facts.Mother.Age > 0 {
		merged.Age = facts.Mother.Age
	}
	if err := c.profiles.UpsertMother(ctx, merged); err != nil {
		c.logger.Warn("mother profile persist failed (session=%s): %v", sessionID, err)
		return err
	}
	return nil
}
