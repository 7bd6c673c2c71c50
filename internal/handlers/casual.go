package handlers

import (
	"context"
	"fmt"
	"strings"

	"taedam/internal/engine"
	"taedam/internal/envelope"
	"taedam/internal/llm"
	"taedam/internal/logging"
)

const casualRecentBudget = 1200

const smallTalkSystem = `너는 뱃속 아기야. 엄마와 다정하게 대화해. 아이다운 반말로, 두세 문장 이내로 짧게.
아래 페르소나와 최근 대화를 참고해서 일관된 말투를 유지해.`

const wrapExpertSystem = `너는 뱃속 아기야. 아래 전문가 답변을 엄마에게 전해줘. 내용은 바꾸지 말고,
앞뒤에 아기다운 다정한 한두 문장만 붙여. 전문가 답변의 주의 문구는 그대로 유지해.`

// CasualHandler terminates a turn with a persona-voiced reply. Two modes:
// small_talk answers the user directly; wrap_expert re-voices the staged
// expert answer.
type CasualHandler struct {
	model  llm.Client
	logger logging.Logger
}

// NewCasualHandler builds the casual-reply capability.
func NewCasualHandler(model llm.Client, logger logging.Logger) *CasualHandler {
	return &CasualHandler{model: model, logger: logging.OrNop(logger)}
}

func (h *CasualHandler) Name() string { return "casual_reply" }

func (h *CasualHandler) Execute(ctx context.Context, st *engine.TurnState, args map[string]any) error {
	mode, _ := args["mode"].(string)
	if mode == "wrap_expert" {
		if expert, ok := st.Scratch[engine.ScratchExpertAnswer].(string); ok && expert != "" {
			return h.wrapExpert(ctx, st, expert)
		}
		// Nothing staged: the medical step was skipped or rewired. Answer
		// directly rather than failing the turn.
		h.logger.Warn("wrap_expert with no staged answer (session=%s)", st.SessionID)
	}
	return h.smallTalk(ctx, st)
}

func (h *CasualHandler) smallTalk(ctx context.Context, st *engine.TurnState) error {
	prompt := contextSection(historyBlock(st), casualRecentBudget) + "엄마: " + st.Text()
	resp, err := h.model.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			llm.System(smallTalkSystem),
			llm.User(prompt),
		},
		Temperature: 0.7,
	})
	if err != nil {
		return fmt.Errorf("small talk: %w", err)
	}
	return st.SetFinal(envelope.Chat(strings.TrimSpace(resp.Content), h.Name()))
}

// wrapExpert re-voices the expert answer. The answer itself is already
// computed and disclaimed, so a model failure here degrades to delivering it
// verbatim instead of failing the turn.
func (h *CasualHandler) wrapExpert(ctx context.Context, st *engine.TurnState, expert string) error {
	text := expert
	prompt := contextSection(historyBlock(st), casualRecentBudget) + "전문가 답변:\n" + expert
	resp, err := h.model.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			llm.System(wrapExpertSystem),
			llm.User(prompt),
		},
		Temperature: 0.5,
	})
	if err != nil {
		h.logger.Warn("expert wrap failed, delivering raw answer (session=%s): %v", st.SessionID, err)
	} else if wrapped := strings.TrimSpace(resp.Content); wrapped != "" {
		text = wrapped
	}

	data := map[string]any{
		"expert_answer": expert,
	}
	if cites, ok := st.Scratch[engine.ScratchCitations].([]map[string]any); ok {
		data["citations"] = cites
	}
	if hasEvidence, ok := st.Scratch[engine.ScratchHasEvidence].(bool); ok {
		data["has_evidence"] = hasEvidence
	}
	return st.SetFinal(envelope.Expert(text, data, h.Name()))
}
