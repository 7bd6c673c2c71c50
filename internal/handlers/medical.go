package handlers

import (
	"context"
	"fmt"
	"strings"

	"taedam/internal/engine"
	"taedam/internal/llm"
	"taedam/internal/logging"
	"taedam/internal/retrieval"
)

const disclaimer = "※ 이 답변은 참고용이에요. 정확한 진단과 처방은 꼭 의료진과 상담해 주세요."

const medicalSystemGrounded = `너는 산부인과 지식을 갖춘 의료 정보 도우미야. 아래 근거 문단들 안에서만 답해.
근거에 없는 내용은 "자료에 없다"고 말해. 답은 한국어로, 친절하되 정확하게.`

const medicalSystemFallback = `너는 산부인과 지식을 갖춘 의료 정보 도우미야. 참고 자료가 없으니 일반적으로
알려진 안전한 범위에서만 답하고, 불확실한 내용은 단정하지 마. 답은 한국어로.`

// EvidenceSearcher is the retrieval slice the medical capability uses.
type EvidenceSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]retrieval.Evidence, error)
}

// MedicalHandler produces the expert answer and stages it in scratch for the
// wrap step. It never terminates the turn itself.
type MedicalHandler struct {
	retriever EvidenceSearcher
	model     llm.Client
	logger    logging.Logger
}

// NewMedicalHandler builds the medical capability.
func NewMedicalHandler(retriever EvidenceSearcher, model llm.Client, logger logging.Logger) *MedicalHandler {
	return &MedicalHandler{retriever: retriever, model: model, logger: logging.OrNop(logger)}
}

func (h *MedicalHandler) Name() string { return "medical_answer" }

// Execute retrieves evidence, asks the model for an answer grounded in it,
// and writes expert_answer / citations / has_evidence scratch slots. A
// retrieval outage degrades to an ungrounded answer; a model failure is fatal
// for the turn.
func (h *MedicalHandler) Execute(ctx context.Context, st *engine.TurnState, _ map[string]any) error {
	query := st.Text()

	var evidence []retrieval.Evidence
	if h.retriever != nil {
		var err error
		evidence, err = h.retriever.Search(ctx, query, 0)
		if err != nil {
			h.logger.Warn("evidence retrieval failed (session=%s): %v", st.SessionID, err)
			st.RecordError(fmt.Sprintf("evidence retrieval failed: %v", err))
			evidence = nil
		}
	}

	answer, err := h.answer(ctx, query, evidence)
	if err != nil {
		return fmt.Errorf("expert answer: %w", err)
	}
	if !strings.Contains(answer, "의료진") {
		answer = answer + "\n\n" + disclaimer
	}

	st.Scratch[engine.ScratchExpertAnswer] = answer
	st.Scratch[engine.ScratchCitations] = citations(evidence)
	st.Scratch[engine.ScratchHasEvidence] = len(evidence) > 0
	return nil
}

func (h *MedicalHandler) answer(ctx context.Context, query string, evidence []retrieval.Evidence) (string, error) {
	system := medicalSystemFallback
	user := query
	if len(evidence) > 0 {
		system = medicalSystemGrounded
		var b strings.Builder
		b.WriteString("근거 문단:\n")
		for i, ev := range evidence {
			fmt.Fprintf(&b, "[%d] (%s p.%d) %s\n", i+1, ev.Source, ev.Page, ev.Content)
		}
		b.WriteString("\n질문: ")
		b.WriteString(query)
		user = b.String()
	}

	resp, err := h.model.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			llm.System(system),
			llm.User(user),
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

func citations(evidence []retrieval.Evidence) []map[string]any {
	out := make([]map[string]any, 0, len(evidence))
	for _, ev := range evidence {
		out = append(out, map[string]any{
			"source": ev.Source,
			"page":   ev.Page,
			"score":  ev.Score,
		})
	}
	return out
}
