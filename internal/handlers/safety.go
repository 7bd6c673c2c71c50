package handlers

import (
	"context"

	"taedam/internal/engine"
	"taedam/internal/envelope"
	"taedam/internal/logging"
)

// safetyText is fixed copy, never model-generated: an urgent turn must not
// depend on a model round-trip.
const safetyText = `지금 바로 119에 전화하거나 가까운 응급실로 가주세요.

출혈, 호흡곤란, 실신, 경련 같은 증상은 즉시 진료가 필요해요.
이동이 어렵다면 주변에 도움을 요청하고, 증상이 시작된 시간을 기억해 주세요.

엄마와 아기 모두 무사하길 바랄게요. 진료 후에 꼭 다시 알려주세요.`

// SafetyHandler terminates urgent turns with the fixed emergency guidance.
type SafetyHandler struct {
	logger logging.Logger
}

// NewSafetyHandler builds the safety capability.
func NewSafetyHandler(logger logging.Logger) *SafetyHandler {
	return &SafetyHandler{logger: logging.OrNop(logger)}
}

func (h *SafetyHandler) Name() string { return "safety_alert" }

// Execute sets the safety alert as the terminal response.
func (h *SafetyHandler) Execute(_ context.Context, st *engine.TurnState, _ map[string]any) error {
	h.logger.Warn("urgent triage (session=%s)", st.SessionID)
	return st.SetFinal(envelope.SafetyAlert(safetyText, map[string]any{
		"triage_level": "red",
	}, h.Name()))
}
