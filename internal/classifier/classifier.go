// Package classifier maps raw user text onto the closed intent set and the
// plan template each intent expands to.
package classifier

import (
	"context"
	"strings"

	"taedam/internal/engine"
	"taedam/internal/llm"
	"taedam/internal/logging"
)

// Intent names. The set is closed: anything the model invents degrades to
// IntentSmalltalk.
const (
	IntentUrgent    = "urgent"
	IntentMedical   = "medical_qna"
	IntentDiary     = "diary"
	IntentSmalltalk = "smalltalk"
)

// urgentMarkers short-circuit classification: any hit routes to the safety
// template without consulting the model.
var urgentMarkers = []string{
	"119",
	"응급",
	"출혈",
	"호흡곤란",
	"실신",
	"경련",
	"의식없음",
	"의식 없",
}

// planTemplates maps each intent to its initial task queue.
var planTemplates = map[string][]engine.Task{
	IntentUrgent: {
		{Name: "safety_alert"},
	},
	IntentMedical: {
		{Name: "medical_answer"},
		{Name: "casual_reply", Args: map[string]any{"mode": "wrap_expert"}},
	},
	IntentDiary: {
		{Name: "diary"},
	},
	IntentSmalltalk: {
		{Name: "casual_reply", Args: map[string]any{"mode": "small_talk"}},
	},
}

const classifySystem = `너는 임산부 대화 어시스턴트의 의도 분류기야. 사용자 메시지를 읽고 아래 중 하나로 분류해.

- urgent: 응급 상황, 즉각적인 위험 신호 (출혈, 실신, 극심한 통증 등)
- medical_qna: 임신/출산/건강 관련 질문
- diary: 일기 작성 요청 (오늘 하루 정리해줘, 일기 써줘 등)
- smalltalk: 그 외 일상 대화

JSON만 반환해: {"intent": "..."}`

// Classifier is the turn planner: urgent keyword pre-pass, then model
// classification, then template expansion.
type Classifier struct {
	model  llm.Client
	logger logging.Logger
}

// New builds a classifier over the given model.
func New(model llm.Client, logger logging.Logger) *Classifier {
	return &Classifier{model: model, logger: logging.OrNop(logger)}
}

// Plan classifies text and returns the intent plus a fresh copy of its plan
// template. Classification never fails the turn: model errors and off-menu
// labels both fall back to smalltalk.
func (c *Classifier) Plan(ctx context.Context, text string) (string, []engine.Task) {
	intent := c.classify(ctx, text)
	return intent, clonePlan(planTemplates[intent])
}

func (c *Classifier) classify(ctx context.Context, text string) string {
	if containsUrgentMarker(text) {
		return IntentUrgent
	}

	var out struct {
		Intent string `json:"intent"`
	}
	err := llm.CompleteStructured(ctx, c.model, llm.CompletionRequest{
		Messages: []llm.Message{
			llm.System(classifySystem),
			llm.User(text),
		},
		Temperature: 0,
	}, &out)
	if err != nil {
		c.logger.Warn("intent classification failed, routing to smalltalk: %v", err)
		return IntentSmalltalk
	}

	intent := strings.TrimSpace(strings.ToLower(out.Intent))
	if _, ok := planTemplates[intent]; !ok {
		c.logger.Warn("model returned off-menu intent %q, routing to smalltalk", out.Intent)
		return IntentSmalltalk
	}
	return intent
}

func containsUrgentMarker(text string) bool {
	for _, marker := range urgentMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// clonePlan copies the template so handlers appending tasks never mutate the
// shared table.
func clonePlan(template []engine.Task) []engine.Task {
	plan := make([]engine.Task, len(template))
	copy(plan, template)
	return plan
}
