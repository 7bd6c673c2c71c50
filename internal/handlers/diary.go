package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"taedam/internal/engine"
	"taedam/internal/envelope"
	"taedam/internal/llm"
	"taedam/internal/logging"
	"taedam/internal/shared/jsonx"
	"taedam/internal/shared/timeutil"
	"taedam/internal/store"
	"taedam/internal/xerrors"
)

// noChatsText is the reply when the requested day has no conversation. It is
// a normal chat response: nothing is persisted.
const noChatsText = "해당 날짜에는 채팅기록이 없어요. 오늘 있었던 일을 먼저 들려주시면 일기를 써드릴게요!"

// generationFailedText is the degraded reply when the retry budget runs out.
const generationFailedText = "지금은 일기를 쓰기가 어려워요. 조금 이따가 다시 부탁해 줄래요?"

const diarySystem = `너는 뱃속 아기의 목소리로 하루 일기를 쓰는 작가야. 아래 그날의 대화 기록을 바탕으로
아기 시점의 다정한 반말 일기를 써. 대화에 없는 사실은 지어내지 마.
JSON만 반환해: {"title": "...", "content": "..."}`

const dateDetectSystem = `사용자 메시지에서 일기를 쓸 대상 날짜를 찾아. "어제", "그저께", "8월 20일" 같은
표현을 오늘 날짜 기준으로 해석해. 날짜 언급이 없으면 빈 문자열을 반환해.
JSON만 반환해: {"date": "YYYY-MM-DD" 또는 ""}`

// DiaryChatSource reads one day's conversation.
type DiaryChatSource interface {
	MessagesByDate(ctx context.Context, sessionID, date string) ([]store.Message, error)
}

// DiarySink persists diary entries.
type DiarySink interface {
	SaveDiary(ctx context.Context, e store.DiaryEntry) error
}

// DiaryHandler generates and persists the day's baby-voice diary.
type DiaryHandler struct {
	chats  DiaryChatSource
	sink   DiarySink
	model  llm.Client
	retry  xerrors.RetryConfig
	logger logging.Logger
}

// NewDiaryHandler builds the diary capability.
func NewDiaryHandler(chats DiaryChatSource, sink DiarySink, model llm.Client, logger logging.Logger) *DiaryHandler {
	return &DiaryHandler{
		chats:  chats,
		sink:   sink,
		model:  model,
		retry:  xerrors.DefaultRetryConfig(),
		logger: logging.OrNop(logger),
	}
}

func (h *DiaryHandler) Name() string { return "diary" }

type diaryDraft struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Execute resolves the target date, loads that day's messages, and generates
// the diary within the retry budget. Exhausting the budget degrades to an
// apologetic chat reply; nothing is persisted on failure.
func (h *DiaryHandler) Execute(ctx context.Context, st *engine.TurnState, args map[string]any) error {
	date := h.resolveDate(ctx, st, args)

	msgs, err := h.chats.MessagesByDate(ctx, st.SessionID, date)
	if err != nil {
		return fmt.Errorf("load day's messages: %w", err)
	}
	if len(msgs) == 0 {
		return st.SetFinal(envelope.Chat(noChatsText, h.Name()))
	}

	var draft diaryDraft
	err = xerrors.Retry(ctx, h.retry, h.logger, func(ctx context.Context) error {
		return llm.CompleteStructured(ctx, h.model, llm.CompletionRequest{
			Messages: []llm.Message{
				llm.System(diarySystem),
				llm.User(transcript(date, msgs)),
			},
			Temperature: 0.6,
		}, &draft)
	})
	if err == nil && strings.TrimSpace(draft.Content) == "" {
		err = fmt.Errorf("model returned empty content")
	}
	if err != nil {
		h.logger.Error("diary generation exhausted retries (session=%s, date=%s): %v", st.SessionID, date, err)
		st.RecordError(fmt.Sprintf("diary generation failed: %v", err))
		return st.SetFinal(envelope.Chat(generationFailedText, h.Name()))
	}

	usedIDs := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		usedIDs = append(usedIDs, m.ID)
	}
	used, _ := jsonx.Marshal(usedIDs)

	entry := store.DiaryEntry{
		SessionID:     st.SessionID,
		Date:          date,
		Title:         strings.TrimSpace(draft.Title),
		Content:       strings.TrimSpace(draft.Content),
		UsedChatsJSON: string(used),
	}
	if err := h.sink.SaveDiary(ctx, entry); err != nil {
		return fmt.Errorf("persist diary: %w", err)
	}

	return st.SetFinal(envelope.Diary(entry.Content, map[string]any{
		"title": entry.Title,
		"date":  entry.Date,
	}, h.Name()))
}

// resolveDate prefers an explicit task arg, then an explicit envelope date,
// then a date the user mentioned in the request text, then today.
func (h *DiaryHandler) resolveDate(ctx context.Context, st *engine.TurnState, args map[string]any) string {
	if d, ok := args["date"].(string); ok && d != "" {
		return d
	}
	if d := st.Input.Payload.Metadata.Date; d != "" {
		return d
	}

	today, _ := st.Scratch[engine.ScratchDate].(string)
	if today == "" {
		today = timeutil.Today()
	}
	if d := h.detectDate(ctx, st.Text(), today); d != "" {
		return d
	}
	return today
}

// detectDate asks the model whether the request names a day ("어제 일기 써줘").
// Any failure falls through to today; date detection is never worth a retry.
func (h *DiaryHandler) detectDate(ctx context.Context, text, today string) string {
	var out struct {
		Date string `json:"date"`
	}
	err := llm.CompleteStructured(ctx, h.model, llm.CompletionRequest{
		Messages: []llm.Message{
			llm.System(dateDetectSystem),
			llm.User(fmt.Sprintf("오늘: %s\n메시지: %s", today, text)),
		},
		Temperature: 0,
	}, &out)
	if err != nil {
		h.logger.Warn("diary date detection failed: %v", err)
		return ""
	}
	if _, err := time.Parse("2006-01-02", out.Date); err != nil {
		return ""
	}
	return out.Date
}

func transcript(date string, msgs []store.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s의 대화 기록:\n", date)
	for _, m := range msgs {
		fmt.Fprintf(&b, "[%s] %s\n", m.Role, m.Text)
	}
	return b.String()
}
