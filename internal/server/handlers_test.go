package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taedam/internal/config"
	"taedam/internal/envelope"
	"taedam/internal/history"
	"taedam/internal/shared/jsonx"
	"taedam/internal/store"
)

type stubRunner struct {
	out    *envelope.Output
	inputs []envelope.Input
}

func (r *stubRunner) RunTurn(_ context.Context, input envelope.Input) *envelope.Output {
	r.inputs = append(r.inputs, input)
	return r.out
}

type stubStore struct {
	messages []store.Message
	baby     *store.BabyProfile
	mother   *store.MotherProfile
	diaries  []store.DiaryEntry
}

func (s *stubStore) SaveMessage(_ context.Context, msg store.Message) error {
	s.messages = append(s.messages, msg)
	return nil
}

func (s *stubStore) MessagesByDate(_ context.Context, sessionID, date string) ([]store.Message, error) {
	var out []store.Message
	for _, m := range s.messages {
		if m.SessionID == sessionID && strings.HasPrefix(m.CreatedAt, date) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *stubStore) DeleteSessionMessages(_ context.Context, sessionID string) error {
	kept := s.messages[:0]
	for _, m := range s.messages {
		if m.SessionID != sessionID {
			kept = append(kept, m)
		}
	}
	s.messages = kept
	return nil
}

func (s *stubStore) DeleteLastMessage(_ context.Context, sessionID string) (bool, error) {
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].SessionID == sessionID {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *stubStore) GetBaby(context.Context, string) (*store.BabyProfile, error) { return s.baby, nil }

func (s *stubStore) UpsertBaby(_ context.Context, p store.BabyProfile) error {
	s.baby = &p
	return nil
}

func (s *stubStore) GetMother(context.Context, string) (*store.MotherProfile, error) {
	return s.mother, nil
}

func (s *stubStore) UpsertMother(_ context.Context, p store.MotherProfile) error {
	s.mother = &p
	return nil
}

func (s *stubStore) ListDiaries(context.Context, string) ([]store.DiaryEntry, error) {
	return s.diaries, nil
}

func (s *stubStore) DiaryByDate(_ context.Context, sessionID, date string) (*store.DiaryEntry, error) {
	for i := range s.diaries {
		if s.diaries[i].SessionID == sessionID && s.diaries[i].Date == date {
			return &s.diaries[i], nil
		}
	}
	return nil, nil
}

func (s *stubStore) DeleteDiary(_ context.Context, sessionID, date string) (bool, error) {
	for i := range s.diaries {
		if s.diaries[i].SessionID == sessionID && s.diaries[i].Date == date {
			s.diaries = append(s.diaries[:i], s.diaries[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type stubHistorian struct{ block *history.Block }

func (h *stubHistorian) GetOrBuild(context.Context, string, string) (*history.Block, error) {
	return h.block, nil
}

type stubScheduler struct{ scheduled []string }

func (s *stubScheduler) SchedulePersonaRefresh(sessionID string, _ *history.Block) {
	s.scheduled = append(s.scheduled, sessionID)
}

func testServer(runner TurnRunner, st Store, scheduler PersonaScheduler) *Server {
	return New(config.Server{Host: "127.0.0.1", Port: 0, CORSOrigins: []string{"*"}}, runner, st, &stubHistorian{block: &history.Block{}}, scheduler, nil)
}

func doJSON(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func TestChatHappyPath(t *testing.T) {
	runner := &stubRunner{out: envelope.Chat("엄마 안녕!", "casual_reply")}
	st := &stubStore{}
	s := testServer(runner, st, nil)

	w := doJSON(t, s, http.MethodPost, "/api/chat", `{"session_id": "s1", "text": "안녕", "date": "2026-08-26"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var out envelope.Output
	require.NoError(t, jsonx.Unmarshal(w.Body.Bytes(), &out))
	assert.True(t, out.OK)
	assert.Equal(t, "엄마 안녕!", out.Result.Text)

	// Blank profiles created on first contact.
	require.NotNil(t, st.baby)
	require.NotNil(t, st.mother)
	assert.Equal(t, "s1", st.baby.SessionID)

	// User and assistant messages logged.
	require.Len(t, st.messages, 2)
	assert.Equal(t, "user", st.messages[0].Role)
	assert.Equal(t, "assistant", st.messages[1].Role)

	// The explicit date travels on the input envelope.
	require.Len(t, runner.inputs, 1)
	assert.Equal(t, "2026-08-26", runner.inputs[0].Payload.Metadata.Date)
}

func TestChatValidation(t *testing.T) {
	s := testServer(&stubRunner{out: envelope.Chat("x", "y")}, &stubStore{}, nil)

	w := doJSON(t, s, http.MethodPost, "/api/chat", `{"text": "안녕"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/chat", `{"session_id": "s1", "text": "   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatErrorEnvelopeIs500(t *testing.T) {
	runner := &stubRunner{out: envelope.Err("internal_error", "실패했어요", true)}
	st := &stubStore{}
	s := testServer(runner, st, nil)

	w := doJSON(t, s, http.MethodPost, "/api/chat", `{"session_id": "s1", "text": "안녕"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	// Only the user message was logged; there is no assistant reply.
	require.Len(t, st.messages, 1)
}

func TestChatKeepsExistingProfiles(t *testing.T) {
	st := &stubStore{baby: &store.BabyProfile{SessionID: "s1", Name: "콩이", Week: 22}}
	s := testServer(&stubRunner{out: envelope.Chat("응", "casual_reply")}, st, nil)

	doJSON(t, s, http.MethodPost, "/api/chat", `{"session_id": "s1", "text": "안녕"}`)
	assert.Equal(t, "콩이", st.baby.Name)
}

func TestListDiaries(t *testing.T) {
	st := &stubStore{diaries: []store.DiaryEntry{{SessionID: "s1", Date: "2026-08-26", Title: "첫 태동"}}}
	s := testServer(&stubRunner{}, st, nil)

	w := doJSON(t, s, http.MethodGet, "/api/diaries?session_id=s1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "첫 태동")

	w = doJSON(t, s, http.MethodGet, "/api/diaries", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDiaryByDate(t *testing.T) {
	st := &stubStore{diaries: []store.DiaryEntry{{SessionID: "s1", Date: "2026-08-26", Title: "첫 태동", Content: "오늘 엄마가..."}}}
	s := testServer(&stubRunner{}, st, nil)

	w := doJSON(t, s, http.MethodGet, "/api/diaries/2026-08-26?session_id=s1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "첫 태동")

	w = doJSON(t, s, http.MethodGet, "/api/diaries/2026-08-27?session_id=s1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/diaries/2026-08-26", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteDiary(t *testing.T) {
	st := &stubStore{diaries: []store.DiaryEntry{{SessionID: "s1", Date: "2026-08-26", Title: "첫 태동"}}}
	s := testServer(&stubRunner{}, st, nil)

	w := doJSON(t, s, http.MethodDelete, "/api/diaries/2026-08-26?session_id=s1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, st.diaries)

	// Already gone.
	w = doJSON(t, s, http.MethodDelete, "/api/diaries/2026-08-26?session_id=s1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChatsByDate(t *testing.T) {
	st := &stubStore{messages: []store.Message{
		{SessionID: "s1", Role: "user", Text: "어제 얘기", CreatedAt: "2026-08-25T22:00:00+09:00"},
		{SessionID: "s1", Role: "user", Text: "오늘 얘기", CreatedAt: "2026-08-26T09:00:00+09:00"},
	}}
	s := testServer(&stubRunner{}, st, nil)

	w := doJSON(t, s, http.MethodGet, "/api/chats?session_id=s1&date=2026-08-26", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "오늘 얘기")
	assert.NotContains(t, w.Body.String(), "어제 얘기")

	w = doJSON(t, s, http.MethodGet, "/api/chats?date=2026-08-26", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResetSession(t *testing.T) {
	st := &stubStore{messages: []store.Message{
		{SessionID: "s1", Role: "user", Text: "지울 대화"},
		{SessionID: "s2", Role: "user", Text: "남길 대화"},
	}}
	s := testServer(&stubRunner{}, st, nil)

	w := doJSON(t, s, http.MethodDelete, "/api/chats?session_id=s1", "")
	require.Equal(t, http.StatusOK, w.Code)

	// Only the named session is wiped.
	require.Len(t, st.messages, 1)
	assert.Equal(t, "s2", st.messages[0].SessionID)
}

func TestDeleteLastMessage(t *testing.T) {
	st := &stubStore{messages: []store.Message{
		{SessionID: "s1", Role: "user", Text: "첫 마디"},
		{SessionID: "s1", Role: "user", Text: "잘못 보낸 마디"},
	}}
	s := testServer(&stubRunner{}, st, nil)

	w := doJSON(t, s, http.MethodDelete, "/api/chats/last?session_id=s1", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, st.messages, 1)
	assert.Equal(t, "첫 마디", st.messages[0].Text)

	doJSON(t, s, http.MethodDelete, "/api/chats/last?session_id=s1", "")
	w = doJSON(t, s, http.MethodDelete, "/api/chats/last?session_id=s1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPersonaRefreshSchedules(t *testing.T) {
	scheduler := &stubScheduler{}
	s := testServer(&stubRunner{}, &stubStore{}, scheduler)

	w := doJSON(t, s, http.MethodPost, "/api/persona/refresh", `{"session_id": "s1"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"s1"}, scheduler.scheduled)
}

func TestPersonaRefreshDisabled(t *testing.T) {
	s := testServer(&stubRunner{}, &stubStore{}, nil)
	w := doJSON(t, s, http.MethodPost, "/api/persona/refresh", `{"session_id": "s1"}`)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestHealthz(t *testing.T) {
	s := testServer(&stubRunner{}, &stubStore{}, nil)
	w := doJSON(t, s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}
